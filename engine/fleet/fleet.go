// Package fleet implements minimum-guarantee (MG) billing for fleet
// contracts: odometer log validation and monthly billing.
package fleet

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/eka-ai/workshop/engine/domain"
	"github.com/eka-ai/workshop/engine/invoice"
)

// MaxDailyKM is the largest plausible distance for one vehicle in a day.
const MaxDailyKM = 1500

// Contract term limits. They keep billing products well inside int64 paise.
const (
	MaxGuaranteedKMPerMonth = 10_000_000
	MaxRatePerKM            = invoice.Money(1_000_000) // ₹10,000 per km
)

var (
	ErrOdometerRollback = errors.New("fleet: closing reading below opening reading")
	ErrOdometerGap      = errors.New("fleet: opening reading below previous closing reading")
	ErrDailyLimit       = errors.New("fleet: daily distance exceeds limit")
	ErrLogOrder         = errors.New("fleet: log precedes previous log")
	ErrInvalidContract  = errors.New("fleet: invalid contract")
	ErrOutsideContract  = errors.New("fleet: month outside contract period")
	ErrInvalidMonth     = errors.New("fleet: month must be YYYY-MM")
)

// Contract is an MG agreement with a fleet operator. Rates are per km.
type Contract struct {
	ID                   string        `json:"id"`
	FleetName            string        `json:"fleet_name"`
	GuaranteedKMPerMonth int           `json:"guaranteed_km_per_month"`
	RatePerKM            invoice.Money `json:"rate_per_km"`
	ExcessRatePerKM      invoice.Money `json:"excess_rate_per_km"`
	VehicleIDs           []string      `json:"vehicle_ids"`
	StartDate            time.Time     `json:"start_date"`
	EndDate              *time.Time    `json:"end_date,omitempty"`
}

// Validate checks the contract terms.
func (c Contract) Validate() error {
	switch {
	case strings.TrimSpace(c.FleetName) == "":
		return fmt.Errorf("%w: fleet name is empty", ErrInvalidContract)
	case c.GuaranteedKMPerMonth <= 0:
		return fmt.Errorf("%w: guaranteed km must be positive", ErrInvalidContract)
	case c.GuaranteedKMPerMonth > MaxGuaranteedKMPerMonth:
		return fmt.Errorf("%w: guaranteed km above %d", ErrInvalidContract, MaxGuaranteedKMPerMonth)
	case c.RatePerKM <= 0:
		return fmt.Errorf("%w: rate per km must be positive", ErrInvalidContract)
	case c.ExcessRatePerKM < 0:
		return fmt.Errorf("%w: excess rate is negative", ErrInvalidContract)
	case c.RatePerKM > MaxRatePerKM, c.ExcessRatePerKM > MaxRatePerKM:
		return fmt.Errorf("%w: rate per km above %.2f", ErrInvalidContract, MaxRatePerKM.Float())
	case c.EndDate != nil && c.EndDate.Before(c.StartDate):
		return fmt.Errorf("%w: end date before start date", ErrInvalidContract)
	}
	return nil
}

// Covers reports whether the contract is in force for any day of the month
// starting at m.
func (c Contract) Covers(m time.Time) bool {
	next := m.AddDate(0, 1, 0)
	if !c.StartDate.IsZero() && !c.StartDate.Before(next) {
		return false
	}
	return c.EndDate == nil || !c.EndDate.Before(m)
}

// VehicleLog is one day's odometer readings for a vehicle.
type VehicleLog struct {
	ID        string    `json:"id,omitempty"`
	VehicleID string    `json:"vehicle_id"`
	Date      time.Time `json:"date"`
	OpeningKM int       `json:"opening_km"`
	ClosingKM int       `json:"closing_km"`
}

// Distance returns the km run that day.
func (l VehicleLog) Distance() int { return l.ClosingKM - l.OpeningKM }

// ValidateOdometer checks log against the vehicle's previous log, if any.
func ValidateOdometer(prev *VehicleLog, log VehicleLog) error {
	if log.ClosingKM < log.OpeningKM {
		return fmt.Errorf("%w: %d < %d", ErrOdometerRollback, log.ClosingKM, log.OpeningKM)
	}
	if d := log.Distance(); d > MaxDailyKM {
		return fmt.Errorf("%w: %d km > %d km", ErrDailyLimit, d, MaxDailyKM)
	}
	if prev == nil {
		return nil
	}
	if log.Date.Before(prev.Date) {
		return ErrLogOrder
	}
	if log.OpeningKM < prev.ClosingKM {
		return fmt.Errorf("%w: %d < %d", ErrOdometerGap, log.OpeningKM, prev.ClosingKM)
	}
	return nil
}

// ParseMonth parses YYYY-MM into the first instant of that month, UTC.
func ParseMonth(s string) (time.Time, error) {
	m, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return m, nil
}

// CalculateBilling bills contract c for month (YYYY-MM). The guaranteed km
// are always billed at the base rate; km beyond the guarantee are billed at
// the excess rate. Logs for other vehicles or months are ignored; a counted
// log longer than MaxDailyKM fails the bill.
func CalculateBilling(c Contract, logs []VehicleLog, month string) (domain.MGAnalysis, error) {
	if err := c.Validate(); err != nil {
		return domain.MGAnalysis{}, err
	}
	m, err := ParseMonth(month)
	if err != nil {
		return domain.MGAnalysis{}, err
	}
	if !c.Covers(m) {
		return domain.MGAnalysis{}, fmt.Errorf("%w: %s", ErrOutsideContract, month)
	}
	next := m.AddDate(0, 1, 0)

	actual := 0
	for _, l := range logs {
		if !slices.Contains(c.VehicleIDs, l.VehicleID) {
			continue
		}
		d := l.Date.UTC()
		if d.Before(m) || !d.Before(next) {
			continue
		}
		if dist := l.Distance(); dist > MaxDailyKM {
			return domain.MGAnalysis{}, fmt.Errorf("%w: %s on %s ran %d km", ErrDailyLimit, l.VehicleID, d.Format(time.DateOnly), dist)
		}
		actual += max(l.Distance(), 0)
	}

	g := c.GuaranteedKMPerMonth
	excess := max(actual-g, 0)
	base := invoice.Money(g) * c.RatePerKM
	extra := invoice.Money(excess) * c.ExcessRatePerKM
	return domain.MGAnalysis{
		ContractID:         c.ID,
		Month:              m.Format("2006-01"),
		GuaranteedKM:       g,
		ActualKM:           actual,
		ShortfallKM:        max(g-actual, 0),
		ExcessKM:           excess,
		BaseAmount:         base.Float(),
		ExcessAmount:       extra.Float(),
		TotalAmount:        (base + extra).Float(),
		UtilizationPercent: math.Round(float64(actual)/float64(g)*10000) / 100,
	}, nil
}
