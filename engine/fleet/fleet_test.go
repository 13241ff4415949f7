package fleet

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/eka-ai/workshop/engine/invoice"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func contract() Contract {
	return Contract{
		ID:                   "mg-1",
		FleetName:            "Sahyadri Cabs",
		GuaranteedKMPerMonth: 3000,
		RatePerKM:            invoice.Rupees(12),
		ExcessRatePerKM:      invoice.Rupees(9.5),
		VehicleIDs:           []string{"MH12AB1001", "MH12AB1002"},
		StartDate:            day(2026, 1, 1),
	}
}

func TestValidateOdometer(t *testing.T) {
	prev := &VehicleLog{VehicleID: "v", Date: day(2026, 3, 1), OpeningKM: 1000, ClosingKM: 1200}
	tests := []struct {
		name string
		prev *VehicleLog
		log  VehicleLog
		want error
	}{
		{"first log", nil, VehicleLog{OpeningKM: 0, ClosingKM: 300}, nil},
		{"continues", prev, VehicleLog{Date: day(2026, 3, 2), OpeningKM: 1200, ClosingKM: 1500}, nil},
		{"rollback", nil, VehicleLog{OpeningKM: 500, ClosingKM: 400}, ErrOdometerRollback},
		{"gap", prev, VehicleLog{Date: day(2026, 3, 2), OpeningKM: 1100, ClosingKM: 1300}, ErrOdometerGap},
		{"too far", nil, VehicleLog{OpeningKM: 0, ClosingKM: 1501}, ErrDailyLimit},
		{"exactly the limit", nil, VehicleLog{OpeningKM: 0, ClosingKM: 1500}, nil},
		{"out of order", prev, VehicleLog{Date: day(2026, 2, 28), OpeningKM: 1200, ClosingKM: 1300}, ErrLogOrder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOdometer(tt.prev, tt.log)
			if tt.want == nil && err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCalculateBilling_Excess(t *testing.T) {
	logs := []VehicleLog{
		{VehicleID: "MH12AB1001", Date: day(2026, 3, 3), OpeningKM: 0, ClosingKM: 1400},
		{VehicleID: "MH12AB1002", Date: day(2026, 3, 4), OpeningKM: 0, ClosingKM: 1400},
		{VehicleID: "MH12AB1001", Date: day(2026, 3, 31), OpeningKM: 1400, ClosingKM: 1600},
		{VehicleID: "MH12AB1001", Date: day(2026, 4, 1), OpeningKM: 1600, ClosingKM: 2600}, // next month
		{VehicleID: "KA01ZZ9999", Date: day(2026, 3, 5), OpeningKM: 0, ClosingKM: 900},    // not in contract
	}
	got, err := CalculateBilling(contract(), logs, "2026-03")
	if err != nil {
		t.Fatal(err)
	}
	if got.ActualKM != 3000 {
		t.Fatalf("actual = %d", got.ActualKM)
	}
	if got.GuaranteedKM != 3000 || got.ExcessKM != 0 || got.ShortfallKM != 0 {
		t.Fatalf("got %+v", got)
	}
	if got.BaseAmount != 36000 || got.TotalAmount != 36000 || got.UtilizationPercent != 100 {
		t.Fatalf("got %+v", got)
	}

	logs = append(logs, VehicleLog{VehicleID: "MH12AB1002", Date: day(2026, 3, 20), OpeningKM: 1400, ClosingKM: 1650})
	got, err = CalculateBilling(contract(), logs, "2026-03")
	if err != nil {
		t.Fatal(err)
	}
	if got.ActualKM != 3250 || got.ExcessKM != 250 {
		t.Fatalf("got %+v", got)
	}
	if got.ExcessAmount != 2375 || got.TotalAmount != 38375 {
		t.Fatalf("amounts = %+v", got)
	}
	if got.UtilizationPercent != 108.33 {
		t.Fatalf("utilization = %v", got.UtilizationPercent)
	}
}

func TestCalculateBilling_Shortfall(t *testing.T) {
	logs := []VehicleLog{{VehicleID: "MH12AB1001", Date: day(2026, 2, 10), OpeningKM: 0, ClosingKM: 750}}
	got, err := CalculateBilling(contract(), logs, "2026-02")
	if err != nil {
		t.Fatal(err)
	}
	if got.ShortfallKM != 2250 || got.BaseAmount != 36000 || got.ExcessAmount != 0 || got.UtilizationPercent != 25 {
		t.Fatalf("got %+v", got)
	}
	if got.Month != "2026-02" || got.ContractID != "mg-1" {
		t.Fatalf("got %+v", got)
	}
}

func TestCalculateBilling_Errors(t *testing.T) {
	if _, err := CalculateBilling(contract(), nil, "March"); !errors.Is(err, ErrInvalidMonth) {
		t.Errorf("err = %v", err)
	}
	if _, err := CalculateBilling(contract(), nil, "2025-12"); !errors.Is(err, ErrOutsideContract) {
		t.Errorf("err = %v", err)
	}
	ended := contract()
	end := day(2026, 2, 15)
	ended.EndDate = &end
	if _, err := CalculateBilling(ended, nil, "2026-02"); err != nil {
		t.Errorf("contract ending mid-month still covers it: %v", err)
	}
	if _, err := CalculateBilling(ended, nil, "2026-03"); !errors.Is(err, ErrOutsideContract) {
		t.Errorf("err = %v", err)
	}
	bad := contract()
	bad.GuaranteedKMPerMonth = 0
	if _, err := CalculateBilling(bad, nil, "2026-03"); !errors.Is(err, ErrInvalidContract) {
		t.Errorf("err = %v", err)
	}
	huge := contract()
	huge.GuaranteedKMPerMonth = math.MaxInt / 2
	if _, err := CalculateBilling(huge, nil, "2026-03"); !errors.Is(err, ErrInvalidContract) {
		t.Errorf("huge guarantee: err = %v", err)
	}
	pricey := contract()
	pricey.ExcessRatePerKM = invoice.Money(math.MaxInt64 / 4)
	if _, err := CalculateBilling(pricey, nil, "2026-03"); !errors.Is(err, ErrInvalidContract) {
		t.Errorf("huge excess rate: err = %v", err)
	}
	runaway := []VehicleLog{{VehicleID: "MH12AB1001", Date: day(2026, 3, 2), OpeningKM: 0, ClosingKM: math.MaxInt32}}
	if _, err := CalculateBilling(contract(), runaway, "2026-03"); !errors.Is(err, ErrDailyLimit) {
		t.Errorf("runaway log: err = %v", err)
	}
}
