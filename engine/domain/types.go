// Package domain defines the workshop's vehicle context, the typed payloads
// exchanged with the diagnostics backend, and the form-level validators that
// gate them.
package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Vehicle types as written by the intake form. Four-wheelers are also sent
// as "four_wheeler" or "car" by older clients.
const (
	VehicleTwoWheeler   = "2W"
	VehicleThreeWheeler = "3W"
	VehicleFourWheeler  = "4W"
	VehicleCommercial   = "CV"
	VehicleEV           = "EV"
)

// Fuel types.
const (
	FuelPetrol   = "petrol"
	FuelDiesel   = "diesel"
	FuelCNG      = "cng"
	FuelElectric = "electric"
	FuelHybrid   = "hybrid"
)

// ModelYear accepts both 2020 and "2020" in JSON.
type ModelYear int

func (y *ModelYear) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*y = 0
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("model year %q: %w", s, err)
	}
	*y = ModelYear(n)
	return nil
}

func (y ModelYear) MarshalJSON() ([]byte, error) {
	if y == 0 {
		return []byte(`""`), nil
	}
	return json.Marshal(strconv.Itoa(int(y)))
}

// VehicleContext identifies the vehicle a job card is opened for.
type VehicleContext struct {
	VehicleType        string    `json:"vehicle_type"`
	Brand              string    `json:"brand"`
	Model              string    `json:"model"`
	Year               ModelYear `json:"year"`
	FuelType           string    `json:"fuel_type"`
	RegistrationNumber string    `json:"registration_number,omitempty"`
	VIN                string    `json:"vin,omitempty"`
	OdometerKM         int       `json:"odometer_km,omitempty"`

	// EV only.
	BatteryCapacityKWh float64 `json:"battery_capacity_kwh,omitempty"`
	MotorType          string  `json:"motor_type,omitempty"`
	ChargingType       string  `json:"charging_type,omitempty"`
}

// IsFourWheeler reports whether vehicleType denotes a four-wheeled vehicle.
func IsFourWheeler(vehicleType string) bool {
	switch strings.ToLower(strings.TrimSpace(vehicleType)) {
	case "4w", "four_wheeler", "four-wheeler", "car":
		return true
	}
	return false
}

// IsElectric reports whether the context describes a battery-electric vehicle.
func (vc VehicleContext) IsElectric() bool {
	return strings.EqualFold(strings.TrimSpace(vc.FuelType), FuelElectric) ||
		strings.EqualFold(strings.TrimSpace(vc.VehicleType), VehicleEV)
}

// IsContextComplete reports whether vc carries enough to open a job card:
// type, brand, model, year and fuel type, plus a VIN for four-wheelers.
func IsContextComplete(vc VehicleContext) bool {
	for _, f := range []string{vc.VehicleType, vc.Brand, vc.Model, vc.FuelType} {
		if strings.TrimSpace(f) == "" {
			return false
		}
	}
	if vc.Year == 0 {
		return false
	}
	if IsFourWheeler(vc.VehicleType) && strings.TrimSpace(vc.VIN) == "" {
		return false
	}
	return true
}

// Normalized returns a copy with brand canonicalized and identifiers
// upper-cased. It never fails; validation is separate.
func (vc VehicleContext) Normalized() VehicleContext {
	vc.VehicleType = strings.TrimSpace(vc.VehicleType)
	vc.Brand = NormalizeBrand(vc.Brand)
	vc.Model = strings.TrimSpace(vc.Model)
	vc.FuelType = strings.ToLower(strings.TrimSpace(vc.FuelType))
	vc.RegistrationNumber = NormalizeRegistration(vc.RegistrationNumber)
	vc.VIN = strings.ToUpper(strings.TrimSpace(vc.VIN))
	return vc
}
