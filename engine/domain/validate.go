package domain

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/eka-ai/workshop/pkg/vehiclenlp"
)

var (
	// VIN: 17 characters, excluding I, O, Q.
	vinRegex = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)
	// Standard plates after normalization: MH01AB1234, DL3CAB1234, KA05M1234.
	plateRegex = regexp.MustCompile(`^([A-Z]{2})([0-9]{1,2})([A-Z]{0,3})([0-9]{4})$`)
	// Bharat series: 22BH1234AA.
	bhPlateRegex = regexp.MustCompile(`^[0-9]{2}BH[0-9]{4}[A-Z]{1,2}$`)
	gstinRegex   = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)
	// Indian mobile, optional +91/0 prefix already stripped.
	phoneRegex = regexp.MustCompile(`^[6-9][0-9]{9}$`)
)

const gstinCharset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NormalizeRegistration upper-cases a plate and drops spaces, dashes and dots.
// The result is the job card's vehicle id.
func NormalizeRegistration(reg string) string {
	return strings.ToUpper(stripSeparators(reg))
}

func stripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '\t', '(', ')':
			return -1
		}
		return r
	}, s)
}

// ValidateRegistration checks an Indian registration plate, standard or BH series.
func ValidateRegistration(reg string) error {
	n := NormalizeRegistration(reg)
	if bhPlateRegex.MatchString(n) {
		return nil
	}
	m := plateRegex.FindStringSubmatch(n)
	if m == nil || !vehiclenlp.IsStateCode(m[1]) || m[2] == "0" || m[2] == "00" {
		return NewValidationError("registration_number", reg, ErrInvalidRegistration)
	}
	return nil
}

// ValidateGSTIN checks the 15-character GSTIN layout and its check character.
func ValidateGSTIN(gstin string) error {
	g := strings.ToUpper(strings.TrimSpace(gstin))
	if !gstinRegex.MatchString(g) {
		return NewValidationError("gstin", gstin, ErrInvalidGSTIN)
	}
	if state, _ := strconv.Atoi(g[:2]); state < 1 || state > 38 && state != 97 && state != 99 {
		return NewValidationError("gstin", gstin, ErrInvalidGSTIN)
	}
	if gstinCheckChar(g[:14]) != g[14] {
		return NewValidationError("gstin", gstin, ErrInvalidGSTIN)
	}
	return nil
}

// gstinCheckChar computes the mod-36 check character over the first 14 chars.
func gstinCheckChar(s string) byte {
	sum := 0
	for i := 0; i < len(s); i++ {
		v := strings.IndexByte(gstinCharset, s[i])
		if i%2 == 1 {
			v *= 2
		}
		sum += v/36 + v%36
	}
	return gstinCharset[(36-sum%36)%36]
}

// GSTINStateCode returns the two-digit state code of a GSTIN, or "".
func GSTINStateCode(gstin string) string {
	g := strings.TrimSpace(gstin)
	if len(g) < 2 {
		return ""
	}
	return g[:2]
}

// ValidateVIN checks a 17-character VIN.
func ValidateVIN(vin string) error {
	if !vinRegex.MatchString(strings.ToUpper(strings.TrimSpace(vin))) {
		return NewValidationError("vin", vin, ErrInvalidVIN)
	}
	return nil
}

// ValidatePhone checks an Indian mobile number, tolerating +91, 0 and separators.
func ValidatePhone(phone string) error {
	p := strings.TrimPrefix(stripSeparators(phone), "+91")
	if len(p) == 11 && p[0] == '0' {
		p = p[1:]
	}
	if !phoneRegex.MatchString(p) {
		return NewValidationError("phone", phone, ErrInvalidPhone)
	}
	return nil
}

// ValidateVehicleContext runs the intake form checks and returns the first
// failure. Completeness is checked last so field errors are reported first.
func ValidateVehicleContext(vc VehicleContext) error {
	if vt := strings.ToLower(strings.TrimSpace(vc.VehicleType)); vt != "" && !knownVehicleTypes[vt] {
		return NewValidationError("vehicle_type", vc.VehicleType, ErrUnknownVehicleType)
	}
	if ft := strings.ToLower(strings.TrimSpace(vc.FuelType)); ft != "" && !knownFuelTypes[ft] {
		return NewValidationError("fuel_type", vc.FuelType, ErrUnknownFuelType)
	}
	if vc.Year != 0 && (int(vc.Year) < MinModelYear || int(vc.Year) > MaxModelYear()) {
		return NewValidationError("year", strconv.Itoa(int(vc.Year)), ErrYearOutOfRange)
	}
	if vc.RegistrationNumber != "" {
		if err := ValidateRegistration(vc.RegistrationNumber); err != nil {
			return err
		}
	}
	if vc.VIN != "" {
		if err := ValidateVIN(vc.VIN); err != nil {
			return err
		}
	}
	if !vc.IsElectric() && (vc.BatteryCapacityKWh != 0 || vc.MotorType != "" || vc.ChargingType != "") {
		return NewValidationError("fuel_type", vc.FuelType, ErrEVFieldsOnICE)
	}
	if !IsContextComplete(vc) {
		return NewValidationError("vehicle_context", missingField(vc), ErrIncompleteContext)
	}
	return nil
}

func missingField(vc VehicleContext) string {
	switch {
	case strings.TrimSpace(vc.VehicleType) == "":
		return "vehicle_type"
	case strings.TrimSpace(vc.Brand) == "":
		return "brand"
	case strings.TrimSpace(vc.Model) == "":
		return "model"
	case vc.Year == 0:
		return "year"
	case strings.TrimSpace(vc.FuelType) == "":
		return "fuel_type"
	default:
		return "vin"
	}
}
