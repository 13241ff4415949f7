package domain

import (
	"strings"
	"time"
	"unicode"

	"github.com/eka-ai/workshop/pkg/vehiclenlp"
)

// MinModelYear is the earliest year accepted on intake.
const MinModelYear = 1980

// MaxModelYear is next calendar year, for vehicles sold ahead of their model year.
func MaxModelYear() int { return time.Now().Year() + 1 }

// NormalizeBrand maps brand spellings ("maruti", "VW", "Mahindra & Mahindra")
// to the canonical name. Unknown brands are trimmed and title-cased word by word.
func NormalizeBrand(brand string) string {
	if c, ok := vehiclenlp.CanonicalMake(brand); ok {
		return c
	}
	words := strings.Fields(brand)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

var knownVehicleTypes = map[string]bool{
	"2w": true, "3w": true, "4w": true, "cv": true, "ev": true,
	"two_wheeler": true, "three_wheeler": true, "four_wheeler": true, "car": true,
}

var knownFuelTypes = map[string]bool{
	FuelPetrol: true, FuelDiesel: true, FuelCNG: true, FuelElectric: true, FuelHybrid: true,
	"lpg": true,
}
