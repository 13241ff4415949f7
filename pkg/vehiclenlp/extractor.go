// Package vehiclenlp pulls vehicle details out of free-form workshop chat:
// brand, model, year, registration plate, odometer reading and fuel type.
// It is regex and table driven so it can run on every chat message.
package vehiclenlp

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// VehicleMatch is one brand/model mention found in text.
type VehicleMatch struct {
	Make       string  // canonical brand, e.g. "Maruti Suzuki"
	Model      string  // e.g. "Swift"; empty if not found
	Year       int     // 0 if not found
	Confidence float64 // 0.0-1.0
	Span       string  // matched text fragment
}

// Hints is everything Extract could infer from one message.
type Hints struct {
	Vehicle            *VehicleMatch
	RegistrationNumber string // normalized, e.g. MH01AB1234
	OdometerKM         int
	FuelType           string // petrol, diesel, cng, electric, hybrid
	VehicleType        string // 2W, 3W, 4W when implied by the brand/model
}

// makeAliases maps lower-case brand spellings to canonical names.
var makeAliases = map[string]string{
	"maruti":              "Maruti Suzuki",
	"maruti suzuki":       "Maruti Suzuki",
	"suzuki":              "Maruti Suzuki",
	"tata":                "Tata",
	"tata motors":         "Tata",
	"mahindra":            "Mahindra",
	"mahindra & mahindra": "Mahindra",
	"m&m":                 "Mahindra",
	"hyundai":             "Hyundai",
	"kia":                 "Kia",
	"honda":               "Honda",
	"toyota":              "Toyota",
	"mg":                  "MG",
	"mg motor":            "MG",
	"renault":             "Renault",
	"nissan":              "Nissan",
	"skoda":               "Skoda",
	"vw":                  "Volkswagen",
	"volkswagen":          "Volkswagen",
	"jeep":                "Jeep",
	"bmw":                 "BMW",
	"audi":                "Audi",
	"merc":                "Mercedes-Benz",
	"benz":                "Mercedes-Benz",
	"mercedes":            "Mercedes-Benz",
	"mercedes-benz":       "Mercedes-Benz",
	"byd":                 "BYD",
	"hero":                "Hero",
	"hero motocorp":       "Hero",
	"bajaj":               "Bajaj",
	"tvs":                 "TVS",
	"royal enfield":       "Royal Enfield",
	"re":                  "Royal Enfield",
	"yamaha":              "Yamaha",
	"ather":               "Ather",
	"ola":                 "Ola Electric",
	"ola electric":        "Ola Electric",
	"piaggio":             "Piaggio",
}

// makeModels lists common models per canonical brand.
var makeModels = map[string][]string{
	"Maruti Suzuki": {"Swift", "Dzire", "Baleno", "Alto", "Alto K10", "WagonR", "Ertiga", "Brezza", "Vitara Brezza", "Grand Vitara", "Ciaz", "Celerio", "S-Presso", "Ignis", "XL6", "Fronx", "Jimny", "Eeco", "Invicto"},
	"Tata":          {"Nexon", "Nexon EV", "Tiago", "Tiago EV", "Tigor", "Altroz", "Punch", "Punch EV", "Harrier", "Safari", "Curvv", "Ace"},
	"Mahindra":      {"Scorpio", "Scorpio-N", "XUV700", "XUV300", "XUV 3XO", "XUV400", "Thar", "Bolero", "Bolero Neo", "Marazzo", "BE 6", "XEV 9e"},
	"Hyundai":       {"Creta", "Venue", "i20", "Grand i10 Nios", "i10", "Verna", "Aura", "Alcazar", "Tucson", "Exter", "Kona", "Ioniq 5"},
	"Kia":           {"Seltos", "Sonet", "Carens", "Carnival", "EV6", "Syros"},
	"Honda":         {"City", "Amaze", "Elevate", "Jazz", "WR-V", "Activa", "Shine", "Unicorn", "Dio"},
	"Toyota":        {"Innova", "Innova Crysta", "Innova Hycross", "Fortuner", "Glanza", "Urban Cruiser Hyryder", "Camry", "Hilux", "Rumion"},
	"MG":            {"Hector", "Hector Plus", "Astor", "ZS EV", "Comet EV", "Gloster", "Windsor EV"},
	"Renault":       {"Kwid", "Kiger", "Triber", "Duster"},
	"Nissan":        {"Magnite", "Kicks"},
	"Skoda":         {"Kushaq", "Slavia", "Octavia", "Superb", "Kodiaq", "Kylaq"},
	"Volkswagen":    {"Virtus", "Taigun", "Polo", "Vento", "Tiguan"},
	"Jeep":          {"Compass", "Meridian", "Wrangler"},
	"BMW":           {"3 Series", "5 Series", "X1", "X3", "X5", "iX"},
	"Audi":          {"A4", "A6", "Q3", "Q5", "Q7"},
	"Mercedes-Benz": {"C-Class", "E-Class", "GLA", "GLC", "GLE", "EQS"},
	"BYD":           {"Atto 3", "Seal", "e6"},
	"Hero":          {"Splendor", "Splendor Plus", "HF Deluxe", "Passion", "Glamour", "Xtreme", "Destini", "Vida"},
	"Bajaj":         {"Pulsar", "Platina", "Chetak", "Dominar", "Avenger", "CT 100", "RE"},
	"TVS":           {"Apache", "Jupiter", "Ntorq", "Raider", "iQube", "XL100", "Ronin"},
	"Royal Enfield": {"Classic 350", "Bullet 350", "Hunter 350", "Meteor 350", "Himalayan", "Interceptor 650", "Continental GT"},
	"Yamaha":        {"FZ", "R15", "MT-15", "Ray ZR", "Fascino"},
	"Ather":         {"450X", "450S", "Rizta"},
	"Ola Electric":  {"S1 Pro", "S1 Air", "S1 X"},
	"Piaggio":       {"Ape", "Vespa"},
}

// twoWheelerMakes are brands that only sell two-wheelers in India.
var twoWheelerMakes = map[string]bool{
	"Hero": true, "TVS": true, "Royal Enfield": true, "Yamaha": true, "Ather": true, "Ola Electric": true,
}

// modelVehicleType overrides the brand default for specific models.
var modelVehicleType = map[string]string{
	"Activa": "2W", "Shine": "2W", "Unicorn": "2W", "Dio": "2W",
	"Pulsar": "2W", "Platina": "2W", "Chetak": "2W", "Dominar": "2W", "Avenger": "2W", "CT 100": "2W",
	"RE": "3W", "Ape": "3W", "Vespa": "2W",
}

var evModels = map[string]bool{
	"Nexon EV": true, "Tiago EV": true, "Punch EV": true, "XUV400": true, "BE 6": true, "XEV 9e": true,
	"Ioniq 5": true, "EV6": true, "ZS EV": true, "Comet EV": true, "Windsor EV": true, "iX": true, "EQS": true,
	"Atto 3": true, "Seal": true, "e6": true, "Vida": true, "Chetak": true, "iQube": true,
	"450X": true, "450S": true, "Rizta": true, "S1 Pro": true, "S1 Air": true, "S1 X": true,
}

type modelEntry struct {
	lower, canonical string
}

var (
	// modelsByMake holds each brand's models, longest first.
	modelsByMake = map[string][]modelEntry{}
	// uniqueModels maps distinctive model names to their only brand.
	uniqueModels = map[string]string{}

	makeRe     *regexp.Regexp
	yearFullRe = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	yearAbbrRe = regexp.MustCompile(`'(\d{2})\b`)

	// Plates: state code, RTO number, series, number, spaces/dashes optional.
	// BH series: YY BH NNNN XX.
	plateRe   = regexp.MustCompile(`(?i)\b([A-Z]{2})[\s-]?(\d{1,2})[\s-]?([A-Z]{1,3})[\s-]?(\d{4})\b`)
	bhPlateRe = regexp.MustCompile(`(?i)\b(\d{2})[\s-]?BH[\s-]?(\d{4})[\s-]?([A-Z]{1,2})\b`)

	odometerRe = regexp.MustCompile(`(?i)\b(\d{1,3}(?:,\d{2,3})+|\d+(?:\.\d+)?)\s*(k|lakh|lakhs)?\s*(?:km|kms|kilometers|kilometres)\b`)
	fuelRe     = regexp.MustCompile(`(?i)\b(petrol|diesel|cng|electric|ev|hybrid)\b`)
)

func init() {
	count := map[string]int{}
	for mk, models := range makeModels {
		entries := make([]modelEntry, 0, len(models))
		for _, m := range models {
			l := strings.ToLower(m)
			entries = append(entries, modelEntry{l, m})
			count[l]++
		}
		sort.Slice(entries, func(i, j int) bool { return len(entries[i].lower) > len(entries[j].lower) })
		modelsByMake[strings.ToLower(mk)] = entries
	}
	for mk, models := range makeModels {
		for _, m := range models {
			if l := strings.ToLower(m); count[l] == 1 {
				uniqueModels[l] = mk
			}
		}
	}

	names := make([]string, 0, len(makeAliases))
	for alias := range makeAliases {
		names = append(names, alias)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	for i, n := range names {
		names[i] = regexp.QuoteMeta(n)
	}
	makeRe = regexp.MustCompile(`(?i)(?:^|[^\pL\pN&])(` + strings.Join(names, "|") + `)(?:'s)?(?:$|[^\pL\pN&])`)
}

// CanonicalMake maps a brand spelling to its canonical name. Unknown brands
// are returned trimmed with their original casing, and ok is false.
func CanonicalMake(s string) (name string, ok bool) {
	key := strings.Join(strings.Fields(strings.ToLower(s)), " ")
	if c, found := makeAliases[key]; found {
		return c, true
	}
	return strings.TrimSpace(s), false
}

// Extract finds every brand/model mention in text, highest confidence first.
func Extract(text string) []VehicleMatch {
	if text == "" {
		return nil
	}
	var matches []VehicleMatch
	var covered [][2]int
	seen := map[string]bool{}

	for _, loc := range makeRe.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[2], loc[3]
		canonical := makeAliases[strings.ToLower(text[start:end])]
		if canonical == "" {
			continue
		}

		after := text[end:min(end+40, len(text))]
		model, modelEnd := findModel(canonical, after)

		before := text[max(0, start-10):start]
		year := findYear(before)
		if year == 0 {
			year = findYear(after[modelEnd:])
		}
		if year == 0 {
			year = findAbbrYear(before)
		}

		// A bare two-letter alias like "re" or "mg" needs a model to count.
		if model == "" && len(text[start:end]) <= 2 && strings.ToUpper(text[start:end]) != text[start:end] {
			continue
		}

		spanEnd := end
		if model != "" {
			spanEnd = end + modelEnd
		}
		covered = append(covered, [2]int{start, spanEnd})
		m := VehicleMatch{
			Make:       canonical,
			Model:      model,
			Year:       year,
			Confidence: confidence(model != "", year > 0, true),
			Span:       strings.TrimSpace(text[start:spanEnd]),
		}
		if k := matchKey(m); !seen[k] {
			seen[k] = true
			matches = append(matches, m)
		}
	}

	matches = append(matches, standaloneModels(text, covered)...)
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Confidence > matches[j].Confidence })
	return matches
}

// ExtractBest returns the highest-confidence match, or nil.
func ExtractBest(text string) *VehicleMatch {
	matches := Extract(text)
	if len(matches) == 0 {
		return nil
	}
	return &matches[0]
}

// ExtractHints runs every extractor over text.
func ExtractHints(text string) Hints {
	h := Hints{
		Vehicle:            ExtractBest(text),
		RegistrationNumber: ExtractRegistration(text),
		OdometerKM:         ExtractOdometer(text),
	}
	if m := fuelRe.FindStringSubmatch(text); m != nil {
		h.FuelType = strings.ToLower(m[1])
		if h.FuelType == "ev" {
			h.FuelType = "electric"
		}
	}
	if h.Vehicle != nil {
		h.VehicleType = vehicleType(h.Vehicle.Make, h.Vehicle.Model)
		if h.FuelType == "" && evModels[h.Vehicle.Model] {
			h.FuelType = "electric"
		}
	}
	return h
}

// ExtractRegistration returns the first Indian registration plate in text,
// upper-cased without separators, or "".
func ExtractRegistration(text string) string {
	if m := bhPlateRe.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1] + "BH" + m[2] + m[3])
	}
	for _, m := range plateRe.FindAllStringSubmatch(text, -1) {
		state := strings.ToUpper(m[1])
		if !knownStateCodes[state] {
			continue
		}
		rto := m[2]
		if len(rto) == 1 {
			rto = "0" + rto
		}
		return state + rto + strings.ToUpper(m[3]) + m[4]
	}
	return ""
}

// ExtractOdometer returns a kilometre reading such as "45,000 km" or
// "1.2 lakh km", or 0.
func ExtractOdometer(text string) int {
	m := odometerRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0
	}
	switch strings.ToLower(m[2]) {
	case "k":
		v *= 1000
	case "lakh", "lakhs":
		v *= 100000
	}
	return int(v)
}

var knownStateCodes = map[string]bool{
	"AN": true, "AP": true, "AR": true, "AS": true, "BR": true, "CG": true, "CH": true, "DD": true,
	"DL": true, "DN": true, "GA": true, "GJ": true, "HP": true, "HR": true, "JH": true, "JK": true,
	"KA": true, "KL": true, "LA": true, "LD": true, "MH": true, "ML": true, "MN": true, "MP": true,
	"MZ": true, "NL": true, "OD": true, "OR": true, "PB": true, "PY": true, "RJ": true, "SK": true,
	"TN": true, "TR": true, "TS": true, "UK": true, "UP": true, "WB": true,
}

// IsStateCode reports whether code is a registration state/UT prefix.
func IsStateCode(code string) bool { return knownStateCodes[strings.ToUpper(code)] }

func vehicleType(make_, model string) string {
	if t, ok := modelVehicleType[model]; ok {
		return t
	}
	if twoWheelerMakes[make_] {
		return "2W"
	}
	if model == "" {
		return ""
	}
	return "4W"
}

func confidence(hasModel, hasYear, hasMake bool) float64 {
	switch {
	case hasMake && hasModel && hasYear:
		return 0.95
	case hasMake && hasModel:
		return 0.80
	case hasMake && hasYear:
		return 0.70
	case hasMake:
		return 0.60
	case hasYear:
		return 0.75
	default:
		return 0.50
	}
}

func matchKey(m VehicleMatch) string {
	return m.Make + "|" + m.Model + "|" + strconv.Itoa(m.Year)
}

// findModel looks for a model of make_ at the start of after and returns it
// with the byte offset just past it.
func findModel(make_, after string) (string, int) {
	trimmed := strings.TrimLeftFunc(after, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\'' || r == 0x2019
	})
	offset := len(after) - len(trimmed)
	lower := asciiLower(trimmed)

	for _, e := range modelsByMake[strings.ToLower(make_)] {
		if !strings.HasPrefix(lower, e.lower) {
			continue
		}
		end := len(e.lower)
		if end < len(lower) && isWordByte(lower[end]) {
			continue
		}
		return e.canonical, offset + end
	}
	return "", 0
}

// asciiLower lower-cases ASCII letters only, keeping byte offsets aligned
// with the input.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

func findYear(s string) int {
	m := yearFullRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	y, _ := strconv.Atoi(m[1])
	if y >= 1980 && y <= 2035 {
		return y
	}
	return 0
}

func findAbbrYear(s string) int {
	m := yearAbbrRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	yy, _ := strconv.Atoi(m[1])
	switch {
	case yy <= 35:
		return 2000 + yy
	case yy >= 80:
		return 1900 + yy
	}
	return 0
}

// standaloneModels finds distinctive model names written without a brand.
func standaloneModels(text string, covered [][2]int) []VehicleMatch {
	lower := asciiLower(text)
	var out []VehicleMatch

	models := make([]string, 0, len(uniqueModels))
	for l := range uniqueModels {
		models = append(models, l)
	}
	sort.Slice(models, func(i, j int) bool { return len(models[i]) > len(models[j]) })

	for _, l := range models {
		// Very short names ("re", "fz", "a4") are too ambiguous on their own.
		if len(l) <= 2 {
			continue
		}
		idx := strings.Index(lower, l)
		if idx < 0 {
			continue
		}
		end := idx + len(l)
		if idx > 0 && isWordByte(lower[idx-1]) || end < len(lower) && isWordByte(lower[end]) {
			continue
		}
		// Lower-case mentions are usually ordinary words ("city", "punch").
		if c := text[idx]; c >= 'a' && c <= 'z' {
			continue
		}

		if overlaps(covered, idx, end) {
			continue
		}
		covered = append(covered, [2]int{idx, end})

		make_ := uniqueModels[l]
		var canonical string
		for _, e := range modelsByMake[strings.ToLower(make_)] {
			if e.lower == l {
				canonical = e.canonical
			}
		}

		near := text[max(0, idx-12):min(end+12, len(text))]
		year := findYear(near)
		if year == 0 {
			year = findAbbrYear(text[max(0, idx-12):idx])
		}
		m := VehicleMatch{
			Make:       make_,
			Model:      canonical,
			Year:       year,
			Confidence: confidence(true, year > 0, false),
			Span:       strings.TrimSpace(near),
		}
		out = append(out, m)
	}
	return out
}

func overlaps(ranges [][2]int, start, end int) bool {
	for _, r := range ranges {
		if start < r[1] && end > r[0] {
			return true
		}
	}
	return false
}
