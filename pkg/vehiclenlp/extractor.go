// Package vehiclenlp identifies vehicle make/model/year references in
// free-form showroom talk. The engine uses it to capture trade-in vehicles
// ("I'm trading in my 2019 Equinox") and to resolve which units a customer
// is talking about. Regex and table driven; no external dependencies.
package vehiclenlp

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Ref is one extracted vehicle reference.
type Ref struct {
	Make       string  // canonical make, e.g. "Chevrolet"
	Model      string  // canonical model, e.g. "Equinox"
	Year       int     // 0 when absent
	Confidence float64 // 0.0-1.0
	Span       string  // the matched fragment of the input
}

// makeAliases maps abbreviations/nicknames to canonical make names.
var makeAliases = map[string]string{
	"chevy":         "Chevrolet",
	"chevrolet":     "Chevrolet",
	"merc":          "Mercedes-Benz",
	"benz":          "Mercedes-Benz",
	"mercedes":      "Mercedes-Benz",
	"mercedes-benz": "Mercedes-Benz",
	"vw":            "Volkswagen",
	"volkswagen":    "Volkswagen",
	"toyota":        "Toyota",
	"honda":         "Honda",
	"ford":          "Ford",
	"bmw":           "BMW",
	"audi":          "Audi",
	"nissan":        "Nissan",
	"hyundai":       "Hyundai",
	"kia":           "Kia",
	"subaru":        "Subaru",
	"mazda":         "Mazda",
	"jeep":          "Jeep",
	"ram":           "Ram",
	"gmc":           "GMC",
	"dodge":         "Dodge",
	"lexus":         "Lexus",
	"acura":         "Acura",
	"tesla":         "Tesla",
	"porsche":       "Porsche",
	"volvo":         "Volvo",
	"buick":         "Buick",
	"cadillac":      "Cadillac",
	"lincoln":       "Lincoln",
	"infiniti":      "Infiniti",
	"genesis":       "Genesis",
	"mitsubishi":    "Mitsubishi",
	"chrysler":      "Chrysler",
	"land rover":    "Land Rover",
	"jaguar":        "Jaguar",
	"alfa romeo":    "Alfa Romeo",
	"fiat":          "Fiat",
	"mini":          "Mini",
	"rivian":        "Rivian",
	"lucid":         "Lucid",
	"polestar":      "Polestar",
}

// canonicalModels maps canonical make to its model lineup.
var canonicalModels = map[string][]string{
	"Toyota":        {"Camry", "Corolla", "RAV4", "Highlander", "Tacoma", "Tundra", "Prius", "4Runner", "Sienna", "Supra", "GR86", "Venza", "C-HR", "Sequoia", "Land Cruiser"},
	"Honda":         {"Civic", "Accord", "CR-V", "Pilot", "Odyssey", "HR-V", "Ridgeline", "Fit", "Passport", "Insight"},
	"Ford":          {"F-150", "F-250", "F-350", "Mustang", "Explorer", "Escape", "Ranger", "Bronco", "Edge", "Expedition", "Maverick", "Focus", "Fusion", "Fiesta", "Transit"},
	"Chevrolet":     {"Silverado", "Equinox", "Malibu", "Tahoe", "Suburban", "Camaro", "Colorado", "Traverse", "Blazer", "Bolt", "Impala", "Trax", "Cruze", "Spark", "Corvette"},
	"BMW":           {"3 Series", "5 Series", "7 Series", "X3", "X5", "X1", "X7", "M3", "M5", "i4", "iX", "4 Series", "2 Series", "X6"},
	"Mercedes-Benz": {"C-Class", "E-Class", "S-Class", "GLC", "GLE", "A-Class", "CLA", "GLA", "GLB", "GLS", "AMG GT", "EQS", "EQE"},
	"Audi":          {"A4", "A6", "A3", "Q5", "Q7", "Q3", "A5", "A8", "Q8", "e-tron", "RS5", "RS7", "S4", "TT"},
	"Nissan":        {"Altima", "Sentra", "Rogue", "Pathfinder", "Frontier", "Maxima", "Murano", "Titan", "Z", "Kicks", "Versa", "Armada", "Leaf"},
	"Hyundai":       {"Elantra", "Sonata", "Tucson", "Santa Fe", "Kona", "Palisade", "Ioniq 5", "Ioniq 6", "Venue", "Accent", "Santa Cruz"},
	"Kia":           {"Forte", "K5", "Sportage", "Telluride", "Sorento", "Seltos", "EV6", "EV9", "Soul", "Stinger", "Carnival", "Rio", "Niro"},
	"Volkswagen":    {"Golf", "Jetta", "Tiguan", "Atlas", "Passat", "Taos", "ID.4", "GTI", "Arteon", "Beetle"},
	"Subaru":        {"Outback", "Forester", "Crosstrek", "Impreza", "WRX", "Legacy", "Ascent", "BRZ", "Solterra"},
	"Mazda":         {"Mazda3", "Mazda6", "CX-5", "CX-9", "CX-30", "CX-50", "MX-5", "CX-90"},
	"Jeep":          {"Wrangler", "Grand Cherokee", "Cherokee", "Compass", "Renegade", "Gladiator", "Grand Wagoneer", "Wagoneer"},
	"Ram":           {"1500", "2500", "3500", "ProMaster"},
	"GMC":           {"Sierra", "Terrain", "Acadia", "Yukon", "Canyon", "Hummer EV"},
	"Dodge":         {"Charger", "Challenger", "Durango", "Hornet"},
	"Lexus":         {"RX", "ES", "NX", "IS", "GX", "LX", "UX", "LC", "LS", "RC"},
	"Acura":         {"TLX", "MDX", "RDX", "Integra", "ILX", "NSX"},
	"Tesla":         {"Model 3", "Model Y", "Model S", "Model X", "Cybertruck"},
	"Porsche":       {"911", "Cayenne", "Macan", "Taycan", "Panamera", "Boxster", "Cayman"},
	"Volvo":         {"XC90", "XC60", "XC40", "S60", "S90", "V60", "V90", "C40"},
	"Buick":         {"Enclave", "Encore", "Envision", "Regal", "LaCrosse"},
	"Cadillac":      {"Escalade", "CT5", "CT4", "XT5", "XT4", "XT6", "Lyriq"},
	"Lincoln":       {"Navigator", "Aviator", "Corsair", "Nautilus"},
	"Infiniti":      {"Q50", "Q60", "QX50", "QX60", "QX80"},
	"Genesis":       {"G70", "G80", "G90", "GV70", "GV80", "GV60"},
	"Mitsubishi":    {"Outlander", "Eclipse Cross", "Mirage", "Outlander Sport"},
	"Chrysler":      {"Pacifica", "300"},
	"Land Rover":    {"Range Rover", "Defender", "Discovery", "Range Rover Sport", "Evoque"},
	"Jaguar":        {"F-Pace", "E-Pace", "XF", "XE", "F-Type", "I-Pace"},
	"Alfa Romeo":    {"Giulia", "Stelvio", "Tonale"},
	"Fiat":          {"500", "500X"},
	"Mini":          {"Cooper", "Countryman", "Clubman"},
	"Rivian":        {"R1T", "R1S"},
	"Lucid":         {"Air"},
	"Polestar":      {"Polestar 2", "Polestar 3"},
}

type modelEntry struct {
	lower     string
	canonical string
}

// modelIndex maps make (lower) to its models sorted longest-first, so
// "Grand Cherokee" wins over "Cherokee".
var modelIndex map[string][]modelEntry

// uniqueModels maps models distinctive enough to identify a make on their
// own (model lower -> canonical make).
var uniqueModels map[string]string

// makeRe is an alternation of all make names and aliases, longest first.
var makeRe *regexp.Regexp

// Years as spoken on a sales floor: 1980s through the current decade, plus
// 'YY shorthand.
var (
	yearRe     = regexp.MustCompile(`\b(19[89]\d|20[0-2]\d)\b`)
	yearAbbrRe = regexp.MustCompile(`'(\d{2})\b`)
)

func init() {
	modelIndex = make(map[string][]modelEntry, len(canonicalModels))
	uniqueModels = make(map[string]string)

	modelCount := make(map[string]int)
	for mk, models := range canonicalModels {
		entries := make([]modelEntry, 0, len(models))
		for _, m := range models {
			ml := strings.ToLower(m)
			entries = append(entries, modelEntry{ml, m})
			modelCount[ml]++
		}
		sort.Slice(entries, func(i, j int) bool {
			return len(entries[i].lower) > len(entries[j].lower)
		})
		modelIndex[strings.ToLower(mk)] = entries
	}
	for mk, models := range canonicalModels {
		for _, m := range models {
			ml := strings.ToLower(m)
			if modelCount[ml] == 1 {
				uniqueModels[ml] = mk
			}
		}
	}

	aliases := make([]string, 0, len(makeAliases))
	for alias := range makeAliases {
		aliases = append(aliases, regexp.QuoteMeta(alias))
	}
	sort.Slice(aliases, func(i, j int) bool { return len(aliases[i]) > len(aliases[j]) })
	makeRe = regexp.MustCompile(`(?i)\b(` + strings.Join(aliases, "|") + `)(?:'s)?\b`)
}

// Find returns all vehicle references in text, sorted by confidence
// descending. Confidence grades on what anchored the match: make+model+year
// 0.95, make+model 0.80, make+year 0.70, bare make 0.60; a distinctive
// model with no make scores 0.75 with a year and 0.50 without.
func Find(text string) []Ref {
	if text == "" {
		return nil
	}
	var refs []Ref
	used := make(map[string]bool)

	for _, loc := range makeRe.FindAllStringSubmatchIndex(text, -1) {
		mk := makeAliases[strings.ToLower(text[loc[2]:loc[3]])]
		if mk == "" {
			continue
		}

		// Model within ~40 chars after the make, year up to 10 before it
		// ("2019 Chevy Equinox") or after the model ("Equinox from 2019").
		after := text[loc[1]:min(loc[1]+40, len(text))]
		model, modelEnd := modelAfter(mk, after)

		before := text[max(0, loc[0]-10):loc[0]]
		year := findYear(before)
		if year == 0 {
			year = findYear(after[modelEnd:])
		}
		if year == 0 {
			year = findAbbrYear(before)
		}

		conf := 0.60
		switch {
		case year > 0 && model != "":
			conf = 0.95
		case model != "":
			conf = 0.80
		case year > 0:
			conf = 0.70
		}

		spanStart := loc[0]
		if year > 0 {
			if idx := strings.Index(before, strconv.Itoa(year)); idx >= 0 {
				spanStart = max(0, loc[0]-10) + idx
			}
		}
		spanEnd := loc[1]
		if model != "" {
			spanEnd = loc[1] + modelEnd
		}

		key := fmt.Sprintf("%s|%s|%d", mk, model, year)
		if used[key] {
			continue
		}
		used[key] = true
		refs = append(refs, Ref{
			Make:       mk,
			Model:      model,
			Year:       year,
			Confidence: conf,
			Span:       strings.TrimSpace(text[spanStart:min(spanEnd, len(text))]),
		})
	}

	refs = append(refs, standaloneModels(text, used)...)
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Confidence > refs[j].Confidence })
	return refs
}

// Best returns the single highest-confidence reference, or nil.
func Best(text string) *Ref {
	refs := Find(text)
	if len(refs) == 0 {
		return nil
	}
	return &refs[0]
}

// modelAfter looks for a known model of mk at the start of the fragment
// following the make name. Returns the canonical model and the end offset
// of the match within after.
func modelAfter(mk, after string) (string, int) {
	entries, ok := modelIndex[strings.ToLower(mk)]
	if !ok {
		return "", 0
	}
	trimmed := strings.TrimLeftFunc(after, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\'' || r == 0x2019
	})
	offset := len(after) - len(trimmed)
	lower := strings.ToLower(trimmed)

	for _, e := range entries {
		if !strings.HasPrefix(lower, e.lower) {
			continue
		}
		if end := len(e.lower); end < len(lower) {
			if next := rune(lower[end]); unicode.IsLetter(next) || unicode.IsDigit(next) {
				continue // partial word, e.g. "Bolt" inside "Bolts"
			}
		}
		return e.canonical, offset + len(e.lower)
	}
	return "", 0
}

// standaloneModels catches distinctive models mentioned without their make
// ("my Equinox", "the Telluride").
func standaloneModels(text string, used map[string]bool) []Ref {
	lower := strings.ToLower(text)
	var refs []Ref

	for ml, mk := range uniqueModels {
		// Very short names ("Z", "300") are too ambiguous on their own.
		if len(ml) <= 2 && !strings.Contains(ml, "-") {
			continue
		}
		idx := strings.Index(lower, ml)
		if idx < 0 {
			continue
		}
		if idx > 0 {
			if prev := rune(lower[idx-1]); unicode.IsLetter(prev) || unicode.IsDigit(prev) {
				continue
			}
		}
		end := idx + len(ml)
		if end < len(lower) {
			if next := rune(lower[end]); unicode.IsLetter(next) || unicode.IsDigit(next) {
				continue
			}
		}

		canonical := ml
		for _, m := range canonicalModels[mk] {
			if strings.EqualFold(m, ml) {
				canonical = m
				break
			}
		}
		if used[fmt.Sprintf("%s|%s|%d", mk, canonical, 0)] {
			continue
		}

		nearStart := max(0, idx-12)
		nearEnd := min(end+12, len(text))
		year := findYear(text[nearStart:nearEnd])
		if year == 0 {
			year = findAbbrYear(text[nearStart:idx])
		}

		conf := 0.50
		if year > 0 {
			conf = 0.75
		}
		key := fmt.Sprintf("%s|%s|%d", mk, canonical, year)
		if used[key] {
			continue
		}
		used[key] = true
		refs = append(refs, Ref{
			Make:       mk,
			Model:      canonical,
			Year:       year,
			Confidence: conf,
			Span:       strings.TrimSpace(text[nearStart:nearEnd]),
		})
	}
	return refs
}

func findYear(s string) int {
	m := yearRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	y, _ := strconv.Atoi(m[1])
	return y
}

func findAbbrYear(s string) int {
	m := yearAbbrRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	yy, _ := strconv.Atoi(m[1])
	switch {
	case yy <= 29:
		return 2000 + yy
	case yy >= 80:
		return 1900 + yy
	}
	return 0
}
