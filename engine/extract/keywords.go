package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ShowfloorAI/showfloor-mvp/engine/domain"
)

// keywordCategory maps one canonical preference name to the phrases that
// signal it. Categories are ordered slices so extraction output is stable.
type keywordCategory struct {
	name     string
	keywords []string
}

var typeCategories = []keywordCategory{
	{"truck", []string{"truck", "pickup", "pick-up", "tow", "towing", "haul", "hauling", "f-150", "f150", "silverado", "sierra", "tundra", "tacoma"}},
	{"suv", []string{"suv", "crossover", "sport utility", "third row", "cargo space", "equinox", "rav4", "cr-v", "explorer", "highlander", "tahoe", "telluride", "pilot", "4runner"}},
	{"sedan", []string{"sedan", "four door", "4 door", "4-door", "commuter car", "camry", "accord", "civic", "malibu", "altima", "sonata"}},
	{"minivan", []string{"minivan", "mini van", "sliding door", "odyssey", "sienna", "pacifica", "carnival"}},
	{"coupe", []string{"coupe", "sports car", "two door", "2 door", "2-door", "mustang", "camaro", "challenger", "corvette"}},
	{"convertible", []string{"convertible", "drop top", "droptop", "ragtop", "miata"}},
	{"hatchback", []string{"hatchback", "hatch"}},
	{"wagon", []string{"wagon", "estate"}},
	{"electric", []string{"electric", "ev", "battery powered", "plug-in", "plug in", "tesla", "bolt", "leaf", "mach-e", "ioniq"}},
	{"hybrid", []string{"hybrid", "prius", "fuel efficient", "good gas mileage", "good mpg", "gas saver"}},
}

var featureCategories = []keywordCategory{
	{"leather seats", []string{"leather"}},
	{"sunroof", []string{"sunroof", "moonroof", "moon roof", "panoramic roof"}},
	{"navigation", []string{"navigation", "nav system", "built-in gps", "built in gps"}},
	{"heated seats", []string{"heated seats", "seat heaters", "heated leather"}},
	{"cooled seats", []string{"cooled seats", "ventilated seats"}},
	{"backup camera", []string{"backup camera", "back up camera", "rear camera", "rearview camera", "360 camera"}},
	{"third row", []string{"third row", "3rd row", "three rows", "7 seats", "seven seats", "8 seats", "eight seats"}},
	{"apple carplay", []string{"carplay", "car play"}},
	{"android auto", []string{"android auto"}},
	{"tow package", []string{"tow package", "towing package", "tow hitch", "trailer hitch", "trailer brake"}},
	{"awd", []string{"awd", "all wheel drive", "all-wheel drive"}},
	{"4wd", []string{"4wd", "4x4", "four wheel drive", "four-wheel drive"}},
	{"blind spot monitor", []string{"blind spot"}},
	{"adaptive cruise", []string{"adaptive cruise", "radar cruise"}},
	{"lane assist", []string{"lane assist", "lane keep"}},
	{"remote start", []string{"remote start"}},
	{"premium audio", []string{"bose", "harman kardon", "premium sound", "premium audio"}},
}

var useCaseCategories = []keywordCategory{
	{"towing", []string{"tow", "towing", "haul", "trailer", "boat", "camper", "rv", "horse trailer"}},
	{"family", []string{"family", "kids", "children", "car seat", "carseat", "school run", "soccer practice"}},
	{"commute", []string{"commute", "commuting", "daily driver", "highway miles", "drive to work"}},
	{"off-road", []string{"off-road", "off road", "offroad", "trails", "mudding", "overlanding", "rock crawl"}},
	{"work", []string{"job site", "jobsite", "construction", "work truck", "payload", "contractor"}},
	{"road trips", []string{"road trip", "road trips", "long drives", "travel a lot", "vacation"}},
	{"winter driving", []string{"snow", "winter", "ice", "cold weather"}},
}

// colorWords are matched as bare tokens only; "agreed" must not read as red.
var colorWords = []string{
	"black", "white", "silver", "gray", "grey", "red", "blue", "green",
	"brown", "beige", "tan", "gold", "orange", "yellow", "burgundy", "maroon",
}

var (
	urgentPhrases = []string{"right now", "as soon as possible", "this week", "right away", "drive it home today", "need it today"}
	urgentTokens  = []string{"today", "asap", "immediately", "urgent"}
	mediumPhrases = []string{"next week", "this month", "couple of weeks", "couple weeks", "few weeks", "pretty soon"}
	mediumTokens  = []string{"soon"}
)

var delayIdioms = []string{
	"think it over", "think about it", "sleep on it", "can't decide alone",
	"cant decide alone", "need to discuss", "talk it over", "run it by",
	"check with", "talk to my", "ask my",
}

var relationRe = regexp.MustCompile(`\b(wife|husband|spouse|partner|fianc[eé]e?)\b`)

var wordNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

var (
	seatingRe  = regexp.MustCompile(`(?:seats?|seating)\s+(?:for\s+)?(\d{1,2}|[a-z]+)\b|(\d{1,2}|[a-z]+)[\s-]*seater`)
	towNumRe   = regexp.MustCompile(`(?:tow|haul|pull)\w*\s+(?:about |around |up to |at least )?([\d,]+)\s*(k\b)?\s*(?:lbs?|pounds)?|([\d,]+)\s*(?:lb|lbs|pound)\b`)
	kidsRe     = regexp.MustCompile(`(\d{1,2}|[a-z]+)\s+(?:kids|children|kiddos|little ones)`)
	peopleRe   = regexp.MustCompile(`(\d{1,2}|[a-z]+)\s+(?:people|of us|passengers)`)
	familyOfRe = regexp.MustCompile(`(?:family|party) of\s+(\d{1,2}|[a-z]+)`)
)

// matchKeyword checks one keyword against the text: phrases and longer words
// by substring, short words ("ev", "tow", "suv") as exact tokens with a
// cheap plural allowance.
func matchKeyword(lower string, tokens map[string]bool, kw string) bool {
	if strings.ContainsAny(kw, " -") || len(kw) >= 5 {
		return strings.Contains(lower, kw)
	}
	return tokens[kw] || tokens[kw+"s"]
}

func matchCategories(lower string, tokens map[string]bool, cats []keywordCategory) []string {
	var out []string
	for _, cat := range cats {
		for _, kw := range cat.keywords {
			if matchKeyword(lower, tokens, kw) {
				out = append(out, cat.name)
				break
			}
		}
	}
	return out
}

func matchColors(tokens map[string]bool) []string {
	var out []string
	for _, c := range colorWords {
		if tokens[c] {
			if c == "grey" {
				c = "gray"
			}
			if len(out) == 0 || out[len(out)-1] != c {
				out = append(out, c)
			}
		}
	}
	return out
}

func extractFuelPreference(lower string, tokens map[string]bool) string {
	switch {
	case tokens["electric"] || tokens["ev"] || strings.Contains(lower, "all electric") || strings.Contains(lower, "battery powered"):
		return "electric"
	case tokens["hybrid"] || tokens["prius"]:
		return "hybrid"
	case tokens["diesel"]:
		return "diesel"
	}
	return ""
}

func extractDrivetrainPreference(lower string, tokens map[string]bool) string {
	switch {
	case tokens["awd"] || strings.Contains(lower, "all wheel") || strings.Contains(lower, "all-wheel"):
		return "awd"
	case tokens["4wd"] || tokens["4x4"] || strings.Contains(lower, "four wheel") || strings.Contains(lower, "four-wheel"):
		return "4wd"
	case tokens["fwd"] || strings.Contains(lower, "front wheel"):
		return "fwd"
	case tokens["rwd"] || strings.Contains(lower, "rear wheel"):
		return "rwd"
	}
	return ""
}

func extractSeating(lower string) int {
	for _, m := range seatingRe.FindAllStringSubmatch(lower, -1) {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if n := parseSmallCount(raw); n >= 2 && n <= 15 {
			return n
		}
	}
	return 0
}

func extractTowing(lower string) int {
	m := towNumRe.FindStringSubmatch(lower)
	if m == nil {
		return 0
	}
	raw, suffix := m[1], m[2]
	if raw == "" {
		raw, suffix = m[3], ""
	}
	v := parseAmount(raw, suffix)
	if v < 500 || v > 40000 {
		return 0
	}
	return int(v)
}

func extractUrgency(lower string, tokens map[string]bool) domain.Urgency {
	for _, p := range urgentPhrases {
		if strings.Contains(lower, p) {
			return domain.UrgencyHigh
		}
	}
	for _, t := range urgentTokens {
		if tokens[t] {
			return domain.UrgencyHigh
		}
	}
	for _, p := range mediumPhrases {
		if strings.Contains(lower, p) {
			return domain.UrgencyMedium
		}
	}
	for _, t := range mediumTokens {
		if tokens[t] {
			return domain.UrgencyMedium
		}
	}
	return domain.UrgencyBrowsing
}

// extractFamilySize sizes the household: counted kids or passengers get a
// driver added, "family of N" is already the whole household, and vague
// family talk gets a usable default.
func extractFamilySize(lower string) int {
	for _, m := range familyOfRe.FindAllStringSubmatch(lower, -1) {
		if n := parseSmallCount(m[1]); n >= 2 && n <= 12 {
			return n
		}
	}
	for _, m := range kidsRe.FindAllStringSubmatch(lower, -1) {
		if n := parseSmallCount(m[1]); n >= 1 && n <= 10 {
			return n + 1
		}
	}
	for _, m := range peopleRe.FindAllStringSubmatch(lower, -1) {
		if n := parseSmallCount(m[1]); n >= 2 && n <= 12 {
			return n + 1
		}
	}
	if strings.Contains(lower, "large family") || strings.Contains(lower, "big family") {
		return 7
	}
	if strings.Contains(lower, "family") || strings.Contains(lower, "kids") || strings.Contains(lower, "children") {
		return 5
	}
	return 0
}

func extractSpousal(lower string) (bool, string) {
	ref := ""
	if m := relationRe.FindStringSubmatch(lower); m != nil {
		ref = m[1]
		if ref == "fiancee" || ref == "fiancée" {
			ref = "fiance"
		}
	}
	if ref != "" {
		return true, ref
	}
	for _, idiom := range delayIdioms {
		if strings.Contains(lower, idiom) {
			return true, ""
		}
	}
	return false, ""
}

func parseSmallCount(raw string) int {
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	return wordNumbers[raw]
}
