package retrieve

import (
	"strings"

	"github.com/ShowfloorAI/showfloor-mvp/engine/domain"
)

// querySynonyms expand a query before it is vectorized. A trigger matching
// anywhere in the lowered query appends its expansion; the index corpus is
// never expanded. Ordered so expansion output is stable.
var querySynonyms = []struct {
	trigger   string
	expansion string
}{
	{"family", "family spacious third row seating minivan suv safe"},
	{"kids", "family car seat third row seating safe"},
	{"tow", "towing haul trailer hitch heavy truck"},
	{"haul", "towing trailer payload bed truck"},
	{"commut", "commuter efficient economy mpg sedan hybrid reliable"},
	{"off-road", "off-road 4x4 4wd trail clearance"},
	{"off road", "off-road 4x4 4wd trail clearance"},
	{"offroad", "off-road 4x4 4wd trail clearance"},
	{"snow", "awd 4wd all wheel drive winter"},
	{"winter", "awd 4wd all wheel drive heated"},
	{"luxur", "luxury leather premium loaded"},
	{"sport", "performance sport turbo coupe"},
	{"fast", "performance sport turbo horsepower"},
	{"efficien", "hybrid electric economy mpg"},
	{"gas mileage", "hybrid economy mpg efficient"},
	{"truck", "truck pickup towing haul bed"},
	{"pickup", "truck pickup towing haul bed"},
	{"suv", "suv crossover sport utility cargo"},
	{"crossover", "suv crossover sport utility"},
	{"sedan", "sedan four door commuter"},
	{"minivan", "minivan sliding door family seating"},
	{"electric", "electric ev battery zero emissions"},
	{"hybrid", "hybrid fuel efficient economy"},
	{"convertible", "convertible drop top roadster"},
	{"wagon", "wagon estate cargo"},
	{"hatchback", "hatchback hatch cargo"},
	{"leather", "leather premium"},
	{"sunroof", "sunroof moonroof panoramic roof"},
	{"moonroof", "sunroof moonroof panoramic roof"},
	{"carplay", "apple carplay android auto"},
	{"camp", "camping cargo roof rack awd adventure"},
	{"dog", "cargo space hatch suv wagon"},
	{"grey", "gray silver"},
	{"gray", "grey silver"},
	{"burgundy", "maroon red"},
	{"maroon", "burgundy red"},
}

func expandQuery(q string) string {
	lower := strings.ToLower(q)
	var b strings.Builder
	b.WriteString(lower)
	for _, s := range querySynonyms {
		if strings.Contains(lower, s.trigger) {
			b.WriteByte(' ')
			b.WriteString(s.expansion)
		}
	}
	return b.String()
}

// typeSynonyms map a preferred-type name to tokens that identify the type in
// a vehicle's indexed text when the body style or model itself does not.
var typeSynonyms = map[string][]string{
	"truck":       {"pickup", "f-150", "f150", "silverado", "sierra", "tundra", "tacoma", "ranger", "colorado", "frontier", "titan", "gladiator"},
	"suv":         {"crossover", "sport utility", "equinox", "rav4", "cr-v", "explorer", "highlander", "tahoe", "suburban", "telluride", "pilot", "4runner", "traverse", "blazer", "bronco", "wrangler", "pathfinder", "expedition"},
	"sedan":       {"camry", "accord", "civic", "malibu", "altima", "sonata", "corolla", "jetta", "elantra"},
	"minivan":     {"odyssey", "sienna", "pacifica", "carnival"},
	"coupe":       {"mustang", "camaro", "challenger", "corvette", "brz", "gr86", "supra"},
	"convertible": {"roadster", "miata", "cabriolet", "spyder"},
	"hatchback":   {"hatch", "golf", "gti", "impreza", "veloster"},
	"wagon":       {"estate", "outback", "allroad", "sportwagen"},
	"electric":    {"electric", "bolt", "leaf", "ioniq", "mach-e", "lightning", "model 3", "model y", "id.4", "ev6", "ariya"},
	"hybrid":      {"hybrid", "prius", "plug-in", "phev"},
}

var offRoadMarkers = []string{
	"4x4", "off-road", "offroad", "z71", "trd", "rubicon", "raptor",
	"at4", "trailhawk", "tremor", "badlands", "trail boss", "pro-4x",
}

// useCaseFits checks one stated use case against a vehicle. Category names
// follow the extractor's use-case table.
func useCaseFits(useCase string, f domain.VehicleFeatures, blob string) bool {
	switch useCase {
	case "towing":
		return f.Towing >= 5000 || strings.Contains(blob, "tow")
	case "family":
		return f.Seating >= 6 || f.BodyStyle == "minivan" || f.BodyStyle == "van" ||
			f.BodyStyle == "suv" || f.HasFeature("third row")
	case "commute":
		switch f.FuelType {
		case "hybrid", "electric", "plug-in hybrid":
			return true
		}
		return f.BodyStyle == "sedan" || f.BodyStyle == "hatchback"
	case "off-road":
		if f.Drivetrain == "4wd" {
			return true
		}
		for _, m := range offRoadMarkers {
			if strings.Contains(blob, m) {
				return true
			}
		}
		return false
	case "work":
		return f.BodyStyle == "truck" || f.BodyStyle == "van"
	case "road trips":
		return f.BodyStyle == "suv" || f.BodyStyle == "sedan" || f.BodyStyle == "minivan" ||
			f.BodyStyle == "wagon" || f.HasFeature("adaptive cruise")
	case "winter driving":
		return f.Drivetrain == "awd" || f.Drivetrain == "4wd" || f.HasFeature("heated seats")
	}
	return false
}
