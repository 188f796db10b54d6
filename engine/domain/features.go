package domain

import "strings"

// Bucket boundaries for price and mileage. A value equal to a boundary lands
// in the bucket whose lower edge is that boundary.
var (
	PriceBucketBounds   = []float64{20000, 30000, 40000, 55000, 75000, 100000}
	MileageBucketBounds = []float64{15000, 40000, 75000, 110000}
)

// BucketIndex returns the bucket for v under ascending bounds: bucket 0 sits
// below the first bound, bucket len(bounds) at or above the last.
func BucketIndex(v float64, bounds []float64) int {
	for i, b := range bounds {
		if v < b {
			return i
		}
	}
	return len(bounds)
}

// VehicleFeatures is the normalized view of a Record used for matching and
// similarity scoring. Fields used for matching are lower-cased; Make, Model,
// and Trim keep feed casing for display.
type VehicleFeatures struct {
	StockID       string          `json:"stock_id"`
	VIN           string          `json:"vin,omitempty"`
	Make          string          `json:"make"`
	Model         string          `json:"model"`
	Trim          string          `json:"trim,omitempty"`
	Year          int             `json:"year"`
	Price         float64         `json:"price"`
	Mileage       int             `json:"mileage"`
	PriceBucket   int             `json:"price_bucket"`
	MileageBucket int             `json:"mileage_bucket"`
	BodyStyle     string          `json:"body_style"`
	FuelType      string          `json:"fuel_type"`
	Drivetrain    string          `json:"drivetrain"`
	Seating       int             `json:"seating,omitempty"`
	Towing        int             `json:"towing,omitempty"`
	Features      map[string]bool `json:"features,omitempty"`
	Colors        []string        `json:"colors,omitempty"`
	IsPerformance bool            `json:"is_performance"`
	IsLuxury      bool            `json:"is_luxury"`
	Description   string          `json:"description,omitempty"`
}

// ExtractFeatures normalizes one raw inventory record. Missing fields come
// back zero-valued; nothing here errors, a sparse row still indexes.
func ExtractFeatures(rec Record) VehicleFeatures {
	vf := VehicleFeatures{
		StockID: rec.StringField(stockAliases...),
		VIN:     strings.ToUpper(rec.StringField(vinAliases...)),
		Make:    rec.StringField(recMakeAliases...),
		Model:   rec.StringField(recModelAliases...),
		Trim:    rec.StringField(trimAliases...),
	}

	if y, ok := rec.IntField(yearAliases...); ok && y >= MinModelYear && y <= MaxModelYear {
		vf.Year = y
	}
	if p, ok := rec.FloatField(priceAliases...); ok && p > 0 {
		vf.Price = p
	}
	if m, ok := rec.IntField(mileageAliases...); ok && m >= 0 {
		vf.Mileage = m
	}
	vf.PriceBucket = BucketIndex(vf.Price, PriceBucketBounds)
	vf.MileageBucket = BucketIndex(float64(vf.Mileage), MileageBucketBounds)

	model := strings.ToLower(vf.Model)
	vf.BodyStyle = normalizeBodyStyle(rec.StringField(bodyAliases...), model)
	vf.FuelType = normalizeFuelType(rec.StringField(fuelAliases...), model)
	vf.Drivetrain = normalizeDrivetrain(rec.StringField(drivetrainAliases...))

	if s, ok := rec.IntField(seatingAliases...); ok && s > 0 && s <= 15 {
		vf.Seating = s
	}
	if t, ok := rec.IntField(towingAliases...); ok && t > 0 {
		vf.Towing = t
	}

	for _, f := range rec.StringsField(featureAliases...) {
		key := strings.ToLower(strings.TrimSpace(f))
		if key == "" {
			continue
		}
		if vf.Features == nil {
			vf.Features = make(map[string]bool)
		}
		vf.Features[key] = true
	}

	for _, aliases := range [][]string{extColorAliases, intColorAliases} {
		if c := rec.StringField(aliases...); c != "" {
			vf.Colors = append(vf.Colors, strings.ToLower(c))
		}
	}

	vf.Description = rec.StringField(descAliases...)
	vf.IsPerformance = derivePerformance(model, strings.ToLower(vf.Trim), vf.BodyStyle, vf.Price)
	vf.IsLuxury = deriveLuxury(strings.ToLower(vf.Make), strings.ToLower(vf.Trim), vf.Price)
	return vf
}

// HasFeature reports whether the vehicle carries a feature, matching loosely
// in both directions: feeds write "Heated Leather Seats" where a customer
// asks for "leather seats".
func (vf VehicleFeatures) HasFeature(want string) bool {
	w := strings.ToLower(strings.TrimSpace(want))
	if w == "" {
		return false
	}
	if vf.Features[w] {
		return true
	}
	for f := range vf.Features {
		if strings.Contains(f, w) || strings.Contains(w, f) {
			return true
		}
	}
	return vf.Description != "" && strings.Contains(strings.ToLower(vf.Description), w)
}

func normalizeBodyStyle(raw, model string) string {
	b := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case b == "":
		return bodyStyleByModel[model]
	case strings.Contains(b, "pick") || strings.Contains(b, "truck") || strings.Contains(b, "cab"):
		return "truck"
	case strings.Contains(b, "sport utility") || strings.Contains(b, "suv") || strings.Contains(b, "crossover") || strings.Contains(b, "cuv"):
		return "suv"
	case strings.Contains(b, "minivan"):
		return "minivan"
	case strings.Contains(b, "convertible") || strings.Contains(b, "roadster") || strings.Contains(b, "cabriolet"):
		return "convertible"
	case strings.Contains(b, "coupe"):
		return "coupe"
	case strings.Contains(b, "hatch"):
		return "hatchback"
	case strings.Contains(b, "wagon"):
		return "wagon"
	case strings.Contains(b, "sedan") || strings.Contains(b, "saloon"):
		return "sedan"
	case strings.Contains(b, "van"):
		return "van"
	}
	if derived := bodyStyleByModel[model]; derived != "" {
		return derived
	}
	return b
}

func normalizeFuelType(raw, model string) string {
	f := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(f, "plug") || strings.Contains(f, "phev"):
		return "plug-in hybrid"
	case strings.Contains(f, "hybrid"):
		return "hybrid"
	case strings.Contains(f, "electric") || f == "ev" || f == "bev" || strings.Contains(f, "battery"):
		return "electric"
	case strings.Contains(f, "diesel"):
		return "diesel"
	case f == "":
		switch {
		case electricModels[model]:
			return "electric"
		case hybridModels[model]:
			return "hybrid"
		}
		return "gasoline"
	default:
		// "Gasoline", "Gas", "Petrol", "Flex Fuel", and everything else a
		// feed invents all count as gasoline.
		return "gasoline"
	}
}

func normalizeDrivetrain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(d, "awd") || strings.Contains(d, "all"):
		return "awd"
	case strings.Contains(d, "4wd") || strings.Contains(d, "4x4") || strings.Contains(d, "four"):
		return "4wd"
	case strings.Contains(d, "fwd") || strings.Contains(d, "front"):
		return "fwd"
	case strings.Contains(d, "rwd") || strings.Contains(d, "rear") || strings.Contains(d, "4x2"):
		return "rwd"
	}
	return ""
}

func derivePerformance(model, trim, body string, price float64) bool {
	mt := " " + model + " " + trim + " "
	for _, marker := range performanceMarkers {
		if strings.Contains(mt, " "+marker+" ") {
			return true
		}
	}
	return (body == "coupe" || body == "convertible") && price >= 60000
}

func deriveLuxury(mk, trim string, price float64) bool {
	if luxuryMakes[mk] {
		return true
	}
	for _, marker := range luxuryTrimMarkers {
		if strings.Contains(trim, marker) {
			return true
		}
	}
	return price >= 70000
}
