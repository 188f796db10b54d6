package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Record is one raw inventory row as it arrives from a DMS export or feed
// file. Feeds disagree on key naming and value typing, so all field access
// goes through the alias-aware helpers below.
type Record map[string]any

// Field alias tables in lookup priority order. Feeds variously use
// snake_case, camelCase, and spreadsheet-style Title Case headers.
var (
	stockAliases      = []string{"stock_id", "stockId", "stock_number", "stockNumber", "StockNumber", "Stock #", "stock", "id", "ID"}
	vinAliases        = []string{"vin", "VIN", "Vin"}
	recMakeAliases    = []string{"make", "Make", "manufacturer", "Manufacturer"}
	recModelAliases   = []string{"model", "Model"}
	trimAliases       = []string{"trim", "Trim", "trim_level", "trimLevel"}
	yearAliases       = []string{"year", "Year", "model_year", "modelYear", "ModelYear"}
	priceAliases      = []string{"price", "Price", "selling_price", "sellingPrice", "SellingPrice", "internet_price", "internetPrice", "asking_price", "msrp", "MSRP"}
	mileageAliases    = []string{"mileage", "Mileage", "odometer", "Odometer", "miles", "Miles"}
	bodyAliases       = []string{"body_style", "bodyStyle", "BodyStyle", "body", "Body Style", "body_type", "bodyType"}
	fuelAliases       = []string{"fuel_type", "fuelType", "FuelType", "fuel", "Fuel Type"}
	drivetrainAliases = []string{"drivetrain", "Drivetrain", "drive_train", "driveTrain", "drive_type", "driveType", "Drive Type"}
	seatingAliases    = []string{"seating_capacity", "seatingCapacity", "seats", "Seats", "passenger_capacity", "passengerCapacity"}
	towingAliases     = []string{"towing_capacity", "towingCapacity", "tow_rating", "towRating", "Tow Rating"}
	featureAliases    = []string{"features", "Features", "options", "Options", "equipment", "Equipment"}
	extColorAliases   = []string{"exterior_color", "exteriorColor", "ExteriorColor", "color", "Color", "Exterior Color"}
	intColorAliases   = []string{"interior_color", "interiorColor", "InteriorColor", "Interior Color"}
	descAliases       = []string{"description", "Description", "comments", "Comments", "dealer_notes", "dealerNotes"}
)

// StringField returns the first alias key present with a usable value,
// trimmed. Numeric values render back to strings so a feed that types
// "year" as a string and "Year" as a number behaves the same.
func (r Record) StringField(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case int:
			return strconv.Itoa(t)
		case json.Number:
			return t.String()
		}
	}
	return ""
}

// FloatField returns the first alias key holding a usable number. String
// values tolerate "$", thousands separators, and surrounding whitespace.
func (r Record) FloatField(keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		if f, ok := coerceFloat(v); ok {
			return f, true
		}
	}
	return 0, false
}

// IntField is FloatField truncated to int.
func (r Record) IntField(keys ...string) (int, bool) {
	f, ok := r.FloatField(keys...)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// StringsField returns the first alias key holding a non-empty list. Accepts
// []string, []any of strings, or a single delimiter-separated string.
func (r Record) StringsField(keys ...string) []string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case []string:
			if len(t) > 0 {
				return t
			}
		case []any:
			out := make([]string, 0, len(t))
			for _, e := range t {
				if s, ok := e.(string); ok && strings.TrimSpace(s) != "" {
					out = append(out, strings.TrimSpace(s))
				}
			}
			if len(out) > 0 {
				return out
			}
		case string:
			parts := strings.FieldsFunc(t, func(c rune) bool {
				return c == ',' || c == ';' || c == '|'
			})
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if s := strings.TrimSpace(p); s != "" {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

// StockID returns the record's stock identifier under any recognised alias.
func (r Record) StockID() string {
	return r.StringField(stockAliases...)
}

func coerceFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(t)
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, ",", "")
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}
