package extract

import (
	"regexp"
	"strings"

	"github.com/ShowfloorAI/showfloor-mvp/pkg/vehiclenlp"
)

// tradeTriggers open the trade-in path. Substring matched, so "trade" also
// covers "trade-in" and "trades".
var tradeTriggers = []string{"trade", "trading", "current vehicle", "current car", "my car"}

var (
	tradeYearRe    = regexp.MustCompile(`\b(19[89]\d|20[0-2]\d)\b`)
	tradeMilesRe   = regexp.MustCompile(`([\d,]+)\s*(k\b)?\s*(?:miles|mi\b|on the clock|on it\b)`)
	tradePayoffRe  = regexp.MustCompile(`(?:owe|payoff(?: of)?|pay off|balance(?: of)?)\s*(?:about |around |roughly )?\$?([\d,]+(?:\.\d+)?)\s*(k\b|grand\b|thousand\b)?`)
	leaseTriggerRe = regexp.MustCompile(`\blease[ds]?\b|\bleasing\b`)
)

// lenders maps spoken lender phrases to display names.
var lenders = []struct{ phrase, name string }{
	{"capital one", "Capital One"},
	{"wells fargo", "Wells Fargo"},
	{"bank of america", "Bank of America"},
	{"us bank", "US Bank"},
	{"ally", "Ally"},
	{"chase", "Chase"},
	{"santander", "Santander"},
	{"westlake", "Westlake"},
	{"toyota financial", "Toyota Financial"},
	{"honda financial", "Honda Financial"},
	{"gm financial", "GM Financial"},
	{"ford credit", "Ford Credit"},
	{"credit union", "credit union"},
}

// extractTradeIn fills the trade-in sub-record when trade talk is present.
// The vehicle itself comes from the reference extractor; year falls back to
// a bare 4-digit token anywhere in the utterance.
func extractTradeIn(text, lower string) TradeIn {
	ti := TradeIn{}
	for _, trigger := range tradeTriggers {
		if strings.Contains(lower, trigger) {
			ti.Mentioned = true
			break
		}
	}
	if !ti.Mentioned {
		return ti
	}

	if ref := vehiclenlp.Best(text); ref != nil {
		ti.Make = ref.Make
		ti.Model = ref.Model
		ti.Year = ref.Year
		ti.span = ref.Span
	}
	if ti.Year == 0 {
		if m := tradeYearRe.FindStringSubmatch(lower); m != nil {
			ti.Year = atoiSafe(m[1])
		}
	}
	if m := tradePayoffRe.FindStringSubmatch(lower); m != nil {
		if v := parseAmount(m[1], m[2]); v >= 100 && v <= 200000 {
			ti.Payoff = v
		}
	}
	// "owe $8,500 on it" is a payoff, not an odometer reading.
	if m := tradeMilesRe.FindStringSubmatch(tradePayoffRe.ReplaceAllString(lower, " ")); m != nil {
		if v := parseAmount(m[1], m[2]); v >= 100 && v <= 500000 {
			ti.Mileage = int(v)
		}
	}
	if leaseTriggerRe.MatchString(lower) {
		ti.Lease = true
	}
	for _, l := range lenders {
		if strings.Contains(lower, l.phrase) {
			ti.Lender = l.name
			break
		}
	}
	return ti
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
