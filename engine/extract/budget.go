package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Budget phrasing heard on a sales floor, most specific first. "k", "grand",
// and "thousand" multiply by 1000.
var (
	downRe    = regexp.MustCompile(`\$?([\d,]+(?:\.\d+)?)\s*(k\b|grand\b|thousand\b)?\s*(?:down payment|down\b)`)
	monthlyRe = regexp.MustCompile(`\$?([\d,]+(?:\.\d+)?)\s*(?:(?:a|per)\s+month|/\s*mo\b|monthly\b)`)
	rangeRe   = regexp.MustCompile(`\$?([\d,]+(?:\.\d+)?)\s*(k\b|grand\b|thousand\b)?\s*(?:-|–|to|and)\s*\$?([\d,]+(?:\.\d+)?)\s*(k\b|grand\b|thousand\b)?`)
	underRe   = regexp.MustCompile(`(?:under|below|less than|at most|no more than|max(?:imum)?(?: of)?|cap(?:ped)? at)\s*\$?([\d,]+(?:\.\d+)?)\s*(k\b|grand\b|thousand\b)?`)
	aroundRe  = regexp.MustCompile(`(?:around|about|roughly|budget(?:'s| is| of)?|spend(?:ing)?|looking at)\s*\$?([\d,]+(?:\.\d+)?)\s*(k\b|grand\b|thousand\b)?`)
	bareRe    = regexp.MustCompile(`\$([\d,]+(?:\.\d+)?)\s*(k\b|grand\b|thousand\b)?`)
	loneNumRe = regexp.MustCompile(`\b(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?)\s*(k\b|grand\b|thousand\b)?`)
)

// inferenceBand widens a lone stated number into a min/max range: people who
// say "about thirty grand" will stretch 15% either way.
const inferenceBand = 0.15

// extractMonthly pulls a "$X a month" target. Values outside a plausible
// payment range are noise, not payments.
func extractMonthly(lower string) float64 {
	m := monthlyRe.FindStringSubmatch(lower)
	if m == nil {
		return 0
	}
	v := parseAmount(m[1], "")
	if v < 50 || v > 5000 {
		return 0
	}
	return v
}

// extractBudget fills min/max/down-payment from the utterance. Ranges beat
// "under" ceilings beat "around" bands beat a bare dollar amount; the first
// pattern that lands wins the min/max pair.
func extractBudget(lower string, b *Budget) {
	// Mask phrasing whose numbers are never prices: "$400 a month" is a
	// payment, "owe $8,500" is a payoff, "120,000 miles" is an odometer.
	masked := monthlyRe.ReplaceAllString(lower, " ")
	masked = tradePayoffRe.ReplaceAllString(masked, " ")
	masked = tradeMilesRe.ReplaceAllString(masked, " ")

	if m := downRe.FindStringSubmatch(masked); m != nil {
		if v := parseAmount(m[1], m[2]); v >= 100 && v <= 100000 {
			b.DownPayment = v
		}
		masked = downRe.ReplaceAllString(masked, " ")
	}

	if m := rangeRe.FindStringSubmatch(masked); m != nil {
		lo := parseAmount(m[1], m[2])
		hi := parseAmount(m[3], m[4])
		// "25 to 35k" carries the k across both ends.
		if m[2] == "" && m[4] != "" && lo < 1000 {
			lo *= 1000
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		marked := m[2] != "" || m[4] != "" || strings.Contains(m[0], "$")
		if acceptPrice(lo, marked) && acceptPrice(hi, marked) {
			b.Min, b.Max = lo, hi
			return
		}
	}

	if m := underRe.FindStringSubmatch(masked); m != nil {
		v := parseAmount(m[1], m[2])
		if acceptPrice(v, m[2] != "" || strings.Contains(m[0], "$")) {
			b.Max = v
			return
		}
	}

	if m := aroundRe.FindStringSubmatch(masked); m != nil {
		v := parseAmount(m[1], m[2])
		if acceptPrice(v, m[2] != "" || strings.Contains(m[0], "$")) {
			b.Min = v * (1 - inferenceBand)
			b.Max = v * (1 + inferenceBand)
			return
		}
	}

	if m := bareRe.FindStringSubmatch(masked); m != nil {
		if v := parseAmount(m[1], m[2]); acceptPrice(v, true) {
			b.Min = v * (1 - inferenceBand)
			b.Max = v * (1 + inferenceBand)
			return
		}
	}

	// Last resort: a lone unqualified number ("I've got 25k to work with").
	// Tow ratings are the remaining number-bearing phrase to mask out.
	masked = towNumRe.ReplaceAllString(masked, " ")
	for _, m := range loneNumRe.FindAllStringSubmatch(masked, -1) {
		if v := parseAmount(m[1], m[2]); acceptPrice(v, m[2] != "") && v >= 5000 {
			b.Min = v * (1 - inferenceBand)
			b.Max = v * (1 + inferenceBand)
			return
		}
	}
}

// acceptPrice bounds what counts as a vehicle price. Below 2k it is a
// payment or a mishear; above 500k, a VIN fragment or phone number. An
// unmarked whole number in the model-year range ("around 2019") is a year,
// not a price, unless a "$" or "k" said otherwise.
func acceptPrice(v float64, marked bool) bool {
	if v < 2000 || v > 500000 {
		return false
	}
	if !marked && v == math.Trunc(v) && v >= 1980 && v <= 2029 {
		return false
	}
	return true
}

func parseAmount(num, suffix string) float64 {
	num = strings.ReplaceAll(num, ",", "")
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if suffix != "" {
		v *= 1000
	}
	return v
}
