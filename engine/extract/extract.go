// Package extract pulls structured entities out of a single customer
// utterance: budget, vehicle preferences, trade-in details, urgency, family
// size, and objection signals. Everything is regex/keyword driven and pure:
// no call here ever fails, garbled input just yields zero-value fields.
package extract

import (
	"strings"

	"github.com/ShowfloorAI/showfloor-mvp/engine/domain"
)

// Budget captures stated price constraints. Zero means "not stated".
type Budget struct {
	Min           float64 `json:"min,omitempty"`
	Max           float64 `json:"max,omitempty"`
	MonthlyTarget float64 `json:"monthly_target,omitempty"`
	DownPayment   float64 `json:"down_payment,omitempty"`
}

// Empty reports whether no budget signal was found.
func (b Budget) Empty() bool {
	return b.Min == 0 && b.Max == 0 && b.MonthlyTarget == 0 && b.DownPayment == 0
}

// TradeIn captures what the customer said about their current vehicle.
type TradeIn struct {
	Mentioned      bool    `json:"mentioned"`
	Year           int     `json:"year,omitempty"`
	Make           string  `json:"make,omitempty"`
	Model          string  `json:"model,omitempty"`
	Mileage        int     `json:"mileage,omitempty"`
	MonthlyPayment float64 `json:"monthly_payment,omitempty"`
	Payoff         float64 `json:"payoff,omitempty"`
	Lender         string  `json:"lender,omitempty"`
	Lease          bool    `json:"lease,omitempty"`

	// span is the text fragment that identified the vehicle, kept so the
	// type extractor can mask it out.
	span string
}

// Entities is the full single-utterance extraction result. All fields are
// no-signal defaults unless the utterance said otherwise.
type Entities struct {
	Budget               Budget         `json:"budget"`
	Types                []string       `json:"types,omitempty"`
	Features             []string       `json:"features,omitempty"`
	UseCases             []string       `json:"use_cases,omitempty"`
	Colors               []string       `json:"colors,omitempty"`
	MinSeating           int            `json:"min_seating,omitempty"`
	MinTowing            int            `json:"min_towing,omitempty"`
	FuelPreference       string         `json:"fuel_preference,omitempty"`
	DrivetrainPreference string         `json:"drivetrain_preference,omitempty"`
	TradeIn              TradeIn        `json:"trade_in"`
	Urgency              domain.Urgency `json:"urgency"`
	FamilySize           int            `json:"family_size,omitempty"`
	SpousalObjection     bool           `json:"spousal_objection,omitempty"`
	SpousalReference     string         `json:"spousal_reference,omitempty"`
	Name                 string         `json:"name,omitempty"`
	Phone                string         `json:"phone,omitempty"`
	Email                string         `json:"email,omitempty"`
}

// Utterance extracts every entity from one customer utterance.
func Utterance(text string) Entities {
	ents := Entities{Urgency: domain.UrgencyBrowsing}
	if strings.TrimSpace(text) == "" {
		return ents
	}
	lower := strings.ToLower(text)
	tokens := tokensOf(lower)

	ents.TradeIn = extractTradeIn(text, lower)

	// The trade-in vehicle must never leak into type preferences: a customer
	// trading an Equinox is not asking for an SUV. Blank its span before
	// scanning for types.
	typeSource := lower
	if ents.TradeIn.Mentioned && ents.TradeIn.span != "" {
		typeSource = strings.Replace(lower, strings.ToLower(ents.TradeIn.span), " ", 1)
	}

	monthly := extractMonthly(lower)
	if ents.TradeIn.Mentioned && monthly > 0 {
		// "$400 a month" next to trade talk is what they pay now, not what
		// they want to pay next.
		ents.TradeIn.MonthlyPayment = monthly
	} else {
		ents.Budget.MonthlyTarget = monthly
	}
	extractBudget(lower, &ents.Budget)

	ents.Types = matchCategories(typeSource, tokensOf(typeSource), typeCategories)
	ents.Features = matchCategories(lower, tokens, featureCategories)
	ents.UseCases = matchCategories(lower, tokens, useCaseCategories)
	ents.Colors = matchColors(tokens)

	ents.FuelPreference = extractFuelPreference(lower, tokens)
	ents.DrivetrainPreference = extractDrivetrainPreference(lower, tokens)
	ents.MinSeating = extractSeating(lower)
	ents.MinTowing = extractTowing(lower)
	ents.Urgency = extractUrgency(lower, tokens)
	ents.FamilySize = extractFamilySize(lower)
	ents.SpousalObjection, ents.SpousalReference = extractSpousal(lower)

	ents.Name = extractName(text)
	ents.Phone = extractPhone(text)
	ents.Email = extractEmail(text)
	return ents
}

// tokensOf splits lowercased text into a bare-word set for exact-token
// keyword checks (short keywords like "ev" or "red" would otherwise match
// inside unrelated words).
func tokensOf(lower string) map[string]bool {
	set := make(map[string]bool)
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	for _, f := range fields {
		set[f] = true
	}
	return set
}
