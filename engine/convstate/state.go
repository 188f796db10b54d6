// Package convstate tracks everything learned about one customer across a
// conversation: identity, budget, preferences, trade-in details, which
// vehicles came up and how the customer felt about them, plus a stage /
// interest / sentiment state machine that moves as the conversation does.
//
// State is mutated only through a Manager, which serializes updates per
// session and optionally persists snapshots keyed by phone number so a
// returning customer picks up where they left off.
package convstate

import (
	"fmt"
	"strings"
	"time"

	"github.com/ShowfloorAI/showfloor-mvp/engine/domain"
	"github.com/ShowfloorAI/showfloor-mvp/engine/extract"
)

// Key-moment types, recorded once per session on first occurrence.
const (
	MomentBudgetRevealed    = "budget_revealed"
	MomentTradeInMentioned  = "trade_in_mentioned"
	MomentSpousalObjection  = "spousal_objection"
	MomentTestDriveInterest = "test_drive_interest"
)

// ObjectionSpouse is the category under which partner-approval objections
// are recorded. At most one may be open (unaddressed) at a time.
const ObjectionSpouse = "spouse_approval"

// TradeIn accumulates what is known about the customer's trade vehicle.
// Fields fill in as they are mentioned; a later mention overwrites only the
// fields it actually carries.
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
}

// DiscussedVehicle records one vehicle's history within the conversation.
type DiscussedVehicle struct {
	StockID    string    `json:"stock_id"`
	Mentions   int       `json:"mentions"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
	Sentiment  string    `json:"sentiment,omitempty"` // "positive" or "negative"
	IsFavorite bool      `json:"is_favorite,omitempty"`
	Objections []string  `json:"objections,omitempty"`
}

// Objection is a recorded obstacle to the sale, addressable later.
type Objection struct {
	Category   string    `json:"category"`
	Text       string    `json:"text"`
	RaisedAt   time.Time `json:"raised_at"`
	Addressed  bool      `json:"addressed"`
	Resolution string    `json:"resolution,omitempty"`
}

// KeyMoment marks a milestone in the conversation.
type KeyMoment struct {
	Type   string    `json:"type"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// State is the full conversation record for one session. It is a plain
// serializable value; all mutation goes through the Manager.
type State struct {
	SessionID     string `json:"session_id"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerPhone string `json:"customer_phone,omitempty"` // normalized, digits only
	CustomerEmail string `json:"customer_email,omitempty"`

	Stage            domain.Stage         `json:"stage"`
	InterestLevel    domain.InterestLevel `json:"interest_level"`
	Sentiment        domain.Sentiment     `json:"sentiment"`
	FrustrationCount int                  `json:"frustration_count"`
	ExcitementCount  int                  `json:"excitement_count"`

	BudgetMin     float64 `json:"budget_min,omitempty"`
	BudgetMax     float64 `json:"budget_max,omitempty"`
	MonthlyTarget float64 `json:"monthly_target,omitempty"`
	DownPayment   float64 `json:"down_payment,omitempty"`

	PreferredTypes       []string `json:"preferred_types"`
	RequestedFeatures    []string `json:"requested_features"`
	UseCases             []string `json:"use_cases"`
	PreferredColors      []string `json:"preferred_colors"`
	MinSeating           int      `json:"min_seating,omitempty"`
	MinTowing            int      `json:"min_towing,omitempty"`
	FuelPreference       string   `json:"fuel_preference,omitempty"`
	DrivetrainPreference string   `json:"drivetrain_preference,omitempty"`
	FamilySize           int      `json:"family_size,omitempty"`

	Urgency domain.Urgency `json:"urgency"`
	TradeIn TradeIn        `json:"trade_in"`

	DiscussedVehicles map[string]*DiscussedVehicle `json:"discussed_vehicles"`
	FavoriteVehicles  []string                     `json:"favorite_vehicles"`
	RejectedVehicles  []string                     `json:"rejected_vehicles"`

	Objections []Objection `json:"objections"`
	KeyMoments []KeyMoment `json:"key_moments"`

	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newState(sessionID string, now time.Time) *State {
	return &State{
		SessionID:         sessionID,
		Stage:             domain.StageGreeting,
		InterestLevel:     domain.InterestCold,
		Sentiment:         domain.SentimentNeutral,
		Urgency:           domain.UrgencyBrowsing,
		PreferredTypes:    []string{},
		RequestedFeatures: []string{},
		UseCases:          []string{},
		PreferredColors:   []string{},
		FavoriteVehicles:  []string{},
		RejectedVehicles:  []string{},
		DiscussedVehicles: map[string]*DiscussedVehicle{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// HasBudget reports whether any budget ceiling is known.
func (s *State) HasBudget() bool { return s.BudgetMax > 0 }

// IsFavorite reports whether the stock id is on the favorites list.
func (s *State) IsFavorite(stockID string) bool {
	v, ok := s.DiscussedVehicles[canonicalID(stockID)]
	return ok && v.IsFavorite
}

// IsRejected reports whether the stock id carries negative sentiment.
func (s *State) IsRejected(stockID string) bool {
	v, ok := s.DiscussedVehicles[canonicalID(stockID)]
	return ok && v.Sentiment == "negative"
}

// WasDiscussed reports whether the stock id has come up at all.
func (s *State) WasDiscussed(stockID string) bool {
	_, ok := s.DiscussedVehicles[canonicalID(stockID)]
	return ok
}

// applyEntities merges one turn's extracted signals into the state.
// Sets grow, scalars take the most recent value, seating/towing ratchet up.
func (s *State) applyEntities(ents extract.Entities, utterance string, now time.Time) {
	if !ents.Budget.Empty() {
		hadBudget := s.HasBudget() || s.MonthlyTarget > 0
		if ents.Budget.Min > 0 {
			s.BudgetMin = ents.Budget.Min
		}
		if ents.Budget.Max > 0 {
			s.BudgetMax = ents.Budget.Max
		}
		if ents.Budget.MonthlyTarget > 0 {
			s.MonthlyTarget = ents.Budget.MonthlyTarget
		}
		if ents.Budget.DownPayment > 0 {
			s.DownPayment = ents.Budget.DownPayment
		}
		if !hadBudget && (s.HasBudget() || s.MonthlyTarget > 0) {
			s.addMoment(MomentBudgetRevealed, budgetDetail(s), now)
		}
	}

	s.PreferredTypes = unionInto(s.PreferredTypes, ents.Types)
	s.RequestedFeatures = unionInto(s.RequestedFeatures, ents.Features)
	s.UseCases = unionInto(s.UseCases, ents.UseCases)
	s.PreferredColors = unionInto(s.PreferredColors, ents.Colors)

	if ents.MinSeating > s.MinSeating {
		s.MinSeating = ents.MinSeating
	}
	if ents.MinTowing > s.MinTowing {
		s.MinTowing = ents.MinTowing
	}
	if ents.FuelPreference != "" {
		s.FuelPreference = ents.FuelPreference
	}
	if ents.DrivetrainPreference != "" {
		s.DrivetrainPreference = ents.DrivetrainPreference
	}
	if ents.FamilySize > 0 {
		s.FamilySize = ents.FamilySize
	}
	if ents.Urgency.Level() > s.Urgency.Level() {
		s.Urgency = ents.Urgency
	}

	if ents.TradeIn.Mentioned {
		if !s.TradeIn.Mentioned {
			s.addMoment(MomentTradeInMentioned, tradeDetail(ents.TradeIn), now)
		}
		s.mergeTradeIn(ents.TradeIn)
	}

	if ents.SpousalObjection && !s.hasOpenObjection(ObjectionSpouse) {
		text := strings.TrimSpace(utterance)
		if ents.SpousalReference != "" {
			text = fmt.Sprintf("needs %s's approval: %s", ents.SpousalReference, text)
		}
		s.Objections = append(s.Objections, Objection{
			Category: ObjectionSpouse,
			Text:     text,
			RaisedAt: now,
		})
		s.addMoment(MomentSpousalObjection, ents.SpousalReference, now)
	}

	if ents.Name != "" {
		s.CustomerName = ents.Name
	}
	if p := domain.NormalizePhone(ents.Phone); p != "" {
		s.CustomerPhone = p
	}
	if ents.Email != "" {
		s.CustomerEmail = ents.Email
	}
}

func (s *State) mergeTradeIn(ti extract.TradeIn) {
	s.TradeIn.Mentioned = true
	if ti.Year > 0 {
		s.TradeIn.Year = ti.Year
	}
	if ti.Make != "" {
		s.TradeIn.Make = ti.Make
	}
	if ti.Model != "" {
		s.TradeIn.Model = ti.Model
	}
	if ti.Mileage > 0 {
		s.TradeIn.Mileage = ti.Mileage
	}
	if ti.MonthlyPayment > 0 {
		s.TradeIn.MonthlyPayment = ti.MonthlyPayment
	}
	if ti.Payoff > 0 {
		s.TradeIn.Payoff = ti.Payoff
	}
	if ti.Lender != "" {
		s.TradeIn.Lender = ti.Lender
	}
	if ti.Lease {
		s.TradeIn.Lease = true
	}
}

// noteVehicles merges mentioned stock ids into the discussed map.
func (s *State) noteVehicles(stockIDs []string, now time.Time) {
	for _, raw := range stockIDs {
		id := canonicalID(raw)
		if id == "" {
			continue
		}
		if v, ok := s.DiscussedVehicles[id]; ok {
			v.Mentions++
			v.LastSeen = now
			continue
		}
		s.DiscussedVehicles[id] = &DiscussedVehicle{
			StockID:   id,
			Mentions:  1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
}

// vehicle fetches the discussed-vehicle record, creating it on first touch.
func (s *State) vehicle(id string, now time.Time) *DiscussedVehicle {
	if v, ok := s.DiscussedVehicles[id]; ok {
		v.LastSeen = now
		return v
	}
	v := &DiscussedVehicle{StockID: id, Mentions: 1, FirstSeen: now, LastSeen: now}
	s.DiscussedVehicles[id] = v
	return v
}

// normalize allocates any nil collections, typically after deserialization.
func (s *State) normalize() {
	if s.DiscussedVehicles == nil {
		s.DiscussedVehicles = map[string]*DiscussedVehicle{}
	}
	if s.PreferredTypes == nil {
		s.PreferredTypes = []string{}
	}
	if s.RequestedFeatures == nil {
		s.RequestedFeatures = []string{}
	}
	if s.UseCases == nil {
		s.UseCases = []string{}
	}
	if s.PreferredColors == nil {
		s.PreferredColors = []string{}
	}
	if s.FavoriteVehicles == nil {
		s.FavoriteVehicles = []string{}
	}
	if s.RejectedVehicles == nil {
		s.RejectedVehicles = []string{}
	}
	if s.Stage == "" {
		s.Stage = domain.StageGreeting
	}
	if s.InterestLevel == "" {
		s.InterestLevel = domain.InterestCold
	}
	if s.Sentiment == "" {
		s.Sentiment = domain.SentimentNeutral
	}
	if s.Urgency == "" {
		s.Urgency = domain.UrgencyBrowsing
	}
}

func (s *State) hasOpenObjection(category string) bool {
	for _, o := range s.Objections {
		if o.Category == category && !o.Addressed {
			return true
		}
	}
	return false
}

// addMoment appends a key moment unless one of the same type exists.
func (s *State) addMoment(momentType, detail string, now time.Time) {
	for _, km := range s.KeyMoments {
		if km.Type == momentType {
			return
		}
	}
	s.KeyMoments = append(s.KeyMoments, KeyMoment{Type: momentType, Detail: detail, At: now})
}

// clone returns a deep copy safe to hand outside the manager's locks.
func (s *State) clone() *State {
	cp := *s
	cp.PreferredTypes = append([]string(nil), s.PreferredTypes...)
	cp.RequestedFeatures = append([]string(nil), s.RequestedFeatures...)
	cp.UseCases = append([]string(nil), s.UseCases...)
	cp.PreferredColors = append([]string(nil), s.PreferredColors...)
	cp.FavoriteVehicles = append([]string(nil), s.FavoriteVehicles...)
	cp.RejectedVehicles = append([]string(nil), s.RejectedVehicles...)
	cp.Objections = append([]Objection(nil), s.Objections...)
	cp.KeyMoments = append([]KeyMoment(nil), s.KeyMoments...)
	cp.DiscussedVehicles = make(map[string]*DiscussedVehicle, len(s.DiscussedVehicles))
	for id, v := range s.DiscussedVehicles {
		vc := *v
		vc.Objections = append([]string(nil), v.Objections...)
		cp.DiscussedVehicles[id] = &vc
	}
	return &cp
}

func unionInto(dst, add []string) []string {
	for _, a := range add {
		found := false
		for _, d := range dst {
			if d == a {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, a)
		}
	}
	return dst
}

func appendUnique(dst []string, v string) []string {
	for _, d := range dst {
		if d == v {
			return dst
		}
	}
	return append(dst, v)
}

func canonicalID(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func budgetDetail(s *State) string {
	switch {
	case s.BudgetMin > 0 && s.BudgetMax > 0:
		return fmt.Sprintf("$%.0f-$%.0f", s.BudgetMin, s.BudgetMax)
	case s.BudgetMax > 0:
		return fmt.Sprintf("up to $%.0f", s.BudgetMax)
	case s.MonthlyTarget > 0:
		return fmt.Sprintf("$%.0f/month", s.MonthlyTarget)
	default:
		return ""
	}
}

func tradeDetail(ti extract.TradeIn) string {
	parts := []string{}
	if ti.Year > 0 {
		parts = append(parts, fmt.Sprintf("%d", ti.Year))
	}
	if ti.Make != "" {
		parts = append(parts, ti.Make)
	}
	if ti.Model != "" {
		parts = append(parts, ti.Model)
	}
	return strings.Join(parts, " ")
}
