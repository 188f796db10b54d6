// Package domain defines the shared types, enums, and validation for the
// Showfloor matching engine. Raw inventory rows and conversation turns pass
// through validation here before the rest of the engine touches them.
package domain

// Stage identifies how far a showroom conversation has progressed. Stages are
// ordered; a conversation only moves forward, except for the re-enterable
// stages (trade-in and financing) which can interrupt from anywhere.
type Stage string

const (
	StageGreeting   Stage = "greeting"
	StageDiscovery  Stage = "discovery"
	StageBrowsing   Stage = "browsing"
	StageComparing  Stage = "comparing"
	StageDeepDive   Stage = "deep_dive"
	StageTradeIn    Stage = "trade_in"
	StageFinancing  Stage = "financing"
	StageObjection  Stage = "objection"
	StageCommitment Stage = "commitment"
	StageHandoff    Stage = "handoff"
)

// stageOrder fixes the forward progression of a conversation.
var stageOrder = []Stage{
	StageGreeting, StageDiscovery, StageBrowsing, StageComparing, StageDeepDive,
	StageTradeIn, StageFinancing, StageObjection, StageCommitment, StageHandoff,
}

// Index returns the position of s in the stage progression, or -1 for an
// unknown stage.
func (s Stage) Index() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Reenterable reports whether s may be entered out of order. Customers pivot
// to trade-in or financing talk from any point in the conversation.
func (s Stage) Reenterable() bool {
	return s == StageTradeIn || s == StageFinancing
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool { return s.Index() >= 0 }

// InterestLevel grades how engaged the customer currently is.
type InterestLevel string

const (
	InterestCold    InterestLevel = "cold"
	InterestWarm    InterestLevel = "warm"
	InterestHot     InterestLevel = "hot"
	InterestCooling InterestLevel = "cooling"
)

// Urgency grades purchase-timeline signals from the customer's language.
type Urgency string

const (
	UrgencyBrowsing Urgency = "browsing"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
)

// Level orders urgency for escalation comparisons; higher is more urgent.
func (u Urgency) Level() int {
	switch u {
	case UrgencyHigh:
		return 2
	case UrgencyMedium:
		return 1
	default:
		return 0
	}
}

// Sentiment labels the customer's running mood across the conversation.
type Sentiment string

const (
	SentimentNeutral    Sentiment = "neutral"
	SentimentPositive   Sentiment = "positive"
	SentimentExcited    Sentiment = "excited"
	SentimentConcerned  Sentiment = "concerned"
	SentimentFrustrated Sentiment = "frustrated"
)

// Confidence labels for scored results.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// ConfidenceBucket maps a normalized [0,1] score to a confidence label.
func ConfidenceBucket(score float64) string {
	switch {
	case score >= 0.8:
		return ConfidenceHigh
	case score >= 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ScoredVehicle is one ranked result from the retriever or the similarity
// engine: the raw inventory record, its normalized features, the score, and
// reason strings a salesperson can relay verbatim.
type ScoredVehicle struct {
	Vehicle    Record          `json:"vehicle"`
	Features   VehicleFeatures `json:"features"`
	Score      float64         `json:"score"`
	Reasons    []string        `json:"reasons,omitempty"`
	Warnings   []string        `json:"warnings,omitempty"`
	Confidence string          `json:"confidence"`
}
