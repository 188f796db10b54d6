package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Turn is one conversational exchange on the sales floor: what the customer
// said and what the salesperson answered, plus optional hints the floor app
// already knows (vehicles brought up by stock number, the customer's name).
type Turn struct {
	SessionID    string   `json:"session_id,omitempty"`
	Utterance    string   `json:"utterance"`
	Response     string   `json:"response,omitempty"`
	MentionedIDs []string `json:"mentioned_stock_ids,omitempty"`
	CustomerName string   `json:"customer_name,omitempty"`
}

// Injection patterns: query/template fragments that should never appear in
// showroom conversation text.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(DROP|DELETE|INSERT|UPDATE|ALTER|EXEC|UNION)\b.*\b(TABLE|FROM|INTO|SELECT|SET)\b`),
	regexp.MustCompile(`(?i)(--|;)\s*(DROP|DELETE|SELECT)`),
	regexp.MustCompile(`(?i)\$\{.*\}`),            // template injection
	regexp.MustCompile(`(?i)\{\s*"\$[a-z]+"\s*:`), // NoSQL operator injection
}

// Stock numbers: dealer DMS formats are short alphanumerics, sometimes with
// a dash ("P12345", "N-2231A").
var stockIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{0,23}$`)

const maxTurnLength = 4000

// ValidateTurn screens a turn before it reaches the engine. An empty
// utterance is allowed (the exchange still counts); a turn with no text at
// all is not.
func ValidateTurn(t Turn) error {
	utterance := strings.TrimSpace(t.Utterance)
	response := strings.TrimSpace(t.Response)

	if utterance == "" && response == "" {
		return NewValidationError("utterance", "", ErrEmptyTurn)
	}
	if utf8.RuneCountInString(utterance) > maxTurnLength {
		return NewValidationError("utterance", utterance[:32]+"...", ErrTurnTooLong)
	}
	for _, pat := range injectionPatterns {
		if pat.MatchString(utterance) {
			return NewValidationError("utterance", utterance, ErrTurnInjection)
		}
	}
	for _, id := range t.MentionedIDs {
		if !stockIDRegex.MatchString(id) {
			return NewValidationError("mentioned_stock_ids", id, ErrInvalidStockID)
		}
	}
	return nil
}

// NormalizePhone reduces a phone number to ten bare digits, tolerating
// punctuation and a leading country code 1. Anything else returns "".
func NormalizePhone(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	if len(d) != 10 {
		return ""
	}
	return d
}
