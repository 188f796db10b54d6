package extract

import (
	"regexp"
	"strings"
)

var (
	namedRe = regexp.MustCompile(`(?:[Mm]y name is|[Nn]ame's|[Tt]his is)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`)
	imRe    = regexp.MustCompile(`\bI'?m\s+([A-Z][a-z]+)\b`)
	phoneRe = regexp.MustCompile(`(?:\+?1[\s.\-]?)?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}\b`)
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
)

// notNames are capitalized words that follow "I'm" without being a name.
var notNames = map[string]bool{
	"Looking": true, "Just": true, "Interested": true, "Here": true,
	"Not": true, "Gonna": true, "Going": true, "Thinking": true,
	"Trying": true, "Ready": true, "Browsing": true, "Sure": true,
	"Good": true, "Fine": true, "Hoping": true, "Waiting": true,
	"Trading": true, "Shopping": true, "Open": true, "Curious": true,
}

// extractName needs the original casing: a capitalized word after an
// introduction phrase is a name, the same word lowercased is not.
func extractName(text string) string {
	if m := namedRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := imRe.FindStringSubmatch(text); m != nil && !notNames[m[1]] {
		return m[1]
	}
	return ""
}

func extractPhone(text string) string {
	return strings.TrimSpace(phoneRe.FindString(text))
}

func extractEmail(text string) string {
	return strings.ToLower(emailRe.FindString(text))
}
