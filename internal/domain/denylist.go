package domain

import "regexp"

// Bounds shared by classification summaries and exposure rationales.
const (
	MaxSummaryChars   = 500
	MaxRationaleChars = 300
)

// ForbiddenTerms is the directional-language denylist applied to
// classification summaries and exposure rationales alike.
var ForbiddenTerms = []string{
	"bullish", "bearish", "buy", "sell",
	"upside", "downside", "outperform", "underperform",
}

var forbiddenPatterns = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp, len(ForbiddenTerms))
	for _, term := range ForbiddenTerms {
		m[term] = regexp.MustCompile(`(?i)\b` + term + `\b`)
	}
	return m
}()

// ForbiddenTerm returns the first denylisted term found in text as a
// whole word, or "" when the text is clean.
func ForbiddenTerm(text string) string {
	for _, term := range ForbiddenTerms {
		if forbiddenPatterns[term].MatchString(text) {
			return term
		}
	}
	return ""
}
