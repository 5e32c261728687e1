package refiner

import (
	"regexp"
	"strings"
)

var tokenEdgeRe = regexp.MustCompile(`(^[^A-Za-z0-9']+)|([^A-Za-z0-9']+$)`)

// SplitWords splits text on whitespace and strips leading/trailing
// punctuation from each token, so word indices stay stable across
// punctuation variants. Case is preserved; comparison sites lower-case.
// Total over any input: empty or all-punctuation text yields no tokens.
func SplitWords(text string) []string {
	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if t := normalizeToken(f); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// normalizeToken strips leading/trailing punctuation; internal apostrophes
// survive. "(brought" -> "brought", "you..." -> "you", "don't" -> "don't".
func normalizeToken(token string) string {
	return tokenEdgeRe.ReplaceAllString(token, "")
}

func lowerTokens(tokens []string) []string {
	lowered := make([]string, len(tokens))
	for i, t := range tokens {
		lowered[i] = strings.ToLower(t)
	}
	return lowered
}
