package modelcall

import "regexp"

// secretRe matches values that look like API keys or tokens: a telltale key
// name, a separator, then a long run of key-ish characters.
var secretRe = regexp.MustCompile(`(?i)((?:api[_-]?key|secret|token|password|auth)[=:\s'"]+)([A-Za-z0-9_-]{8,})`)

// Redact replaces likely secret values in text with a placeholder. Prompts
// and responses pass through here before every store write.
func Redact(text string) string {
	return secretRe.ReplaceAllString(text, "${1}***REDACTED***")
}
