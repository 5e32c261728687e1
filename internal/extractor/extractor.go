package extractor

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"ad-refiner-go/internal/types"
)

// Field names the model is asked to return. Anything else is ignored.
const (
	keyStartSeq      = "refined_start_segment_seq"
	keyEndSeq        = "refined_end_segment_seq"
	keyStartPhrase   = "refined_start_phrase"
	keyEndPhrase     = "refined_end_phrase"
	keyStartWord     = "refined_start_word"
	keyStartIndex    = "refined_start_word_index"
	keyStartReason   = "start_adjustment_reason"
	keyEndReason     = "end_adjustment_reason"
	keyOccurrence    = "occurrence"
	keyOccurrenceAlt = "occurance" // common model misspelling, accepted
)

var (
	fencedBlockRe = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)```")
	fenceMarkRe   = regexp.MustCompile("(?i)```(?:json)?")

	// Trailing fragments an interrupted response leaves behind, in the order
	// they are stripped: open quote, bare key, key with colon, open value.
	danglingOpenKeyRe   = regexp.MustCompile(`,\s*"[^"]*$`)
	danglingBareKeyRe   = regexp.MustCompile(`,\s*"[^"]*"$`)
	danglingColonRe     = regexp.MustCompile(`,\s*"[^"]*"\s*:\s*$`)
	danglingOpenValueRe = regexp.MustCompile(`,\s*"[^"]*"\s*:\s*"[^"]*$`)
)

// ParsePayload recovers a refinement payload from raw model text. ok is false
// when nothing usable could be extracted; the caller should treat that as a
// parse failure, not an error.
func ParsePayload(content string) (types.RefinementPayload, bool) {
	obj := ParseObject(content)
	if len(obj) == 0 {
		return types.RefinementPayload{}, false
	}
	return PayloadFrom(obj), true
}

// ParseObject returns the first JSON object recoverable from content, trying
// candidates in layered order: the whole text, fenced blocks, the unfenced
// remainder, and balanced-brace substrings of each. When no candidate parses
// even after truncation repair, individual fields are regex-recovered from
// the raw text. Returns nil when nothing was found.
func ParseObject(content string) map[string]any {
	for _, candidate := range parseCandidates(content) {
		if obj, ok := parseCandidate(candidate); ok {
			return obj
		}
	}
	if partial := partialFields(content); len(partial) > 0 {
		return partial
	}
	return nil
}

// parseCandidates builds the ordered, deduplicated candidate list.
func parseCandidates(content string) []string {
	text := strings.TrimSpace(content)
	if text == "" {
		return nil
	}

	candidates := []string{text}

	for _, m := range fencedBlockRe.FindAllStringSubmatch(text, -1) {
		if block := strings.TrimSpace(m[1]); block != "" {
			candidates = append(candidates, block)
		}
	}

	if unfenced := strings.TrimSpace(fenceMarkRe.ReplaceAllString(text, "")); unfenced != "" {
		candidates = append(candidates, unfenced)
	}

	var expanded []string
	for _, candidate := range candidates {
		expanded = append(expanded, candidate)
		expanded = append(expanded, scanObjects(candidate)...)
	}

	return dedupePreserveOrder(expanded)
}

func dedupePreserveOrder(values []string) []string {
	var deduped []string
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		normalized := strings.TrimSpace(v)
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		deduped = append(deduped, normalized)
		seen[normalized] = struct{}{}
	}
	return deduped
}

// scanObjects finds balanced top-level {...} substrings. Braces inside quoted
// strings are skipped; regex cannot balance nesting, so this is an explicit
// outside-string / inside-string / escaped state machine.
func scanObjects(text string) []string {
	var objects []string
	depth := 0
	startIdx := -1
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				startIdx = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && startIdx >= 0 {
				objects = append(objects, text[startIdx:i+1])
				startIdx = -1
			}
		}
	}

	return objects
}

// parseCandidate attempts a strict parse, then a parse of the repaired text.
// Only JSON objects count; bare arrays, strings and numbers are rejected.
func parseCandidate(candidate string) (map[string]any, bool) {
	attempts := []string{candidate}
	if repaired := repairTruncated(candidate); repaired != "" && repaired != candidate {
		attempts = append(attempts, repaired)
	}

	for _, attempt := range attempts {
		var loaded any
		if err := json.Unmarshal([]byte(attempt), &loaded); err != nil {
			continue
		}
		if obj, ok := loaded.(map[string]any); ok {
			return obj, true
		}
	}

	return nil, false
}

// repairTruncated makes a cut-off response parseable: drop everything before
// the first '{', strip fence remnants and trailing commas, remove an
// obviously incomplete trailing key/value pair, then close any brackets and
// braces left open. Returns "" when there is nothing to repair.
func repairTruncated(candidate string) string {
	text := strings.TrimSpace(candidate)
	if text == "" {
		return ""
	}

	startIdx := strings.Index(text, "{")
	if startIdx < 0 {
		return ""
	}

	repaired := text[startIdx:]
	repaired = strings.TrimSpace(fenceMarkRe.ReplaceAllString(repaired, ""))
	repaired = strings.TrimRight(repaired, ",")

	repaired = danglingOpenKeyRe.ReplaceAllString(repaired, "")
	repaired = danglingBareKeyRe.ReplaceAllString(repaired, "")
	repaired = danglingColonRe.ReplaceAllString(repaired, "")
	repaired = danglingOpenValueRe.ReplaceAllString(repaired, "")

	if open := strings.Count(repaired, "[") - strings.Count(repaired, "]"); open > 0 {
		repaired += strings.Repeat("]", open)
	}
	if open := strings.Count(repaired, "{") - strings.Count(repaired, "}"); open > 0 {
		repaired += strings.Repeat("}", open)
	}

	return repaired
}

// partialFields is the last resort: regex each known field out of the raw
// text independently. A sequence field written as an explicit null is kept as
// a nil value so that "model said no match" stays distinguishable from
// "field absent".
func partialFields(content string) map[string]any {
	parsed := make(map[string]any)

	for _, key := range []string{keyStartSeq, keyEndSeq} {
		if v, null, ok := extractIntOrNull(content, key); ok {
			if null {
				parsed[key] = nil
			} else {
				parsed[key] = float64(v)
			}
		}
	}

	for _, key := range []string{keyStartPhrase, keyEndPhrase, keyStartReason, keyEndReason} {
		if v, ok := extractString(content, key); ok {
			parsed[key] = v
		}
	}

	if len(parsed) == 0 {
		return nil
	}
	return parsed
}

func extractIntOrNull(text, key string) (value int, null, ok bool) {
	re := regexp.MustCompile(fmt.Sprintf(`(?i)"%s"\s*:\s*(null|-?\d+)`, regexp.QuoteMeta(key)))
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false, false
	}
	if strings.EqualFold(m[1], "null") {
		return 0, true, true
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false, false
	}
	return v, false, true
}

func extractString(text, key string) (string, bool) {
	re := regexp.MustCompile(fmt.Sprintf(`(?is)"%s"\s*:\s*"([^"]*)"`, regexp.QuoteMeta(key)))
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	value := strings.TrimSpace(m[1])
	if value == "" {
		return "", false
	}
	return value, true
}

// PayloadFrom maps a loosely-typed JSON object onto the payload struct.
// Total over malformed input: wrong-typed values degrade to absent or to the
// field's zero behaviour, never to an error.
func PayloadFrom(obj map[string]any) types.RefinementPayload {
	return types.RefinementPayload{
		StartSegmentSeq: seqField(obj, keyStartSeq),
		EndSegmentSeq:   seqField(obj, keyEndSeq),
		StartPhrase:     stringField(obj, keyStartPhrase),
		EndPhrase:       stringField(obj, keyEndPhrase),
		StartWord:       stringField(obj, keyStartWord),
		StartOccurrence: occurrenceField(obj),
		StartWordIndex:  indexField(obj, keyStartIndex),
		StartReason:     reasonField(obj, keyStartReason),
		EndReason:       reasonField(obj, keyEndReason),
	}
}

func seqField(obj map[string]any, key string) types.NullableSeq {
	v, exists := obj[key]
	if !exists {
		return types.NullableSeq{}
	}
	if v == nil {
		return types.NullSeq()
	}
	if i, ok := coerceInt(v); ok {
		return types.SeqOf(i)
	}
	return types.NullSeq()
}

func stringField(obj map[string]any, key string) *string {
	v, exists := obj[key]
	if !exists || v == nil {
		return nil
	}
	s, ok := coerceString(v)
	if !ok {
		return nil
	}
	return &s
}

func occurrenceField(obj map[string]any) string {
	v := obj[keyOccurrence]
	if v == nil {
		v = obj[keyOccurrenceAlt]
	}
	if s, ok := coerceString(v); ok && strings.EqualFold(strings.TrimSpace(s), "last") {
		return "last"
	}
	return "first"
}

// indexField keeps the original tri-state behaviour: absent and explicit null
// suppress the word-index path, while a present but unparseable value still
// triggers it and resolves to index 0.
func indexField(obj map[string]any, key string) *int {
	v, exists := obj[key]
	if !exists || v == nil {
		return nil
	}
	i, ok := coerceInt(v)
	if !ok {
		i = 0
	}
	return &i
}

func reasonField(obj map[string]any, key string) string {
	s, ok := coerceString(obj[key])
	if !ok {
		return ""
	}
	return s
}

func coerceInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func coerceString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		if t == 0 {
			return "", false
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}
