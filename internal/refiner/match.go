package refiner

import (
	"math"
	"sort"
	"strings"

	"ad-refiner-go/internal/types"
)

// Boundary movement caps, in seconds. The start may move earlier than the
// coarse boundary by at most 30s; the end may move later by at most 15s.
const (
	maxStartExtensionSeconds = 30.0
	maxEndExtensionSeconds   = 15.0
)

// maxPhraseMatchWords caps the token run used for phrase matching.
const maxPhraseMatchWords = 4

type direction string

const (
	directionStart direction = "start"
	directionEnd   direction = "end"
)

func constrainStart(estimated, origStart float64) float64 {
	return math.Max(estimated, origStart-maxStartExtensionSeconds)
}

func constrainEnd(estimated, origEnd float64) float64 {
	// Allow slight forward extension (for a late boundary) but cap it.
	return math.Min(estimated, origEnd+maxEndExtensionSeconds)
}

// refineStart computes the refined start time. Strategies in priority order:
// phrase match, segment boundary, word-level interpolation, unchanged. The
// errTag is "" unless a named phrase could not be found anywhere.
func refineStart(adStart float64, all, context []types.TranscriptSegment, p types.RefinementPayload) (refined float64, changed bool, reason, errTag string) {
	if hasPhrase(p.StartPhrase) {
		estimated, ok := estimatePhraseTime(all, context, p.StartSegmentSeq, *p.StartPhrase, directionStart)
		if !ok {
			return adStart, false, p.StartReason, "start_phrase_not_found"
		}
		return constrainStart(estimated, adStart), true, p.StartReason, ""
	}

	if segmentStart, ok := segmentBoundaryTime(all, p.StartSegmentSeq, directionStart); ok {
		constrained := constrainStart(segmentStart, adStart)
		return constrained, constrained != adStart, p.StartReason, ""
	}

	if hasText(p.StartWord) || p.StartWordIndex != nil {
		estimated := estimateWordTime(all, p.StartSegmentSeq, p.StartWord, p.StartOccurrence, p.StartWordIndex)
		return constrainStart(estimated, adStart), true, p.StartReason, ""
	}

	reason = p.StartReason
	if reason == "" {
		reason = "unchanged"
	}
	return adStart, false, reason, ""
}

// refineEnd computes the refined end time. Without an end phrase the segment
// boundary strategy applies; with one, phrase search takes priority and is
// mirrored to scan the context from the end backward.
func refineEnd(adEnd float64, all, context []types.TranscriptSegment, p types.RefinementPayload) (refined float64, changed bool, reason, errTag string) {
	if !hasPhrase(p.EndPhrase) {
		if segmentEnd, ok := segmentBoundaryTime(all, p.EndSegmentSeq, directionEnd); ok {
			constrained := constrainEnd(segmentEnd, adEnd)
			reason = p.EndReason
			if reason == "" {
				reason = "refined"
			}
			return constrained, constrained != adEnd, reason, ""
		}
		reason = p.EndReason
		if reason == "" {
			reason = "unchanged"
		}
		return adEnd, false, reason, ""
	}

	estimated, ok := estimatePhraseTime(all, context, p.EndSegmentSeq, *p.EndPhrase, directionEnd)
	if !ok {
		return adEnd, false, p.EndReason, "end_phrase_not_found"
	}
	return constrainEnd(estimated, adEnd), true, p.EndReason, ""
}

// hasPhrase gates the phrase strategy: the phrase must still carry at least
// one token after normalization, so pure-punctuation strings don't trigger a
// doomed search.
func hasPhrase(phrase *string) bool {
	return phrase != nil && len(SplitWords(*phrase)) > 0
}

func hasText(value *string) bool {
	return value != nil && strings.TrimSpace(*value) != ""
}

func defaultReason(reason string, changed bool) string {
	if reason != "" {
		return reason
	}
	if changed {
		return "refined"
	}
	return "unchanged"
}

// estimatePhraseTime locates the phrase and interpolates its timestamp.
// Search order: the preferred segment (when resolvable), then the context
// window sorted by sequence number, reversed for the end direction. Segments
// with zero duration or zero tokens are skipped. The estimate always lies
// within the matched segment's own time range.
func estimatePhraseTime(all, context []types.TranscriptSegment, preferredSeq types.NullableSeq, phrase string, dir direction) (float64, bool) {
	phraseTokens := lowerTokens(SplitWords(phrase))
	if len(phraseTokens) == 0 {
		return 0, false
	}

	var candidates []types.TranscriptSegment
	if preferredSeg, found := findSegment(all, preferredSeq); found {
		candidates = append(candidates, preferredSeg)
	}

	ordered := append([]types.TranscriptSegment(nil), context...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SequenceNum < ordered[j].SequenceNum
	})
	if dir == directionEnd {
		for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		}
	}

	// The preferred segment was already tried; skip its sequence number even
	// when it wasn't resolvable from the full list.
	preferredVal, preferredKnown := preferredSeq.Int()
	for _, seg := range ordered {
		if preferredKnown && seg.SequenceNum == preferredVal {
			continue
		}
		candidates = append(candidates, seg)
	}

	for _, seg := range candidates {
		duration := seg.Duration()
		words := lowerTokens(SplitWords(seg.Text))
		if len(words) == 0 || duration <= 0 {
			continue
		}

		matchStart, matchEnd, ok := findPhraseMatch(words, phraseTokens, dir)
		if !ok {
			continue
		}

		secondsPerWord := duration / float64(len(words))
		if dir == directionStart {
			estimated := seg.StartTime + float64(matchStart)*secondsPerWord
			return math.Min(estimated, seg.EndTime), true
		}
		// End boundary sits at the end of the last matched word.
		estimated := seg.StartTime + float64(matchEnd+1)*secondsPerWord
		return math.Min(estimated, seg.EndTime), true
	}

	return 0, false
}

// findPhraseMatch tries progressively shorter token runs taken from the
// phrase's leading edge (start) or trailing edge (end). Start picks the
// leftmost occurrence, end the rightmost.
func findPhraseMatch(words, phraseTokens []string, dir direction) (int, int, bool) {
	if len(words) == 0 || len(phraseTokens) == 0 {
		return 0, 0, false
	}

	if dir == directionStart {
		base := phraseTokens
		if len(base) > maxPhraseMatchWords {
			base = base[:maxPhraseMatchWords]
		}
		for k := len(base); k >= 1; k-- {
			if s, e, ok := findSubsequence(words, base[:k], false); ok {
				return s, e, true
			}
		}
		return 0, 0, false
	}

	base := phraseTokens
	if len(base) > maxPhraseMatchWords {
		base = base[len(base)-maxPhraseMatchWords:]
	}
	for k := len(base); k >= 1; k-- {
		if s, e, ok := findSubsequence(words, base[len(base)-k:], true); ok {
			return s, e, true
		}
	}
	return 0, 0, false
}

// findSubsequence locates target as an exact contiguous run inside words.
func findSubsequence(words, target []string, chooseLast bool) (int, int, bool) {
	k := len(target)
	if k == 0 || k > len(words) {
		return 0, 0, false
	}

	if chooseLast {
		for i := len(words) - k; i >= 0; i-- {
			if matchesAt(words, target, i) {
				return i, i + k - 1, true
			}
		}
		return 0, 0, false
	}

	for i := 0; i+k <= len(words); i++ {
		if matchesAt(words, target, i) {
			return i, i + k - 1, true
		}
	}
	return 0, 0, false
}

func matchesAt(words, target []string, at int) bool {
	for j, t := range target {
		if words[at+j] != t {
			return false
		}
	}
	return true
}

// estimateWordTime interpolates a timestamp for a single word inside the
// resolved segment, assuming constant time per word. Unresolvable segments
// fall back to the first segment's start time, or 0 with no segments at all.
func estimateWordTime(all []types.TranscriptSegment, seq types.NullableSeq, word *string, occurrence string, wordIndex *int) float64 {
	seg, found := findSegment(all, seq)
	if !found {
		if len(all) > 0 {
			return all[0].StartTime
		}
		return 0
	}

	duration := seg.Duration()
	words := SplitWords(seg.Text)
	if len(words) == 0 || duration <= 0 {
		return seg.StartTime
	}

	idx := resolveWordIndex(words, word, occurrence, wordIndex)
	secondsPerWord := duration / float64(len(words))
	estimated := seg.StartTime + float64(idx)*secondsPerWord
	// Never land past the segment end.
	return math.Min(estimated, seg.EndTime)
}

// resolveWordIndex prefers an exact (case-insensitive) match of the literal
// word, picking the first or last occurrence per the hint. Otherwise the
// explicit index is clamped into range; otherwise index 0.
func resolveWordIndex(words []string, word *string, occurrence string, wordIndex *int) int {
	if word != nil {
		target := strings.ToLower(normalizeToken(strings.TrimSpace(*word)))
		if target != "" {
			first, last := -1, -1
			for i, w := range words {
				if strings.ToLower(w) == target {
					if first < 0 {
						first = i
					}
					last = i
				}
			}
			if first >= 0 {
				if occurrence == "last" {
					return last
				}
				return first
			}
		}
	}

	idx := 0
	if wordIndex != nil {
		idx = *wordIndex
	}
	if idx < 0 {
		idx = 0
	}
	if idx > len(words)-1 {
		idx = len(words) - 1
	}
	return idx
}

// segmentBoundaryTime returns the resolved segment's own start or end time.
func segmentBoundaryTime(all []types.TranscriptSegment, seq types.NullableSeq, boundary direction) (float64, bool) {
	seg, found := findSegment(all, seq)
	if !found {
		return 0, false
	}
	if boundary == directionEnd {
		return seg.EndTime, true
	}
	return seg.StartTime, true
}

func findSegment(segments []types.TranscriptSegment, seq types.NullableSeq) (types.TranscriptSegment, bool) {
	want, ok := seq.Int()
	if !ok {
		return types.TranscriptSegment{}, false
	}
	for _, seg := range segments {
		if seg.SequenceNum == want {
			return seg, true
		}
	}
	return types.TranscriptSegment{}, false
}
