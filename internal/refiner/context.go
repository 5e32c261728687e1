package refiner

import (
	"ad-refiner-go/internal/types"
)

// contextPadding is how many segments the context window extends beyond the
// ad's own segment range on each side.
const contextPadding = 2

// SelectContext picks the transcript slice handed to the model as grounding
// text. The sequence-number window is preferred; when it yields nothing
// (sequence range unknown, segment list empty) the time-overlap fallback is
// used. An empty result is valid and never an error.
func SelectContext(window types.AdWindow, segments []types.TranscriptSegment, firstSeq, lastSeq *int) []types.TranscriptSegment {
	if selected := contextBySeqWindow(segments, firstSeq, lastSeq); len(selected) > 0 {
		return selected
	}
	return contextByTimeOverlap(window, segments)
}

// contextBySeqWindow returns every segment whose sequence number lies in
// [firstSeq-2, lastSeq+2], clamped to the range actually present.
func contextBySeqWindow(segments []types.TranscriptSegment, firstSeq, lastSeq *int) []types.TranscriptSegment {
	if firstSeq == nil || lastSeq == nil || len(segments) == 0 {
		return nil
	}

	minSeq, maxSeq := segments[0].SequenceNum, segments[0].SequenceNum
	for _, seg := range segments[1:] {
		if seg.SequenceNum < minSeq {
			minSeq = seg.SequenceNum
		}
		if seg.SequenceNum > maxSeq {
			maxSeq = seg.SequenceNum
		}
	}

	startSeq := max(minSeq, *firstSeq-contextPadding)
	endSeq := min(maxSeq, *lastSeq+contextPadding)

	var selected []types.TranscriptSegment
	for _, seg := range segments {
		if seg.SequenceNum >= startSeq && seg.SequenceNum <= endSeq {
			selected = append(selected, seg)
		}
	}
	return selected
}

// contextByTimeOverlap returns the contiguous slice from 2 segments before
// the first segment overlapping the ad window through 2 after the last,
// clamped to the list bounds.
func contextByTimeOverlap(window types.AdWindow, segments []types.TranscriptSegment) []types.TranscriptSegment {
	firstIdx, lastIdx := -1, -1
	for i, seg := range segments {
		if seg.StartTime <= window.End && seg.EndTime >= window.Start {
			if firstIdx < 0 {
				firstIdx = i
			}
			lastIdx = i
		}
	}
	if firstIdx < 0 {
		return nil
	}

	startIdx := max(0, firstIdx-contextPadding)
	endIdx := min(len(segments), lastIdx+contextPadding+1)
	return segments[startIdx:endIdx]
}
