package refiner

import (
	"fmt"
	"strings"

	"ad-refiner-go/internal/types"
)

// BuildPrompt renders the word-boundary refinement prompt from the coarse ad
// window and its surrounding context segments. The model is asked for a
// single JSON object with exactly the six fields the extractor knows.
func BuildPrompt(window types.AdWindow, context []types.TranscriptSegment) string {
	var segs strings.Builder
	for _, seg := range context {
		fmt.Fprintf(&segs, "[seq=%d start=%.2f end=%.2f] %s\n", seg.SequenceNum, seg.StartTime, seg.EndTime, seg.Text)
	}

	const prompt = `You are refining the boundaries of an advertisement inside a podcast transcript.

A coarse detection pass flagged an ad between %.2fs and %.2fs (confidence %.2f).
The transcript segments around that window are listed below with their sequence
numbers and timestamps.

TASK:
1. Find the exact phrase where the ad actually begins (the first advertiser words).
2. Find the exact phrase where the ad actually ends (the last advertiser words
   before normal content resumes).
3. Quote phrases VERBATIM from the segment text. Do not paraphrase.
4. If a boundary already looks correct or you cannot find a better one, use
   null for that side's fields.

SEGMENTS:
%s
Return only one JSON object (no markdown, no code fences, no analysis text):
{"refined_start_segment_seq": null, "refined_start_phrase": null, "refined_end_segment_seq": null, "refined_end_phrase": null, "start_adjustment_reason": "", "end_adjustment_reason": ""}
`

	return fmt.Sprintf(prompt, window.Start, window.End, window.Confidence, segs.String())
}
