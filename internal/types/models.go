package types

// TranscriptSegment is one timestamped unit of transcribed speech. Segments
// are produced upstream; this service only ever reads them.
type TranscriptSegment struct {
	SequenceNum int     `json:"sequence_num"`
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
	Text        string  `json:"text"`
}

// Duration returns the segment length in seconds, never negative.
func (s TranscriptSegment) Duration() float64 {
	d := s.EndTime - s.StartTime
	if d < 0 {
		return 0
	}
	return d
}

// AdWindow is the coarse [start, end] interval believed to contain an
// advertisement. Confidence is informational only.
type AdWindow struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// WordBoundaryRefinement is the refined window returned to callers. The
// reasons are always non-empty; RefinedEnd > RefinedStart always holds.
type WordBoundaryRefinement struct {
	RefinedStart          float64 `json:"refined_start"`
	RefinedEnd            float64 `json:"refined_end"`
	StartAdjustmentReason string  `json:"start_adjustment_reason"`
	EndAdjustmentReason   string  `json:"end_adjustment_reason"`
}
