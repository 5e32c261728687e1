package types

// --------------------------------------------
// Model payload (extracted from the LLM reply)
// --------------------------------------------

// NullableSeq is a tri-state segment sequence number: absent, explicit null,
// or an integer. The model answering null means "I looked and found no
// match", which is not the same as the field missing entirely.
type NullableSeq struct {
	Present bool
	Value   *int
}

// SeqOf returns a present sequence number.
func SeqOf(v int) NullableSeq {
	return NullableSeq{Present: true, Value: &v}
}

// NullSeq returns an explicit-null sequence number.
func NullSeq() NullableSeq {
	return NullableSeq{Present: true}
}

// Int returns the value and whether a concrete integer is available.
func (n NullableSeq) Int() (int, bool) {
	if n.Present && n.Value != nil {
		return *n.Value, true
	}
	return 0, false
}

// IsNull reports whether the field was present as an explicit null.
func (n NullableSeq) IsNull() bool {
	return n.Present && n.Value == nil
}

// RefinementPayload is the best-effort structured content recovered from the
// model response. Every field is optional; absence is a normal state.
type RefinementPayload struct {
	StartSegmentSeq NullableSeq
	EndSegmentSeq   NullableSeq
	StartPhrase     *string
	EndPhrase       *string
	StartWord       *string
	StartOccurrence string // "first" or "last"; defaults to "first"
	StartWordIndex  *int
	StartReason     string
	EndReason       string
}
