package modelcall

import "time"

// Status is the lifecycle state of one model invocation. Transitions run
// created -> received_response -> exactly one terminal status.
type Status string

const (
	StatusCreated          Status = "created"
	StatusReceivedResponse Status = "received_response"
	StatusSuccess          Status = "success"
	StatusSuccessHeuristic Status = "success_heuristic"
	StatusFailedPermanent  Status = "failed_permanent"
)

// Record is the audit entry for one model invocation, keyed by
// (post, segment range, model). Records are never deleted.
type Record struct {
	ID               string    `json:"id"`
	PostID           int64     `json:"post_id"`
	FirstSegmentSeq  int       `json:"first_segment_seq"`
	LastSegmentSeq   int       `json:"last_segment_seq"`
	ModelName        string    `json:"model_name"`
	Status           Status    `json:"status"`
	Prompt           string    `json:"prompt,omitempty"`
	Response         string    `json:"response,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	RetryAttempts    int       `json:"retry_attempts"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Summary is the listing shape for the audit surface: everything except the
// full prompt/response bodies.
type Summary struct {
	ID              string    `json:"id"`
	PostID          int64     `json:"post_id"`
	FirstSegmentSeq int       `json:"first_segment_seq"`
	LastSegmentSeq  int       `json:"last_segment_seq"`
	ModelName       string    `json:"model_name"`
	Status          Status    `json:"status"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	RetryAttempts   int       `json:"retry_attempts"`
	TotalTokens     int       `json:"total_tokens"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Summary projects the record into its listing shape.
func (r Record) Summary() Summary {
	return Summary{
		ID:              r.ID,
		PostID:          r.PostID,
		FirstSegmentSeq: r.FirstSegmentSeq,
		LastSegmentSeq:  r.LastSegmentSeq,
		ModelName:       r.ModelName,
		Status:          r.Status,
		ErrorMessage:    r.ErrorMessage,
		RetryAttempts:   r.RetryAttempts,
		TotalTokens:     r.TotalTokens,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}
