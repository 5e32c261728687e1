package modelcall

import (
	"ad-refiner-go/internal/logger"
)

// Tracker records the lifecycle of model invocations against a Store. It is
// purely observational: every method is best-effort and swallows its own
// failures, so the refinement path can never branch on tracking success.
type Tracker struct {
	store Store
	log   *logger.Logger
}

func NewTracker(store Store, log *logger.Logger) *Tracker {
	if log == nil {
		log = logger.New()
	}
	return &Tracker{store: store, log: log}
}

// Begin creates the call record once the prompt is rendered. Without a post
// id or a complete segment range there is nothing to key the record on, so
// creation is skipped and the returned handle ignores every update. Begin
// never fails; a store error yields the same no-op handle.
func (t *Tracker) Begin(postID *int64, firstSeq, lastSeq *int, modelName, prompt string) *Call {
	if t == nil || t.store == nil {
		return nil
	}
	if postID == nil || firstSeq == nil || lastSeq == nil {
		return nil
	}

	id, err := t.store.Create(Record{
		PostID:          *postID,
		FirstSegmentSeq: *firstSeq,
		LastSegmentSeq:  *lastSeq,
		ModelName:       modelName,
		Status:          StatusCreated,
		Prompt:          Redact(prompt),
	})
	if err != nil {
		t.log.WithError(err).Warn("failed to create model call record")
		return nil
	}
	return &Call{id: id, tracker: t}
}

// Call is the handle for one tracked invocation. A nil Call is valid and
// ignores every update.
type Call struct {
	id      string
	tracker *Tracker
}

// ID returns the record id, or "" for an untracked call.
func (c *Call) ID() string {
	if c == nil {
		return ""
	}
	return c.id
}

// Transition applies a best-effort status update. The response text is
// redacted before storage; store failures are logged and swallowed.
func (c *Call) Transition(u Update) {
	if c == nil || c.id == "" {
		return
	}
	u.Response = Redact(u.Response)
	if err := c.tracker.store.Update(c.id, u); err != nil {
		c.tracker.log.WithError(err).WithField("model_call_id", c.id).Warn("failed to update model call record")
	}
}
