// Package refiner narrows a coarse, LLM-detected ad window to word-level
// boundaries using a second model call plus deterministic text matching.
// Refinement is best-effort throughout: any failure along the way falls back
// to the original window instead of surfacing an error.
package refiner

import (
	"context"
	"strings"
	"time"

	"ad-refiner-go/internal/extractor"
	"ad-refiner-go/internal/llm"
	"ad-refiner-go/internal/logger"
	"ad-refiner-go/internal/metrics"
	"ad-refiner-go/internal/modelcall"
	"ad-refiner-go/internal/types"
)

// Request is one refinement job: the coarse window, the transcript it lives
// in, and optional coordinates for the audit record. A nil PostID or an
// incomplete segment range disables tracking but not refinement.
type Request struct {
	Window   types.AdWindow
	Segments []types.TranscriptSegment
	PostID   *int64
	FirstSeq *int
	LastSeq  *int
}

// Result is the refinement plus the audit record id when one was created.
type Result struct {
	types.WordBoundaryRefinement
	CallID string `json:"call_id,omitempty"`
}

// Refiner runs the full pipeline: context selection, prompt rendering, the
// model call, payload extraction, boundary estimation, and the guardrail.
// Safe for concurrent use; each Refine call owns all of its mutable state.
type Refiner struct {
	client  llm.Client
	tracker *modelcall.Tracker
	metrics *metrics.Metrics
	log     *logger.Logger
}

func New(client llm.Client, tracker *modelcall.Tracker, m *metrics.Metrics, log *logger.Logger) *Refiner {
	if m == nil {
		m = metrics.Default
	}
	if log == nil {
		log = logger.New()
	}
	return &Refiner{client: client, tracker: tracker, metrics: m, log: log}
}

// Refine computes word-level boundaries for the ad window. It never returns
// an error: a transport failure, an unusable response, or an invalid refined
// window all resolve to the original window with a fallback reason. Exactly
// one model invocation is attempted; retrying is the caller's concern.
func (r *Refiner) Refine(ctx context.Context, req Request) Result {
	started := time.Now()
	log := r.log.WithComponent("word-boundary-refiner")

	contextSegs := SelectContext(req.Window, req.Segments, req.FirstSeq, req.LastSeq)
	prompt := BuildPrompt(req.Window, contextSegs)
	call := r.tracker.Begin(req.PostID, req.FirstSeq, req.LastSeq, r.client.Model(), prompt)

	invokeStart := time.Now()
	resp, err := r.client.Invoke(ctx, prompt)
	r.metrics.RecordModelCall(time.Since(invokeStart).Seconds())
	if err != nil {
		log.WithError(err).Warn("word boundary refine failed")
		call.Transition(modelcall.Update{
			Status:       modelcall.StatusFailedPermanent,
			ErrorMessage: err.Error(),
		})
		return r.finish(started, modelcall.StatusFailedPermanent, fallback(req.Window), call)
	}

	log.WithField("finish_reason", resp.FinishReason).
		WithField("total_tokens", resp.Usage.TotalTokens).
		WithField("content_preview", preview(resp.Content)).
		Debug("model response received")

	call.Transition(modelcall.Update{
		Status:           modelcall.StatusReceivedResponse,
		Response:         resp.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	})

	payload, ok := extractor.ParsePayload(resp.Content)
	if !ok {
		kind := parseFailureKind(resp.FinishReason)
		r.metrics.RecordParseFailure(kind)
		log.WithField("finish_reason", resp.FinishReason).
			WithField("content_preview", preview(resp.Content)).
			Warn("no parseable JSON in model response; falling back to original window")
		call.Transition(modelcall.Update{
			Status:       modelcall.StatusSuccessHeuristic,
			Response:     resp.Content,
			ErrorMessage: "parse_failed:" + kind,
		})
		return r.finish(started, modelcall.StatusSuccessHeuristic, fallback(req.Window), call)
	}

	refinedStart, startChanged, startReason, startErr := refineStart(req.Window.Start, req.Segments, contextSegs, payload)
	refinedEnd, endChanged, endReason, endErr := refineEnd(req.Window.End, req.Segments, contextSegs, payload)

	var partials []string
	for _, e := range []string{startErr, endErr} {
		if e != "" {
			partials = append(partials, e)
		}
	}

	startReason = defaultReason(startReason, startChanged)
	endReason = defaultReason(endReason, endChanged)

	// Guardrail: never return an invalid window.
	if refinedEnd <= refinedStart {
		log.WithField("refined_start", refinedStart).
			WithField("refined_end", refinedEnd).
			Warn("refined window invalid; falling back to original window")
		call.Transition(modelcall.Update{
			Status:       modelcall.StatusSuccessHeuristic,
			Response:     resp.Content,
			ErrorMessage: "invalid_refined_window",
		})
		return r.finish(started, modelcall.StatusSuccessHeuristic, fallback(req.Window), call)
	}

	status := resultStatus(startChanged, endChanged, partials)
	call.Transition(modelcall.Update{
		Status:       status,
		Response:     resp.Content,
		ErrorMessage: strings.Join(partials, ","),
	})

	return r.finish(started, status, types.WordBoundaryRefinement{
		RefinedStart:          refinedStart,
		RefinedEnd:            refinedEnd,
		StartAdjustmentReason: startReason,
		EndAdjustmentReason:   endReason,
	}, call)
}

func (r *Refiner) finish(started time.Time, status modelcall.Status, ref types.WordBoundaryRefinement, call *modelcall.Call) Result {
	r.metrics.RecordRefinement(string(status), time.Since(started).Seconds())
	return Result{WordBoundaryRefinement: ref, CallID: call.ID()}
}

// fallback returns the original window verbatim.
func fallback(w types.AdWindow) types.WordBoundaryRefinement {
	return types.WordBoundaryRefinement{
		RefinedStart:          w.Start,
		RefinedEnd:            w.End,
		StartAdjustmentReason: "heuristic_fallback",
		EndAdjustmentReason:   "unchanged",
	}
}

// parseFailureKind distinguishes a truncated reply from a complete but
// unusable one.
func parseFailureKind(finishReason string) string {
	if strings.EqualFold(strings.TrimSpace(finishReason), "length") {
		return "length"
	}
	return "format"
}

// resultStatus marks the refinement heuristic when a named phrase was missing
// and neither boundary moved; a partial error with movement still counts as
// success.
func resultStatus(startChanged, endChanged bool, partialErrors []string) modelcall.Status {
	if len(partialErrors) > 0 && !startChanged && !endChanged {
		return modelcall.StatusSuccessHeuristic
	}
	return modelcall.StatusSuccess
}

func preview(content string) string {
	if len(content) > 200 {
		return content[:200]
	}
	return content
}
