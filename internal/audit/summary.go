// Package audit renders stored model-call records into listing summaries and
// XLSX workbooks for cost/outcome review.
package audit

import (
	"sort"

	"ad-refiner-go/internal/modelcall"
)

// ModelBreakdown aggregates call outcomes for one model.
type ModelBreakdown struct {
	Model       string `json:"model"`
	Calls       int    `json:"calls"`
	Success     int    `json:"success"`
	Heuristic   int    `json:"success_heuristic"`
	Failed      int    `json:"failed_permanent"`
	TotalTokens int    `json:"total_tokens"`
}

// Summary is the aggregate view over all stored call records.
type Summary struct {
	TotalCalls    int              `json:"total_calls"`
	ByStatus      map[string]int   `json:"by_status"`
	ByModel       []ModelBreakdown `json:"by_model"`
	TotalTokens   int              `json:"total_tokens"`
	HeuristicRate float64          `json:"heuristic_rate"`
}

// Summarize folds the records into per-status and per-model counts. ByModel
// is sorted busiest-first.
func Summarize(records []modelcall.Record) Summary {
	byStatus := map[string]int{}
	perModel := map[string]*ModelBreakdown{}
	totalTokens := 0

	for _, rec := range records {
		byStatus[string(rec.Status)]++
		totalTokens += rec.TotalTokens

		mb, ok := perModel[rec.ModelName]
		if !ok {
			mb = &ModelBreakdown{Model: rec.ModelName}
			perModel[rec.ModelName] = mb
		}
		mb.Calls++
		mb.TotalTokens += rec.TotalTokens
		switch rec.Status {
		case modelcall.StatusSuccess:
			mb.Success++
		case modelcall.StatusSuccessHeuristic:
			mb.Heuristic++
		case modelcall.StatusFailedPermanent:
			mb.Failed++
		}
	}

	byModel := make([]ModelBreakdown, 0, len(perModel))
	for _, mb := range perModel {
		byModel = append(byModel, *mb)
	}
	sort.Slice(byModel, func(i, j int) bool {
		if byModel[i].Calls != byModel[j].Calls {
			return byModel[i].Calls > byModel[j].Calls
		}
		return byModel[i].Model < byModel[j].Model
	})

	heuristicRate := 0.0
	if len(records) > 0 {
		heuristicRate = float64(byStatus[string(modelcall.StatusSuccessHeuristic)]) / float64(len(records))
	}

	return Summary{
		TotalCalls:    len(records),
		ByStatus:      byStatus,
		ByModel:       byModel,
		TotalTokens:   totalTokens,
		HeuristicRate: heuristicRate,
	}
}
