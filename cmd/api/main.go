package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ad-refiner-go/internal/audit"
	"ad-refiner-go/internal/llm"
	"ad-refiner-go/internal/logger"
	"ad-refiner-go/internal/metrics"
	"ad-refiner-go/internal/modelcall"
	"ad-refiner-go/internal/refiner"
	"ad-refiner-go/internal/types"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "ad-refiner-go").Info("starting service")

	client, err := llm.FromEnv(log)
	if err != nil {
		log.WithError(err).Fatal("llm client not configured (set USE_MOCK_LLM=true for a local run)")
	}
	log.WithField("model", client.Model()).Info("llm client ready")

	store := modelcall.NewMemoryStore()
	tracker := modelcall.NewTracker(store, log)
	ref := refiner.New(client, tracker, metrics.Default, log)

	mux := buildMux(ref, store, log)

	addr := fmt.Sprintf(":%s", envOr("PORT", "8080"))
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.WithField("addr", addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server terminated")
	}
}

// refineRequest is the POST /refine body. Segments arrive inline; post and
// segment-range ids are optional and only gate audit tracking.
type refineRequest struct {
	PostID          *int64                    `json:"post_id"`
	FirstSegmentSeq *int                      `json:"first_segment_seq"`
	LastSegmentSeq  *int                      `json:"last_segment_seq"`
	AdStart         float64                   `json:"ad_start"`
	AdEnd           float64                   `json:"ad_end"`
	Confidence      float64                   `json:"confidence"`
	Segments        []types.TranscriptSegment `json:"segments"`
}

func buildMux(ref *refiner.Refiner, store modelcall.Store, log *logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	// health
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		log.WithRequest(r).Info("health check")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok"}`)
	})

	// refinement endpoint
	mux.HandleFunc("/refine", func(w http.ResponseWriter, r *http.Request) {
		reqLog := log.WithRequest(r).WithField("handler", "refine")
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var body refineRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			reqLog.WithError(err).Warn("invalid request body")
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if body.AdEnd <= body.AdStart {
			reqLog.Warn("invalid ad window")
			http.Error(w, "ad_end must be greater than ad_start", http.StatusBadRequest)
			return
		}
		reqLog = reqLog.WithField("ad_start", body.AdStart).WithField("ad_end", body.AdEnd)
		reqLog.Info("refine request received")

		start := time.Now()
		res := ref.Refine(r.Context(), refiner.Request{
			Window:   types.AdWindow{Start: body.AdStart, End: body.AdEnd, Confidence: body.Confidence},
			Segments: body.Segments,
			PostID:   body.PostID,
			FirstSeq: body.FirstSegmentSeq,
			LastSeq:  body.LastSegmentSeq,
		})
		reqLog.WithField("duration_ms", time.Since(start).Milliseconds()).Info("refinement finished")

		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			reqLog.WithError(err).Error("failed to write response")
		}
	})

	// paginated audit log of model calls, newest first
	mux.HandleFunc("/calls", func(w http.ResponseWriter, r *http.Request) {
		reqLog := log.WithRequest(r).WithField("handler", "calls")

		page := intParam(r, "page", 1)
		if page < 1 {
			page = 1
		}
		perPage := intParam(r, "per_page", 50)
		if perPage < 1 {
			perPage = 1
		}
		if perPage > 200 {
			perPage = 200
		}

		records := store.List()
		total := len(records)
		startIdx := (page - 1) * perPage
		if startIdx > total {
			startIdx = total
		}
		endIdx := startIdx + perPage
		if endIdx > total {
			endIdx = total
		}

		summaries := make([]modelcall.Summary, 0, endIdx-startIdx)
		for _, rec := range records[startIdx:endIdx] {
			summaries = append(summaries, rec.Summary())
		}

		pages := (total + perPage - 1) / perPage
		if pages < 1 {
			pages = 1
		}
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{
			"calls":    summaries,
			"total":    total,
			"page":     page,
			"per_page": perPage,
			"pages":    pages,
			"summary":  audit.Summarize(records),
		}); err != nil {
			reqLog.WithError(err).Error("failed to write response")
		}
	})

	// XLSX export of the same records
	mux.HandleFunc("/calls/export", func(w http.ResponseWriter, r *http.Request) {
		reqLog := log.WithRequest(r).WithField("handler", "calls-export")
		records := store.List()
		reqLog.WithField("records", len(records)).Info("exporting model calls")

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="model_calls.xlsx"`)
		if err := audit.WriteWorkbook(w, records); err != nil {
			reqLog.WithError(err).Error("export failed")
		}
	})

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func intParam(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
