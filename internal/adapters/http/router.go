package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/news-curator/internal/core/domain"
	"github.com/kirillkom/news-curator/internal/core/ports"
)

type Router struct {
	pipeline  ports.PipelineRunner
	analytics ports.RunAnalytics
	janitor   ports.TraceJanitor
	runs      ports.RunRepository

	defaultRetention time.Duration
}

func NewRouter(
	pipeline ports.PipelineRunner,
	analytics ports.RunAnalytics,
	janitor ports.TraceJanitor,
	runs ports.RunRepository,
	defaultRetention time.Duration,
) *Router {
	return &Router{
		pipeline:         pipeline,
		analytics:        analytics,
		janitor:          janitor,
		runs:             runs,
		defaultRetention: defaultRetention,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/runs", rt.createRun)
	mux.HandleFunc("/v1/runs/", rt.runSubresource)
	mux.HandleFunc("/v1/maintenance/cleanup", rt.cleanup)
	return requestIDMiddleware(accessLogMiddleware(mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) createRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Articles []domain.Article `json:"articles"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	result, err := rt.pipeline.RunBatch(r.Context(), req.Articles)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// runSubresource dispatches /v1/runs/{id}, /v1/runs/{id}/funnel,
// /v1/runs/{id}/journey and /v1/runs/{id}/rejections.
func (rt *Router) runSubresource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	runID, subresource, _ := strings.Cut(rest, "/")
	if runID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "run id is required"})
		return
	}

	switch subresource {
	case "":
		rt.getRun(w, r, runID)
	case "funnel":
		rt.getFunnel(w, r, runID)
	case "journey":
		rt.getJourney(w, r, runID)
	case "rejections":
		rt.getRejections(w, r, runID)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown resource"})
	}
}

func (rt *Router) getRun(w http.ResponseWriter, r *http.Request, runID string) {
	run, err := rt.runs.GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (rt *Router) getFunnel(w http.ResponseWriter, r *http.Request, runID string) {
	funnel, err := rt.analytics.Funnel(r.Context(), runID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, funnel)
}

func (rt *Router) getJourney(w http.ResponseWriter, r *http.Request, runID string) {
	articleURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if articleURL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query parameter 'url' is required"})
		return
	}

	journey, err := rt.analytics.ArticleJourney(r.Context(), runID, articleURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, journey)
}

func (rt *Router) getRejections(w http.ResponseWriter, r *http.Request, runID string) {
	stage := strings.TrimSpace(r.URL.Query().Get("stage"))
	if stage == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query parameter 'stage' is required"})
		return
	}

	report, err := rt.analytics.RejectionPatterns(r.Context(), runID, stage)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) cleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		RetentionDays int  `json:"retention_days"`
		DryRun        bool `json:"dry_run"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
	}

	retention := rt.defaultRetention
	if req.RetentionDays > 0 {
		retention = time.Duration(req.RetentionDays) * 24 * time.Hour
	}

	stats, err := rt.janitor.Sweep(r.Context(), retention, req.DryRun)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
