// Package httpapi implements the HTTP surface spec.md §6 describes: JSON
// endpoints for submitting scans, polling status, and reading results, all
// behind Basic authentication.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/greg-hellings/devdashboard/pkg/auth"
	"github.com/greg-hellings/devdashboard/pkg/controller"
	"github.com/greg-hellings/devdashboard/pkg/metrics"
	"github.com/greg-hellings/devdashboard/pkg/registry"
	"github.com/greg-hellings/devdashboard/pkg/scanner"
)

// Server wires the Controller and auth Verifier into an http.Handler tree.
type Server struct {
	controller *controller.Controller
	verifier   auth.Verifier
	metrics    *metrics.Metrics
	version    string
	startedAt  time.Time
}

// New builds the routed handler for the scan service. metrics may be nil,
// in which case /metrics reports 404 rather than panicking.
func New(ctrl *controller.Controller, verifier auth.Verifier, m *metrics.Metrics, version string, startedAt time.Time) http.Handler {
	s := &Server{controller: ctrl, verifier: verifier, metrics: m, version: version, startedAt: startedAt}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /scan", s.handleSubmit)
	mux.HandleFunc("GET /scan/{job_id}", s.handleStatus)
	mux.HandleFunc("GET /jobs/{job_id}/results", s.handleResults)
	mux.HandleFunc("GET /jobs/{job_id}/partial", s.handlePartial)
	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.Handle("GET /metrics", s.metrics.Handler())

	return auth.Middleware(verifier, "devdashboard")(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   s.version,
		"user":      auth.UsernameFromContext(r.Context()),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    humanize.Time(s.startedAt),
	})
}

type submitRequest struct {
	GitURL string `json:"git_url"`
}

type submitResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if req.GitURL == "" {
		writeError(w, http.StatusBadRequest, "git_url is required")
		return
	}

	jobID, err := s.controller.Submit(req.GitURL)
	switch {
	case err == nil:
		job, _ := s.controller.Get(jobID)
		writeJSON(w, http.StatusOK, submitResponse{JobID: jobID, Status: "pending", CreatedAt: job.CreatedAt})
	case errors.Is(err, controller.ErrTooManyJobs):
		writeError(w, http.StatusTooManyRequests, "too many concurrent jobs")
	case errors.Is(err, scanner.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("submit failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	agg, err := s.controller.Status(jobID)
	if err != nil {
		slog.Error("status lookup failed", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if agg.Status == "not_found" {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func (s *Server) handlePartial(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	agg, err := s.controller.Status(jobID)
	if err != nil {
		slog.Error("partial lookup failed", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if agg.Status == "not_found" {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if isTerminalAggregateStatus(agg.Status) {
		writeError(w, http.StatusBadRequest, "job has already reached a terminal status; use /jobs/{job_id}/results")
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func isTerminalAggregateStatus(status string) bool {
	switch status {
	case "completed", "completed_with_errors", "all_failed", "failed", "timeout", "cancelled":
		return true
	default:
		return false
	}
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	result, err := s.controller.Result(jobID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, controller.ErrNotReady):
		writeError(w, http.StatusBadRequest, "job has not reached a terminal status yet")
	default:
		writeError(w, http.StatusNotFound, err.Error())
	}
}

type jobListResponse struct {
	Jobs    []jobSummary `json:"jobs"`
	Page    int          `json:"page"`
	PerPage int          `json:"per_page"`
}

type jobSummary struct {
	JobID       string  `json:"job_id"`
	URL         string  `json:"url"`
	Status      string  `json:"status"`
	Percentage  float64 `json:"percentage"`
	CreatedAt   string  `json:"created_at"`
	CompletedAt string  `json:"completed_at,omitempty"`
	Error       string  `json:"error,omitempty"`
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := atoiOr(q.Get("page"), 1)
	perPage := atoiOr(q.Get("per_page"), 20)
	status := registry.State(q.Get("status"))

	jobs := s.controller.ListJobs(page, perPage, status)
	summaries := make([]jobSummary, 0, len(jobs))
	for _, j := range jobs {
		summaries = append(summaries, jobSummary{
			JobID:       j.ID,
			URL:         j.URL,
			Status:      string(j.State),
			Percentage:  j.Percentage,
			CreatedAt:   j.CreatedAt,
			CompletedAt: j.CompletedAt,
			Error:       j.ErrorMessage,
		})
	}

	writeJSON(w, http.StatusOK, jobListResponse{Jobs: summaries, Page: page, PerPage: perPage})
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("write json response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
