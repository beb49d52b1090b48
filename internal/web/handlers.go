package web

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/colegiosrd/internal/core"
	"github.com/JonMunkholm/colegiosrd/internal/logging"
)

const healthPingTimeout = 2 * time.Second

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// handleHealth reports liveness and, when a database is attached, whether it
// answers a ping.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		logging.FromContext(ctx).Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Database: "unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Database: "ok"})
}

// handleRunImport runs one import synchronously and returns its summary.
// A second request while a run is active gets 409.
func (s *Server) handleRunImport(w http.ResponseWriter, r *http.Request) {
	// A dropped client must not abort a run halfway through its writes.
	ctx := runContext(r)

	summary, err := s.service.TryRunImport(ctx)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleLastImport returns the newest row of the import log.
func (s *Server) handleLastImport(w http.ResponseWriter, r *http.Request) {
	entry, err := s.service.LastImport(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleLastRun returns the full summary of the last run in this process,
// including itemised errors and duplicate matches the import log omits.
func (s *Server) handleLastRun(w http.ResponseWriter, r *http.Request) {
	summary := s.service.LastRun()
	if summary == nil {
		respondError(w, r, core.ErrNoImports)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleRatings(w http.ResponseWriter, r *http.Request) {
	s.runJob(w, r, s.service.RecalculateRatings)
}

func (s *Server) handleTopPublic(w http.ResponseWriter, r *http.Request) {
	s.runJob(w, r, s.service.UpdateTopPublic)
}

// runJob runs a maintenance job to completion and returns its summary.
func (s *Server) runJob(w http.ResponseWriter, r *http.Request, job func(context.Context) (*core.JobSummary, error)) {
	ctx := runContext(r)

	summary, err := job(ctx)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
