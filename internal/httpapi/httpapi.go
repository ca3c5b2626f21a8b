// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package httpapi is melon-master's optional read-only HTTP/JSON API (§6):
// GET /api/health and GET /api/jobs, a thin gorilla/mux router in front of
// the Scheduler.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jontk/melon/internal/job"
	"github.com/jontk/melon/pkg/logging"
)

// JobLister is the subset of *master.Scheduler the HTTP API reads from.
// Defined here rather than imported to keep internal/httpapi from depending
// on internal/master's placement/liveness machinery.
type JobLister interface {
	ListJobs(ctx context.Context) ([]job.Job, error)
}

// NewRouter builds the read-only API router.
func NewRouter(lister JobLister, logger logging.Logger) *mux.Router {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	r := mux.NewRouter()
	h := &handler{lister: lister, logger: logger}

	r.HandleFunc("/api/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/api/jobs", h.jobs).Methods(http.MethodGet)

	return r
}

type handler struct {
	lister JobLister
	logger logging.Logger
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) jobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.lister.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("list jobs failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list jobs"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
