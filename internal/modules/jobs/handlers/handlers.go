// Package handlers provides HTTP handlers for optimization jobs.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/modules/allocation"
	"github.com/aristath/allocator/internal/modules/jobs"
)

// Submitter starts jobs in the background.
type Submitter interface {
	Submit(ctx context.Context, req jobs.Request) (*jobs.Job, error)
}

// JobReader reads stored jobs and reports.
type JobReader interface {
	Get(ctx context.Context, id string) (*jobs.Job, error)
	List(ctx context.Context, limit int) ([]jobs.Job, error)
	GetResult(ctx context.Context, id string) (*allocation.Report, error)
}

// Handler handles job HTTP requests
type Handler struct {
	submitter Submitter
	reader    JobReader
	log       zerolog.Logger
}

// NewHandler creates a new job handler
func NewHandler(submitter Submitter, reader JobReader, log zerolog.Logger) *Handler {
	return &Handler{
		submitter: submitter,
		reader:    reader,
		log:       log.With().Str("handler", "jobs").Logger(),
	}
}

// HandleCreateJob accepts a job request and returns its ID
func (h *Handler) HandleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req jobs.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := h.submitter.Submit(r.Context(), req)
	switch {
	case errors.Is(err, jobs.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, jobs.ErrRunnerBusy):
		h.writeError(w, http.StatusTooManyRequests, err.Error())
		return
	case err != nil:
		h.log.Error().Err(err).Msg("Failed to submit job")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.ID,
		"status": job.Status,
	})
}

// HandleListJobs returns recent jobs, newest first. ?limit=N bounds the list.
func (h *Handler) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	list, err := h.reader.List(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

// HandleGetJob returns one job with its status
func (h *Handler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.reader.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

// HandleGetResult returns the report of a finished job
func (h *Handler) HandleGetResult(w http.ResponseWriter, r *http.Request) {
	report, err := h.reader.GetResult(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, jobs.ErrResultNotReady):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.log.Error().Err(err).Msg("Failed to read job")
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
