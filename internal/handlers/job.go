package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"studycompanion-backend/internal/middleware"
	"studycompanion-backend/internal/models"
)

type JobReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

type JobHandler struct {
	jobs JobReader
}

func NewJobHandler(jobs JobReader) *JobHandler {
	return &JobHandler{jobs: jobs}
}

func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid job ID", r))
		return
	}

	job, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Job not found", r))
		return
	}

	if job.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return
	}

	writeJSON(w, http.StatusOK, job)
}
