package handlers

import (
	"net/http"

	"studycompanion-backend/internal/models"
	"studycompanion-backend/internal/services"
)

type ProfileHandler struct {
	learners *services.Learners
}

func NewProfileHandler(learners *services.Learners) *ProfileHandler {
	return &ProfileHandler{learners: learners}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	learner, ok := learnerFor(w, r, h.learners)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, learner.Sessions.Profile())
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.LearningProfile
	if !decodeJSON(w, r, &req) {
		return
	}

	learner, ok := learnerFor(w, r, h.learners)
	if !ok {
		return
	}

	profile, err := learner.Sessions.SetProfile(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
