package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"studycompanion-backend/internal/models"
	"studycompanion-backend/internal/services"
)

type StudySessionHandler struct {
	learners *services.Learners
}

func NewStudySessionHandler(learners *services.Learners) *StudySessionHandler {
	return &StudySessionHandler{learners: learners}
}

func (h *StudySessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic string `json:"topic"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	learner, ok := learnerFor(w, r, h.learners)
	if !ok {
		return
	}

	session, err := learner.Sessions.StartSession(r.Context(), req.Topic)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *StudySessionHandler) History(w http.ResponseWriter, r *http.Request) {
	learner, ok := learnerFor(w, r, h.learners)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": learner.Sessions.History(),
	})
}

func (h *StudySessionHandler) Active(w http.ResponseWriter, r *http.Request) {
	learner, ok := learnerFor(w, r, h.learners)
	if !ok {
		return
	}
	active := learner.Sessions.Active()
	if active == nil {
		writeJSON(w, http.StatusNotFound, errorResp(services.ErrNoActiveSession.Code, services.ErrNoActiveSession.Message, r))
		return
	}
	writeJSON(w, http.StatusOK, active)
}

func (h *StudySessionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	learner, ok := learnerFor(w, r, h.learners)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":  learner.Sessions.Stats(),
		"streak": learner.Sessions.Streak(),
	})
}

func (h *StudySessionHandler) LogActivity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type    string                 `json:"type"`
		Details map[string]interface{} `json:"details"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Type) == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"type": "required"}, r))
		return
	}

	learner, ok := learnerFor(w, r, h.learners)
	if !ok {
		return
	}

	activity, err := learner.Sessions.LogActivityForSession(r.Context(), chi.URLParam(r, "id"),
		models.ActivityType(strings.ToLower(strings.TrimSpace(req.Type))), req.Details)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, activity)
}

func (h *StudySessionHandler) LogEmotion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label      string    `json:"label"`
		Confidence float64   `json:"confidence"`
		CapturedAt time.Time `json:"captured_at"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	learner, ok := learnerFor(w, r, h.learners)
	if !ok {
		return
	}

	sample := models.EmotionSample{
		Label:      models.Emotion(strings.ToLower(strings.TrimSpace(req.Label))),
		Confidence: req.Confidence,
		CapturedAt: req.CapturedAt,
	}
	if err := learner.Sessions.LogEmotionForSession(r.Context(), chi.URLParam(r, "id"), sample); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StudySessionHandler) End(w http.ResponseWriter, r *http.Request) {
	learner, ok := learnerFor(w, r, h.learners)
	if !ok {
		return
	}

	session, err := learner.Sessions.EndSessionByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": session,
		"streak":  learner.Sessions.Streak(),
	})
}

func (h *StudySessionHandler) Content(w http.ResponseWriter, r *http.Request) {
	topic := strings.TrimSpace(r.URL.Query().Get("topic"))
	if topic == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"topic": "required"}, r))
		return
	}

	learner, ok := learnerFor(w, r, h.learners)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, learner.Sessions.GetAdaptiveContent(topic))
}
