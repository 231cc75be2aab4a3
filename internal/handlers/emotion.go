package handlers

import (
	"net/http"

	"studycompanion-backend/internal/services"
)

type EmotionHandler struct {
	learners *services.Learners
}

func NewEmotionHandler(learners *services.Learners) *EmotionHandler {
	return &EmotionHandler{learners: learners}
}

func (h *EmotionHandler) Current(w http.ResponseWriter, r *http.Request) {
	learner, ok := learnerFor(w, r, h.learners)
	if !ok {
		return
	}

	resp := map[string]interface{}{
		"active":  learner.Emotion.Active(),
		"emotion": learner.Emotion.CurrentEmotion(),
	}
	if err := learner.Emotion.LastError(); err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *EmotionHandler) SetDetection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active *bool `json:"active"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Active == nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"active": "required"}, r))
		return
	}

	learner, ok := learnerFor(w, r, h.learners)
	if !ok {
		return
	}

	if err := learner.Emotion.SetActive(r.Context(), *req.Active); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active":  learner.Emotion.Active(),
		"emotion": learner.Emotion.CurrentEmotion(),
	})
}

func (h *EmotionHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	learner, ok := learnerFor(w, r, h.learners)
	if !ok {
		return
	}

	current := learner.Emotion.CurrentEmotion()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"emotion":        current.Label,
		"recommendation": services.RecommendationsFor(current.Label),
	})
}
