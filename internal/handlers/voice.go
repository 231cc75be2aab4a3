package handlers

import (
	"net/http"
	"strings"

	"studycompanion-backend/internal/services"
)

type VoiceHandler struct {
	learners *services.Learners
}

func NewVoiceHandler(learners *services.Learners) *VoiceHandler {
	return &VoiceHandler{learners: learners}
}

// Command runs a transcript captured by the client through the assistant.
func (h *VoiceHandler) Command(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"text": "required"}, r))
		return
	}

	learner, ok := learnerFor(w, r, h.learners)
	if !ok {
		return
	}

	reply, err := learner.Assistant.Handle(r.Context(), req.Text)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}
