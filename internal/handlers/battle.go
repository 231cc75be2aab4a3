package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"studycompanion-backend/internal/models"
	"studycompanion-backend/internal/services"
)

const defaultBattleCapacity = 4

type BattleHandler struct {
	battles *services.BattleCoordinator
}

func NewBattleHandler(battles *services.BattleCoordinator) *BattleHandler {
	return &BattleHandler{battles: battles}
}

func (h *BattleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateBattleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Difficulty == "" {
		req.Difficulty = string(models.DifficultyMedium)
	}
	if req.MaxParticipants == 0 {
		req.MaxParticipants = defaultBattleCapacity
	}

	battle, err := h.battles.Create(r.Context(), req.Topic, req.Difficulty, req.MaxParticipants)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, battle.Redacted())
}

func (h *BattleHandler) List(w http.ResponseWriter, r *http.Request) {
	open := h.battles.ListOpen(r.Context())
	out := make([]*models.Battle, len(open))
	for i, b := range open {
		out[i] = b.Redacted()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"battles": out})
}

func (h *BattleHandler) Get(w http.ResponseWriter, r *http.Request) {
	battle, err := h.battles.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, battle.Redacted())
}

func (h *BattleHandler) Join(w http.ResponseWriter, r *http.Request) {
	battle, err := h.battles.Join(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, battle, err)
}

func (h *BattleHandler) Start(w http.ResponseWriter, r *http.Request) {
	battle, err := h.battles.Start(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, battle, err)
}

func (h *BattleHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req models.AnswerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	battle, err := h.battles.Answer(r.Context(), chi.URLParam(r, "id"), req.AnswerID)
	h.respond(w, r, battle, err)
}

// Leave answers 204 when the caller was the last one in a waiting battle
// and the battle is gone.
func (h *BattleHandler) Leave(w http.ResponseWriter, r *http.Request) {
	battle, err := h.battles.Leave(r.Context(), chi.URLParam(r, "id"))
	if err == nil && battle == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.respond(w, r, battle, err)
}

func (h *BattleHandler) respond(w http.ResponseWriter, r *http.Request, battle *models.Battle, err error) {
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, battle.Redacted())
}
