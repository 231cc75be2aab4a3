package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jackc/pgx/v5"

	"studycompanion-backend/internal/middleware"
	"studycompanion-backend/internal/models"
	"studycompanion-backend/internal/services"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	resp := errorResp(code, message, r)
	resp.Error.Fields = fields
	return resp
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
	return false
}

var kindStatus = map[services.ErrorKind]int{
	services.KindInvalidInput:      http.StatusBadRequest,
	services.KindStateConflict:     http.StatusConflict,
	services.KindNotFound:          http.StatusNotFound,
	services.KindUnauthorized:      http.StatusForbidden,
	services.KindUnauthenticated:   http.StatusUnauthorized,
	services.KindResourceExhausted: http.StatusConflict,
	services.KindPermissionDenied:  http.StatusForbidden,
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var engineErr *services.EngineError
	if errors.As(err, &engineErr) {
		status, ok := kindStatus[engineErr.Kind]
		if !ok {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorResp(engineErr.Code, engineErr.Message, r))
		return
	}
	if errors.Is(err, pgx.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Resource not found", r))
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
}

// learnerFor resolves the caller's Learner and writes the error response
// itself when that fails.
func learnerFor(w http.ResponseWriter, r *http.Request, learners *services.Learners) (*services.Learner, bool) {
	learner, err := learners.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return nil, false
	}
	return learner, true
}
