package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	JobTypeContentQuiz = "content-quiz"

	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

type Job struct {
	ID           uuid.UUID       `json:"id"`
	UserID       string          `json:"user_id"`
	Type         string          `json:"type"` // "content-quiz"
	ConfigJSON   json.RawMessage `json:"config"`
	Status       string          `json:"status"` // "pending" | "processing" | "completed" | "failed"
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
	ResultID     *string         `json:"result_id"`
	ErrorMessage *string         `json:"error_message"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
}

// ContentQuizConfig is the payload of a content-quiz job.
type ContentQuizConfig struct {
	Title         string `json:"title"`
	ContentType   string `json:"content_type"` // "text" | "pdf" | "txt"
	Text          string `json:"text,omitempty"`
	FilePath      string `json:"file_path,omitempty"`
	QuestionCount int    `json:"question_count"`
}

// WebSocket message types
const (
	WSStatusUpdate  = "status_update"
	WSJobCompleted  = "job_completed"
	WSJobFailed     = "job_failed"
	WSBattleUpdate  = "battle_update"
	WSEmotionUpdate = "emotion_update"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type StatusUpdate struct {
	JobID    uuid.UUID `json:"job_id"`
	Step     int       `json:"step"`
	StepName string    `json:"step_name"`
}

type CompletedEvent struct {
	JobID      uuid.UUID `json:"job_id"`
	ResultID   string    `json:"result_id"`
	ResultType string    `json:"result_type"`
}

type ErrorEvent struct {
	JobID        uuid.UUID `json:"job_id"`
	ErrorCode    string    `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
}

type BattleEvent struct {
	Event  string  `json:"event"` // "created" | "joined" | "left" | "started" | "answered" | "completed"
	Battle *Battle `json:"battle"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
