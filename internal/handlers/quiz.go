package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"studycompanion-backend/internal/middleware"
	"studycompanion-backend/internal/models"
	"studycompanion-backend/internal/services"
)

const defaultQuestionCount = 5

var uploadExtensions = map[string]bool{".txt": true, ".md": true, ".pdf": true, ".docx": true}

// JobStore records background jobs.
type JobStore interface {
	Create(ctx context.Context, j *models.Job) error
}

// JobQueue hands a recorded job to the worker pool.
type JobQueue interface {
	Enqueue(ctx context.Context, job *models.Job) error
}

type QuizHandler struct {
	learners    *services.Learners
	jobs        JobStore
	queue       JobQueue
	storagePath string
	maxUpload   int64
}

func NewQuizHandler(learners *services.Learners, jobs JobStore, queue JobQueue, storagePath string, maxUpload int64) *QuizHandler {
	return &QuizHandler{
		learners:    learners,
		jobs:        jobs,
		queue:       queue,
		storagePath: storagePath,
		maxUpload:   maxUpload,
	}
}

func (h *QuizHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateQuizRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	learner, ok := learnerFor(w, r, h.learners)
	if !ok {
		return
	}

	if req.QuestionCount == 0 {
		req.QuestionCount = defaultQuestionCount
	}
	if req.Difficulty == "" {
		req.Difficulty = string(learner.Sessions.Profile().Difficulty)
	}

	quiz, err := learner.Quizzes.Generate(r.Context(), req.Topic, req.Difficulty, req.QuestionCount)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz.Redacted())
}

// FromContent queues quiz generation from uploaded material. It accepts a
// multipart upload ("file") or JSON with inline text.
func (h *QuizHandler) FromContent(w http.ResponseWriter, r *http.Request) {
	var (
		cfg models.ContentQuizConfig
		ok  bool
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		cfg, ok = h.readUpload(w, r)
	} else {
		ok = decodeJSON(w, r, &cfg)
		cfg.FilePath = ""
		if ok && strings.TrimSpace(cfg.Text) == "" {
			handleServiceError(w, r, services.ErrEmptyContent)
			ok = false
		}
	}
	if !ok {
		return
	}

	if cfg.QuestionCount == 0 {
		cfg.QuestionCount = defaultQuestionCount
	}
	if cfg.QuestionCount < 1 {
		handleServiceError(w, r, services.ErrInvalidCount)
		return
	}

	configBytes, _ := json.Marshal(cfg)
	job := &models.Job{
		UserID:     middleware.GetUserID(r.Context()),
		Type:       models.JobTypeContentQuiz,
		ConfigJSON: configBytes,
	}
	if err := h.jobs.Create(r.Context(), job); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create job", r))
		return
	}
	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to queue job", r))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.ID,
		"status": job.Status,
	})
}

func (h *QuizHandler) readUpload(w http.ResponseWriter, r *http.Request) (models.ContentQuizConfig, bool) {
	var cfg models.ContentQuizConfig

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No file provided", r))
		return cfg, false
	}
	defer file.Close()

	if header.Size > h.maxUpload {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", "File exceeds the upload limit", r))
		return cfg, false
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !uploadExtensions[ext] {
		writeJSON(w, http.StatusUnsupportedMediaType, errorResp("UNSUPPORTED_FORMAT", "File type not supported", r))
		return cfg, false
	}

	dir := filepath.Join(h.storagePath, "uploads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store upload", r))
		return cfg, false
	}
	path := filepath.Join(dir, uuid.NewString()+ext)
	dst, err := os.Create(path)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store upload", r))
		return cfg, false
	}
	_, copyErr := io.Copy(dst, file)
	closeErr := dst.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(path)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store upload", r))
		return cfg, false
	}

	cfg.Title = header.Filename
	cfg.ContentType = strings.TrimPrefix(ext, ".")
	cfg.FilePath = path
	if n := r.FormValue("question_count"); n != "" {
		cfg.QuestionCount, err = strconv.Atoi(n)
		if err != nil {
			os.Remove(path)
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
				map[string]string{"question_count": "must be a number"}, r))
			return cfg, false
		}
	}
	return cfg, true
}

func (h *QuizHandler) Current(w http.ResponseWriter, r *http.Request) {
	learner, ok := learnerFor(w, r, h.learners)
	if !ok {
		return
	}

	status := learner.Quizzes.Status()
	resp := map[string]interface{}{"status": status}
	if attempt := learner.Quizzes.Attempt(); attempt != nil {
		// Correct answers stay hidden until the attempt is scored.
		if status == models.QuizStatusInProgress {
			attempt.Quiz = attempt.Quiz.Redacted()
		}
		resp["attempt"] = attempt
	}
	if result := learner.Quizzes.Result(); result != nil {
		resp["result"] = result
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *QuizHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req models.AnswerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	learner, ok := learnerFor(w, r, h.learners)
	if !ok {
		return
	}

	outcome, err := learner.Quizzes.AnswerQuiz(r.Context(), chi.URLParam(r, "id"), req.AnswerID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if outcome.Attempt != nil {
		outcome.Attempt.Quiz = outcome.Attempt.Quiz.Redacted()
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *QuizHandler) Finish(w http.ResponseWriter, r *http.Request) {
	learner, ok := learnerFor(w, r, h.learners)
	if !ok {
		return
	}

	result, err := learner.Quizzes.Finish(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *QuizHandler) Reset(w http.ResponseWriter, r *http.Request) {
	learner, ok := learnerFor(w, r, h.learners)
	if !ok {
		return
	}
	learner.Quizzes.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (h *QuizHandler) History(w http.ResponseWriter, r *http.Request) {
	learner, ok := learnerFor(w, r, h.learners)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": learner.Quizzes.History(),
	})
}
