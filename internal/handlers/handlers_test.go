package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studycompanion-backend/internal/middleware"
	"studycompanion-backend/internal/models"
	"studycompanion-backend/internal/services"
)

type fakeJobs struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]*models.Job
	enqueued []*models.Job
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: make(map[uuid.UUID]*models.Job)}
}

func (f *fakeJobs) Create(_ context.Context, j *models.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j.ID = uuid.New()
	j.Status = models.JobStatusPending
	cp := *j
	f.jobs[j.ID] = &cp
	return nil
}

func (f *fakeJobs) GetByID(_ context.Context, id uuid.UUID) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, errors.New("no rows in result set")
	}
	cp := *j
	return &cp, nil
}

func (f *fakeJobs) Enqueue(_ context.Context, j *models.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, j)
	return nil
}

type testServer struct {
	learners *services.Learners
	battles  *services.BattleCoordinator
	jobs     *fakeJobs
	sensors  map[string]*services.ScriptedSensor
	auth     *middleware.JWTAuth
	storage  string
	router   http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	s := &testServer{
		jobs:    newFakeJobs(),
		sensors: make(map[string]*services.ScriptedSensor),
		auth:    middleware.NewJWTAuth("test-secret"),
		storage: t.TempDir(),
	}
	s.learners = services.NewLearners(services.LearnersConfig{
		Sensors: func(userID string) services.AffectSensor {
			sensor := &services.ScriptedSensor{}
			if userID == "camera-shy" {
				sensor.StartErr = services.ErrPermissionDenied
			}
			s.sensors[userID] = sensor
			return sensor
		},
		Generator: services.NewSampleGenerator(7),
	})
	t.Cleanup(s.learners.Close)
	s.battles = services.NewBattleCoordinator(services.BattleCoordinatorConfig{
		Auth:      middleware.ContextAuth{},
		Generator: services.NewSampleGenerator(11),
	})

	profiles := NewProfileHandler(s.learners)
	emotions := NewEmotionHandler(s.learners)
	sessions := NewStudySessionHandler(s.learners)
	quizzes := NewQuizHandler(s.learners, s.jobs, s.jobs, s.storage, 1<<20)
	battles := NewBattleHandler(s.battles)
	jobs := NewJobHandler(s.jobs)
	voice := NewVoiceHandler(s.learners)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.auth.Middleware)
	r.Get("/profile", profiles.Get)
	r.Put("/profile", profiles.Update)
	r.Get("/emotion", emotions.Current)
	r.Post("/emotion/detection", emotions.SetDetection)
	r.Get("/emotion/recommendations", emotions.Recommendations)
	r.Post("/study-sessions", sessions.Start)
	r.Get("/study-sessions", sessions.History)
	r.Get("/study-sessions/active", sessions.Active)
	r.Get("/study-sessions/stats", sessions.Stats)
	r.Get("/study-sessions/content", sessions.Content)
	r.Post("/study-sessions/{id}/activities", sessions.LogActivity)
	r.Post("/study-sessions/{id}/emotions", sessions.LogEmotion)
	r.Post("/study-sessions/{id}/end", sessions.End)
	r.Post("/quizzes", quizzes.Generate)
	r.Post("/quizzes/from-content", quizzes.FromContent)
	r.Get("/quizzes/current", quizzes.Current)
	r.Post("/quizzes/reset", quizzes.Reset)
	r.Get("/quizzes/history", quizzes.History)
	r.Post("/quizzes/{id}/answers", quizzes.Answer)
	r.Post("/quizzes/{id}/finish", quizzes.Finish)
	r.Post("/battles", battles.Create)
	r.Get("/battles", battles.List)
	r.Get("/battles/{id}", battles.Get)
	r.Post("/battles/{id}/join", battles.Join)
	r.Post("/battles/{id}/start", battles.Start)
	r.Post("/battles/{id}/leave", battles.Leave)
	r.Post("/battles/{id}/answers", battles.Answer)
	r.Get("/jobs/{id}", jobs.GetJob)
	r.Post("/voice/commands", voice.Command)
	s.router = r
	return s
}

func (s *testServer) send(t *testing.T, userID string, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	token, err := s.auth.GenerateAccessToken(&models.User{ID: userID, DisplayName: "Learner " + userID}, time.Minute)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) do(t *testing.T, userID, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return s.send(t, userID, req)
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), rr.Body.String())
	return v
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[models.ErrorResponse](t, rr).Error.Code
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrInvalidTopic, http.StatusBadRequest, "INVALID_TOPIC"},
		{services.ErrAlreadyActive, http.StatusConflict, "ALREADY_ACTIVE"},
		{services.ErrBattleNotFound, http.StatusNotFound, "NOT_FOUND"},
		{services.ErrUnauthorized, http.StatusForbidden, "UNAUTHORIZED"},
		{services.ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{services.ErrBattleFull, http.StatusConflict, "BATTLE_FULL"},
		{services.ErrPermissionDenied, http.StatusForbidden, "PERMISSION_DENIED"},
		{fmt.Errorf("failed to persist: %w", services.ErrNoActiveQuiz), http.StatusConflict, "NO_ACTIVE_QUIZ"},
		{errors.New("connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(middleware.RequestIDHeader, "req-1")
			rr := httptest.NewRecorder()
			handleServiceError(rr, req, tc.err)

			assert.Equal(t, tc.status, rr.Code)
			resp := decode[models.ErrorResponse](t, rr)
			assert.Equal(t, tc.code, resp.Error.Code)
			assert.Equal(t, "req-1", resp.Error.RequestID)
		})
	}
}

func TestProfile(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, "u1", http.MethodGet, "/profile", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.DefaultLearningProfile(), decode[models.LearningProfile](t, rr))

	rr = s.do(t, "u1", http.MethodPut, "/profile", map[string]string{"modality": "auditory", "difficulty": "hard"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.LearningProfile{Modality: models.ModalityAuditory, Difficulty: models.DifficultyHard},
		decode[models.LearningProfile](t, rr))

	rr = s.do(t, "u1", http.MethodPut, "/profile", map[string]string{"modality": "telepathic", "difficulty": "hard"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_MODALITY", errorCode(t, rr))
}

func TestEmotionDetection(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, "u1", http.MethodPost, "/emotion/detection", map[string]bool{"active": true})
	require.Equal(t, http.StatusOK, rr.Code)

	s.sensors["u1"].Emit(models.EmotionSample{Label: models.EmotionConfused, Confidence: 0.8})

	rr = s.do(t, "u1", http.MethodGet, "/emotion/recommendations", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode[struct {
		Emotion        models.Emotion               `json:"emotion"`
		Recommendation models.EmotionRecommendation `json:"recommendation"`
	}](t, rr)
	assert.Equal(t, models.EmotionConfused, body.Emotion)
	assert.Len(t, body.Recommendation.Actions, 3)

	rr = s.do(t, "camera-shy", http.MethodPost, "/emotion/detection", map[string]bool{"active": true})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "PERMISSION_DENIED", errorCode(t, rr))

	rr = s.do(t, "u1", http.MethodPost, "/emotion/detection", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStudySessionLifecycle(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, "u1", http.MethodPost, "/study-sessions", map[string]string{"topic": "Photosynthesis"})
	require.Equal(t, http.StatusCreated, rr.Code)
	session := decode[models.StudySession](t, rr)
	assert.Equal(t, "Photosynthesis", session.Topic)

	rr = s.do(t, "u1", http.MethodPost, "/study-sessions", map[string]string{"topic": "Chemistry"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = s.do(t, "u1", http.MethodPost, "/study-sessions/"+session.ID+"/activities", map[string]interface{}{
		"type":    "quiz",
		"details": map[string]interface{}{"questionsAnswered": 5, "correctAnswers": 4},
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = s.do(t, "u1", http.MethodPost, "/study-sessions/"+session.ID+"/emotions", map[string]interface{}{
		"label": "Engaged", "confidence": 0.9,
	})
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = s.do(t, "u1", http.MethodPost, "/study-sessions/"+session.ID+"/emotions", map[string]interface{}{"label": "sleepy"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_EMOTION", errorCode(t, rr))

	rr = s.do(t, "u1", http.MethodPost, "/study-sessions/"+session.ID+"/emotions", map[string]interface{}{
		"label": "happy", "confidence": 7.5,
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_CONFIDENCE", errorCode(t, rr))

	rr = s.do(t, "u1", http.MethodGet, "/study-sessions/stats", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	stats := decode[struct {
		Stats models.SessionStats `json:"stats"`
	}](t, rr)
	assert.Equal(t, 1, stats.Stats.QuizzesTaken)
	assert.Equal(t, 5, stats.Stats.QuestionsAnswered)
	assert.Equal(t, 4, stats.Stats.CorrectAnswers)

	rr = s.do(t, "u1", http.MethodPost, "/study-sessions/not-mine/end", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(t, "u1", http.MethodPost, "/study-sessions/"+session.ID+"/end", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	ended := decode[struct {
		Session models.StudySession `json:"session"`
		Streak  models.StudyStreak  `json:"streak"`
	}](t, rr)
	assert.NotNil(t, ended.Session.EndedAt)
	assert.Len(t, ended.Session.EmotionLog, 1)
	assert.Equal(t, 1, ended.Streak.Count)

	rr = s.do(t, "u1", http.MethodGet, "/study-sessions/active", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(t, "u1", http.MethodGet, "/study-sessions", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	history := decode[struct {
		Sessions []models.StudySession `json:"sessions"`
	}](t, rr)
	require.Len(t, history.Sessions, 1)
	assert.Equal(t, session.ID, history.Sessions[0].ID)
}

func TestStudySessionContent(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, "u1", http.MethodGet, "/study-sessions/content", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, "u1", http.MethodGet, "/study-sessions/content?topic=Fractions", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	plan := decode[models.ContentPlan](t, rr)
	assert.Equal(t, "Fractions", plan.Topic)
}

func TestQuizFlow(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, "u1", http.MethodPost, "/quizzes", map[string]interface{}{"topic": "Gravity", "question_count": 2})
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.NotContains(t, rr.Body.String(), "correct_answer_id")
	quiz := decode[models.Quiz](t, rr)
	require.Len(t, quiz.Questions, 2)
	assert.Equal(t, models.DifficultyMedium, quiz.Difficulty)

	rr = s.do(t, "u1", http.MethodPost, "/quizzes/"+quiz.ID+"/answers", map[string]string{"answer_id": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_ANSWER", errorCode(t, rr))

	rr = s.do(t, "u1", http.MethodPost, "/quizzes/"+quiz.ID+"/answers", map[string]string{"answer_id": quiz.Questions[0].Answers[0].ID})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "correct_answer_id")

	rr = s.do(t, "u1", http.MethodPost, "/quizzes/"+quiz.ID+"/answers", map[string]string{"answer_id": quiz.Questions[1].Answers[0].ID})
	require.Equal(t, http.StatusOK, rr.Code)
	outcome := decode[services.AnswerOutcome](t, rr)
	assert.Equal(t, models.QuizStatusCompleted, outcome.Status)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, 2, outcome.Result.TotalQuestions)

	rr = s.do(t, "u1", http.MethodGet, "/quizzes/history", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	history := decode[struct {
		Results []models.QuizResult `json:"results"`
	}](t, rr)
	assert.Len(t, history.Results, 1)

	rr = s.do(t, "u1", http.MethodPost, "/quizzes/reset", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = s.do(t, "u1", http.MethodGet, "/quizzes/current", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.QuizStatusNone, decode[struct {
		Status models.QuizStatus `json:"status"`
	}](t, rr).Status)
}

func TestQuizGenerate_UsesProfileDifficulty(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, "u1", http.MethodPut, "/profile", map[string]string{"modality": "visual", "difficulty": "easy"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(t, "u1", http.MethodPost, "/quizzes", map[string]interface{}{"topic": "Cells"})
	require.Equal(t, http.StatusCreated, rr.Code)
	quiz := decode[models.Quiz](t, rr)
	assert.Equal(t, models.DifficultyEasy, quiz.Difficulty)
	assert.Len(t, quiz.Questions, defaultQuestionCount)
}

func TestQuizFinish_NothingAnswered(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, "u1", http.MethodPost, "/quizzes", map[string]interface{}{"topic": "Optics", "question_count": 3})
	require.Equal(t, http.StatusCreated, rr.Code)
	quiz := decode[models.Quiz](t, rr)

	rr = s.do(t, "u1", http.MethodPost, "/quizzes/"+quiz.ID+"/finish", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "NOTHING_ANSWERED", errorCode(t, rr))
}

func TestQuizFromContent_Text(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, "u1", http.MethodPost, "/quizzes/from-content", map[string]interface{}{
		"text": "Mitochondria are the powerhouse of the cell.", "question_count": 3,
	})
	require.Equal(t, http.StatusAccepted, rr.Code)

	require.Len(t, s.jobs.enqueued, 1)
	job := s.jobs.enqueued[0]
	assert.Equal(t, "u1", job.UserID)
	assert.Equal(t, models.JobTypeContentQuiz, job.Type)

	var cfg models.ContentQuizConfig
	require.NoError(t, json.Unmarshal(job.ConfigJSON, &cfg))
	assert.Equal(t, 3, cfg.QuestionCount)
	assert.Empty(t, cfg.FilePath)

	rr = s.do(t, "u1", http.MethodPost, "/quizzes/from-content", map[string]interface{}{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "EMPTY_CONTENT", errorCode(t, rr))

	rr = s.do(t, "u1", http.MethodPost, "/quizzes/from-content", map[string]interface{}{"text": "x", "question_count": -1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func multipartUpload(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/quizzes/from-content", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestQuizFromContent_Upload(t *testing.T) {
	s := newTestServer(t)

	rr := s.send(t, "u1", multipartUpload(t, "notes.txt", "Newton's laws of motion.", map[string]string{"question_count": "4"}))
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Len(t, s.jobs.enqueued, 1)

	var cfg models.ContentQuizConfig
	require.NoError(t, json.Unmarshal(s.jobs.enqueued[0].ConfigJSON, &cfg))
	assert.Equal(t, "txt", cfg.ContentType)
	assert.Equal(t, 4, cfg.QuestionCount)
	stored, err := os.ReadFile(cfg.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "Newton's laws of motion.", string(stored))

	rr = s.send(t, "u1", multipartUpload(t, "song.mp3", "ID3", nil))
	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
}

func TestBattleFlow(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, "host", http.MethodPost, "/battles", map[string]string{"topic": "World History"})
	require.Equal(t, http.StatusCreated, rr.Code)
	battle := decode[models.Battle](t, rr)
	assert.Equal(t, defaultBattleCapacity, battle.MaxParticipants)
	assert.Equal(t, models.BattleWaiting, battle.Status)

	rr = s.do(t, "host", http.MethodPost, "/battles/"+battle.ID+"/start", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "INSUFFICIENT_PARTICIPANTS", errorCode(t, rr))

	rr = s.do(t, "guest", http.MethodPost, "/battles/"+battle.ID+"/join", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(t, "guest", http.MethodPost, "/battles/"+battle.ID+"/start", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = s.do(t, "host", http.MethodPost, "/battles/"+battle.ID+"/start", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "correct_answer_id")
	started := decode[models.Battle](t, rr)
	require.NotNil(t, started.Quiz)
	assert.Len(t, started.Quiz.Questions, services.BattleQuestionCount)

	rr = s.do(t, "outsider", http.MethodPost, "/battles/"+battle.ID+"/answers",
		map[string]string{"answer_id": started.Quiz.Questions[0].Answers[0].ID})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "NOT_PARTICIPANT", errorCode(t, rr))

	rr = s.do(t, "host", http.MethodGet, "/battles", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	open := decode[struct {
		Battles []models.Battle `json:"battles"`
	}](t, rr)
	assert.Empty(t, open.Battles)

	rr = s.do(t, "guest", http.MethodPost, "/battles/"+battle.ID+"/leave", nil)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestBattleLeave_LastParticipantDeletes(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, "host", http.MethodPost, "/battles", map[string]string{"topic": "Algebra"})
	require.Equal(t, http.StatusCreated, rr.Code)
	battle := decode[models.Battle](t, rr)

	rr = s.do(t, "host", http.MethodPost, "/battles/"+battle.ID+"/leave", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = s.do(t, "host", http.MethodGet, "/battles/"+battle.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBattleCreate_Validation(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, "host", http.MethodPost, "/battles", map[string]interface{}{"topic": "Algebra", "max_participants": 1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_CAPACITY", errorCode(t, rr))

	rr = s.do(t, "host", http.MethodPost, "/battles", map[string]interface{}{"topic": " "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_TOPIC", errorCode(t, rr))
}

func TestJobHandler(t *testing.T) {
	s := newTestServer(t)

	job := &models.Job{UserID: "u1", Type: models.JobTypeContentQuiz}
	require.NoError(t, s.jobs.Create(context.Background(), job))

	rr := s.do(t, "u1", http.MethodGet, "/jobs/"+job.ID.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, job.ID, decode[models.Job](t, rr).ID)

	rr = s.do(t, "u2", http.MethodGet, "/jobs/"+job.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = s.do(t, "u1", http.MethodGet, "/jobs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, "u1", http.MethodGet, "/jobs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestVoiceCommand(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, "u1", http.MethodPost, "/voice/commands", map[string]string{"text": "end session"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "There's no study session running.", decode[map[string]string](t, rr)["reply"])

	rr = s.do(t, "u1", http.MethodPost, "/voice/commands", map[string]string{"text": ""})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUnauthenticatedRequestsAreRejected(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/profile", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
