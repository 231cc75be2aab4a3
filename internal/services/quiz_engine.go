package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"studycompanion-backend/internal/logger"
	"studycompanion-backend/internal/models"
)

type QuizEngineConfig struct {
	UserID    string
	Generator ContentGenerator
	Reporter  ActivityReporter
	Store     QuizStore
	Clock     Clock
	Logger    *logger.Logger
}

// QuizEngine runs one user's quiz attempts:
// NoQuiz -> InProgress -> Completed, with Reset back to NoQuiz from anywhere.
type QuizEngine struct {
	userID    string
	generator ContentGenerator
	reporter  ActivityReporter
	store     QuizStore
	clock     Clock
	log       *logger.Logger

	mu      sync.Mutex
	quiz    *models.Quiz
	index   int
	answers []models.SubmittedAnswer
	result  *models.QuizResult
	history []models.QuizResult // most recent first
}

// AnswerOutcome is the engine state after an accepted answer.
type AnswerOutcome struct {
	Status  models.QuizStatus        `json:"status"`
	Attempt *models.QuizAttemptState `json:"attempt,omitempty"`
	Result  *models.QuizResult       `json:"result,omitempty"`
}

func NewQuizEngine(cfg QuizEngineConfig) *QuizEngine {
	gen := cfg.Generator
	if gen == nil {
		gen = NewSampleGenerator(1)
	}
	return &QuizEngine{
		userID:    cfg.UserID,
		generator: gen,
		reporter:  cfg.Reporter,
		store:     cfg.Store,
		clock:     orSystemClock(cfg.Clock),
		log:       logger.OrNop(cfg.Logger).With("user_id", cfg.UserID),
	}
}

// RestoreHistory loads up to limit persisted results.
func (e *QuizEngine) RestoreHistory(ctx context.Context, limit int) error {
	if e.store == nil {
		return nil
	}
	results, err := e.store.ListResults(ctx, e.userID, limit)
	if err != nil {
		return fmt.Errorf("failed to load quiz history: %w", err)
	}
	e.mu.Lock()
	e.history = results
	e.mu.Unlock()
	return nil
}

// Generate replaces any current attempt with a fresh quiz on topic.
func (e *QuizEngine) Generate(ctx context.Context, topic string, difficulty string, count int) (*models.Quiz, error) {
	if count < 1 {
		return nil, ErrInvalidCount
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrInvalidTopic
	}
	diff, err := models.ParseDifficulty(difficulty)
	if err != nil {
		return nil, ErrInvalidDifficulty
	}

	quiz, err := buildQuiz(ctx, e.generator, topic, diff, count, e.clock())
	if err != nil {
		return nil, err
	}
	if err := e.begin(ctx, quiz); err != nil {
		return nil, err
	}
	return quiz.Clone(), nil
}

// GenerateFromContent builds a medium-difficulty quiz from uploaded
// material. Generators that can read the source directly are given it;
// others only see the derived topic.
func (e *QuizEngine) GenerateFromContent(ctx context.Context, content, contentType string, count int) (*models.Quiz, error) {
	if count < 1 {
		return nil, ErrInvalidCount
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if contentType == "" {
		contentType = "text"
	}
	topic := contentTopic(content, contentType)

	var (
		quiz *models.Quiz
		err  error
	)
	if src, ok := e.generator.(SourceQuestionGenerator); ok {
		var questions []models.Question
		questions, err = src.GenerateQuestionsFromSource(ctx, content, models.DifficultyMedium, count)
		if err != nil {
			return nil, fmt.Errorf("failed to generate questions from content: %w", err)
		}
		quiz, err = newQuiz(topic, models.DifficultyMedium, questions, count, e.clock())
	} else {
		quiz, err = buildQuiz(ctx, e.generator, topic, models.DifficultyMedium, count, e.clock())
	}
	if err != nil {
		return nil, err
	}
	if err := e.begin(ctx, quiz); err != nil {
		return nil, err
	}
	return quiz.Clone(), nil
}

func (e *QuizEngine) begin(ctx context.Context, quiz *models.Quiz) error {
	if e.store != nil {
		if err := e.store.SaveQuiz(ctx, e.userID, quiz); err != nil {
			return fmt.Errorf("failed to persist quiz: %w", err)
		}
	}

	e.mu.Lock()
	e.quiz = quiz
	e.index = 0
	e.answers = nil
	e.result = nil
	e.mu.Unlock()

	e.log.Info("quiz generated", "quiz_id", quiz.ID, "topic", quiz.Topic, "questions", len(quiz.Questions))
	return nil
}

func (e *QuizEngine) Answer(ctx context.Context, answerID string) (*AnswerOutcome, error) {
	return e.AnswerQuiz(ctx, "", answerID)
}

// AnswerQuiz is Answer addressed by quiz id; an empty id matches the
// current quiz.
func (e *QuizEngine) AnswerQuiz(ctx context.Context, quizID, answerID string) (*AnswerOutcome, error) {
	e.mu.Lock()
	if err := e.requireInProgress(quizID); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	question := &e.quiz.Questions[e.index]
	if !question.HasAnswer(answerID) {
		e.mu.Unlock()
		return nil, ErrInvalidAnswer
	}
	submitted := models.SubmittedAnswer{QuestionID: question.ID, AnswerID: answerID}

	if e.index < len(e.quiz.Questions)-1 {
		e.answers = append(e.answers, submitted)
		e.index++
		out := &AnswerOutcome{Status: models.QuizStatusInProgress, Attempt: e.attemptLocked()}
		e.mu.Unlock()
		return out, nil
	}

	answers := append(append([]models.SubmittedAnswer(nil), e.answers...), submitted)
	result, err := e.completeLocked(ctx, answers)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	e.report(ctx, result)
	return &AnswerOutcome{Status: models.QuizStatusCompleted, Result: result}, nil
}

// Finish scores an in-progress attempt over the questions answered so far.
func (e *QuizEngine) Finish(ctx context.Context, quizID string) (*models.QuizResult, error) {
	e.mu.Lock()
	if err := e.requireInProgress(quizID); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if len(e.answers) == 0 {
		e.mu.Unlock()
		return nil, ErrNothingAnswered
	}
	result, err := e.completeLocked(ctx, append([]models.SubmittedAnswer(nil), e.answers...))
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	e.report(ctx, result)
	return result, nil
}

// completeLocked persists the result before committing it, so a store
// failure leaves the attempt exactly where it was.
func (e *QuizEngine) completeLocked(ctx context.Context, answers []models.SubmittedAnswer) (*models.QuizResult, error) {
	result := newResult(e.quiz, e.userID, answers, e.clock())
	if e.store != nil {
		if err := e.store.SaveResult(ctx, result); err != nil {
			return nil, fmt.Errorf("failed to persist quiz result: %w", err)
		}
	}

	e.answers = answers
	e.result = result
	e.history = append([]models.QuizResult{*result}, e.history...)

	e.log.Info("quiz completed", "quiz_id", result.QuizID, "score", result.Score, "correct", result.CorrectAnswers, "answered", result.TotalQuestions)
	out := *result
	out.Answers = append([]models.SubmittedAnswer(nil), result.Answers...)
	return &out, nil
}

func (e *QuizEngine) report(ctx context.Context, result *models.QuizResult) {
	if e.reporter == nil {
		return
	}
	err := e.reporter.ReportActivity(ctx, models.ActivityQuiz, map[string]interface{}{
		"quizId":            result.QuizID,
		"topic":             result.Topic,
		"questionsAnswered": result.TotalQuestions,
		"correctAnswers":    result.CorrectAnswers,
		"score":             result.Score,
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrNoActiveSession):
		e.log.Debug("quiz finished outside a study session", "quiz_id", result.QuizID)
	default:
		e.log.Warn("failed to report quiz activity", "quiz_id", result.QuizID, "error", err)
	}
}

// Reset discards the attempt and any result. History is kept.
func (e *QuizEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.quiz = nil
	e.index = 0
	e.answers = nil
	e.result = nil
}

func (e *QuizEngine) requireInProgress(quizID string) error {
	if e.quiz == nil || e.result != nil {
		if quizID != "" && (e.quiz == nil || e.quiz.ID != quizID) {
			return ErrQuizNotFound
		}
		return ErrNoActiveQuiz
	}
	if quizID != "" && quizID != e.quiz.ID {
		return ErrQuizNotFound
	}
	return nil
}

func (e *QuizEngine) Status() models.QuizStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

func (e *QuizEngine) statusLocked() models.QuizStatus {
	switch {
	case e.quiz == nil:
		return models.QuizStatusNone
	case e.result != nil:
		return models.QuizStatusCompleted
	default:
		return models.QuizStatusInProgress
	}
}

// Attempt returns a copy of the current attempt, or nil with no quiz.
func (e *QuizEngine) Attempt() *models.QuizAttemptState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attemptLocked()
}

func (e *QuizEngine) attemptLocked() *models.QuizAttemptState {
	if e.quiz == nil {
		return nil
	}
	return &models.QuizAttemptState{
		Quiz:         e.quiz.Clone(),
		CurrentIndex: e.index,
		Answers:      append([]models.SubmittedAnswer{}, e.answers...),
	}
}

func (e *QuizEngine) Result() *models.QuizResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.result == nil {
		return nil
	}
	r := *e.result
	r.Answers = append([]models.SubmittedAnswer(nil), e.result.Answers...)
	return &r
}

func (e *QuizEngine) History() []models.QuizResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.QuizResult, len(e.history))
	for i, r := range e.history {
		r.Answers = append([]models.SubmittedAnswer(nil), r.Answers...)
		out[i] = r
	}
	return out
}
