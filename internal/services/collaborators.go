package services

import (
	"context"
	"sync"
	"time"

	"studycompanion-backend/internal/logger"
	"studycompanion-backend/internal/models"
)

// AuthProvider resolves the signed-in user for a request.
type AuthProvider interface {
	CurrentUser(ctx context.Context) (*models.User, bool)
}

// StaticAuth always reports the same user. A nil user means signed out.
type StaticAuth struct{ User *models.User }

func (a StaticAuth) CurrentUser(context.Context) (*models.User, bool) {
	return a.User, a.User != nil
}

// ContentGenerator produces quiz questions for a topic.
type ContentGenerator interface {
	GenerateQuestions(ctx context.Context, topic string, difficulty models.Difficulty, count int) ([]models.Question, error)
}

// SourceQuestionGenerator is implemented by generators that can ground
// questions on uploaded material instead of a bare topic.
type SourceQuestionGenerator interface {
	GenerateQuestionsFromSource(ctx context.Context, source string, difficulty models.Difficulty, count int) ([]models.Question, error)
}

// ActivityReporter receives completed-activity notifications.
type ActivityReporter interface {
	ReportActivity(ctx context.Context, activityType models.ActivityType, details map[string]interface{}) error
}

// Publisher pushes realtime events to a user's connected clients.
type Publisher interface {
	Publish(ctx context.Context, userID string, msg models.WSMessage)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, models.WSMessage) {}

// VoiceIO is the speech collaborator.
type VoiceIO interface {
	Speak(ctx context.Context, text string) error
	OnUtterance(callback func(text string))
}

// LogVoice "speaks" into the log. Utterances can be injected with Hear,
// which is how transcripts posted by a client reach the assistant.
type LogVoice struct {
	log *logger.Logger

	mu       sync.Mutex
	handlers []func(string)
	spoken   []string
}

const maxSpoken = 100

func NewLogVoice(log *logger.Logger) *LogVoice {
	return &LogVoice{log: logger.OrNop(log)}
}

func (v *LogVoice) Speak(_ context.Context, text string) error {
	v.mu.Lock()
	v.spoken = append(v.spoken, text)
	if len(v.spoken) > maxSpoken {
		v.spoken = v.spoken[len(v.spoken)-maxSpoken:]
	}
	v.mu.Unlock()
	v.log.Debug("voice: speak", "text", text)
	return nil
}

func (v *LogVoice) OnUtterance(callback func(text string)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.handlers = append(v.handlers, callback)
}

func (v *LogVoice) Hear(text string) {
	v.mu.Lock()
	handlers := append([]func(string){}, v.handlers...)
	v.mu.Unlock()
	for _, h := range handlers {
		h(text)
	}
}

// Spoken returns everything spoken so far, oldest first.
func (v *LogVoice) Spoken() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.spoken...)
}

// Clock is injected so tests can pin calendar days.
type Clock func() time.Time

func orSystemClock(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}
