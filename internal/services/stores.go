package services

import (
	"context"

	"studycompanion-backend/internal/models"
)

// SessionStore persists study sessions and the learner's aggregates.
// Managers call it before committing in-memory state, so a failing store
// leaves the manager untouched.
type SessionStore interface {
	CreateSession(ctx context.Context, s *models.StudySession) error
	// AppendActivity records a and the aggregates it produced together.
	AppendActivity(ctx context.Context, sessionID string, a models.Activity, progress models.LearnerProgress) error
	AppendEmotion(ctx context.Context, sessionID string, e models.EmotionSample) error
	FinishSession(ctx context.Context, s *models.StudySession, progress models.LearnerProgress) error
	SaveProfile(ctx context.Context, userID string, p models.LearningProfile) error
	LoadProgress(ctx context.Context, userID string, historyLimit int) (*models.LearnerProgress, []*models.StudySession, error)
	// LoadOpenSession returns the user's most recent unfinished session, or
	// nil when there is none.
	LoadOpenSession(ctx context.Context, userID string) (*models.StudySession, error)
}

type QuizStore interface {
	SaveQuiz(ctx context.Context, userID string, q *models.Quiz) error
	SaveResult(ctx context.Context, r *models.QuizResult) error
	ListResults(ctx context.Context, userID string, limit int) ([]models.QuizResult, error)
}

type BattleStore interface {
	SaveBattle(ctx context.Context, b *models.Battle) error
	DeleteBattle(ctx context.Context, battleID string) error
}
