package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studycompanion-backend/internal/models"
	"studycompanion-backend/internal/services"
)

var _ services.SessionStore = (*StudySessionRepo)(nil)

type StudySessionRepo struct {
	pool *pgxpool.Pool
}

func NewStudySessionRepo(pool *pgxpool.Pool) *StudySessionRepo {
	return &StudySessionRepo{pool: pool}
}

func (r *StudySessionRepo) CreateSession(ctx context.Context, s *models.StudySession) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO study_sessions (id, user_id, topic, started_at)
		VALUES ($1, $2, $3, $4)
	`, s.ID, s.UserID, s.Topic, s.StartedAt)
	return err
}

// AppendActivity stores the activity and the aggregates it produced in one
// transaction, so counters survive a restart mid-session.
func (r *StudySessionRepo) AppendActivity(ctx context.Context, sessionID string, a models.Activity, p models.LearnerProgress) error {
	details, err := json.Marshal(a.Details)
	if err != nil {
		return fmt.Errorf("failed to encode activity details: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO session_activities (session_id, activity_type, details_json, occurred_at)
		VALUES ($1, $2, $3, $4)
	`, sessionID, string(a.Type), details, a.Timestamp)
	if err != nil {
		return err
	}
	if err := upsertProgress(ctx, tx, p); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *StudySessionRepo) AppendEmotion(ctx context.Context, sessionID string, e models.EmotionSample) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO session_emotions (session_id, label, confidence, captured_at)
		VALUES ($1, $2, $3, $4)
	`, sessionID, string(e.Label), e.Confidence, e.CapturedAt)
	return err
}

// FinishSession closes the session and writes the new aggregates in one
// transaction.
func (r *StudySessionRepo) FinishSession(ctx context.Context, s *models.StudySession, p models.LearnerProgress) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE study_sessions
		SET ended_at = $1, duration_minutes = $2
		WHERE id = $3 AND ended_at IS NULL
	`, s.EndedAt, s.DurationMinutes, s.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("study session %s is not open", s.ID)
	}

	if err := upsertProgress(ctx, tx, p); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func upsertProgress(ctx context.Context, tx pgx.Tx, p models.LearnerProgress) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO learner_progress (
			user_id, total_time_studied, topics_explored, quizzes_taken, questions_answered,
			correct_answers, streak_count, last_study_date, modality, difficulty, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			total_time_studied = EXCLUDED.total_time_studied,
			topics_explored = EXCLUDED.topics_explored,
			quizzes_taken = EXCLUDED.quizzes_taken,
			questions_answered = EXCLUDED.questions_answered,
			correct_answers = EXCLUDED.correct_answers,
			streak_count = EXCLUDED.streak_count,
			last_study_date = EXCLUDED.last_study_date,
			modality = EXCLUDED.modality,
			difficulty = EXCLUDED.difficulty,
			updated_at = NOW()
	`, p.UserID, p.Stats.TotalTimeStudied, p.Stats.TopicsExplored, p.Stats.QuizzesTaken,
		p.Stats.QuestionsAnswered, p.Stats.CorrectAnswers, p.Streak.Count, p.Streak.LastStudyDate,
		string(p.Profile.Modality), string(p.Profile.Difficulty))
	return err
}

func (r *StudySessionRepo) SaveProfile(ctx context.Context, userID string, profile models.LearningProfile) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO learner_progress (user_id, modality, difficulty, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			modality = EXCLUDED.modality,
			difficulty = EXCLUDED.difficulty,
			updated_at = NOW()
	`, userID, string(profile.Modality), string(profile.Difficulty))
	return err
}

// LoadProgress returns nil progress for a user who has never been seen.
func (r *StudySessionRepo) LoadProgress(ctx context.Context, userID string, historyLimit int) (*models.LearnerProgress, []*models.StudySession, error) {
	p := &models.LearnerProgress{UserID: userID}
	var modality, difficulty string
	err := r.pool.QueryRow(ctx, `
		SELECT total_time_studied, topics_explored, quizzes_taken, questions_answered, correct_answers,
			streak_count, last_study_date, modality, difficulty
		FROM learner_progress WHERE user_id = $1
	`, userID).Scan(
		&p.Stats.TotalTimeStudied, &p.Stats.TopicsExplored, &p.Stats.QuizzesTaken,
		&p.Stats.QuestionsAnswered, &p.Stats.CorrectAnswers,
		&p.Streak.Count, &p.Streak.LastStudyDate, &modality, &difficulty,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	p.Profile = models.LearningProfile{Modality: models.Modality(modality), Difficulty: models.Difficulty(difficulty)}

	history, err := r.listFinished(ctx, userID, historyLimit)
	if err != nil {
		return nil, nil, err
	}
	return p, history, nil
}

func (r *StudySessionRepo) LoadOpenSession(ctx context.Context, userID string) (*models.StudySession, error) {
	s := &models.StudySession{EmotionLog: []models.EmotionSample{}, Activities: []models.Activity{}}
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, user_id, topic, started_at
		FROM study_sessions
		WHERE user_id = $1 AND ended_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1
	`, userID).Scan(&s.ID, &s.UserID, &s.Topic, &s.StartedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	byID := map[string]*models.StudySession{s.ID: s}
	if err := r.attachActivities(ctx, []string{s.ID}, byID); err != nil {
		return nil, err
	}
	if err := r.attachEmotions(ctx, []string{s.ID}, byID); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *StudySessionRepo) listFinished(ctx context.Context, userID string, limit int) ([]*models.StudySession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, user_id, topic, started_at, ended_at, duration_minutes
		FROM study_sessions
		WHERE user_id = $1 AND ended_at IS NOT NULL
		ORDER BY ended_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.StudySession
	byID := make(map[string]*models.StudySession)
	for rows.Next() {
		s := &models.StudySession{EmotionLog: []models.EmotionSample{}, Activities: []models.Activity{}}
		if err := rows.Scan(&s.ID, &s.UserID, &s.Topic, &s.StartedAt, &s.EndedAt, &s.DurationMinutes); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
		byID[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return sessions, nil
	}

	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.ID)
	}
	if err := r.attachActivities(ctx, ids, byID); err != nil {
		return nil, err
	}
	if err := r.attachEmotions(ctx, ids, byID); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *StudySessionRepo) attachActivities(ctx context.Context, ids []string, byID map[string]*models.StudySession) error {
	rows, err := r.pool.Query(ctx, `
		SELECT session_id::text, activity_type, details_json, occurred_at
		FROM session_activities
		WHERE session_id = ANY($1::uuid[])
		ORDER BY id
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sessionID, activityType string
			details                 []byte
			occurredAt              time.Time
		)
		if err := rows.Scan(&sessionID, &activityType, &details, &occurredAt); err != nil {
			return err
		}
		a := models.Activity{Type: models.ActivityType(activityType), Timestamp: occurredAt}
		if err := json.Unmarshal(details, &a.Details); err != nil {
			return fmt.Errorf("failed to decode activity details: %w", err)
		}
		if s, ok := byID[sessionID]; ok {
			s.Activities = append(s.Activities, a)
		}
	}
	return rows.Err()
}

func (r *StudySessionRepo) attachEmotions(ctx context.Context, ids []string, byID map[string]*models.StudySession) error {
	rows, err := r.pool.Query(ctx, `
		SELECT session_id::text, label, confidence, captured_at
		FROM session_emotions
		WHERE session_id = ANY($1::uuid[])
		ORDER BY id
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sessionID, label string
			e                models.EmotionSample
		)
		if err := rows.Scan(&sessionID, &label, &e.Confidence, &e.CapturedAt); err != nil {
			return err
		}
		e.Label = models.Emotion(label)
		if s, ok := byID[sessionID]; ok {
			s.EmotionLog = append(s.EmotionLog, e)
		}
	}
	return rows.Err()
}
