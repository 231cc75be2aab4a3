package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"studycompanion-backend/internal/models"
	"studycompanion-backend/internal/services"
)

var _ services.QuizStore = (*QuizRepo)(nil)

type QuizRepo struct {
	pool *pgxpool.Pool
}

func NewQuizRepo(pool *pgxpool.Pool) *QuizRepo {
	return &QuizRepo{pool: pool}
}

func (r *QuizRepo) SaveQuiz(ctx context.Context, userID string, q *models.Quiz) error {
	questionsBytes, err := json.Marshal(q.Questions)
	if err != nil {
		return fmt.Errorf("failed to encode questions: %w", err)
	}

	query := `INSERT INTO quizzes (id, user_id, topic, difficulty, questions_json, question_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.pool.Exec(ctx, query,
		q.ID, userID, q.Topic, string(q.Difficulty), questionsBytes, len(q.Questions), q.CreatedAt,
	)
	return err
}

func (r *QuizRepo) GetByID(ctx context.Context, id string) (*models.Quiz, error) {
	q := &models.Quiz{}
	var difficulty string
	var questions []byte
	query := `SELECT id::text, topic, difficulty, questions_json, created_at
		FROM quizzes WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(&q.ID, &q.Topic, &difficulty, &questions, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	q.Difficulty = models.Difficulty(difficulty)
	if err := json.Unmarshal(questions, &q.Questions); err != nil {
		return nil, fmt.Errorf("failed to decode questions: %w", err)
	}
	return q, nil
}

func (r *QuizRepo) SaveResult(ctx context.Context, res *models.QuizResult) error {
	answersBytes, err := json.Marshal(res.Answers)
	if err != nil {
		return fmt.Errorf("failed to encode answers: %w", err)
	}

	query := `INSERT INTO quiz_results (quiz_id, user_id, topic, score, total_questions, correct_answers, answers_json, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.pool.Exec(ctx, query,
		res.QuizID, res.UserID, res.Topic, res.Score, res.TotalQuestions, res.CorrectAnswers, answersBytes, res.CompletedAt,
	)
	return err
}

// ListResults returns the user's results, most recent first.
func (r *QuizRepo) ListResults(ctx context.Context, userID string, limit int) ([]models.QuizResult, error) {
	query := `SELECT quiz_id::text, user_id, topic, score, total_questions, correct_answers, answers_json, completed_at
		FROM quiz_results WHERE user_id = $1 ORDER BY completed_at DESC, id DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.QuizResult
	for rows.Next() {
		var res models.QuizResult
		var answers []byte
		err := rows.Scan(&res.QuizID, &res.UserID, &res.Topic, &res.Score, &res.TotalQuestions, &res.CorrectAnswers, &answers, &res.CompletedAt)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(answers, &res.Answers); err != nil {
			return nil, fmt.Errorf("failed to decode answers: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
