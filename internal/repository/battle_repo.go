package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"studycompanion-backend/internal/models"
	"studycompanion-backend/internal/services"
)

var _ services.BattleStore = (*BattleRepo)(nil)

type BattleRepo struct {
	pool *pgxpool.Pool
}

func NewBattleRepo(pool *pgxpool.Pool) *BattleRepo {
	return &BattleRepo{pool: pool}
}

// SaveBattle writes the whole battle, replacing its participant rows.
func (r *BattleRepo) SaveBattle(ctx context.Context, b *models.Battle) error {
	quizJSON, err := nullableJSON(b.Quiz, b.Quiz != nil)
	if err != nil {
		return err
	}
	attemptsJSON, err := nullableJSON(b.Attempts, b.Attempts != nil)
	if err != nil {
		return err
	}
	standingsJSON, err := nullableJSON(b.Standings, len(b.Standings) > 0)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO battles (id, creator_id, topic, difficulty, status, max_participants,
			quiz_json, attempts_json, standings_json, created_at, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			creator_id = EXCLUDED.creator_id,
			status = EXCLUDED.status,
			quiz_json = EXCLUDED.quiz_json,
			attempts_json = EXCLUDED.attempts_json,
			standings_json = EXCLUDED.standings_json,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at
	`, b.ID, b.CreatorID, b.Topic, string(b.Difficulty), string(b.Status), b.MaxParticipants,
		quizJSON, attemptsJSON, standingsJSON, b.CreatedAt, b.StartedAt, b.CompletedAt)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, "DELETE FROM battle_participants WHERE battle_id = $1", b.ID); err != nil {
		return err
	}
	for i, p := range b.Participants {
		_, err := tx.Exec(ctx, `
			INSERT INTO battle_participants (battle_id, user_id, display_name, position, joined_at)
			VALUES ($1, $2, $3, $4, $5)
		`, b.ID, p.UserID, p.DisplayName, i, p.JoinedAt)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *BattleRepo) DeleteBattle(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM battles WHERE id = $1", id)
	return err
}

// ListUnfinished loads waiting and active battles so they survive a restart.
func (r *BattleRepo) ListUnfinished(ctx context.Context) ([]*models.Battle, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, creator_id, topic, difficulty, status, max_participants,
			quiz_json, attempts_json, created_at, started_at
		FROM battles WHERE status <> 'completed'
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var battles []*models.Battle
	byID := make(map[string]*models.Battle)
	for rows.Next() {
		b := &models.Battle{}
		var difficulty, status string
		var quizJSON, attemptsJSON []byte
		err := rows.Scan(&b.ID, &b.CreatorID, &b.Topic, &difficulty, &status, &b.MaxParticipants,
			&quizJSON, &attemptsJSON, &b.CreatedAt, &b.StartedAt)
		if err != nil {
			return nil, err
		}
		b.Difficulty = models.Difficulty(difficulty)
		b.Status = models.BattleStatus(status)
		if quizJSON != nil {
			if err := json.Unmarshal(quizJSON, &b.Quiz); err != nil {
				return nil, fmt.Errorf("failed to decode battle quiz: %w", err)
			}
		}
		if attemptsJSON != nil {
			if err := json.Unmarshal(attemptsJSON, &b.Attempts); err != nil {
				return nil, fmt.Errorf("failed to decode battle attempts: %w", err)
			}
		}
		battles = append(battles, b)
		byID[b.ID] = b
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	prow, err := r.pool.Query(ctx, `
		SELECT p.battle_id::text, p.user_id, p.display_name, p.joined_at
		FROM battle_participants p
		JOIN battles b ON b.id = p.battle_id
		WHERE b.status <> 'completed'
		ORDER BY p.battle_id, p.position
	`)
	if err != nil {
		return nil, err
	}
	defer prow.Close()

	for prow.Next() {
		var battleID string
		var p models.Participant
		var joinedAt time.Time
		if err := prow.Scan(&battleID, &p.UserID, &p.DisplayName, &joinedAt); err != nil {
			return nil, err
		}
		p.JoinedAt = joinedAt
		if b, ok := byID[battleID]; ok {
			b.Participants = append(b.Participants, p)
		}
	}
	return battles, prow.Err()
}

func nullableJSON(v interface{}, present bool) ([]byte, error) {
	if !present {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode battle state: %w", err)
	}
	return b, nil
}
