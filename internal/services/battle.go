package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"studycompanion-backend/internal/logger"
	"studycompanion-backend/internal/models"
)

const BattleQuestionCount = 10

type BattleCoordinatorConfig struct {
	Auth      AuthProvider
	Generator ContentGenerator
	Store     BattleStore
	Publisher Publisher
	Clock     Clock
	Logger    *logger.Logger
}

// BattleCoordinator owns every battle in the process. Each battle has its
// own lock, so joins, the start transition and answers for one battle are
// serialized while different battles proceed independently.
type BattleCoordinator struct {
	auth      AuthProvider
	generator ContentGenerator
	store     BattleStore
	publisher Publisher
	clock     Clock
	log       *logger.Logger

	mu      sync.RWMutex
	battles map[string]*battleEntry
}

type battleEntry struct {
	mu      sync.Mutex
	battle  *models.Battle
	deleted bool
}

func NewBattleCoordinator(cfg BattleCoordinatorConfig) *BattleCoordinator {
	gen := cfg.Generator
	if gen == nil {
		gen = NewSampleGenerator(1)
	}
	var pub Publisher = nopPublisher{}
	if cfg.Publisher != nil {
		pub = cfg.Publisher
	}
	return &BattleCoordinator{
		auth:      cfg.Auth,
		generator: gen,
		store:     cfg.Store,
		publisher: pub,
		clock:     orSystemClock(cfg.Clock),
		log:       logger.OrNop(cfg.Logger),
		battles:   make(map[string]*battleEntry),
	}
}

func (c *BattleCoordinator) currentUser(ctx context.Context) (*models.User, error) {
	if c.auth == nil {
		return nil, ErrUnauthenticated
	}
	user, ok := c.auth.CurrentUser(ctx)
	if !ok || user == nil || user.ID == "" {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

func (c *BattleCoordinator) Create(ctx context.Context, topic, difficulty string, maxParticipants int) (*models.Battle, error) {
	user, err := c.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if maxParticipants < 2 {
		return nil, ErrInvalidCapacity
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrInvalidTopic
	}
	diff, err := models.ParseDifficulty(difficulty)
	if err != nil {
		return nil, ErrInvalidDifficulty
	}

	now := c.clock()
	battle := &models.Battle{
		ID:              uuid.NewString(),
		CreatorID:       user.ID,
		Topic:           topic,
		Difficulty:      diff,
		Status:          models.BattleWaiting,
		MaxParticipants: maxParticipants,
		Participants:    []models.Participant{{UserID: user.ID, DisplayName: user.Name(), JoinedAt: now}},
		CreatedAt:       now,
	}
	if c.store != nil {
		if err := c.store.SaveBattle(ctx, battle); err != nil {
			return nil, fmt.Errorf("failed to persist battle: %w", err)
		}
	}

	c.mu.Lock()
	c.battles[battle.ID] = &battleEntry{battle: battle}
	c.mu.Unlock()

	c.log.Info("battle created", "battle_id", battle.ID, "creator_id", user.ID, "topic", topic)
	c.publish(ctx, battle, "created")
	return battle.Clone(), nil
}

func (c *BattleCoordinator) Join(ctx context.Context, battleID string) (*models.Battle, error) {
	user, err := c.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return c.mutate(ctx, battleID, "joined", func(b *models.Battle, now time.Time) error {
		if len(b.Participants) >= b.MaxParticipants {
			return ErrBattleFull
		}
		if b.HasParticipant(user.ID) {
			return ErrAlreadyJoined
		}
		if b.Status != models.BattleWaiting {
			return ErrWrongState
		}
		b.Participants = append(b.Participants, models.Participant{UserID: user.ID, DisplayName: user.Name(), JoinedAt: now})
		return nil
	})
}

// Start is host-only. Question generation happens under the battle lock,
// so at most one start can win.
func (c *BattleCoordinator) Start(ctx context.Context, battleID string) (*models.Battle, error) {
	user, err := c.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return c.mutate(ctx, battleID, "started", func(b *models.Battle, now time.Time) error {
		if b.Status != models.BattleWaiting {
			return ErrWrongState
		}
		if len(b.Participants) < 2 {
			return ErrInsufficientParticipants
		}
		if host := b.Host(); host == nil || host.UserID != user.ID {
			return ErrUnauthorized
		}

		quiz, err := buildQuiz(ctx, c.generator, b.Topic, b.Difficulty, BattleQuestionCount, now)
		if err != nil {
			return err
		}
		b.Quiz = quiz
		b.Status = models.BattleActive
		b.StartedAt = &now
		b.Attempts = make(map[string]*models.BattleAttempt, len(b.Participants))
		for _, p := range b.Participants {
			b.Attempts[p.UserID] = &models.BattleAttempt{UserID: p.UserID, Answers: []models.SubmittedAnswer{}}
		}
		return nil
	})
}

// Answer records the caller's answer to their current battle question.
func (c *BattleCoordinator) Answer(ctx context.Context, battleID, answerID string) (*models.Battle, error) {
	user, err := c.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return c.mutate(ctx, battleID, "answered", func(b *models.Battle, now time.Time) error {
		if b.Status != models.BattleActive {
			return ErrWrongState
		}
		attempt, ok := b.Attempts[user.ID]
		if !ok || !b.HasParticipant(user.ID) {
			return ErrNotParticipant
		}
		if attempt.Result != nil {
			return ErrAttemptFinished
		}

		question := &b.Quiz.Questions[attempt.CurrentIndex]
		if !question.HasAnswer(answerID) {
			return ErrInvalidAnswer
		}
		attempt.Answers = append(attempt.Answers, models.SubmittedAnswer{QuestionID: question.ID, AnswerID: answerID})
		if attempt.CurrentIndex < len(b.Quiz.Questions)-1 {
			attempt.CurrentIndex++
			return nil
		}
		attempt.Result = newResult(b.Quiz, user.ID, attempt.Answers, now)
		completeIfDone(b, now)
		return nil
	})
}

// Leave removes the caller from a waiting battle or forfeits an active one.
// The last participant leaving a waiting battle deletes it.
func (c *BattleCoordinator) Leave(ctx context.Context, battleID string) (*models.Battle, error) {
	user, err := c.currentUser(ctx)
	if err != nil {
		return nil, err
	}

	entry, err := c.entry(battleID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return nil, ErrBattleNotFound
	}

	current := entry.battle
	if !current.HasParticipant(user.ID) {
		return nil, ErrNotParticipant
	}

	if current.Status == models.BattleWaiting && len(current.Participants) == 1 {
		if c.store != nil {
			if err := c.store.DeleteBattle(ctx, battleID); err != nil {
				return nil, fmt.Errorf("failed to delete battle: %w", err)
			}
		}
		entry.deleted = true
		c.mu.Lock()
		delete(c.battles, battleID)
		c.mu.Unlock()
		c.log.Info("battle abandoned", "battle_id", battleID)
		return nil, nil
	}

	next := current.Clone()
	now := c.clock()
	event := "left"
	switch next.Status {
	case models.BattleWaiting:
		next.RemoveParticipant(user.ID)
		// The host role passes with the first seat.
		next.CreatorID = next.Host().UserID
	case models.BattleActive:
		attempt := next.Attempts[user.ID]
		if attempt.Result != nil {
			return nil, ErrAttemptFinished
		}
		attempt.Forfeited = true
		attempt.Result = newResult(next.Quiz, user.ID, attempt.Answers, now)
		completeIfDone(next, now)
		if next.Status == models.BattleCompleted {
			event = "completed"
		}
	default:
		return nil, ErrWrongState
	}

	if err := c.commit(ctx, entry, next); err != nil {
		return nil, err
	}
	c.publishTo(ctx, next, event, user.ID)
	return next.Clone(), nil
}

func (c *BattleCoordinator) Get(ctx context.Context, battleID string) (*models.Battle, error) {
	entry, err := c.entry(battleID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return nil, ErrBattleNotFound
	}
	return entry.battle.Clone(), nil
}

// ListOpen returns joinable battles, newest first.
func (c *BattleCoordinator) ListOpen(ctx context.Context) []*models.Battle {
	c.mu.RLock()
	entries := make([]*battleEntry, 0, len(c.battles))
	for _, e := range c.battles {
		entries = append(entries, e)
	}
	c.mu.RUnlock()

	open := make([]*models.Battle, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted && e.battle.Status == models.BattleWaiting {
			open = append(open, e.battle.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(open, func(i, j int) bool {
		if open[i].CreatedAt.Equal(open[j].CreatedAt) {
			return open[i].ID > open[j].ID
		}
		return open[i].CreatedAt.After(open[j].CreatedAt)
	})
	return open
}

// Load registers a persisted battle, e.g. after a restart.
func (c *BattleCoordinator) Load(battle *models.Battle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.battles[battle.ID] = &battleEntry{battle: battle.Clone()}
}

func (c *BattleCoordinator) entry(battleID string) (*battleEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.battles[battleID]
	if !ok {
		return nil, ErrBattleNotFound
	}
	return e, nil
}

// mutate applies fn to a copy of the battle under its lock and commits the
// copy only if fn and the store both succeed.
func (c *BattleCoordinator) mutate(ctx context.Context, battleID, event string, fn func(b *models.Battle, now time.Time) error) (*models.Battle, error) {
	entry, err := c.entry(battleID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return nil, ErrBattleNotFound
	}

	prev := entry.battle.Status
	next := entry.battle.Clone()
	if err := fn(next, c.clock()); err != nil {
		return nil, err
	}
	if err := c.commit(ctx, entry, next); err != nil {
		return nil, err
	}

	c.log.Debug("battle updated", "battle_id", battleID, "event", event, "status", next.Status)
	if next.Status == models.BattleCompleted && prev != models.BattleCompleted {
		event = "completed"
	}
	c.publish(ctx, next, event)
	return next.Clone(), nil
}

func (c *BattleCoordinator) commit(ctx context.Context, entry *battleEntry, next *models.Battle) error {
	if c.store != nil {
		if err := c.store.SaveBattle(ctx, next); err != nil {
			return fmt.Errorf("failed to persist battle: %w", err)
		}
	}
	entry.battle = next
	return nil
}

func (c *BattleCoordinator) publish(ctx context.Context, b *models.Battle, event string) {
	c.publishTo(ctx, b, event, "")
}

// publishTo fans the event out to every participant plus extra, if set.
func (c *BattleCoordinator) publishTo(ctx context.Context, b *models.Battle, event, extra string) {
	msg := models.WSMessage{
		Type:    models.WSBattleUpdate,
		Payload: models.BattleEvent{Event: event, Battle: b.Redacted()},
	}
	for _, p := range b.Participants {
		c.publisher.Publish(ctx, p.UserID, msg)
	}
	if extra != "" && !b.HasParticipant(extra) {
		c.publisher.Publish(ctx, extra, msg)
	}
}

// completeIfDone moves an active battle to completed once every
// participant's attempt is scored, and ranks them.
func completeIfDone(b *models.Battle, now time.Time) {
	for _, p := range b.Participants {
		a, ok := b.Attempts[p.UserID]
		if !ok || a.Result == nil {
			return
		}
	}
	b.Status = models.BattleCompleted
	b.CompletedAt = &now
	b.Standings = rankStandings(b)
}

// rankStandings orders by score, then time taken, then join order.
func rankStandings(b *models.Battle) []models.Standing {
	standings := make([]models.Standing, 0, len(b.Participants))
	for _, p := range b.Participants {
		a := b.Attempts[p.UserID]
		var elapsed time.Duration
		if b.StartedAt != nil {
			elapsed = a.Result.CompletedAt.Sub(*b.StartedAt)
		}
		standings = append(standings, models.Standing{
			UserID:         p.UserID,
			DisplayName:    p.DisplayName,
			Score:          a.Result.Score,
			CorrectAnswers: a.Result.CorrectAnswers,
			Elapsed:        elapsed,
			Forfeited:      a.Forfeited,
		})
	}
	sort.SliceStable(standings, func(i, j int) bool {
		if standings[i].Score != standings[j].Score {
			return standings[i].Score > standings[j].Score
		}
		return standings[i].Elapsed < standings[j].Elapsed
	})
	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings
}
