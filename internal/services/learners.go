package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"studycompanion-backend/internal/logger"
	"studycompanion-backend/internal/models"
)

// Learner is one user's wired object graph.
type Learner struct {
	UserID    string
	Emotion   *EmotionSignal
	Sessions  *StudySessionManager
	Quizzes   *QuizEngine
	Voice     *LogVoice
	Assistant *VoiceAssistant

	stopPublishing func()
	lastUsed       atomic.Int64 // unix nanos
}

// busy reports whether the learner holds state that only lives in memory.
func (l *Learner) busy() bool {
	return l.Sessions.Active() != nil || l.Quizzes.Status() == models.QuizStatusInProgress || l.Emotion.Active()
}

type LearnersConfig struct {
	Sensors      func(userID string) AffectSensor
	Generator    ContentGenerator
	SessionStore SessionStore
	QuizStore    QuizStore
	Publisher    Publisher
	Clock        Clock
	Location     *time.Location
	HistoryLimit int
	IdleTTL      time.Duration
	Logger       *logger.Logger
}

// Learners lazily builds and caches a Learner per user id.
type Learners struct {
	cfg   LearnersConfig
	log   *logger.Logger
	group singleflight.Group

	mu       sync.RWMutex
	learners map[string]*Learner
}

func NewLearners(cfg LearnersConfig) *Learners {
	if cfg.Generator == nil {
		cfg.Generator = NewSampleGenerator(time.Now().UnixNano())
	}
	if cfg.Publisher == nil {
		cfg.Publisher = nopPublisher{}
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	return &Learners{
		cfg:      cfg,
		log:      logger.OrNop(cfg.Logger),
		learners: make(map[string]*Learner),
	}
}

// Get returns the user's Learner, restoring persisted progress on first use.
// Concurrent first calls for the same user share one build.
func (l *Learners) Get(ctx context.Context, userID string) (*Learner, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	l.mu.RLock()
	learner, ok := l.learners[userID]
	l.mu.RUnlock()
	if ok {
		learner.touch(l.now())
		return learner, nil
	}

	v, err, _ := l.group.Do(userID, func() (interface{}, error) {
		l.mu.RLock()
		existing, ok := l.learners[userID]
		l.mu.RUnlock()
		if ok {
			return existing, nil
		}

		built, err := l.build(ctx, userID)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.learners[userID] = built
		l.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	learner = v.(*Learner)
	learner.touch(l.now())
	return learner, nil
}

func (l *Learner) touch(now time.Time) { l.lastUsed.Store(now.UnixNano()) }

func (l *Learners) now() time.Time {
	if l.cfg.Clock != nil {
		return l.cfg.Clock()
	}
	return time.Now()
}

// Cleanup evicts idle learners every IdleTTL until ctx is done.
func (l *Learners) Cleanup(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.IdleTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evictIdle(l.now())
		}
	}
}

func (l *Learners) evictIdle(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, learner := range l.learners {
		idle := now.Sub(time.Unix(0, learner.lastUsed.Load()))
		if idle <= l.cfg.IdleTTL || learner.busy() {
			continue
		}
		l.release(id, learner)
		l.log.Debug("evicted idle learner", "user_id", id, "idle", idle)
	}
}

// release must be called with mu held.
func (l *Learners) release(id string, learner *Learner) {
	if err := learner.Emotion.SetActive(context.Background(), false); err != nil {
		l.log.Warn("failed to stop emotion detection", "user_id", id, "error", err)
	}
	learner.stopPublishing()
	learner.Sessions.Close()
	delete(l.learners, id)
}

func (l *Learners) build(ctx context.Context, userID string) (*Learner, error) {
	log := l.log.With("user_id", userID)

	var sensor AffectSensor
	if l.cfg.Sensors != nil {
		sensor = l.cfg.Sensors(userID)
	}
	signal := NewEmotionSignal(sensor, log)
	voice := NewLogVoice(log)

	sessions := NewStudySessionManager(SessionManagerConfig{
		UserID:   userID,
		Signal:   signal,
		Store:    l.cfg.SessionStore,
		Voice:    voice,
		Clock:    l.cfg.Clock,
		Location: l.cfg.Location,
		Logger:   log,
	})
	quizzes := NewQuizEngine(QuizEngineConfig{
		UserID:    userID,
		Generator: l.cfg.Generator,
		Reporter:  sessions,
		Store:     l.cfg.QuizStore,
		Clock:     l.cfg.Clock,
		Logger:    log,
	})

	if err := sessions.Restore(ctx, l.cfg.HistoryLimit); err != nil {
		sessions.Close()
		return nil, fmt.Errorf("failed to restore learner %s: %w", userID, err)
	}
	if err := quizzes.RestoreHistory(ctx, l.cfg.HistoryLimit); err != nil {
		sessions.Close()
		return nil, fmt.Errorf("failed to restore learner %s: %w", userID, err)
	}

	pub := l.cfg.Publisher
	stop := signal.Subscribe(func(sample models.EmotionSample) {
		pub.Publish(context.Background(), userID, models.WSMessage{Type: models.WSEmotionUpdate, Payload: sample})
	})

	return &Learner{
		UserID:         userID,
		Emotion:        signal,
		Sessions:       sessions,
		Quizzes:        quizzes,
		Voice:          voice,
		Assistant:      NewVoiceAssistant(voice, sessions, log),
		stopPublishing: stop,
	}, nil
}

// Close stops every learner's emotion detection.
func (l *Learners) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, learner := range l.learners {
		l.release(id, learner)
	}
}
