package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"studycompanion-backend/internal/logger"
	"studycompanion-backend/internal/models"
)

type SessionManagerConfig struct {
	UserID   string
	Signal   *EmotionSignal
	Store    SessionStore
	Voice    VoiceIO
	Clock    Clock
	Location *time.Location // calendar-day boundary for streaks; UTC when nil
	Logger   *logger.Logger
}

// StudySessionManager owns one user's session lifecycle (Idle -> Active ->
// Idle), aggregate stats and study streak.
type StudySessionManager struct {
	userID string
	signal *EmotionSignal
	store  SessionStore
	voice  VoiceIO
	clock  Clock
	loc    *time.Location
	log    *logger.Logger

	unsubscribe func()

	mu      sync.Mutex
	profile models.LearningProfile
	active  *models.StudySession
	history []*models.StudySession // most recent first
	stats   models.SessionStats
	streak  models.StudyStreak
}

func NewStudySessionManager(cfg SessionManagerConfig) *StudySessionManager {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	m := &StudySessionManager{
		userID:  cfg.UserID,
		signal:  cfg.Signal,
		store:   cfg.Store,
		voice:   cfg.Voice,
		clock:   orSystemClock(cfg.Clock),
		loc:     loc,
		log:     logger.OrNop(cfg.Logger).With("user_id", cfg.UserID),
		profile: models.DefaultLearningProfile(),
	}
	if m.signal != nil {
		m.unsubscribe = m.signal.Subscribe(m.onEmotionSample)
	}
	return m
}

// Close detaches the manager from its emotion signal.
func (m *StudySessionManager) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func (m *StudySessionManager) onEmotionSample(sample models.EmotionSample) {
	err := m.LogEmotion(context.Background(), sample)
	if err != nil && !errors.Is(err, ErrNoActiveSession) {
		m.log.Warn("failed to log emotion sample", "error", err)
	}
}

// Restore loads persisted progress and resumes a session left open by a
// previous process. It only applies while idle.
func (m *StudySessionManager) Restore(ctx context.Context, historyLimit int) error {
	if m.store == nil {
		return nil
	}
	progress, history, err := m.store.LoadProgress(ctx, m.userID, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to load learner progress: %w", err)
	}
	open, err := m.store.LoadOpenSession(ctx, m.userID)
	if err != nil {
		return fmt.Errorf("failed to load open study session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return ErrAlreadyActive
	}
	if progress != nil {
		m.stats = progress.Stats
		m.streak = progress.Streak
		if progress.Profile.Modality != "" {
			m.profile = progress.Profile
		}
	}
	m.history = history
	if open != nil {
		m.active = open
		m.log.Info("study session resumed", "session_id", open.ID, "topic", open.Topic)
	}
	return nil
}

func (m *StudySessionManager) StartSession(ctx context.Context, topic string) (*models.StudySession, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrInvalidTopic
	}

	m.mu.Lock()
	if m.active != nil {
		m.mu.Unlock()
		return nil, ErrAlreadyActive
	}

	session := &models.StudySession{
		ID:         uuid.NewString(),
		UserID:     m.userID,
		Topic:      topic,
		StartedAt:  m.clock(),
		EmotionLog: []models.EmotionSample{},
		Activities: []models.Activity{},
	}
	if m.store != nil {
		if err := m.store.CreateSession(ctx, session); err != nil {
			m.mu.Unlock()
			return nil, fmt.Errorf("failed to persist study session: %w", err)
		}
	}
	m.active = session
	out := session.Clone()
	m.mu.Unlock()

	m.log.Info("study session started", "session_id", session.ID, "topic", topic)
	m.speak(ctx, fmt.Sprintf("Starting study session on %s. I'll adapt content based on your learning style and emotional state.", topic))
	return out, nil
}

func (m *StudySessionManager) LogActivity(ctx context.Context, activityType models.ActivityType, details map[string]interface{}) (models.Activity, error) {
	return m.logActivity(ctx, "", activityType, details)
}

// LogActivityForSession is LogActivity addressed by session id.
func (m *StudySessionManager) LogActivityForSession(ctx context.Context, sessionID string, activityType models.ActivityType, details map[string]interface{}) (models.Activity, error) {
	return m.logActivity(ctx, sessionID, activityType, details)
}

// ReportActivity lets the quiz engine feed completed quizzes back in.
func (m *StudySessionManager) ReportActivity(ctx context.Context, activityType models.ActivityType, details map[string]interface{}) error {
	_, err := m.LogActivity(ctx, activityType, details)
	return err
}

func (m *StudySessionManager) logActivity(ctx context.Context, sessionID string, activityType models.ActivityType, details map[string]interface{}) (models.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireActive(sessionID); err != nil {
		return models.Activity{}, err
	}

	copied := make(map[string]interface{}, len(details))
	for k, v := range details {
		copied[k] = v
	}
	activity := models.Activity{Type: activityType, Details: copied, Timestamp: m.clock()}
	stats := applyActivity(m.stats, activityType, copied)

	if m.store != nil {
		progress := models.LearnerProgress{UserID: m.userID, Stats: stats, Streak: m.streak, Profile: m.profile}
		if err := m.store.AppendActivity(ctx, m.active.ID, activity, progress); err != nil {
			return models.Activity{}, fmt.Errorf("failed to persist activity: %w", err)
		}
	}
	m.active.Activities = append(m.active.Activities, activity)
	m.stats = stats

	m.log.Debug("activity logged", "session_id", m.active.ID, "type", activityType)
	return activity, nil
}

// applyActivity is the stats update rule. Unknown types leave stats as-is.
func applyActivity(stats models.SessionStats, activityType models.ActivityType, details map[string]interface{}) models.SessionStats {
	switch activityType {
	case models.ActivityQuiz:
		stats.QuizzesTaken++
		stats.QuestionsAnswered += detailInt(details, "questionsAnswered")
		stats.CorrectAnswers += detailInt(details, "correctAnswers")
	case models.ActivityTopic:
		stats.TopicsExplored++
	case models.ActivityStudy:
		stats.TotalTimeStudied += detailInt(details, "duration")
	}
	return stats
}

// detailInt reads a non-negative count from an activity detail. Missing,
// malformed and negative values count as zero.
func detailInt(details map[string]interface{}, key string) int {
	var n float64
	switch v := details[key].(type) {
	case int:
		n = float64(v)
	case int32:
		n = float64(v)
	case int64:
		n = float64(v)
	case float32:
		n = float64(v)
	case float64:
		n = v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		n = f
	default:
		return 0
	}
	if n <= 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return int(math.Round(n))
}

func (m *StudySessionManager) LogEmotion(ctx context.Context, sample models.EmotionSample) error {
	return m.LogEmotionForSession(ctx, "", sample)
}

func (m *StudySessionManager) LogEmotionForSession(ctx context.Context, sessionID string, sample models.EmotionSample) error {
	if _, err := models.ParseEmotion(string(sample.Label)); err != nil {
		return newError(KindInvalidInput, "INVALID_EMOTION", err.Error())
	}
	if math.IsNaN(sample.Confidence) || sample.Confidence < 0 || sample.Confidence > 1 {
		return ErrInvalidConfidence
	}
	if sample.CapturedAt.IsZero() {
		sample.CapturedAt = m.clock()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireActive(sessionID); err != nil {
		return err
	}
	if m.store != nil {
		if err := m.store.AppendEmotion(ctx, m.active.ID, sample); err != nil {
			return fmt.Errorf("failed to persist emotion sample: %w", err)
		}
	}
	m.active.EmotionLog = append(m.active.EmotionLog, sample)
	return nil
}

func (m *StudySessionManager) EndSession(ctx context.Context) (*models.StudySession, error) {
	return m.EndSessionByID(ctx, "")
}

func (m *StudySessionManager) EndSessionByID(ctx context.Context, sessionID string) (*models.StudySession, error) {
	m.mu.Lock()
	if err := m.requireActive(sessionID); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	now := m.clock()
	ended := m.active.Clone()
	ended.EndedAt = &now
	ended.DurationMinutes = durationMinutes(ended.StartedAt, now)
	streak := nextStreak(m.streak, now, m.loc)

	if m.store != nil {
		progress := models.LearnerProgress{UserID: m.userID, Stats: m.stats, Streak: streak, Profile: m.profile}
		if err := m.store.FinishSession(ctx, ended, progress); err != nil {
			m.mu.Unlock()
			return nil, fmt.Errorf("failed to persist finished session: %w", err)
		}
	}

	m.history = append([]*models.StudySession{ended}, m.history...)
	m.active = nil
	m.streak = streak
	out := ended.Clone()
	m.mu.Unlock()

	m.log.Info("study session ended", "session_id", ended.ID, "duration_minutes", ended.DurationMinutes, "streak", streak.Count)
	m.speak(ctx, "Study session ended. Great job!")
	return out, nil
}

// requireActive must be called with mu held. An empty sessionID matches
// whatever session is active.
func (m *StudySessionManager) requireActive(sessionID string) error {
	if m.active == nil {
		if sessionID != "" {
			return ErrSessionNotFound
		}
		return ErrNoActiveSession
	}
	if sessionID != "" && sessionID != m.active.ID {
		return ErrSessionNotFound
	}
	return nil
}

func durationMinutes(start, end time.Time) int {
	d := int(math.Round(end.Sub(start).Minutes()))
	if d < 0 {
		return 0
	}
	return d
}

// nextStreak applies the calendar-day rule: one day after the last study
// date extends the streak, the same day keeps it, a longer gap resets it.
// The first session ever starts the streak at 1.
func nextStreak(prev models.StudyStreak, now time.Time, loc *time.Location) models.StudyStreak {
	today := calendarDay(now, loc)
	next := models.StudyStreak{Count: prev.Count, LastStudyDate: &today}

	if prev.LastStudyDate == nil {
		next.Count = 1
		return next
	}

	last := storedDay(*prev.LastStudyDate, loc)
	gap := daysBetween(last, today)
	switch {
	case gap == 1:
		next.Count = prev.Count + 1
	case gap > 1:
		next.Count = 0
	case gap < 0:
		// Clock went backwards; keep the later date.
		next.LastStudyDate = &last
	}
	return next
}

// calendarDay is the date an instant falls on in loc.
func calendarDay(t time.Time, loc *time.Location) time.Time {
	y, mo, d := t.In(loc).Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, loc)
}

// storedDay reads a study date by its own year, month and day. Postgres
// DATE values decode as UTC midnight and must not be shifted into loc.
func storedDay(t time.Time, loc *time.Location) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, loc)
}

func daysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// GetAdaptiveContent recommends material for topic from the current
// profile and emotion. No side effects.
func (m *StudySessionManager) GetAdaptiveContent(topic string) models.ContentPlan {
	profile := m.Profile()
	emotion := models.NeutralSample()
	if m.signal != nil {
		emotion = m.signal.CurrentEmotion()
	}
	return SelectContent(topic, profile, emotion)
}

func (m *StudySessionManager) SetProfile(ctx context.Context, profile models.LearningProfile) (models.LearningProfile, error) {
	modality, err := models.ParseModality(string(profile.Modality))
	if err != nil {
		return models.LearningProfile{}, ErrInvalidModality
	}
	difficulty, err := models.ParseDifficulty(string(profile.Difficulty))
	if err != nil {
		return models.LearningProfile{}, ErrInvalidDifficulty
	}
	profile = models.LearningProfile{Modality: modality, Difficulty: difficulty}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store != nil {
		if err := m.store.SaveProfile(ctx, m.userID, profile); err != nil {
			return models.LearningProfile{}, fmt.Errorf("failed to persist learning profile: %w", err)
		}
	}
	m.profile = profile
	return profile, nil
}

func (m *StudySessionManager) Profile() models.LearningProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile
}

func (m *StudySessionManager) Stats() models.SessionStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *StudySessionManager) Streak() models.StudyStreak {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.streak
	if s.LastStudyDate != nil {
		d := *s.LastStudyDate
		s.LastStudyDate = &d
	}
	return s
}

// Active returns a copy of the active session, or nil when idle.
func (m *StudySessionManager) Active() *models.StudySession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active.Clone()
}

func (m *StudySessionManager) History() []*models.StudySession {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.StudySession, len(m.history))
	for i, s := range m.history {
		out[i] = s.Clone()
	}
	return out
}

func (m *StudySessionManager) speak(ctx context.Context, text string) {
	if m.voice == nil {
		return
	}
	if err := m.voice.Speak(ctx, text); err != nil {
		m.log.Warn("voice narration failed", "error", err)
	}
}
