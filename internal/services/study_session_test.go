package services

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studycompanion-backend/internal/models"
)

var day0 = time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, clock *fakeClock, store SessionStore) (*StudySessionManager, *ScriptedSensor, *LogVoice) {
	t.Helper()
	sensor := &ScriptedSensor{}
	voice := NewLogVoice(nil)
	m := NewStudySessionManager(SessionManagerConfig{
		UserID: "user-1",
		Signal: NewEmotionSignal(sensor, nil),
		Store:  store,
		Voice:  voice,
		Clock:  clock.Now,
	})
	t.Cleanup(m.Close)
	return m, sensor, voice
}

func TestStudySession_StartTwiceFails(t *testing.T) {
	m, _, _ := newTestManager(t, newFakeClock(day0), nil)
	ctx := context.Background()

	_, err := m.StartSession(ctx, "Algebra")
	require.NoError(t, err)

	_, err = m.StartSession(ctx, "Geometry")
	assert.ErrorIs(t, err, ErrAlreadyActive)
	assert.Equal(t, KindStateConflict, KindOf(err))
	assert.Equal(t, "Algebra", m.Active().Topic)
}

func TestStudySession_RequiresActiveSession(t *testing.T) {
	m, _, _ := newTestManager(t, newFakeClock(day0), nil)
	ctx := context.Background()

	_, err := m.EndSession(ctx)
	assert.ErrorIs(t, err, ErrNoActiveSession)

	_, err = m.LogActivity(ctx, models.ActivityTopic, nil)
	assert.ErrorIs(t, err, ErrNoActiveSession)

	err = m.LogEmotion(ctx, models.EmotionSample{Label: models.EmotionHappy})
	assert.ErrorIs(t, err, ErrNoActiveSession)

	assert.Equal(t, models.SessionStats{}, m.Stats())
}

func TestStudySession_StartRejectsBlankTopic(t *testing.T) {
	m, _, _ := newTestManager(t, newFakeClock(day0), nil)
	_, err := m.StartSession(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidTopic)
	assert.Nil(t, m.Active())
}

func TestStudySession_QuizStatsAreSums(t *testing.T) {
	tests := []struct {
		name    string
		answers [][2]int
	}{
		{"single", [][2]int{{5, 4}}},
		{"several", [][2]int{{5, 4}, {10, 7}, {3, 0}}},
		{"zeros", [][2]int{{0, 0}, {0, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, _ := newTestManager(t, newFakeClock(day0), nil)
			ctx := context.Background()
			_, err := m.StartSession(ctx, "Algebra")
			require.NoError(t, err)

			var q, c int
			for _, a := range tt.answers {
				_, err := m.LogActivity(ctx, models.ActivityQuiz, map[string]interface{}{
					"questionsAnswered": a[0],
					"correctAnswers":    a[1],
				})
				require.NoError(t, err)
				q += a[0]
				c += a[1]
			}

			stats := m.Stats()
			assert.Equal(t, len(tt.answers), stats.QuizzesTaken)
			assert.Equal(t, q, stats.QuestionsAnswered)
			assert.Equal(t, c, stats.CorrectAnswers)
			assert.Zero(t, stats.TopicsExplored)
			assert.Zero(t, stats.TotalTimeStudied)
		})
	}
}

func TestStudySession_ActivityTypes(t *testing.T) {
	m, _, _ := newTestManager(t, newFakeClock(day0), nil)
	ctx := context.Background()
	_, err := m.StartSession(ctx, "Biology")
	require.NoError(t, err)

	_, err = m.LogActivity(ctx, models.ActivityTopic, map[string]interface{}{"topic": "cells"})
	require.NoError(t, err)
	_, err = m.LogActivity(ctx, models.ActivityStudy, map[string]interface{}{"duration": json.Number("25")})
	require.NoError(t, err)
	_, err = m.LogActivity(ctx, models.ActivityStudy, map[string]interface{}{"duration": 15.0})
	require.NoError(t, err)
	_, err = m.LogActivity(ctx, "flashcards", map[string]interface{}{"count": 12})
	require.NoError(t, err)
	_, err = m.LogActivity(ctx, models.ActivityStudy, map[string]interface{}{"duration": -30})
	require.NoError(t, err)

	stats := m.Stats()
	assert.Equal(t, 1, stats.TopicsExplored)
	assert.Equal(t, 40, stats.TotalTimeStudied)
	assert.Zero(t, stats.QuizzesTaken)
	assert.Len(t, m.Active().Activities, 5)
}

func TestStudySession_EndToEnd(t *testing.T) {
	clock := newFakeClock(day0)
	m, _, voice := newTestManager(t, clock, nil)
	ctx := context.Background()

	started, err := m.StartSession(ctx, "Algebra")
	require.NoError(t, err)
	_, err = m.LogActivity(ctx, models.ActivityQuiz, map[string]interface{}{"questionsAnswered": 5, "correctAnswers": 4})
	require.NoError(t, err)

	clock.Advance(12*time.Minute + 40*time.Second)
	ended, err := m.EndSession(ctx)
	require.NoError(t, err)

	assert.Equal(t, started.ID, ended.ID)
	require.NotNil(t, ended.EndedAt)
	assert.Equal(t, 13, ended.DurationMinutes)
	assert.Equal(t, 1, m.Stats().QuizzesTaken)
	assert.Nil(t, m.Active())

	history := m.History()
	require.Len(t, history, 1)
	assert.Equal(t, ended.ID, history[0].ID)

	streak := m.Streak()
	assert.Equal(t, 1, streak.Count)

	spoken := voice.Spoken()
	require.Len(t, spoken, 2)
	assert.Contains(t, spoken[0], "Starting study session on Algebra")
	assert.Equal(t, "Study session ended. Great job!", spoken[1])

	// A new session may start immediately and lands first in history.
	_, err = m.StartSession(ctx, "Geometry")
	require.NoError(t, err)
	_, err = m.EndSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Geometry", m.History()[0].Topic)
}

func TestStudySession_DurationRoundsToNearestMinute(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		want    int
	}{
		{0, 0},
		{29 * time.Second, 0},
		{30 * time.Second, 1},
		{89 * time.Second, 1},
		{90 * time.Second, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, durationMinutes(day0, day0.Add(tt.elapsed)), tt.elapsed.String())
	}
	assert.Equal(t, 0, durationMinutes(day0, day0.Add(-time.Minute)))
}

func TestNextStreak(t *testing.T) {
	last := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	prev := models.StudyStreak{Count: 4, LastStudyDate: &last}

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"same day", time.Date(2024, time.March, 10, 23, 59, 0, 0, time.UTC), 4},
		{"next day", time.Date(2024, time.March, 11, 0, 1, 0, 0, time.UTC), 5},
		{"two days later", time.Date(2024, time.March, 12, 8, 0, 0, 0, time.UTC), 0},
		{"a month later", time.Date(2024, time.April, 10, 8, 0, 0, 0, time.UTC), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextStreak(prev, tt.now, time.UTC)
			assert.Equal(t, tt.want, got.Count)
			require.NotNil(t, got.LastStudyDate)
			assert.Equal(t, tt.now.Day(), got.LastStudyDate.Day())
		})
	}

	first := nextStreak(models.StudyStreak{}, day0, time.UTC)
	assert.Equal(t, 1, first.Count)
}

func TestNextStreak_UsesConfiguredTimezone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	last := time.Date(2024, time.March, 10, 0, 0, 0, 0, tokyo)
	prev := models.StudyStreak{Count: 2, LastStudyDate: &last}

	// 16:00 UTC on the 10th is already the 11th in Tokyo.
	now := time.Date(2024, time.March, 10, 16, 0, 0, 0, time.UTC)
	assert.Equal(t, 3, nextStreak(prev, now, tokyo).Count)
	assert.Equal(t, 2, nextStreak(prev, now, time.UTC).Count)
}

func TestNextStreak_StoredDateWestOfUTC(t *testing.T) {
	// DATE columns come back from Postgres as UTC midnight.
	stored := time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC)
	prev := models.StudyStreak{Count: 3, LastStudyDate: &stored}
	est := time.FixedZone("EST", -5*60*60)

	sameDay := nextStreak(prev, time.Date(2026, time.October, 16, 20, 0, 0, 0, est), est)
	assert.Equal(t, 3, sameDay.Count)
	require.NotNil(t, sameDay.LastStudyDate)
	assert.Equal(t, 16, sameDay.LastStudyDate.Day())

	nextDay := nextStreak(prev, time.Date(2026, time.October, 17, 8, 0, 0, 0, est), est)
	assert.Equal(t, 4, nextDay.Count)

	backwards := nextStreak(prev, time.Date(2026, time.October, 15, 8, 0, 0, 0, est), est)
	assert.Equal(t, 3, backwards.Count)
	require.NotNil(t, backwards.LastStudyDate)
	assert.Equal(t, 16, backwards.LastStudyDate.Day())
}

func TestStudySession_StreakAcrossDays(t *testing.T) {
	clock := newFakeClock(day0)
	m, _, _ := newTestManager(t, clock, nil)
	ctx := context.Background()

	studyOnce := func() {
		_, err := m.StartSession(ctx, "Chemistry")
		require.NoError(t, err)
		clock.Advance(10 * time.Minute)
		_, err = m.EndSession(ctx)
		require.NoError(t, err)
	}

	studyOnce()
	assert.Equal(t, 1, m.Streak().Count)

	clock.Advance(24 * time.Hour)
	studyOnce()
	assert.Equal(t, 2, m.Streak().Count)

	studyOnce()
	assert.Equal(t, 2, m.Streak().Count)

	clock.Advance(48 * time.Hour)
	studyOnce()
	assert.Equal(t, 0, m.Streak().Count)
}

func TestStudySession_EmotionSamplesLogIntoActiveSession(t *testing.T) {
	m, sensor, _ := newTestManager(t, newFakeClock(day0), nil)
	ctx := context.Background()
	require.NoError(t, m.signal.SetActive(ctx, true))

	sensor.Emit(models.EmotionSample{Label: models.EmotionBored, Confidence: 0.6})
	_, err := m.StartSession(ctx, "History")
	require.NoError(t, err)

	sensor.Emit(
		models.EmotionSample{Label: models.EmotionEngaged, Confidence: 0.9},
		models.EmotionSample{Label: models.EmotionHappy, Confidence: 0.7},
	)
	require.NoError(t, m.LogEmotion(ctx, models.EmotionSample{Label: models.EmotionConfused, Confidence: 0.5}))

	log := m.Active().EmotionLog
	require.Len(t, log, 3)
	assert.Equal(t, models.EmotionEngaged, log[0].Label)
	assert.Equal(t, models.EmotionConfused, log[2].Label)
	assert.False(t, log[2].CapturedAt.IsZero())
	assert.Equal(t, models.SessionStats{}, m.Stats())
}

func TestStudySession_LogEmotionRejectsUnknownLabel(t *testing.T) {
	m, _, _ := newTestManager(t, newFakeClock(day0), nil)
	ctx := context.Background()
	_, err := m.StartSession(ctx, "History")
	require.NoError(t, err)

	err = m.LogEmotion(ctx, models.EmotionSample{Label: "elated"})
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestStudySession_LogEmotionRejectsConfidenceOutOfRange(t *testing.T) {
	m, _, _ := newTestManager(t, newFakeClock(day0), nil)
	ctx := context.Background()
	_, err := m.StartSession(ctx, "History")
	require.NoError(t, err)

	for _, c := range []float64{7.5, -0.1, math.NaN()} {
		err = m.LogEmotion(ctx, models.EmotionSample{Label: models.EmotionHappy, Confidence: c})
		assert.ErrorIs(t, err, ErrInvalidConfidence, "confidence %v", c)
	}
	assert.Empty(t, m.Active().EmotionLog)

	require.NoError(t, m.LogEmotion(ctx, models.EmotionSample{Label: models.EmotionHappy, Confidence: 1}))
	require.NoError(t, m.LogEmotion(ctx, models.EmotionSample{Label: models.EmotionSad, Confidence: 0}))
	assert.Len(t, m.Active().EmotionLog, 2)
}

func TestStudySession_AdaptiveContentUsesProfileAndEmotion(t *testing.T) {
	m, sensor, _ := newTestManager(t, newFakeClock(day0), nil)
	ctx := context.Background()

	_, err := m.SetProfile(ctx, models.LearningProfile{Modality: models.ModalityAuditory, Difficulty: models.DifficultyHard})
	require.NoError(t, err)
	require.NoError(t, m.signal.SetActive(ctx, true))
	sensor.Emit(models.EmotionSample{Label: models.EmotionFrustrated, Confidence: 0.9})

	plan := m.GetAdaptiveContent("Music theory")
	assert.Equal(t, "lecture", plan.Primary)
	require.Len(t, plan.Elements, 4)
	assert.Equal(t, "encouragement", plan.Elements[0].Type)
	assert.Nil(t, m.Active())
}

func TestStudySession_SetProfileValidates(t *testing.T) {
	m, _, _ := newTestManager(t, newFakeClock(day0), nil)
	ctx := context.Background()

	_, err := m.SetProfile(ctx, models.LearningProfile{Modality: "smell"})
	assert.ErrorIs(t, err, ErrInvalidModality)
	_, err = m.SetProfile(ctx, models.LearningProfile{Modality: models.ModalityReading, Difficulty: "extreme"})
	assert.ErrorIs(t, err, ErrInvalidDifficulty)
	assert.Equal(t, models.DefaultLearningProfile(), m.Profile())

	p, err := m.SetProfile(ctx, models.LearningProfile{Modality: "Reading"})
	require.NoError(t, err)
	assert.Equal(t, models.ModalityReading, p.Modality)
	assert.Equal(t, models.DifficultyMedium, p.Difficulty)
}

func TestStudySession_KeyedOperations(t *testing.T) {
	m, _, _ := newTestManager(t, newFakeClock(day0), nil)
	ctx := context.Background()

	_, err := m.EndSessionByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	session, err := m.StartSession(ctx, "Art")
	require.NoError(t, err)

	_, err = m.LogActivityForSession(ctx, "other", models.ActivityTopic, nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = m.LogActivityForSession(ctx, session.ID, models.ActivityTopic, nil)
	require.NoError(t, err)

	ended, err := m.EndSessionByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, ended.ID)
}

func TestStudySession_StoreFailureLeavesStateUnchanged(t *testing.T) {
	store := newMemorySessionStore()
	clock := newFakeClock(day0)
	m, _, _ := newTestManager(t, clock, store)
	ctx := context.Background()

	store.setFail(true)
	_, err := m.StartSession(ctx, "Latin")
	require.ErrorIs(t, err, errStoreDown)
	assert.Nil(t, m.Active())

	store.setFail(false)
	_, err = m.StartSession(ctx, "Latin")
	require.NoError(t, err)

	store.setFail(true)
	_, err = m.LogActivity(ctx, models.ActivityQuiz, map[string]interface{}{"questionsAnswered": 3})
	require.Error(t, err)
	assert.Zero(t, m.Stats().QuizzesTaken)
	assert.Empty(t, m.Active().Activities)

	_, err = m.EndSession(ctx)
	require.Error(t, err)
	assert.NotNil(t, m.Active())
	assert.Empty(t, m.History())
	assert.Zero(t, m.Streak().Count)

	store.setFail(false)
	_, err = m.EndSession(ctx)
	require.NoError(t, err)
	assert.Len(t, store.history, 1)
	assert.Equal(t, 1, store.progress["user-1"].Streak.Count)
}

func TestStudySession_Restore(t *testing.T) {
	store := newMemorySessionStore()
	clock := newFakeClock(day0)
	first, _, _ := newTestManager(t, clock, store)
	ctx := context.Background()

	_, err := first.SetProfile(ctx, models.LearningProfile{Modality: models.ModalityKinesthetic})
	require.NoError(t, err)
	_, err = first.StartSession(ctx, "Robotics")
	require.NoError(t, err)
	_, err = first.LogActivity(ctx, models.ActivityTopic, nil)
	require.NoError(t, err)
	_, err = first.EndSession(ctx)
	require.NoError(t, err)

	second, _, _ := newTestManager(t, clock, store)
	require.NoError(t, second.Restore(ctx, 10))

	assert.Equal(t, 1, second.Stats().TopicsExplored)
	assert.Equal(t, 1, second.Streak().Count)
	assert.Equal(t, models.ModalityKinesthetic, second.Profile().Modality)
	require.Len(t, second.History(), 1)
	assert.Equal(t, "Robotics", second.History()[0].Topic)
}

func TestStudySession_RestoreMidSession(t *testing.T) {
	store := newMemorySessionStore()
	clock := newFakeClock(day0)
	first, _, _ := newTestManager(t, clock, store)
	ctx := context.Background()

	started, err := first.StartSession(ctx, "Geology")
	require.NoError(t, err)
	_, err = first.LogActivity(ctx, models.ActivityQuiz, map[string]interface{}{"questionsAnswered": 5, "correctAnswers": 4})
	require.NoError(t, err)
	_, err = first.LogActivity(ctx, models.ActivityTopic, nil)
	require.NoError(t, err)
	require.NoError(t, first.LogEmotion(ctx, models.EmotionSample{Label: models.EmotionEngaged, Confidence: 0.8}))

	// A new process picks up where the old one stopped.
	second, _, _ := newTestManager(t, clock, store)
	require.NoError(t, second.Restore(ctx, 10))

	assert.Equal(t, models.SessionStats{QuizzesTaken: 1, QuestionsAnswered: 5, CorrectAnswers: 4, TopicsExplored: 1}, second.Stats())
	active := second.Active()
	require.NotNil(t, active)
	assert.Equal(t, started.ID, active.ID)
	assert.Len(t, active.Activities, 2)
	assert.Len(t, active.EmotionLog, 1)

	clock.Advance(30 * time.Minute)
	ended, err := second.EndSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, ended.DurationMinutes)
	assert.Equal(t, 1, second.Stats().QuizzesTaken)

	third, _, _ := newTestManager(t, clock, store)
	require.NoError(t, third.Restore(ctx, 10))
	assert.Nil(t, third.Active())
	assert.Equal(t, 1, third.Stats().TopicsExplored)
}

func TestStudySession_SnapshotsDoNotAlias(t *testing.T) {
	m, _, _ := newTestManager(t, newFakeClock(day0), nil)
	ctx := context.Background()
	_, err := m.StartSession(ctx, "Poetry")
	require.NoError(t, err)
	_, err = m.LogActivity(ctx, models.ActivityTopic, map[string]interface{}{"topic": "sonnets"})
	require.NoError(t, err)

	snap := m.Active()
	snap.Activities[0].Details["topic"] = "haiku"
	snap.Topic = "Prose"

	again := m.Active()
	assert.Equal(t, "Poetry", again.Topic)
	assert.Equal(t, "sonnets", again.Activities[0].Details["topic"])
}
