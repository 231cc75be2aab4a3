package services

import (
	"context"
	"errors"
	"math"
	"sync"

	"studycompanion-backend/internal/logger"
	"studycompanion-backend/internal/models"
)

// EmotionSignal holds the latest affect estimate and fans samples out to
// subscribers. Readers always see a whole sample.
type EmotionSignal struct {
	sensor AffectSensor
	log    *logger.Logger

	toggleMu sync.Mutex

	mu      sync.RWMutex
	active  bool
	current models.EmotionSample
	lastErr error
	subs    map[int]func(models.EmotionSample)
	nextSub int
}

func NewEmotionSignal(sensor AffectSensor, log *logger.Logger) *EmotionSignal {
	s := &EmotionSignal{
		sensor:  sensor,
		log:     logger.OrNop(log),
		current: models.NeutralSample(),
		subs:    make(map[int]func(models.EmotionSample)),
	}
	if sensor != nil {
		sensor.OnSample(s.receive)
	}
	return s
}

// CurrentEmotion returns the latest sample, or neutral with zero confidence
// while detection is off.
func (s *EmotionSignal) CurrentEmotion() models.EmotionSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.active {
		return models.NeutralSample()
	}
	return s.current
}

func (s *EmotionSignal) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// LastError reports why detection last failed to start, if it did.
func (s *EmotionSignal) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Subscribe registers callback for every new sample and returns a func
// that removes it.
func (s *EmotionSignal) Subscribe(callback func(models.EmotionSample)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = callback
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// SetActive starts or stops sampling. A sensor that refuses to start leaves
// detection inactive and the failure is returned as ErrPermissionDenied.
func (s *EmotionSignal) SetActive(ctx context.Context, active bool) error {
	s.toggleMu.Lock()
	defer s.toggleMu.Unlock()

	if active == s.Active() {
		return nil
	}

	if !active {
		if s.sensor != nil {
			s.sensor.Stop()
		}
		s.mu.Lock()
		s.active = false
		s.current = models.NeutralSample()
		s.mu.Unlock()
		s.log.Debug("emotion detection stopped")
		return nil
	}

	if s.sensor == nil {
		return s.fail(ErrPermissionDenied)
	}
	if err := s.sensor.Start(ctx); err != nil {
		if !errors.Is(err, ErrPermissionDenied) {
			s.log.Warn("affect sensor failed to start", "error", err)
		}
		return s.fail(ErrPermissionDenied)
	}

	s.mu.Lock()
	s.active = true
	s.lastErr = nil
	s.mu.Unlock()
	s.log.Debug("emotion detection started")
	return nil
}

func (s *EmotionSignal) fail(err error) error {
	s.mu.Lock()
	s.active = false
	s.lastErr = err
	s.mu.Unlock()
	return err
}

func (s *EmotionSignal) receive(sample models.EmotionSample) {
	if _, err := models.ParseEmotion(string(sample.Label)); err != nil {
		s.log.Warn("dropping sample with unknown label", "label", sample.Label)
		return
	}
	if math.IsNaN(sample.Confidence) {
		s.log.Warn("dropping sample with invalid confidence", "label", sample.Label)
		return
	}
	if sample.Confidence < 0 {
		sample.Confidence = 0
	} else if sample.Confidence > 1 {
		sample.Confidence = 1
	}

	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.current = sample
	subs := make([]func(models.EmotionSample), 0, len(s.subs))
	for _, cb := range s.subs {
		subs = append(subs, cb)
	}
	s.mu.Unlock()

	for _, cb := range subs {
		cb(sample)
	}
}

var emotionRecommendations = map[models.Emotion]models.EmotionRecommendation{
	models.EmotionFrustrated: {
		Message: "I notice you might be feeling frustrated. Let's take a short break or try a different approach.",
		Actions: []models.RecommendationAction{
			{Label: "Take a 5-minute break", Action: "break"},
			{Label: "Try a simpler explanation", Action: "simplify"},
			{Label: "Switch to a different topic", Action: "switch"},
		},
	},
	models.EmotionBored: {
		Message: "You seem a bit bored. Let's make this more engaging!",
		Actions: []models.RecommendationAction{
			{Label: "Try a quick quiz game", Action: "quiz"},
			{Label: "Watch an interactive demo", Action: "demo"},
			{Label: "Apply this to a real-world example", Action: "apply"},
		},
	},
	models.EmotionConfused: {
		Message: "I sense you might be confused. Let me help clarify things.",
		Actions: []models.RecommendationAction{
			{Label: "View step-by-step explanation", Action: "steps"},
			{Label: "See a visual diagram", Action: "visual"},
			{Label: "Try a simpler example", Action: "simple"},
		},
	},
	models.EmotionSad: {
		Message: "You seem a bit down. Let's find something to brighten your day while learning.",
		Actions: []models.RecommendationAction{
			{Label: "Try a fun learning game", Action: "game"},
			{Label: "Watch an inspiring story", Action: "inspire"},
			{Label: "Set a small achievable goal", Action: "goal"},
		},
	},
	models.EmotionHappy:   momentumRecommendation,
	models.EmotionEngaged: momentumRecommendation,
}

var momentumRecommendation = models.EmotionRecommendation{
	Message: "You're in a great learning state! Let's keep the momentum going.",
	Actions: []models.RecommendationAction{
		{Label: "Tackle a challenging problem", Action: "challenge"},
		{Label: "Explore an advanced concept", Action: "advance"},
		{Label: "Help explain to others", Action: "teach"},
	},
}

var defaultRecommendation = models.EmotionRecommendation{
	Message: "Ready to continue learning? Let me know how I can help.",
	Actions: []models.RecommendationAction{
		{Label: "Suggest a study topic", Action: "suggest"},
		{Label: "Create a practice quiz", Action: "quiz"},
		{Label: "Summarize what we've learned", Action: "summary"},
	},
}

// RecommendationsFor returns the supportive prompt for an emotion.
func RecommendationsFor(e models.Emotion) models.EmotionRecommendation {
	rec, ok := emotionRecommendations[e]
	if !ok {
		rec = defaultRecommendation
	}
	rec.Actions = append([]models.RecommendationAction(nil), rec.Actions...)
	return rec
}
