package services

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"studycompanion-backend/internal/models"
)

// AffectSensor emits emotion samples while started.
type AffectSensor interface {
	Start(ctx context.Context) error
	Stop()
	OnSample(callback func(models.EmotionSample))
}

// simulatedLabels mirrors the labels the camera model can classify.
var simulatedLabels = []models.Emotion{
	models.EmotionHappy, models.EmotionSad, models.EmotionNeutral, models.EmotionConfused,
	models.EmotionFrustrated, models.EmotionBored, models.EmotionEngaged,
}

// SimulatedSensor draws a pseudo-random sample every Interval. With a fixed
// seed the sequence is reproducible.
type SimulatedSensor struct {
	Interval time.Duration
	Denied   bool

	mu       sync.Mutex
	rng      *rand.Rand
	clock    Clock
	callback func(models.EmotionSample)
	stop     chan struct{}
	done     chan struct{}
}

func NewSimulatedSensor(interval time.Duration, seed int64, clock Clock) *SimulatedSensor {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimulatedSensor{
		Interval: interval,
		rng:      rand.New(rand.NewSource(seed)),
		clock:    orSystemClock(clock),
	}
}

func (s *SimulatedSensor) OnSample(callback func(models.EmotionSample)) {
	s.mu.Lock()
	s.callback = callback
	s.mu.Unlock()
}

func (s *SimulatedSensor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Denied {
		return ErrPermissionDenied
	}
	if s.stop != nil {
		return nil
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.stop, s.done)
	return nil
}

func (s *SimulatedSensor) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (s *SimulatedSensor) loop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.emit()
		}
	}
}

func (s *SimulatedSensor) emit() {
	s.mu.Lock()
	sample := s.next()
	cb := s.callback
	s.mu.Unlock()
	if cb != nil {
		cb(sample)
	}
}

// next must be called with mu held.
func (s *SimulatedSensor) next() models.EmotionSample {
	return models.EmotionSample{
		Label:      simulatedLabels[s.rng.Intn(len(simulatedLabels))],
		Confidence: s.rng.Float64()*0.5 + 0.5,
		CapturedAt: s.clock(),
	}
}

// ScriptedSensor emits exactly the samples handed to Emit. Test double.
type ScriptedSensor struct {
	StartErr error

	mu       sync.Mutex
	started  bool
	callback func(models.EmotionSample)
}

func (s *ScriptedSensor) OnSample(callback func(models.EmotionSample)) {
	s.mu.Lock()
	s.callback = callback
	s.mu.Unlock()
}

func (s *ScriptedSensor) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.StartErr != nil {
		return s.StartErr
	}
	s.started = true
	return nil
}

func (s *ScriptedSensor) Stop() {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
}

// Emit delivers samples synchronously; it is a no-op while stopped.
func (s *ScriptedSensor) Emit(samples ...models.EmotionSample) {
	for _, sample := range samples {
		s.mu.Lock()
		cb, started := s.callback, s.started
		s.mu.Unlock()
		if started && cb != nil {
			cb(sample)
		}
	}
}
