package services

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"studycompanion-backend/internal/models"
)

// SampleGenerator produces placeholder questions with four options each and
// a pseudo-randomly chosen correct answer. It is the generator used when no
// model API key is configured, and with a fixed seed it is reproducible.
type SampleGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSampleGenerator(seed int64) *SampleGenerator {
	return &SampleGenerator{rng: rand.New(rand.NewSource(seed))}
}

func (g *SampleGenerator) GenerateQuestions(ctx context.Context, topic string, difficulty models.Difficulty, count int) ([]models.Question, error) {
	if count < 1 {
		return nil, ErrInvalidCount
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := uuid.NewString()[:8]

	g.mu.Lock()
	defer g.mu.Unlock()

	questions := make([]models.Question, 0, count)
	for i := 0; i < count; i++ {
		answers := make([]models.Answer, 4)
		for j := range answers {
			answers[j] = models.Answer{
				ID:   fmt.Sprintf("a%d-%d", i, j+1),
				Text: fmt.Sprintf("Answer option %d for question %d", j+1, i+1),
			}
		}
		questions = append(questions, models.Question{
			ID:              fmt.Sprintf("q%s-%d", prefix, i),
			Text:            fmt.Sprintf("Sample question %d about %s (%s difficulty)", i+1, topic, difficulty),
			Answers:         answers,
			CorrectAnswerID: fmt.Sprintf("a%d-%d", i, g.rng.Intn(4)+1),
		})
	}
	return questions, nil
}
