package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"studycompanion-backend/internal/models"
)

// buildQuiz asks the generator for count questions and wraps them in a new
// quiz. Nothing is mutated on failure.
func buildQuiz(ctx context.Context, gen ContentGenerator, topic string, difficulty models.Difficulty, count int, now time.Time) (*models.Quiz, error) {
	questions, err := gen.GenerateQuestions(ctx, topic, difficulty, count)
	if err != nil {
		return nil, fmt.Errorf("failed to generate questions: %w", err)
	}
	return newQuiz(topic, difficulty, questions, count, now)
}

func newQuiz(topic string, difficulty models.Difficulty, questions []models.Question, count int, now time.Time) (*models.Quiz, error) {
	if len(questions) < count {
		return nil, ErrInvalidGeneration
	}
	questions = questions[:count]
	if err := validateQuestions(questions); err != nil {
		return nil, err
	}
	q := &models.Quiz{
		ID:         uuid.NewString(),
		Topic:      topic,
		Difficulty: difficulty,
		CreatedAt:  now,
		Questions:  questions,
	}
	return q.Clone(), nil
}

// validateQuestions enforces the answer-set invariants: at least two
// answers, unique ids, and a correct id drawn from the set.
func validateQuestions(questions []models.Question) error {
	seenQuestions := make(map[string]bool, len(questions))
	for i := range questions {
		q := &questions[i]
		if q.ID == "" || seenQuestions[q.ID] || strings.TrimSpace(q.Text) == "" {
			return ErrInvalidGeneration
		}
		seenQuestions[q.ID] = true

		if len(q.Answers) < 2 {
			return ErrInvalidGeneration
		}
		seenAnswers := make(map[string]bool, len(q.Answers))
		for _, a := range q.Answers {
			if a.ID == "" || seenAnswers[a.ID] {
				return ErrInvalidGeneration
			}
			seenAnswers[a.ID] = true
		}
		if !seenAnswers[q.CorrectAnswerID] {
			return ErrInvalidGeneration
		}
	}
	return nil
}

// scoreAnswers grades over what was actually answered, not the quiz length.
func scoreAnswers(quiz *models.Quiz, answers []models.SubmittedAnswer) (correct int, score float64) {
	if len(answers) == 0 {
		return 0, 0
	}
	byID := make(map[string]*models.Question, len(quiz.Questions))
	for i := range quiz.Questions {
		byID[quiz.Questions[i].ID] = &quiz.Questions[i]
	}
	for _, a := range answers {
		if q, ok := byID[a.QuestionID]; ok && q.CorrectAnswerID == a.AnswerID {
			correct++
		}
	}
	return correct, 100 * float64(correct) / float64(len(answers))
}

func newResult(quiz *models.Quiz, userID string, answers []models.SubmittedAnswer, now time.Time) *models.QuizResult {
	correct, score := scoreAnswers(quiz, answers)
	return &models.QuizResult{
		QuizID:         quiz.ID,
		UserID:         userID,
		Topic:          quiz.Topic,
		Score:          score,
		TotalQuestions: len(answers),
		CorrectAnswers: correct,
		CompletedAt:    now,
		Answers:        append([]models.SubmittedAnswer(nil), answers...),
	}
}

// contentTopic derives a display topic for uploaded material.
func contentTopic(content, contentType string) string {
	if contentType == "text" {
		r := []rune(strings.TrimSpace(content))
		if len(r) > 20 {
			r = r[:20]
		}
		return string(r) + "..."
	}
	return "Uploaded " + contentType
}
