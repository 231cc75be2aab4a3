package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"studycompanion-backend/internal/logger"
	"studycompanion-backend/internal/models"
)

// maxSourceChars bounds how much uploaded text goes into one prompt.
const maxSourceChars = 60000

// GeminiGenerator is the production ContentGenerator.
type GeminiGenerator struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	log      *logger.Logger
	rateChan chan struct{} // Token bucket
}

func NewGeminiGenerator(ctx context.Context, apiKey string, concurrentReqs int, log *logger.Logger) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel("gemini-2.0-flash")
	model.SetTemperature(0.3)
	model.SetTopP(0.95)
	model.ResponseMIMEType = "application/json"

	if concurrentReqs < 1 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiGenerator{
		client:   client,
		model:    model,
		log:      logger.OrNop(log),
		rateChan: rateChan,
	}, nil
}

func (g *GeminiGenerator) Close() {
	g.client.Close()
}

// acquireRate blocks until a rate slot is available
func (g *GeminiGenerator) acquireRate(ctx context.Context) error {
	select {
	case <-g.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (g *GeminiGenerator) releaseRate() {
	g.rateChan <- struct{}{}
}

func (g *GeminiGenerator) GenerateQuestions(ctx context.Context, topic string, difficulty models.Difficulty, count int) ([]models.Question, error) {
	if count < 1 {
		return nil, ErrInvalidCount
	}
	return g.generate(ctx, buildQuizPrompt(topic, "", difficulty, count), count)
}

func (g *GeminiGenerator) GenerateQuestionsFromSource(ctx context.Context, source string, difficulty models.Difficulty, count int) ([]models.Question, error) {
	if count < 1 {
		return nil, ErrInvalidCount
	}
	if len(source) > maxSourceChars {
		source = source[:maxSourceChars]
	}
	return g.generate(ctx, buildQuizPrompt("", source, difficulty, count), count)
}

func (g *GeminiGenerator) generate(ctx context.Context, prompt string, count int) ([]models.Question, error) {
	if err := g.acquireRate(ctx); err != nil {
		return nil, err
	}
	defer g.releaseRate()

	start := time.Now()
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	questions, err := parseGeneratedQuestions(extractText(resp))
	if err != nil {
		return nil, err
	}
	g.log.Debug("questions generated", "requested", count, "valid", len(questions), "took", time.Since(start))
	if len(questions) < count {
		return nil, fmt.Errorf("%w: wanted %d questions, got %d usable", ErrInvalidGeneration, count, len(questions))
	}
	return questions[:count], nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

// generatedQuestion is the JSON shape requested from the model.
type generatedQuestion struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
}

// parseGeneratedQuestions tolerates markdown fences and leading chatter
// around the JSON array, then converts to engine questions.
func parseGeneratedQuestions(rawText string) ([]models.Question, error) {
	rawText = strings.TrimSpace(rawText)
	rawText = strings.TrimPrefix(rawText, "```json")
	rawText = strings.TrimPrefix(rawText, "```")
	rawText = strings.TrimSuffix(rawText, "```")
	rawText = strings.TrimSpace(rawText)

	var generated []generatedQuestion
	if err := json.Unmarshal([]byte(rawText), &generated); err != nil {
		start := strings.Index(rawText, "[")
		end := strings.LastIndex(rawText, "]")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("%w: response is not a JSON array", ErrInvalidGeneration)
		}
		if err := json.Unmarshal([]byte(rawText[start:end+1]), &generated); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGeneration, err)
		}
	}
	return toQuestions(generated), nil
}

// toQuestions drops unusable items and assigns ids.
func toQuestions(generated []generatedQuestion) []models.Question {
	questions := make([]models.Question, 0, len(generated))
	for _, g := range generated {
		text := strings.TrimSpace(g.Question)
		var options []string
		for _, o := range g.Options {
			if o = strings.TrimSpace(o); o != "" {
				options = append(options, o)
			}
		}
		if text == "" || len(options) < 2 || len(options) != len(g.Options) {
			continue
		}
		if g.CorrectIndex < 0 || g.CorrectIndex >= len(options) {
			continue
		}

		i := len(questions)
		q := models.Question{ID: fmt.Sprintf("q%d", i+1), Text: text}
		for j, o := range options {
			q.Answers = append(q.Answers, models.Answer{ID: fmt.Sprintf("a%d-%d", i, j+1), Text: o})
		}
		q.CorrectAnswerID = q.Answers[g.CorrectIndex].ID
		questions = append(questions, q)
	}
	return questions
}

func buildQuizPrompt(topic, source string, difficulty models.Difficulty, count int) string {
	var b strings.Builder

	b.WriteString("You are an expert educational assessor. Generate multiple choice quiz questions")
	if source != "" {
		b.WriteString(" based on the following content.\n\n")
	} else {
		b.WriteString(fmt.Sprintf(" about %q.\n\n", topic))
	}
	b.WriteString("CRITICAL: Return ONLY a valid JSON array. No preamble, no markdown, no backticks.\n\n")
	b.WriteString(fmt.Sprintf("Generate exactly %d questions.\n", count))
	b.WriteString(fmt.Sprintf("Difficulty: %s\n", difficulty))

	switch difficulty {
	case models.DifficultyEasy:
		b.WriteString("Easy = direct recall of key facts.\n")
	case models.DifficultyMedium:
		b.WriteString("Medium = application of concepts.\n")
	case models.DifficultyHard:
		b.WriteString("Hard = analysis, synthesis, or inference beyond what is explicitly stated.\n")
	}

	b.WriteString(`
JSON schema per question:
{"question": "string", "options": ["string"], "correct_index": int}

Exactly 4 options per question, exactly one of them correct.
`)

	if source != "" {
		b.WriteString("\n---CONTENT---\n")
		b.WriteString(source)
		b.WriteString("\n---END---\n")
	}

	return b.String()
}
