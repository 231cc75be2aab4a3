package models

import "time"

type Answer struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Question struct {
	ID              string   `json:"id"`
	Text            string   `json:"text"`
	Answers         []Answer `json:"answers"`
	CorrectAnswerID string   `json:"correct_answer_id,omitempty"`
}

// HasAnswer reports whether answerID belongs to the question's answer set.
func (q *Question) HasAnswer(answerID string) bool {
	for _, a := range q.Answers {
		if a.ID == answerID {
			return true
		}
	}
	return false
}

type Quiz struct {
	ID         string     `json:"id"`
	Topic      string     `json:"topic"`
	Difficulty Difficulty `json:"difficulty"`
	CreatedAt  time.Time  `json:"created_at"`
	Questions  []Question `json:"questions"`
}

type QuizStatus string

const (
	QuizStatusNone       QuizStatus = "none"
	QuizStatusInProgress QuizStatus = "in_progress"
	QuizStatusCompleted  QuizStatus = "completed"
)

type SubmittedAnswer struct {
	QuestionID string `json:"question_id"`
	AnswerID   string `json:"answer_id"`
}

type QuizAttemptState struct {
	Quiz         *Quiz             `json:"quiz"`
	CurrentIndex int               `json:"current_index"`
	Answers      []SubmittedAnswer `json:"answers"`
}

type QuizResult struct {
	QuizID         string            `json:"quiz_id"`
	UserID         string            `json:"user_id"`
	Topic          string            `json:"topic"`
	Score          float64           `json:"score"`
	TotalQuestions int               `json:"total_questions"`
	CorrectAnswers int               `json:"correct_answers"`
	CompletedAt    time.Time         `json:"completed_at"`
	Answers        []SubmittedAnswer `json:"answers"`
}

type GenerateQuizRequest struct {
	Topic         string `json:"topic"`
	Difficulty    string `json:"difficulty"`
	QuestionCount int    `json:"question_count"`
}

type AnswerRequest struct {
	AnswerID string `json:"answer_id"`
}

// Clone deep-copies the quiz so snapshots never alias engine state.
func (q *Quiz) Clone() *Quiz {
	if q == nil {
		return nil
	}
	c := *q
	c.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		question.Answers = append([]Answer(nil), question.Answers...)
		c.Questions[i] = question
	}
	return &c
}

// Redacted is a copy safe to show while the quiz is still being answered.
func (q *Quiz) Redacted() *Quiz {
	c := q.Clone()
	if c == nil {
		return nil
	}
	for i := range c.Questions {
		c.Questions[i].CorrectAnswerID = ""
	}
	return c
}
