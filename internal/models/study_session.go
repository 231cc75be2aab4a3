package models

import "time"

type ActivityType string

const (
	ActivityQuiz  ActivityType = "quiz"
	ActivityTopic ActivityType = "topic"
	ActivityStudy ActivityType = "study"
)

type Activity struct {
	Type      ActivityType           `json:"type"`
	Details   map[string]interface{} `json:"details"`
	Timestamp time.Time              `json:"timestamp"`
}

type StudySession struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Topic           string          `json:"topic"`
	StartedAt       time.Time       `json:"started_at"`
	EndedAt         *time.Time      `json:"ended_at,omitempty"`
	DurationMinutes int             `json:"duration_minutes"`
	EmotionLog      []EmotionSample `json:"emotion_log"`
	Activities      []Activity      `json:"activities"`
}

// Clone returns a deep copy so callers never alias the manager's slices.
func (s *StudySession) Clone() *StudySession {
	if s == nil {
		return nil
	}
	c := *s
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	c.EmotionLog = append([]EmotionSample{}, s.EmotionLog...)
	c.Activities = make([]Activity, len(s.Activities))
	for i, a := range s.Activities {
		details := make(map[string]interface{}, len(a.Details))
		for k, v := range a.Details {
			details[k] = v
		}
		a.Details = details
		c.Activities[i] = a
	}
	return &c
}

type SessionStats struct {
	TotalTimeStudied  int `json:"total_time_studied"`
	TopicsExplored    int `json:"topics_explored"`
	QuizzesTaken      int `json:"quizzes_taken"`
	QuestionsAnswered int `json:"questions_answered"`
	CorrectAnswers    int `json:"correct_answers"`
}

type StudyStreak struct {
	Count         int        `json:"count"`
	LastStudyDate *time.Time `json:"last_study_date,omitempty"`
}

// LearnerProgress is the persisted aggregate for one user.
type LearnerProgress struct {
	UserID  string          `json:"user_id"`
	Stats   SessionStats    `json:"stats"`
	Streak  StudyStreak     `json:"streak"`
	Profile LearningProfile `json:"profile"`
}
