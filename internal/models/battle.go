package models

import "time"

type BattleStatus string

const (
	BattleWaiting   BattleStatus = "waiting"
	BattleActive    BattleStatus = "active"
	BattleCompleted BattleStatus = "completed"
)

type Participant struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
}

// BattleAttempt is one participant's progress through the battle quiz.
type BattleAttempt struct {
	UserID       string            `json:"user_id"`
	CurrentIndex int               `json:"current_index"`
	Answers      []SubmittedAnswer `json:"answers"`
	Result       *QuizResult       `json:"result,omitempty"`
	Forfeited    bool              `json:"forfeited"`
}

type Standing struct {
	Rank           int           `json:"rank"`
	UserID         string        `json:"user_id"`
	DisplayName    string        `json:"display_name"`
	Score          float64       `json:"score"`
	CorrectAnswers int           `json:"correct_answers"`
	Elapsed        time.Duration `json:"elapsed_ns"`
	Forfeited      bool          `json:"forfeited"`
}

type Battle struct {
	ID              string                    `json:"id"`
	CreatorID       string                    `json:"creator_id"`
	Topic           string                    `json:"topic"`
	Difficulty      Difficulty                `json:"difficulty"`
	Status          BattleStatus              `json:"status"`
	MaxParticipants int                       `json:"max_participants"`
	Participants    []Participant             `json:"participants"`
	Quiz            *Quiz                     `json:"quiz,omitempty"`
	Attempts        map[string]*BattleAttempt `json:"attempts,omitempty"`
	Standings       []Standing                `json:"standings,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
	StartedAt       *time.Time                `json:"started_at,omitempty"`
	CompletedAt     *time.Time                `json:"completed_at,omitempty"`
}

// Host is the participant holding start authority.
func (b *Battle) Host() *Participant {
	if len(b.Participants) == 0 {
		return nil
	}
	return &b.Participants[0]
}

func (b *Battle) HasParticipant(userID string) bool {
	return b.participantIndex(userID) >= 0
}

func (b *Battle) participantIndex(userID string) int {
	for i, p := range b.Participants {
		if p.UserID == userID {
			return i
		}
	}
	return -1
}

// RemoveParticipant drops userID, preserving the order of the rest.
func (b *Battle) RemoveParticipant(userID string) bool {
	i := b.participantIndex(userID)
	if i < 0 {
		return false
	}
	b.Participants = append(b.Participants[:i:i], b.Participants[i+1:]...)
	return true
}

// Clone deep-copies the battle for callers outside the coordinator lock.
func (b *Battle) Clone() *Battle {
	if b == nil {
		return nil
	}
	c := *b
	c.Participants = append([]Participant(nil), b.Participants...)
	c.Quiz = b.Quiz.Clone()
	c.Standings = append([]Standing(nil), b.Standings...)
	if b.StartedAt != nil {
		t := *b.StartedAt
		c.StartedAt = &t
	}
	if b.CompletedAt != nil {
		t := *b.CompletedAt
		c.CompletedAt = &t
	}
	if b.Attempts != nil {
		c.Attempts = make(map[string]*BattleAttempt, len(b.Attempts))
		for id, a := range b.Attempts {
			ac := *a
			ac.Answers = append([]SubmittedAnswer(nil), a.Answers...)
			if a.Result != nil {
				r := *a.Result
				r.Answers = append([]SubmittedAnswer(nil), a.Result.Answers...)
				ac.Result = &r
			}
			c.Attempts[id] = &ac
		}
	}
	return &c
}

type CreateBattleRequest struct {
	Topic           string `json:"topic"`
	Difficulty      string `json:"difficulty"`
	MaxParticipants int    `json:"max_participants"`
}

// Redacted hides correct answers until the battle is over.
func (b *Battle) Redacted() *Battle {
	c := b.Clone()
	if c != nil && c.Status != BattleCompleted {
		c.Quiz = c.Quiz.Redacted()
	}
	return c
}
