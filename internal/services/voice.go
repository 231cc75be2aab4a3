package services

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"studycompanion-backend/internal/logger"
)

// VoiceAssistant answers simple spoken commands and can end the active
// study session by voice.
type VoiceAssistant struct {
	voice    VoiceIO
	sessions *StudySessionManager
	log      *logger.Logger
}

func NewVoiceAssistant(voice VoiceIO, sessions *StudySessionManager, log *logger.Logger) *VoiceAssistant {
	a := &VoiceAssistant{voice: voice, sessions: sessions, log: logger.OrNop(log)}
	if voice != nil {
		voice.OnUtterance(func(text string) {
			if _, err := a.Handle(context.Background(), text); err != nil {
				a.log.Warn("voice command failed", "error", err)
			}
		})
	}
	return a
}

// Handle replies to one utterance and speaks the reply.
func (a *VoiceAssistant) Handle(ctx context.Context, utterance string) (string, error) {
	command := strings.ToLower(strings.TrimSpace(utterance))
	if command == "" {
		return "", nil
	}

	reply, err := a.reply(ctx, command, utterance)
	if err != nil {
		return "", err
	}
	if a.voice != nil {
		if err := a.voice.Speak(ctx, reply); err != nil {
			a.log.Warn("voice reply failed", "error", err)
		}
	}
	return reply, nil
}

func (a *VoiceAssistant) reply(ctx context.Context, command, raw string) (string, error) {
	words := strings.FieldsFunc(command, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	has := func(targets ...string) bool {
		for _, w := range words {
			for _, t := range targets {
				if w == t {
					return true
				}
			}
		}
		return false
	}

	switch {
	case strings.Contains(command, "end session") || strings.Contains(command, "stop session"):
		return a.endSession(ctx)
	case has("hello", "hi"):
		return "Hello there! How can I help you with your learning today?", nil
	case has("quiz") || strings.Contains(command, "test me"):
		return "I'll create a quiz for you based on your recent topics. Would you like easy, medium, or hard difficulty?", nil
	case has("explain"):
		return "I'd be happy to explain that concept. Could you provide more details about what you'd like me to explain?", nil
	case has("schedule", "plan"):
		return "I can help you create a study schedule. What subjects are you currently studying?", nil
	default:
		return "I heard your request: " + strings.TrimSpace(raw), nil
	}
}

func (a *VoiceAssistant) endSession(ctx context.Context) (string, error) {
	if a.sessions == nil {
		return "There's no study session running.", nil
	}
	// EndSession narrates its own farewell.
	session, err := a.sessions.EndSession(ctx)
	if errors.Is(err, ErrNoActiveSession) {
		return "There's no study session running.", nil
	}
	if err != nil {
		return "", err
	}
	return "Ended your session on " + session.Topic + ".", nil
}
