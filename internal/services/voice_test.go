package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoiceAssistant_Commands(t *testing.T) {
	tests := []struct {
		utterance string
		contains  string
	}{
		{"Hi there", "Hello there!"},
		{"HELLO", "Hello there!"},
		{"please test me on fractions", "create a quiz"},
		{"give me a quiz", "create a quiz"},
		{"can you explain entropy", "happy to explain"},
		{"help me plan my week", "study schedule"},
		{"what is this", "I heard your request: what is this"},
	}
	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			voice := NewLogVoice(nil)
			a := NewVoiceAssistant(voice, nil, nil)

			reply, err := a.Handle(context.Background(), tt.utterance)
			require.NoError(t, err)
			assert.Contains(t, reply, tt.contains)
			assert.Equal(t, []string{reply}, voice.Spoken())
		})
	}
}

func TestVoiceAssistant_IgnoresSilence(t *testing.T) {
	voice := NewLogVoice(nil)
	a := NewVoiceAssistant(voice, nil, nil)

	reply, err := a.Handle(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, reply)
	assert.Empty(t, voice.Spoken())
}

func TestVoiceAssistant_EndsSessionFromUtterance(t *testing.T) {
	m, _, voice := newTestManager(t, newFakeClock(day0), nil)
	NewVoiceAssistant(voice, m, nil)
	ctx := context.Background()

	voice.Hear("end session")
	assert.Contains(t, voice.Spoken()[0], "no study session")

	_, err := m.StartSession(ctx, "Astronomy")
	require.NoError(t, err)

	voice.Hear("please end session now")
	assert.Nil(t, m.Active())
	require.Len(t, m.History(), 1)

	spoken := voice.Spoken()
	assert.Equal(t, "Ended your session on Astronomy.", spoken[len(spoken)-1])
	assert.Equal(t, "Study session ended. Great job!", spoken[len(spoken)-2])
}
