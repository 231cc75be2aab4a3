package models

import (
	"fmt"
	"strings"
	"time"
)

// Emotion is the closed set of affective-state labels.
type Emotion string

const (
	EmotionHappy      Emotion = "happy"
	EmotionSad        Emotion = "sad"
	EmotionNeutral    Emotion = "neutral"
	EmotionConfused   Emotion = "confused"
	EmotionFrustrated Emotion = "frustrated"
	EmotionBored      Emotion = "bored"
	EmotionEngaged    Emotion = "engaged"
	EmotionAngry      Emotion = "angry"
)

// AllEmotions lists every label in declaration order.
var AllEmotions = []Emotion{
	EmotionHappy, EmotionSad, EmotionNeutral, EmotionConfused,
	EmotionFrustrated, EmotionBored, EmotionEngaged, EmotionAngry,
}

func ParseEmotion(s string) (Emotion, error) {
	e := Emotion(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllEmotions {
		if e == known {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown emotion label %q", s)
}

type EmotionSample struct {
	Label      Emotion   `json:"label"`
	Confidence float64   `json:"confidence"` // 0..1
	CapturedAt time.Time `json:"captured_at"`
}

// NeutralSample is reported while detection is inactive.
func NeutralSample() EmotionSample {
	return EmotionSample{Label: EmotionNeutral, Confidence: 0}
}

// EmotionRecommendation is the supportive prompt shown for a detected emotion.
type EmotionRecommendation struct {
	Message string                 `json:"message"`
	Actions []RecommendationAction `json:"actions"`
}

type RecommendationAction struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}
