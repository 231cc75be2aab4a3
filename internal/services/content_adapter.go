package services

import (
	"fmt"

	"studycompanion-backend/internal/models"
)

type modalityTemplate struct {
	primary   string
	secondary string
	elements  [3]elementTemplate
}

type elementTemplate struct {
	kind   string
	suffix string
}

var modalityTable = map[models.Modality]modalityTemplate{
	models.ModalityVisual: {"diagram", "video", [3]elementTemplate{
		{"image", "visual diagram"}, {"graph", "relationship graph"}, {"video", "explainer video"},
	}},
	models.ModalityAuditory: {"lecture", "discussion", [3]elementTemplate{
		{"audio", "audio lecture"}, {"discussion", "guided discussion"}, {"qa", "Q&A session"},
	}},
	models.ModalityReading: {"text", "case-study", [3]elementTemplate{
		{"article", "comprehensive article"}, {"book", "recommended reading"}, {"notes", "study notes"},
	}},
	models.ModalityKinesthetic: {"interactive", "project", [3]elementTemplate{
		{"simulation", "interactive simulation"}, {"exercise", "practical exercise"}, {"project", "hands-on project"},
	}},
}

// fallbackTemplate covers an unset or unknown modality.
var fallbackTemplate = modalityTemplate{"mixed", "text", [3]elementTemplate{
	{"article", "overview"}, {"video", "explainer video"}, {"quiz", "practice quiz"},
}}

type placement int

const (
	prepend placement = iota
	appendEnd
)

type emotionRule struct {
	matches []models.Emotion
	where   placement
	element models.ContentElement
}

// emotionRules is evaluated in order; the first matching rule wins.
var emotionRules = []emotionRule{
	{
		matches: []models.Emotion{models.EmotionFrustrated},
		where:   prepend,
		element: models.ContentElement{Type: "encouragement", Title: "You can do this!", Description: "Let's break this down into smaller steps."},
	},
	{
		matches: []models.Emotion{models.EmotionBored},
		where:   prepend,
		element: models.ContentElement{Type: "challenge", Title: "Challenge yourself!", Description: "Try this engaging activity to deepen your understanding."},
	},
	{
		matches: []models.Emotion{models.EmotionConfused},
		where:   prepend,
		element: models.ContentElement{Type: "explanation", Title: "Let's clarify", Description: "Here's a simpler way to understand this concept."},
	},
	{
		matches: []models.Emotion{models.EmotionEngaged, models.EmotionHappy},
		where:   appendEnd,
		element: models.ContentElement{Type: "advanced", Title: "Dive deeper", Description: "Since you're engaged, explore these advanced concepts."},
	},
}

// SelectContent builds the content plan for a topic. It is a pure function
// of its inputs.
func SelectContent(topic string, profile models.LearningProfile, emotion models.EmotionSample) models.ContentPlan {
	tmpl, ok := modalityTable[profile.Modality]
	if !ok {
		tmpl = fallbackTemplate
	}

	elements := make([]models.ContentElement, 0, len(tmpl.elements)+1)
	for _, e := range tmpl.elements {
		elements = append(elements, models.ContentElement{
			Type:  e.kind,
			Title: fmt.Sprintf("%s %s", topic, e.suffix),
		})
	}

	if rule, ok := matchEmotionRule(emotion.Label); ok {
		switch rule.where {
		case prepend:
			elements = append([]models.ContentElement{rule.element}, elements...)
		case appendEnd:
			elements = append(elements, rule.element)
		}
	}

	return models.ContentPlan{
		Topic:     topic,
		Primary:   tmpl.primary,
		Secondary: tmpl.secondary,
		Elements:  elements,
	}
}

func matchEmotionRule(label models.Emotion) (emotionRule, bool) {
	for _, rule := range emotionRules {
		for _, m := range rule.matches {
			if m == label {
				return rule, true
			}
		}
	}
	return emotionRule{}, false
}
