package models

import (
	"fmt"
	"strings"
)

type Modality string

const (
	ModalityVisual      Modality = "visual"
	ModalityAuditory    Modality = "auditory"
	ModalityReading     Modality = "reading"
	ModalityKinesthetic Modality = "kinesthetic"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func ParseModality(s string) (Modality, error) {
	switch m := Modality(strings.ToLower(strings.TrimSpace(s))); m {
	case ModalityVisual, ModalityAuditory, ModalityReading, ModalityKinesthetic:
		return m, nil
	}
	return "", fmt.Errorf("unknown modality %q", s)
}

// ParseDifficulty treats an empty string as medium.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DifficultyMedium, nil
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, nil
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

type LearningProfile struct {
	Modality   Modality   `json:"modality"`
	Difficulty Difficulty `json:"difficulty"`
}

func DefaultLearningProfile() LearningProfile {
	return LearningProfile{Modality: ModalityVisual, Difficulty: DifficultyMedium}
}

// ContentElement is a single recommended learning item.
type ContentElement struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type ContentPlan struct {
	Topic     string           `json:"topic"`
	Primary   string           `json:"primary"`
	Secondary string           `json:"secondary"`
	Elements  []ContentElement `json:"elements"`
}
