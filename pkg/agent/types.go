package agent

import (
	"errors"
	"fmt"
)

// Kind distinguishes subject-matter agents from the coordinating agent.
type Kind string

const (
	KindSubject       Kind = "subject"       // Answers questions within its own domain
	KindOrchestration Kind = "orchestration" // Routes between subject agents and synthesizes
)

// ModelConfig holds the generation parameters for an agent.
type ModelConfig struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// CommunicationStyle shapes how an agent addresses the student.
type CommunicationStyle struct {
	Tone           string `json:"tone,omitempty"`            // e.g. friendly, strict
	Formality      string `json:"formality,omitempty"`       // e.g. casual, formal
	ResponseLength string `json:"response_length,omitempty"` // e.g. short, detailed
}

// Agent is a configured tutoring persona scoped to a course.
type Agent struct {
	ID           string             `json:"id"`
	CourseID     string             `json:"course_id"`
	Name         string             `json:"name"`
	Kind         Kind               `json:"kind"`
	Instructions string             `json:"instructions"`
	RAGEnabled   bool               `json:"rag_enabled"`
	Config       ModelConfig        `json:"config"`
	Style        CommunicationStyle `json:"style"`

	// MaterialIDs restricts retrieval to the listed materials.
	// Empty means all course materials are in scope.
	MaterialIDs []string `json:"material_ids,omitempty"`
}

// Validate checks a single agent configuration.
func (a Agent) Validate() error {
	if a.ID == "" {
		return errors.New("agent ID is required")
	}

	if a.Name == "" {
		return errors.New("agent name is required")
	}

	if a.Kind != KindSubject && a.Kind != KindOrchestration {
		return fmt.Errorf("invalid agent kind: %s", a.Kind)
	}

	if a.Instructions == "" {
		return fmt.Errorf("agent %s has empty instructions", a.ID)
	}

	if a.Config.Temperature < 0 || a.Config.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got: %f", a.Config.Temperature)
	}

	if a.Config.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative, got: %d", a.Config.MaxTokens)
	}

	return nil
}

// DefaultModelConfig returns the generation defaults applied when a course
// document omits them.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Model:       "claude-sonnet-4-5",
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}
