package course

import (
	"context"
	"fmt"

	"github.com/coursepilot/coursepilot/pkg/agent"
)

// LLMPolicy controls which backends may serve a course's requests.
type LLMPolicy struct {
	// AllowPrimaryBackend permits use of the platform's primary backend.
	// When false, every registered backend except the primary is a candidate.
	AllowPrimaryBackend bool `json:"allow_primary_backend"`

	// PreferredBackend names the backend to try first. Empty means no
	// preference; registration order applies.
	PreferredBackend string `json:"preferred_backend,omitempty"`

	// FallbackEnabled permits silently retrying another backend when the
	// chosen one is unavailable.
	FallbackEnabled bool `json:"fallback_enabled"`
}

// Course is the unit of configuration the orchestrator operates on.
type Course struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Agents        []agent.Agent `json:"agents"`
	Orchestration *agent.Agent  `json:"orchestration,omitempty"`
	Policy        LLMPolicy     `json:"policy"`
}

// ConfigurationError marks an invalid course or policy setup. It is raised
// at validation time, before any request is served.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// ValidatePolicy rejects policies that can never be satisfied. A preferred
// backend equal to the disallowed primary is a conflict: the preference
// could never be honored.
func ValidatePolicy(p LLMPolicy, primaryBackend string) error {
	if !p.AllowPrimaryBackend && p.PreferredBackend != "" && p.PreferredBackend == primaryBackend {
		return &ConfigurationError{
			Reason: fmt.Sprintf("preferred backend %q is the disallowed primary backend", p.PreferredBackend),
		}
	}
	return nil
}

// Validate checks the course's agent roster and policy together.
func (c Course) Validate(primaryBackend string) error {
	if c.ID == "" {
		return &ConfigurationError{Reason: "course id is required"}
	}

	res := agent.ValidateRoster(c.Agents, c.Orchestration)
	if !res.Valid {
		return &ConfigurationError{Reason: fmt.Sprintf("course %s: %s", c.ID, res.Errors[0])}
	}

	return ValidatePolicy(c.Policy, primaryBackend)
}

// Source supplies course configuration. The orchestrator only reads;
// create/update/delete belongs to the surrounding application.
type Source interface {
	Course(ctx context.Context, courseID string) (Course, error)
}
