package agent

import (
	"fmt"
)

// ValidationResult reports the outcome of roster validation.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// ValidateRoster checks the structural rules for a course's agent setup:
// agent ids must be unique, every agent needs instructions and a known kind,
// and a course with more than one subject agent must name an orchestration
// agent to coordinate them.
func ValidateRoster(agents []Agent, orchestration *Agent) ValidationResult {
	var errs []string

	seen := make(map[string]bool, len(agents))
	subjects := 0

	for _, a := range agents {
		if err := a.Validate(); err != nil {
			errs = append(errs, err.Error())
		}

		if a.ID != "" {
			if seen[a.ID] {
				errs = append(errs, fmt.Sprintf("duplicate agent id: %s", a.ID))
			}
			seen[a.ID] = true
		}

		if a.Kind == KindSubject {
			subjects++
		}
	}

	if orchestration != nil {
		if err := orchestration.Validate(); err != nil {
			errs = append(errs, err.Error())
		} else if orchestration.Kind != KindOrchestration {
			errs = append(errs, fmt.Sprintf("agent %s is not an orchestration agent (kind: %s)", orchestration.ID, orchestration.Kind))
		}
		if orchestration.ID != "" && seen[orchestration.ID] {
			errs = append(errs, fmt.Sprintf("orchestration agent id collides with subject agent: %s", orchestration.ID))
		}
	}

	if subjects > 1 && orchestration == nil {
		errs = append(errs, "orchestration agent required")
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// Add returns a new roster with the agent appended. It does not validate;
// callers validate the resulting roster before persisting it.
func Add(agents []Agent, a Agent) []Agent {
	out := make([]Agent, 0, len(agents)+1)
	out = append(out, agents...)
	out = append(out, a)
	return out
}

// Update returns a new roster with the agent matching a.ID replaced.
// An unknown id leaves the roster unchanged.
func Update(agents []Agent, a Agent) []Agent {
	out := make([]Agent, len(agents))
	copy(out, agents)
	for i := range out {
		if out[i].ID == a.ID {
			out[i] = a
		}
	}
	return out
}

// Remove returns a new roster without the named agent, plus the
// orchestration agent that should remain. Removing the last subject agent
// clears the orchestration agent: there is nothing left to orchestrate.
func Remove(agents []Agent, orchestration *Agent, id string) ([]Agent, *Agent) {
	out := make([]Agent, 0, len(agents))
	for _, a := range agents {
		if a.ID != id {
			out = append(out, a)
		}
	}

	if CountSubjects(out) == 0 {
		return out, nil
	}

	return out, orchestration
}

// CountSubjects returns the number of subject agents in the roster.
func CountSubjects(agents []Agent) int {
	n := 0
	for _, a := range agents {
		if a.Kind == KindSubject {
			n++
		}
	}
	return n
}

// Subjects returns only the subject agents, preserving order.
func Subjects(agents []Agent) []Agent {
	out := make([]Agent, 0, len(agents))
	for _, a := range agents {
		if a.Kind == KindSubject {
			out = append(out, a)
		}
	}
	return out
}

// ByID finds an agent in the roster.
func ByID(agents []Agent, id string) (Agent, bool) {
	for _, a := range agents {
		if a.ID == id {
			return a, true
		}
	}
	return Agent{}, false
}
