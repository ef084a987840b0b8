package course

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coursepilot/coursepilot/pkg/agent"
)

func TestValidatePolicy(t *testing.T) {
	t.Run("preferred backend equal to disallowed primary is a configuration error", func(t *testing.T) {
		err := ValidatePolicy(LLMPolicy{
			AllowPrimaryBackend: false,
			PreferredBackend:    "openai",
		}, "openai")

		assert.Error(t, err)
		var cfgErr *ConfigurationError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("preferred backend equal to allowed primary is fine", func(t *testing.T) {
		err := ValidatePolicy(LLMPolicy{
			AllowPrimaryBackend: true,
			PreferredBackend:    "openai",
		}, "openai")
		assert.NoError(t, err)
	})

	t.Run("no preference never conflicts", func(t *testing.T) {
		err := ValidatePolicy(LLMPolicy{AllowPrimaryBackend: false}, "openai")
		assert.NoError(t, err)
	})
}

func TestCourseValidate(t *testing.T) {
	valid := Course{
		ID:   "math-101",
		Name: "Mathematics",
		Agents: []agent.Agent{
			{ID: "a1", Name: "Algebra", Kind: agent.KindSubject, Instructions: "Teach algebra."},
		},
	}

	t.Run("accepts a valid course", func(t *testing.T) {
		assert.NoError(t, valid.Validate("openai"))
	})

	t.Run("rejects missing id", func(t *testing.T) {
		c := valid
		c.ID = ""
		assert.Error(t, c.Validate("openai"))
	})

	t.Run("roster violations become configuration errors", func(t *testing.T) {
		c := valid
		c.Agents = append(c.Agents, agent.Agent{
			ID: "a2", Name: "Geometry", Kind: agent.KindSubject, Instructions: "Teach geometry.",
		})

		err := c.Validate("openai")
		assert.Error(t, err)
		var cfgErr *ConfigurationError
		assert.ErrorAs(t, err, &cfgErr)
		assert.Contains(t, err.Error(), "orchestration agent required")
	})
}
