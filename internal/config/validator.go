package config

import (
	"fmt"
	"strings"
)

// Validator validates configuration values.
type Validator struct{}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks the whole service configuration.
func (v *Validator) Validate(cfg *Config) error {
	enabled := enabledBackends(cfg)
	if len(enabled) == 0 {
		return fmt.Errorf("no backends enabled")
	}

	if cfg.Backends.Primary == "" {
		return fmt.Errorf("backends.primary is required")
	}

	found := false
	for _, name := range enabled {
		if name == cfg.Backends.Primary {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("primary backend %q is not among the enabled backends %v", cfg.Backends.Primary, enabled)
	}

	if cfg.Backends.Anthropic.Enabled {
		if err := v.ValidateAPIKey(cfg.Backends.Anthropic.APIKey, "anthropic"); err != nil {
			return err
		}
	}
	if cfg.Backends.OpenAI.Enabled {
		if err := v.ValidateAPIKey(cfg.Backends.OpenAI.APIKey, "openai"); err != nil {
			return err
		}
	}
	if cfg.Backends.Local.Enabled && cfg.Backends.Local.BaseURL == "" {
		return fmt.Errorf("local backend requires base_url")
	}

	switch cfg.Materials.Embeddings.Provider {
	case "openai":
		if cfg.Materials.Embeddings.APIKey == "" {
			return fmt.Errorf("openai embeddings require an api key")
		}
	case "hash", "":
	default:
		return fmt.Errorf("unknown embeddings provider: %s", cfg.Materials.Embeddings.Provider)
	}

	if cfg.Engine.TurnTimeoutSeconds < 0 || cfg.Engine.AgentTimeoutSeconds < 0 {
		return fmt.Errorf("engine timeouts must be non-negative")
	}

	return nil
}

// ValidateAPIKey validates an API key format.
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

func enabledBackends(cfg *Config) []string {
	var out []string
	if cfg.Backends.Anthropic.Enabled {
		out = append(out, "anthropic")
	}
	if cfg.Backends.OpenAI.Enabled {
		out = append(out, "openai")
	}
	if cfg.Backends.Local.Enabled {
		name := cfg.Backends.Local.Name
		if name == "" {
			name = "local"
		}
		out = append(out, name)
	}
	return out
}
