package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Backends.OpenAI.Enabled = true
	cfg.Backends.OpenAI.APIKey = "sk-test-key"
	return cfg
}

func TestValidateAcceptsDefaultsWithOpenAI(t *testing.T) {
	require.NoError(t, NewValidator().Validate(validConfig()))
}

func TestValidateRejectsNoEnabledBackends(t *testing.T) {
	cfg := DefaultConfig()
	err := NewValidator().Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no backends enabled")
}

func TestValidateRejectsPrimaryNotEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Backends.Primary = "anthropic"

	err := NewValidator().Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not among the enabled backends")
}

func TestValidateAPIKeyFormats(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateAPIKey("sk-ant-abc123", "anthropic"))
	assert.Error(t, v.ValidateAPIKey("sk-abc123", "anthropic"))
	assert.NoError(t, v.ValidateAPIKey("sk-abc123", "openai"))
	assert.Error(t, v.ValidateAPIKey("abc123", "openai"))
	assert.Error(t, v.ValidateAPIKey("", "openai"))
}

func TestValidateLocalBackendRequiresBaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.Backends.Local.Enabled = true
	cfg.Backends.Local.BaseURL = ""

	err := NewValidator().Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")
}

func TestValidateEmbeddingsProvider(t *testing.T) {
	cfg := validConfig()
	cfg.Materials.Embeddings.Provider = "openai"
	cfg.Materials.Embeddings.APIKey = ""

	err := NewValidator().Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key")

	cfg.Materials.Embeddings.Provider = "sentencepiece"
	err = NewValidator().Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown embeddings provider")
}

func TestValidateRejectsNegativeTimeouts(t *testing.T) {
	cfg := validConfig()
	cfg.Engine.TurnTimeoutSeconds = -1

	err := NewValidator().Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-negative")
}
