package provider

import (
	"context"
	"errors"
)

// Role values for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in a chat transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options carries the generation parameters for a completion call.
type Options struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	System      string  `json:"system,omitempty"`
}

// Usage tracks token consumption for a single completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Completion is the response from a backend.
type Completion struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Backend is a concrete LLM service. Implementations must return an error
// wrapping ErrBackendUnavailable when the service itself is unreachable or
// overloaded, so the router can tell transient outages from request errors.
type Backend interface {
	Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error)
	Name() string
}

// ErrBackendUnavailable marks a backend outage. Fallback applies only to
// errors wrapping this sentinel.
var ErrBackendUnavailable = errors.New("backend unavailable")

var errEmptyChoices = errors.New("response contained no choices")

// Unavailable wraps err as a backend outage for the named backend.
func Unavailable(backend string, err error) error {
	return &unavailableError{backend: backend, err: err}
}

type unavailableError struct {
	backend string
	err     error
}

func (e *unavailableError) Error() string {
	return "backend " + e.backend + " unavailable: " + e.err.Error()
}

func (e *unavailableError) Unwrap() error { return ErrBackendUnavailable }

// IsUnavailable reports whether err indicates a backend outage.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}
