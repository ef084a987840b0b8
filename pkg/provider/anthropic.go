package provider

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicBackend serves completions through the Anthropic Messages API.
type AnthropicBackend struct {
	name   string
	client anthropic.Client
}

// NewAnthropicBackend creates a backend named "anthropic".
func NewAnthropicBackend(apiKey string) *AnthropicBackend {
	return &AnthropicBackend{
		name:   "anthropic",
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Name returns the backend name.
func (b *AnthropicBackend) Name() string {
	return b.name
}

// Complete makes a Messages API call.
func (b *AnthropicBackend) Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(opts.Model),
		MaxTokens: int64(opts.MaxTokens),
	}

	system := opts.System
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			// The Messages API takes the system prompt out of band.
			if system == "" {
				system = msg.Content
			} else {
				system += "\n\n" + msg.Content
			}
		case RoleUser:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(msg.Content),
				},
			})
		}
	}

	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		if isOutage(err) {
			return nil, Unavailable(b.name, err)
		}
		return nil, err
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			content.WriteString(text.Text)
		}
	}

	return &Completion{
		Content: content.String(),
		Usage: Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

// isOutage classifies transport and service errors that justify trying
// another backend: timeouts, rate limits, and 5xx responses.
func isOutage(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"timeout",
		"deadline exceeded",
		"429",
		"rate limit",
		"500", "502", "503", "504",
		"overloaded",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}
