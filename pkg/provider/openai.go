package provider

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIBackend serves completions through the OpenAI Chat Completions API.
type OpenAIBackend struct {
	name   string
	client openai.Client
}

// NewOpenAIBackend creates a backend named "openai".
func NewOpenAIBackend(apiKey string) *OpenAIBackend {
	return &OpenAIBackend{
		name:   "openai",
		client: openai.NewClient(option.WithAPIKey(apiKey)),
	}
}

// NewLocalBackend creates a backend for a self-hosted OpenAI-compatible
// runtime (e.g. an Ollama or vLLM endpoint). The wire protocol is the same;
// only the base URL and name differ.
func NewLocalBackend(name, baseURL string) *OpenAIBackend {
	return &OpenAIBackend{
		name:   name,
		client: openai.NewClient(option.WithBaseURL(baseURL), option.WithAPIKey("unused")),
	}
}

// Name returns the backend name.
func (b *OpenAIBackend) Name() string {
	return b.name
}

// Complete makes a Chat Completions API call.
func (b *OpenAIBackend) Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(opts.Model),
	}

	if opts.System != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(opts.System))
	}

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(msg.Content))
		case RoleUser:
			params.Messages = append(params.Messages, openai.UserMessage(msg.Content))
		case RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(msg.Content))
		}
	}

	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if isOutage(err) {
			return nil, Unavailable(b.name, err)
		}
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, Unavailable(b.name, errEmptyChoices)
	}

	return &Completion{
		Content: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}
