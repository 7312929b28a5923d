package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const defaultOpenAIModel = openai.ChatModelGPT4oMini

// chatCompleter is the subset of openai.ChatCompletionService used here.
type chatCompleter interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAI completes prompts with an OpenAI-compatible chat completions API.
type OpenAI struct {
	chat  chatCompleter
	model openai.ChatModel
}

// NewOpenAI creates a completer. baseURL may point at any OpenAI-compatible
// endpoint; empty uses the SDK default. Retries are left to the caller.
func NewOpenAI(apiKey, baseURL, model string) (*OpenAI, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return newOpenAI(&client.Chat.Completions, model), nil
}

func newOpenAI(chat chatCompleter, model string) *OpenAI {
	m := openai.ChatModel(strings.TrimSpace(model))
	if m == "" {
		m = defaultOpenAIModel
	}
	return &OpenAI{chat: chat, model: m}
}

// Model returns the model name requests are sent to.
func (o *OpenAI) Model() string { return string(o.model) }

// Complete sends a system and a user message and returns the first choice.
func (o *OpenAI) Complete(ctx context.Context, system, prompt string) (string, error) {
	if o == nil || o.chat == nil {
		return "", ErrNotInitialized
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system = strings.TrimSpace(system); system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	completion, err := o.chat.New(ctx, openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       o.model,
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if completion == nil || len(completion.Choices) == 0 {
		return "", fmt.Errorf("openai: %w", ErrEmptyResponse)
	}

	out := strings.TrimSpace(completion.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("openai: %w", ErrEmptyResponse)
	}
	return out, nil
}
