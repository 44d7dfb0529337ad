package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/arturoeanton/go-study-assistant/internal/port"
)

// OpenAIConfig configures any OpenAI-compatible chat completion endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // empty = api.openai.com
	Model   string
}

// OpenAIProvider implements port.AIProvider with the official OpenAI SDK.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

// NewOpenAIProvider creates an OpenAI-backed AI provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}
}

// ModelName returns the chat model identifier.
func (p *OpenAIProvider) ModelName() string {
	return p.model
}

func (p *OpenAIProvider) params(systemPrompt, userPrompt string, contextBlocks []string) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(BuildUserPrompt(userPrompt, contextBlocks)),
		},
	}
}

// Chat sends a prompt with context blocks and returns the complete response.
func (p *OpenAIProvider) Chat(ctx context.Context, systemPrompt string, userPrompt string, contextBlocks []string) (string, error) {
	completion, err := p.client.Chat.Completions.New(ctx, p.params(systemPrompt, userPrompt, contextBlocks))
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("openai chat: empty response")
	}
	return completion.Choices[0].Message.Content, nil
}

// ChatStream sends a prompt and streams content deltas.
func (p *OpenAIProvider) ChatStream(ctx context.Context, systemPrompt string, userPrompt string, contextBlocks []string) (<-chan port.StreamChunk, error) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, p.params(systemPrompt, userPrompt, contextBlocks))
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("openai stream: %w", err)
	}

	ch := make(chan port.StreamChunk, 64)
	go func() {
		defer close(ch)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			select {
			case ch <- port.StreamChunk{Text: chunk.Choices[0].Delta.Content}:
			case <-ctx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			slog.Error("openai stream", "model", p.model, "error", err)
			sendStreamErr(ctx, ch, fmt.Errorf("openai stream: %w", err))
		}
	}()

	return ch, nil
}
