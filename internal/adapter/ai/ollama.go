package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/arturoeanton/go-study-assistant/internal/port"
)

// OllamaEndpointConfig holds the configuration for an Ollama chat endpoint.
type OllamaEndpointConfig struct {
	BaseURL string // e.g. http://localhost:11434 or https://api.ollama.com
	Model   string // e.g. qwen3, llama3.2
	Token   string // Bearer token for Ollama Cloud (empty = no auth)
}

// OllamaProvider implements port.AIProvider using the Ollama REST API.
type OllamaProvider struct {
	chat       OllamaEndpointConfig
	httpClient *http.Client
}

// NewOllamaProvider creates a new Ollama-backed AI provider.
func NewOllamaProvider(chat OllamaEndpointConfig) *OllamaProvider {
	return &OllamaProvider{
		chat:       chat,
		httpClient: &http.Client{},
	}
}

// ModelName returns the chat model identifier.
func (o *OllamaProvider) ModelName() string {
	return o.chat.Model
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

func (o *OllamaProvider) request(systemPrompt, userPrompt string, contextBlocks []string, stream bool) ollamaChatRequest {
	return ollamaChatRequest{
		Model: o.chat.Model,
		Messages: []ollamaMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildUserPrompt(userPrompt, contextBlocks)},
		},
		Stream: stream,
	}
}

// Chat sends a prompt with context blocks and returns the complete response.
func (o *OllamaProvider) Chat(ctx context.Context, systemPrompt string, userPrompt string, contextBlocks []string) (string, error) {
	body, err := o.post(ctx, "/api/chat", o.request(systemPrompt, userPrompt, contextBlocks, false))
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}

	var resp ollamaChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("ollama chat decode: %w", err)
	}

	return resp.Message.Content, nil
}

// ChatStream sends a prompt and streams the response token-by-token.
func (o *OllamaProvider) ChatStream(ctx context.Context, systemPrompt string, userPrompt string, contextBlocks []string) (<-chan port.StreamChunk, error) {
	payloadBytes, err := json.Marshal(o.request(systemPrompt, userPrompt, contextBlocks, true))
	if err != nil {
		return nil, fmt.Errorf("ollama stream: marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.chat.BaseURL+"/api/chat", bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("ollama stream: create request: %w", err)
	}
	o.setHeaders(req)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama stream: API error (%d): %s", resp.StatusCode, string(body))
	}

	ch := make(chan port.StreamChunk, 64)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		decoder := json.NewDecoder(resp.Body)
		for decoder.More() {
			var chunk ollamaChatResponse
			if err := decoder.Decode(&chunk); err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("ollama stream decode", "model", o.chat.Model, "error", err)
				sendStreamErr(ctx, ch, fmt.Errorf("ollama stream decode: %w", err))
				return
			}
			if chunk.Message.Content != "" {
				select {
				case ch <- port.StreamChunk{Text: chunk.Message.Content}:
				case <-ctx.Done():
					return
				}
			}
			if chunk.Done {
				return
			}
		}
		if ctx.Err() == nil {
			slog.Error("ollama stream ended early", "model", o.chat.Model)
			sendStreamErr(ctx, ch, errors.New("ollama stream: ended before done"))
		}
	}()

	return ch, nil
}

// sendStreamErr delivers a terminal error unless the consumer has gone away.
func sendStreamErr(ctx context.Context, ch chan<- port.StreamChunk, err error) {
	select {
	case ch <- port.StreamChunk{Err: err}:
	case <-ctx.Done():
	}
}

func (o *OllamaProvider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if o.chat.Token != "" {
		req.Header.Set("Authorization", "Bearer "+o.chat.Token)
	}
}

// post is a helper for POST requests to the Ollama endpoint.
func (o *OllamaProvider) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.chat.BaseURL+path, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	o.setHeaders(req)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

// BuildUserPrompt prepends context blocks to the question. Blocks are passed
// through unchanged, so callers decide how to label them.
func BuildUserPrompt(userPrompt string, contextBlocks []string) string {
	if len(contextBlocks) == 0 {
		return userPrompt
	}
	var b strings.Builder
	b.WriteString("Context:\n")
	for _, block := range contextBlocks {
		b.WriteString("\n")
		b.WriteString(block)
		b.WriteString("\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(userPrompt)
	return b.String()
}
