package port

import "context"

// AIProvider abstracts the generative text backend.
// Implementations can target Ollama, OpenAI, or any compatible API.
type AIProvider interface {
	// ModelName returns the identifier of the model being used.
	ModelName() string

	// Chat sends a prompt with optional context blocks and returns the full response.
	Chat(ctx context.Context, systemPrompt string, userPrompt string, contextBlocks []string) (string, error)

	// ChatStream sends a prompt and streams the response token-by-token via channel.
	// A failure after the stream has started arrives as a final chunk with Err set.
	ChatStream(ctx context.Context, systemPrompt string, userPrompt string, contextBlocks []string) (<-chan StreamChunk, error)
}

// StreamChunk is one streamed token, or the error that cut the stream short.
type StreamChunk struct {
	Text string
	Err  error
}
