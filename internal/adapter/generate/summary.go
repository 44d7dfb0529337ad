package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arturoeanton/go-study-assistant/internal/port"
)

// SummaryGenerator produces a structured summary of the document.
type SummaryGenerator struct {
	ai port.AIProvider
}

// NewSummaryGenerator creates a summary generator backed by ai.
func NewSummaryGenerator(ai port.AIProvider) *SummaryGenerator {
	return &SummaryGenerator{ai: ai}
}

// Name returns "summary".
func (g *SummaryGenerator) Name() string { return "summary" }

// Description returns the text listed by the generators endpoint.
func (g *SummaryGenerator) Description() string { return "Concise summary of key concepts" }

// Generate summarizes the document text as a single item.
func (g *SummaryGenerator) Generate(ctx context.Context, req port.GenerationRequest) (*port.GenerationResult, error) {
	systemPrompt := `You are a teacher summarizing study material. Use Markdown headings and bullet points.`
	userPrompt := `Provide a concise summary of the following text, highlighting the key concepts, main ideas, and important points.
Keep the summary clear and structured.

Text:
` + Truncate(req.Text, summaryTextLimit)

	response, err := g.ai.Chat(ctx, systemPrompt, userPrompt, nil)
	if err != nil {
		return nil, fmt.Errorf("summary generation: %w", err)
	}

	payload, err := json.Marshal(map[string]string{"summary": strings.TrimSpace(response)})
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	return &port.GenerationResult{Kind: g.Name(), Payload: payload, Items: 1}, nil
}
