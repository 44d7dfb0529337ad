package port

import (
	"context"
	"encoding/json"
	"slices"
)

// Generator produces one kind of study material from document text (Strategy Pattern).
type Generator interface {
	// Name returns the unique name of this generator (e.g. "flashcards", "quiz").
	Name() string

	// Description returns a human-readable description of what this generator produces.
	Description() string

	// Generate runs the generator on the given request.
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
}

// GenerationRequest contains everything a generator needs.
type GenerationRequest struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Text       string `json:"-"`
	Count      int    `json:"count,omitempty"` // ignored by generators without a count
}

// GenerationResult holds the output of a generator.
type GenerationResult struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
	Items   int             `json:"items"`
}

// GeneratorEngine orchestrates multiple generators.
type GeneratorEngine struct {
	generators map[string]Generator
}

// NewGeneratorEngine creates a new engine with the given generators.
func NewGeneratorEngine(generators ...Generator) *GeneratorEngine {
	m := make(map[string]Generator, len(generators))
	for _, g := range generators {
		m[g.Name()] = g
	}
	return &GeneratorEngine{generators: m}
}

// Run executes the named generator.
func (e *GeneratorEngine) Run(ctx context.Context, name string, req GenerationRequest) (*GenerationResult, error) {
	g, ok := e.generators[name]
	if !ok {
		return nil, ErrGeneratorNotFound
	}
	return g.Generate(ctx, req)
}

// Describe returns name → description for every registered generator.
func (e *GeneratorEngine) Describe() map[string]string {
	out := make(map[string]string, len(e.generators))
	for name, g := range e.generators {
		out[name] = g.Description()
	}
	return out
}

// AvailableGenerators returns the sorted names of all registered generators.
func (e *GeneratorEngine) AvailableGenerators() []string {
	names := make([]string, 0, len(e.generators))
	for name := range e.generators {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
