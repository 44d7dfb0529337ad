package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arturoeanton/go-study-assistant/internal/adapter/generate"
	"github.com/arturoeanton/go-study-assistant/internal/domain"
	"github.com/arturoeanton/go-study-assistant/internal/port"
	"github.com/arturoeanton/go-study-assistant/internal/retrieval"
)

// explainContextLimit bounds the context handed to concept explanations.
const explainContextLimit = 10000

const chatSystemPrompt = `You are a study assistant. Based on the following context from a document, analyse the context and answer the user's question.
If the answer is not in the context, say so.`

const explainSystemPrompt = `You are a patient teacher. Provide a clear, educational explanation that's easy to understand.
Include examples if relevant.`

// ChatAnswer is the result of a question asked against a document.
type ChatAnswer struct {
	Answer         string         `json:"answer"`
	RelevantChunks []int          `json:"relevant_chunks"`
	Chunks         []domain.Chunk `json:"chunks"`
}

// Explanation is the result of a concept explanation request.
type Explanation struct {
	Concept        string `json:"concept"`
	Explanation    string `json:"explanation"`
	RelevantChunks []int  `json:"relevant_chunks"`
}

// GeneratedMaterial is a freshly persisted generation plus the number of
// items the generator produced.
type GeneratedMaterial struct {
	domain.Generation
	Items int `json:"items"`
}

// StudyService answers questions about documents and generates study material.
type StudyService struct {
	store     port.Store
	ai        port.AIProvider
	engine    *port.GeneratorEngine
	maxChunks int
}

// NewStudyService creates a new study service. maxChunks bounds the chunks
// retrieved per question.
func NewStudyService(s port.Store, ai port.AIProvider, engine *port.GeneratorEngine, maxChunks int) *StudyService {
	if maxChunks <= 0 {
		maxChunks = retrieval.DefaultMaxChunks
	}
	return &StudyService{store: s, ai: ai, engine: engine, maxChunks: maxChunks}
}

// Chat answers question from the most relevant chunks and records both turns.
func (s *StudyService) Chat(ctx context.Context, documentID, question string) (*ChatAnswer, error) {
	relevant, err := s.retrieve(ctx, documentID, question)
	if err != nil {
		return nil, err
	}
	slog.Info("chat", "document_id", documentID, "chunks", len(relevant))

	answer, err := s.ai.Chat(ctx, chatSystemPrompt, question, contextBlocks(relevant))
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}

	indices := domain.ChunkIndices(relevant)
	if err := s.saveTurn(ctx, documentID, question, answer, indices); err != nil {
		return nil, err
	}
	return &ChatAnswer{Answer: answer, RelevantChunks: indices, Chunks: relevant}, nil
}

// ChatStream is Chat with a token stream. History is recorded once the
// upstream stream is drained, and only if it finished cleanly. A stream
// failure is forwarded as the last chunk.
func (s *StudyService) ChatStream(ctx context.Context, documentID, question string) (<-chan port.StreamChunk, []domain.Chunk, error) {
	relevant, err := s.retrieve(ctx, documentID, question)
	if err != nil {
		return nil, nil, err
	}

	upstream, err := s.ai.ChatStream(ctx, chatSystemPrompt, question, contextBlocks(relevant))
	if err != nil {
		return nil, nil, fmt.Errorf("chat stream: %w", err)
	}

	out := make(chan port.StreamChunk)
	go func() {
		defer close(out)
		var answer strings.Builder
		var streamErr error
		for chunk := range upstream {
			if chunk.Err != nil {
				streamErr = chunk.Err
			} else {
				answer.WriteString(chunk.Text)
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
			}
		}
		if streamErr != nil {
			slog.Error("chat stream", "document_id", documentID, "tokens_received", answer.Len(), "error", streamErr)
			return
		}
		if answer.Len() == 0 || ctx.Err() != nil {
			return
		}
		saveCtx := context.WithoutCancel(ctx)
		if err := s.saveTurn(saveCtx, documentID, question, answer.String(), domain.ChunkIndices(relevant)); err != nil {
			slog.Error("save streamed chat", "document_id", documentID, "error", err)
		}
	}()
	return out, relevant, nil
}

// ExplainConcept explains concept using the chunks most relevant to it.
func (s *StudyService) ExplainConcept(ctx context.Context, documentID, concept string) (*Explanation, error) {
	relevant, err := s.retrieve(ctx, documentID, concept)
	if err != nil {
		return nil, err
	}

	contents := make([]string, len(relevant))
	for i, c := range relevant {
		contents[i] = c.Content
	}
	excerpt := generate.Truncate(strings.Join(contents, "\n\n"), explainContextLimit)

	prompt := fmt.Sprintf("Explain the concept of %q based on the context above.", strings.TrimSpace(concept))
	explanation, err := s.ai.Chat(ctx, explainSystemPrompt, prompt, []string{excerpt})
	if err != nil {
		return nil, fmt.Errorf("explain concept: %w", err)
	}
	return &Explanation{
		Concept:        concept,
		Explanation:    explanation,
		RelevantChunks: domain.ChunkIndices(relevant),
	}, nil
}

// ChatHistory returns the recorded conversation of a document, oldest first.
func (s *StudyService) ChatHistory(ctx context.Context, documentID string) ([]domain.ChatMessage, error) {
	if _, err := s.store.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return s.store.ListChatMessages(ctx, documentID)
}

// Generate runs the named generator over the document text and persists the result.
func (s *StudyService) Generate(ctx context.Context, documentID, kind string, count int) (*GeneratedMaterial, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !doc.Ready() {
		return nil, fmt.Errorf("%w: status %s", port.ErrDocumentNotReady, doc.Status)
	}

	slog.Info("running generator", "generator", kind, "document_id", documentID)
	result, err := s.engine.Run(ctx, kind, port.GenerationRequest{
		DocumentID: doc.ID,
		Title:      doc.Title,
		Text:       doc.ExtractedText,
		Count:      count,
	})
	if err != nil {
		return nil, fmt.Errorf("run generator %s: %w", kind, err)
	}

	gen := &domain.Generation{DocumentID: doc.ID, Kind: result.Kind, Payload: result.Payload}
	if err := s.store.SaveGeneration(ctx, gen); err != nil {
		return nil, fmt.Errorf("save generation: %w", err)
	}
	slog.Info("generation saved", "generator", kind, "document_id", documentID, "items", result.Items)
	return &GeneratedMaterial{Generation: *gen, Items: result.Items}, nil
}

// Generations lists the persisted material of a document, newest first.
func (s *StudyService) Generations(ctx context.Context, documentID string) ([]domain.Generation, error) {
	if _, err := s.store.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return s.store.ListGenerations(ctx, documentID)
}

// Generators returns name → description for every registered generator.
func (s *StudyService) Generators() map[string]string {
	return s.engine.Describe()
}

// GeneratorNames returns the registered generator names, sorted.
func (s *StudyService) GeneratorNames() []string {
	return s.engine.AvailableGenerators()
}

func (s *StudyService) retrieve(ctx context.Context, documentID, query string) ([]domain.Chunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, port.ErrEmptyQuery
	}
	chunks, err := readyChunks(ctx, s.store, documentID)
	if err != nil {
		return nil, err
	}
	return retrieval.FindRelevant(chunks, query, s.maxChunks), nil
}

func (s *StudyService) saveTurn(ctx context.Context, documentID, question, answer string, indices []int) error {
	err := s.store.AppendChatMessages(ctx, documentID,
		domain.ChatMessage{Role: domain.RoleUser, Content: question},
		domain.ChatMessage{Role: domain.RoleAssistant, Content: answer, RelevantChunkIndices: indices},
	)
	if err != nil {
		return fmt.Errorf("save chat history: %w", err)
	}
	return nil
}

// contextBlocks formats chunks as numbered "[Chunk N]" blocks.
func contextBlocks(chunks []domain.Chunk) []string {
	blocks := make([]string, len(chunks))
	for i, c := range chunks {
		blocks[i] = fmt.Sprintf("[Chunk %d]\n%s", i+1, c.Content)
	}
	return blocks
}
