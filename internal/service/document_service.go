package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/arturoeanton/go-study-assistant/internal/chunker"
	"github.com/arturoeanton/go-study-assistant/internal/domain"
	"github.com/arturoeanton/go-study-assistant/internal/port"
	"github.com/arturoeanton/go-study-assistant/internal/retrieval"
)

// Processing stages reported to progress callbacks.
const (
	StageExtracting = "extracting"
	StageChunking   = "chunking"
	StageStoring    = "storing"

	// ProcessingSteps is the number of stages a PDF goes through.
	ProcessingSteps = 3
)

// ProgressFunc is called when processing enters a new stage.
type ProgressFunc func(stage string, step int)

// DocumentService manages the document lifecycle: registration, text
// extraction, chunking and lexical search.
type DocumentService struct {
	store     port.DocumentStore
	extractor port.TextExtractor
	chunker   *chunker.Chunker
}

// NewDocumentService creates a new document service.
func NewDocumentService(s port.DocumentStore, extractor port.TextExtractor, c *chunker.Chunker) *DocumentService {
	return &DocumentService{store: s, extractor: extractor, chunker: c}
}

// Create registers a document in the processing state.
func (s *DocumentService) Create(ctx context.Context, title, fileName string, fileSize int64) (*domain.Document, error) {
	if strings.TrimSpace(title) == "" {
		title = fileName
	}
	doc, err := s.store.CreateDocument(ctx, &domain.Document{
		Title:    title,
		FileName: fileName,
		FileSize: fileSize,
		Status:   domain.DocumentStatusProcessing,
	})
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return doc, nil
}

// ProcessPDF extracts the text of an uploaded PDF and chunks it.
func (s *DocumentService) ProcessPDF(ctx context.Context, id string, r io.ReaderAt, size int64, progress ProgressFunc) error {
	report(progress, StageExtracting, 1)
	text, err := s.extractor.Extract(ctx, r, size)
	if err != nil {
		return s.fail(ctx, id, fmt.Errorf("extract text: %w", err))
	}
	return s.process(ctx, id, text, progress)
}

// ProcessText chunks text that was supplied directly.
func (s *DocumentService) ProcessText(ctx context.Context, id, text string, progress ProgressFunc) error {
	report(progress, StageExtracting, 1)
	return s.process(ctx, id, text, progress)
}

func (s *DocumentService) process(ctx context.Context, id, text string, progress ProgressFunc) error {
	slog.Info("processing document", "document_id", id, "chars", len(text),
		"chunk_size", s.chunker.ChunkSize(), "chunk_overlap", s.chunker.Overlap())

	report(progress, StageChunking, 2)
	chunks := s.chunker.Split(text)
	if len(chunks) == 0 {
		return s.fail(ctx, id, port.ErrNoText)
	}

	report(progress, StageStoring, 3)
	if err := s.store.ReplaceChunks(ctx, id, chunks); err != nil {
		return s.fail(ctx, id, fmt.Errorf("store chunks: %w", err))
	}
	if err := s.store.MarkDocumentReady(ctx, id, chunker.Normalize(text), len(chunks)); err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}

	slog.Info("document ready", "document_id", id, "chunks", len(chunks))
	return nil
}

func (s *DocumentService) fail(ctx context.Context, id string, cause error) error {
	slog.Error("document processing failed", "document_id", id, "error", cause)
	if err := s.store.MarkDocumentFailed(ctx, id, cause.Error()); err != nil {
		slog.Error("mark failed", "document_id", id, "error", err)
	}
	return cause
}

// Get returns a document by ID.
func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	return s.store.GetDocument(ctx, id)
}

// List returns every document, newest first.
func (s *DocumentService) List(ctx context.Context) ([]domain.Document, error) {
	return s.store.ListDocuments(ctx)
}

// Delete removes a document with its chunks, history and generated material.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	slog.Info("document deleted", "document_id", id)
	return nil
}

// Chunks returns the ordered chunk list of a document.
func (s *DocumentService) Chunks(ctx context.Context, id string) ([]domain.Chunk, error) {
	if _, err := s.store.GetDocument(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListChunks(ctx, id)
}

// Search ranks the chunks of a ready document against query and returns at
// most limit of them with their scores.
func (s *DocumentService) Search(ctx context.Context, id, query string, limit int) ([]domain.ScoredChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, port.ErrEmptyQuery
	}
	chunks, err := readyChunks(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	ranked := retrieval.Rank(chunks, query)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// readyChunks loads the chunks of a document that finished processing.
func readyChunks(ctx context.Context, s port.DocumentStore, id string) ([]domain.Chunk, error) {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if !doc.Ready() {
		return nil, fmt.Errorf("%w: status %s", port.ErrDocumentNotReady, doc.Status)
	}
	return s.ListChunks(ctx, id)
}

func report(progress ProgressFunc, stage string, step int) {
	if progress != nil {
		progress(stage, step)
	}
}
