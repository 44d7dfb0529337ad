package port

import (
	"context"

	"github.com/arturoeanton/go-study-assistant/internal/domain"
)

// DocumentStore persists documents and their chunk lists.
type DocumentStore interface {
	CreateDocument(ctx context.Context, d *domain.Document) (*domain.Document, error)
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// MarkDocumentReady stores the extracted text and flips status to ready.
	MarkDocumentReady(ctx context.Context, id, extractedText string, chunkCount int) error
	MarkDocumentFailed(ctx context.Context, id, reason string) error
	DeleteDocument(ctx context.Context, id string) error

	// ReplaceChunks swaps the whole chunk list of a document atomically.
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error
	ListChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)
}

// ChatStore persists chat history per document.
type ChatStore interface {
	AppendChatMessages(ctx context.Context, documentID string, msgs ...domain.ChatMessage) error
	ListChatMessages(ctx context.Context, documentID string) ([]domain.ChatMessage, error)
}

// GenerationStore persists generated study material.
type GenerationStore interface {
	SaveGeneration(ctx context.Context, g *domain.Generation) error
	ListGenerations(ctx context.Context, documentID string) ([]domain.Generation, error)
}

// AuditStore persists and lists request audit records.
type AuditStore interface {
	WriteAudit(action, resource, resourceID, details, ip, userAgent string) error
	ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error)
}

// Store bundles every persistence port; both adapters implement it.
type Store interface {
	DocumentStore
	ChatStore
	GenerationStore
	AuditStore
	Close() error
}
