package store

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/arturoeanton/go-study-assistant/internal/domain"
	"github.com/arturoeanton/go-study-assistant/internal/port"
)

func TestMemoryStore_DocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	doc, err := s.CreateDocument(ctx, &domain.Document{Title: "Biology", FileName: "bio.pdf"})
	if err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	if doc.ID == "" || doc.Status != domain.DocumentStatusProcessing {
		t.Fatalf("unexpected document %+v", doc)
	}

	if err := s.MarkDocumentReady(ctx, doc.ID, "some text", 2); err != nil {
		t.Fatalf("MarkDocumentReady failed: %v", err)
	}
	got, err := s.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if !got.Ready() || got.ChunkCount != 2 || got.ExtractedText != "some text" {
		t.Errorf("document not updated: %+v", got)
	}

	if err := s.MarkDocumentFailed(ctx, doc.ID, "boom"); err != nil {
		t.Fatalf("MarkDocumentFailed failed: %v", err)
	}
	got, _ = s.GetDocument(ctx, doc.ID)
	if got.Status != domain.DocumentStatusFailed || got.Error != "boom" {
		t.Errorf("document not failed: %+v", got)
	}
}

func TestMemoryStore_UnknownDocument(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.GetDocument(ctx, "nope"); !errors.Is(err, port.ErrDocumentNotFound) {
		t.Errorf("GetDocument error = %v, want ErrDocumentNotFound", err)
	}
	if err := s.MarkDocumentReady(ctx, "nope", "", 0); !errors.Is(err, port.ErrDocumentNotFound) {
		t.Errorf("MarkDocumentReady error = %v, want ErrDocumentNotFound", err)
	}
	if err := s.ReplaceChunks(ctx, "nope", nil); !errors.Is(err, port.ErrDocumentNotFound) {
		t.Errorf("ReplaceChunks error = %v, want ErrDocumentNotFound", err)
	}
}

func TestMemoryStore_ReplaceChunksWholesale(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	doc, _ := s.CreateDocument(ctx, &domain.Document{Title: "t"})

	first := []domain.Chunk{{Content: "a", ChunkIndex: 0}, {Content: "b", ChunkIndex: 1}}
	if err := s.ReplaceChunks(ctx, doc.ID, first); err != nil {
		t.Fatalf("ReplaceChunks failed: %v", err)
	}
	second := []domain.Chunk{{Content: "c", ChunkIndex: 0}}
	if err := s.ReplaceChunks(ctx, doc.ID, second); err != nil {
		t.Fatalf("ReplaceChunks failed: %v", err)
	}

	got, _ := s.ListChunks(ctx, doc.ID)
	if len(got) != 1 || got[0].Content != "c" || got[0].ID == "" {
		t.Errorf("chunks = %+v, want only the replacement", got)
	}
	if first[0].ID != "" {
		t.Error("caller's slice was mutated")
	}
}

func TestMemoryStore_ChatHistory(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.AppendChatMessages(ctx, "doc",
		domain.ChatMessage{Role: domain.RoleUser, Content: "q"},
		domain.ChatMessage{Role: domain.RoleAssistant, Content: "a", RelevantChunkIndices: []int{2, 0}},
	)
	if err != nil {
		t.Fatalf("AppendChatMessages failed: %v", err)
	}

	msgs, _ := s.ListChatMessages(ctx, "doc")
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].RelevantChunkIndices == nil || len(msgs[0].RelevantChunkIndices) != 0 {
		t.Errorf("user turn indices = %v, want empty", msgs[0].RelevantChunkIndices)
	}
	if !reflect.DeepEqual(msgs[1].RelevantChunkIndices, []int{2, 0}) {
		t.Errorf("assistant turn indices = %v", msgs[1].RelevantChunkIndices)
	}
	if msgs[1].DocumentID != "doc" || msgs[1].CreatedAt.IsZero() {
		t.Errorf("message not stamped: %+v", msgs[1])
	}
}

func TestMemoryStore_Generations(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for _, kind := range []string{"summary", "quiz"} {
		if err := s.SaveGeneration(ctx, &domain.Generation{DocumentID: "doc", Kind: kind, Payload: []byte(`{}`)}); err != nil {
			t.Fatalf("SaveGeneration failed: %v", err)
		}
	}
	gens, _ := s.ListGenerations(ctx, "doc")
	if len(gens) != 2 || gens[0].Kind != "quiz" {
		t.Errorf("generations = %+v, want newest first", gens)
	}
}

func TestMemoryStore_AuditLogs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_ = s.WriteAudit("http_request", "api", "/a", "{}", "1.1.1.1", "ua")
	_ = s.WriteAudit("chat", "document", "d1", "{}", "1.1.1.1", "ua")
	_ = s.WriteAudit("http_request", "api", "/b", "{}", "1.1.1.1", "ua")

	all, _ := s.ListAuditLogs(ctx, 0, "")
	if len(all) != 3 || all[0].ResourceID != "/b" {
		t.Errorf("all logs = %+v", all)
	}
	filtered, _ := s.ListAuditLogs(ctx, 1, "http_request")
	if len(filtered) != 1 || filtered[0].ResourceID != "/b" {
		t.Errorf("filtered logs = %+v", filtered)
	}
}

func TestMemoryStore_DeleteDocument(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	keep, _ := s.CreateDocument(ctx, &domain.Document{Title: "keep"})
	drop, _ := s.CreateDocument(ctx, &domain.Document{Title: "drop"})
	_ = s.ReplaceChunks(ctx, drop.ID, []domain.Chunk{{Content: "x"}})

	if err := s.DeleteDocument(ctx, drop.ID); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	if err := s.DeleteDocument(ctx, drop.ID); !errors.Is(err, port.ErrDocumentNotFound) {
		t.Errorf("second delete error = %v, want ErrDocumentNotFound", err)
	}
	if chunks, _ := s.ListChunks(ctx, drop.ID); len(chunks) != 0 {
		t.Errorf("chunks survived delete: %+v", chunks)
	}
	docs, _ := s.ListDocuments(ctx)
	if len(docs) != 1 || docs[0].ID != keep.ID {
		t.Errorf("documents after delete = %+v", docs)
	}
}
