package store

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/arturoeanton/go-study-assistant/internal/domain"
	"github.com/arturoeanton/go-study-assistant/internal/port"
	"github.com/google/uuid"
)

// MemoryStore keeps everything in process memory. It is used when no
// database is configured and in tests.
type MemoryStore struct {
	mu          sync.RWMutex
	documents   map[string]*domain.Document
	order       []string
	chunks      map[string][]domain.Chunk
	messages    map[string][]domain.ChatMessage
	generations map[string][]domain.Generation
	audits      []domain.AuditLog
	now         func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents:   make(map[string]*domain.Document),
		chunks:      make(map[string][]domain.Chunk),
		messages:    make(map[string][]domain.ChatMessage),
		generations: make(map[string][]domain.Generation),
		now:         time.Now,
	}
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// --- Documents ---

func (s *MemoryStore) CreateDocument(_ context.Context, d *domain.Document) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := *d
	doc.ID = uuid.NewString()
	if doc.Status == "" {
		doc.Status = domain.DocumentStatusProcessing
	}
	doc.CreatedAt = s.now()
	doc.UpdatedAt = doc.CreatedAt
	s.documents[doc.ID] = &doc
	s.order = append(s.order, doc.ID)

	out := doc
	return &out, nil
}

func (s *MemoryStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.documents[id]
	if !ok {
		return nil, port.ErrDocumentNotFound
	}
	out := *d
	return &out, nil
}

func (s *MemoryStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]domain.Document, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		docs = append(docs, *s.documents[s.order[i]])
	}
	return docs, nil
}

func (s *MemoryStore) MarkDocumentReady(_ context.Context, id, extractedText string, chunkCount int) error {
	return s.updateDocument(id, func(d *domain.Document) {
		d.ExtractedText = extractedText
		d.ChunkCount = chunkCount
		d.Status = domain.DocumentStatusReady
		d.Error = ""
	})
}

func (s *MemoryStore) MarkDocumentFailed(_ context.Context, id, reason string) error {
	return s.updateDocument(id, func(d *domain.Document) {
		d.Status = domain.DocumentStatusFailed
		d.Error = reason
	})
}

func (s *MemoryStore) updateDocument(id string, fn func(*domain.Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.documents[id]
	if !ok {
		return port.ErrDocumentNotFound
	}
	fn(d)
	d.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return port.ErrDocumentNotFound
	}
	delete(s.documents, id)
	delete(s.chunks, id)
	delete(s.messages, id)
	delete(s.generations, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return nil
}

// --- Chunks ---

func (s *MemoryStore) ReplaceChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[documentID]; !ok {
		return port.ErrDocumentNotFound
	}
	stored := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		c.ID = uuid.NewString()
		stored[i] = c
	}
	s.chunks[documentID] = stored
	return nil
}

func (s *MemoryStore) ListChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Chunk{}, s.chunks[documentID]...), nil
}

// --- Chat history ---

func (s *MemoryStore) AppendChatMessages(_ context.Context, documentID string, msgs ...domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range msgs {
		m.ID = strconv.Itoa(len(s.messages[documentID]) + 1)
		m.DocumentID = documentID
		m.RelevantChunkIndices = slices.Clone(m.RelevantChunkIndices)
		if m.RelevantChunkIndices == nil {
			m.RelevantChunkIndices = []int{}
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = s.now()
		}
		s.messages[documentID] = append(s.messages[documentID], m)
	}
	return nil
}

func (s *MemoryStore) ListChatMessages(_ context.Context, documentID string) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ChatMessage{}, s.messages[documentID]...), nil
}

// --- Generations ---

func (s *MemoryStore) SaveGeneration(_ context.Context, g *domain.Generation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g.ID = uuid.NewString()
	g.CreatedAt = s.now()
	s.generations[g.DocumentID] = append(s.generations[g.DocumentID], *g)
	return nil
}

func (s *MemoryStore) ListGenerations(_ context.Context, documentID string) ([]domain.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.generations[documentID]
	out := make([]domain.Generation, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		out = append(out, stored[i])
	}
	return out, nil
}

// --- Audit Logs ---

func (s *MemoryStore) WriteAudit(action, resource, resourceID, details, ip, userAgent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audits = append(s.audits, domain.AuditLog{
		ID:         strconv.Itoa(len(s.audits) + 1),
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    details,
		IP:         ip,
		UserAgent:  userAgent,
		CreatedAt:  s.now(),
	})
	return nil
}

func (s *MemoryStore) ListAuditLogs(_ context.Context, limit int, action string) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := []domain.AuditLog{}
	for i := len(s.audits) - 1; i >= 0; i-- {
		if action != "" && s.audits[i].Action != action {
			continue
		}
		logs = append(logs, s.audits[i])
		if limit > 0 && len(logs) == limit {
			break
		}
	}
	return logs, nil
}

var (
	_ port.Store = (*MemoryStore)(nil)
	_ port.Store = (*PostgresStore)(nil)
)
