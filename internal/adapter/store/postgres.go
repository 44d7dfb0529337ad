package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/arturoeanton/go-study-assistant/internal/domain"
	"github.com/arturoeanton/go-study-assistant/internal/port"
	"github.com/lib/pq"
)

// PostgresStore handles all relational database operations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection, ensures the schema and returns a store instance.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// --- Documents ---

const documentColumns = `id, title, file_name, file_size, extracted_text, chunk_count, status, error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var d domain.Document
	err := row.Scan(
		&d.ID, &d.Title, &d.FileName, &d.FileSize, &d.ExtractedText,
		&d.ChunkCount, &d.Status, &d.Error, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDocument inserts a new document record.
func (s *PostgresStore) CreateDocument(ctx context.Context, d *domain.Document) (*domain.Document, error) {
	query := `INSERT INTO documents (title, file_name, file_size, status)
	          VALUES ($1, $2, $3, $4)
	          RETURNING ` + documentColumns

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, d.Title, d.FileName, d.FileSize, d.Status))
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return doc, nil
}

// GetDocument returns a document by its ID.
func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) || isInvalidTextRepresentation(err) {
		return nil, port.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns all documents, newest first.
func (s *PostgresStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []domain.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// MarkDocumentReady stores the extracted text and chunk count.
func (s *PostgresStore) MarkDocumentReady(ctx context.Context, id, extractedText string, chunkCount int) error {
	query := `UPDATE documents SET extracted_text = $1, chunk_count = $2, status = $3, error = '', updated_at = NOW()
	          WHERE id = $4`
	return s.updateDocument(ctx, query, extractedText, chunkCount, domain.DocumentStatusReady, id)
}

// MarkDocumentFailed records why processing failed.
func (s *PostgresStore) MarkDocumentFailed(ctx context.Context, id, reason string) error {
	query := `UPDATE documents SET status = $1, error = $2, updated_at = NOW() WHERE id = $3`
	return s.updateDocument(ctx, query, domain.DocumentStatusFailed, reason, id)
}

func (s *PostgresStore) updateDocument(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return port.ErrDocumentNotFound
	}
	return nil
}

// DeleteDocument removes a document; chunks, chat history and generations cascade.
func (s *PostgresStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if isInvalidTextRepresentation(err) {
		return port.ErrDocumentNotFound
	}
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return port.ErrDocumentNotFound
	}
	return nil
}

// --- Chunks ---

// ReplaceChunks deletes a document's chunks and inserts the new list in one transaction.
func (s *PostgresStore) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO document_chunks (document_id, chunk_index, page_number, content)
		 VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, documentID, c.ChunkIndex, c.PageNumber, c.Content); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
	}

	return tx.Commit()
}

// ListChunks returns a document's chunks ordered by chunk index.
func (s *PostgresStore) ListChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	query := `SELECT id, chunk_index, page_number, content
	          FROM document_chunks WHERE document_id = $1 ORDER BY chunk_index`

	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	chunks := []domain.Chunk{}
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.ChunkIndex, &c.PageNumber, &c.Content); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// --- Chat history ---

// AppendChatMessages appends messages to a document's chat history.
func (s *PostgresStore) AppendChatMessages(ctx context.Context, documentID string, msgs ...domain.ChatMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chat_messages (document_id, role, content, relevant_chunk_indices, created_at)
		 VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, m := range msgs {
		indices := toInt64s(m.RelevantChunkIndices)
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, documentID, m.Role, m.Content, pq.Array(indices), createdAt); err != nil {
			return fmt.Errorf("insert chat message: %w", err)
		}
	}

	return tx.Commit()
}

// ListChatMessages returns a document's chat history, oldest first.
func (s *PostgresStore) ListChatMessages(ctx context.Context, documentID string) ([]domain.ChatMessage, error) {
	query := `SELECT id, document_id, role, content, relevant_chunk_indices, created_at
	          FROM chat_messages WHERE document_id = $1 ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	msgs := []domain.ChatMessage{}
	for rows.Next() {
		var m domain.ChatMessage
		var indices []int64
		if err := rows.Scan(&m.ID, &m.DocumentID, &m.Role, &m.Content, pq.Array(&indices), &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		m.RelevantChunkIndices = toInts(indices)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// --- Generations ---

// SaveGeneration persists a generated artifact.
func (s *PostgresStore) SaveGeneration(ctx context.Context, g *domain.Generation) error {
	query := `INSERT INTO generations (document_id, kind, payload)
	          VALUES ($1, $2, $3::jsonb)
	          RETURNING id, created_at`
	if err := s.db.QueryRowContext(ctx, query, g.DocumentID, g.Kind, string(g.Payload)).Scan(&g.ID, &g.CreatedAt); err != nil {
		return fmt.Errorf("save generation: %w", err)
	}
	return nil
}

// ListGenerations returns a document's generated artifacts, newest first.
func (s *PostgresStore) ListGenerations(ctx context.Context, documentID string) ([]domain.Generation, error) {
	query := `SELECT id, document_id, kind, payload::text, created_at
	          FROM generations WHERE document_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	gens := []domain.Generation{}
	for rows.Next() {
		var g domain.Generation
		var payload string
		if err := rows.Scan(&g.ID, &g.DocumentID, &g.Kind, &payload, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		g.Payload = []byte(payload)
		gens = append(gens, g)
	}
	return gens, rows.Err()
}

// --- Audit Logs ---

// WriteAudit implements middleware.AuditWriter.
func (s *PostgresStore) WriteAudit(action, resource, resourceID, details, ip, userAgent string) error {
	query := `INSERT INTO audit_logs (action, resource, resource_id, details, ip, user_agent)
	          VALUES ($1, $2, $3, $4::jsonb, $5, $6)`
	_, err := s.db.ExecContext(context.Background(), query,
		action, resource, resourceID, details, ip, userAgent,
	)
	return err
}

// ListAuditLogs returns recent audit logs with an optional action filter.
func (s *PostgresStore) ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error) {
	query := `SELECT id, action, resource, resource_id, details::text, ip, user_agent, created_at
	          FROM audit_logs`
	args := []interface{}{}
	argIdx := 1

	if action != "" {
		query += fmt.Sprintf(" WHERE action = $%d", argIdx)
		args = append(args, action)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	logs := []domain.AuditLog{}
	for rows.Next() {
		var l domain.AuditLog
		if err := rows.Scan(
			&l.ID, &l.Action, &l.Resource, &l.ResourceID,
			&l.Details, &l.IP, &l.UserAgent, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// isInvalidTextRepresentation matches ids that are not valid UUIDs.
func isInvalidTextRepresentation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "22P02"
}

func toInt64s(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

func toInts(in []int64) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}
