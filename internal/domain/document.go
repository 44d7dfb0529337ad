package domain

import "time"

// Document is an uploaded study document and the text extracted from it.
type Document struct {
	ID            string    `json:"id"             db:"id"`
	Title         string    `json:"title"          db:"title"`
	FileName      string    `json:"file_name"      db:"file_name"`
	FileSize      int64     `json:"file_size"      db:"file_size"`
	ExtractedText string    `json:"-"              db:"extracted_text"`
	ChunkCount    int       `json:"chunk_count"    db:"chunk_count"`
	Status        string    `json:"status"         db:"status"` // processing, ready, failed
	Error         string    `json:"error,omitempty" db:"error"`
	CreatedAt     time.Time `json:"created_at"     db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"     db:"updated_at"`
}

// Document status constants.
const (
	DocumentStatusProcessing = "processing"
	DocumentStatusReady      = "ready"
	DocumentStatusFailed     = "failed"
)

// Ready reports whether the document has been extracted and chunked.
func (d *Document) Ready() bool {
	return d.Status == DocumentStatusReady
}
