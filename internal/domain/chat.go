package domain

import "time"

// ChatMessage is one turn of a conversation about a document.
// Assistant turns record which chunks supported the answer.
type ChatMessage struct {
	ID                   string    `json:"id,omitempty"           db:"id"`
	DocumentID           string    `json:"document_id"            db:"document_id"`
	Role                 string    `json:"role"                   db:"role"`
	Content              string    `json:"content"                db:"content"`
	RelevantChunkIndices []int     `json:"relevant_chunk_indices" db:"relevant_chunk_indices"`
	CreatedAt            time.Time `json:"created_at"             db:"created_at"`
}

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
