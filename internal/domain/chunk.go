package domain

// Chunk is one contiguous, possibly overlapping window of a document's text.
// ChunkIndex is zero-based and gap-free in emission order.
type Chunk struct {
	ID         string `json:"id,omitempty"  db:"id"`
	Content    string `json:"content"       db:"content"`
	ChunkIndex int    `json:"chunk_index"   db:"chunk_index"`
	PageNumber int    `json:"page_number"   db:"page_number"` // always 0 until page attribution exists
}

// ScoredChunk is a Chunk annotated by the relevance ranker. It is never persisted.
type ScoredChunk struct {
	Chunk
	Score        float64 `json:"score"`
	RawScore     float64 `json:"raw_score"`
	MatchedWords int     `json:"matched_words"`
}

// ChunkIndices returns the ChunkIndex of every chunk, in order.
func ChunkIndices(chunks []Chunk) []int {
	out := make([]int, len(chunks))
	for i, c := range chunks {
		out[i] = c.ChunkIndex
	}
	return out
}
