// Package chunker splits extracted document text into ordered, overlapping
// word windows that respect paragraph boundaries where it can.
package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arturoeanton/go-study-assistant/internal/domain"
)

// Defaults used when a document is processed.
const (
	DefaultChunkSize = 500
	DefaultOverlap   = 50
)

var (
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
	ErrInvalidOverlap   = errors.New("overlap must be non-negative and smaller than chunk size")
)

// Chunker holds validated window parameters. It has no mutable state and is
// safe for concurrent use.
type Chunker struct {
	size    int
	overlap int
}

// New returns a Chunker producing chunks of at most chunkSize words with
// overlap trailing words carried between neighbours.
func New(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d, chunk size %d", ErrInvalidOverlap, overlap, chunkSize)
	}
	return &Chunker{size: chunkSize, overlap: overlap}, nil
}

// Default returns a Chunker with DefaultChunkSize and DefaultOverlap.
func Default() *Chunker {
	return &Chunker{size: DefaultChunkSize, overlap: DefaultOverlap}
}

// Split validates the parameters and chunks text in one call.
func Split(text string, chunkSize, overlap int) ([]domain.Chunk, error) {
	c, err := New(chunkSize, overlap)
	if err != nil {
		return nil, err
	}
	return c.Split(text), nil
}

// ChunkSize returns the target chunk length in characters.
func (c *Chunker) ChunkSize() int { return c.size }

// Overlap returns how many trailing characters each chunk repeats from its predecessor.
func (c *Chunker) Overlap() int { return c.overlap }

// Split chunks text. Blank input yields an empty slice.
//
// Paragraphs are accumulated until the next one would overflow the chunk
// size; the flushed chunk's last words seed the next chunk. Paragraphs longer
// than the chunk size are cut into sliding windows on their own.
func (c *Chunker) Split(text string) []domain.Chunk {
	cleaned := Normalize(text)
	out := &emitter{chunks: []domain.Chunk{}}
	if cleaned == "" {
		return out.chunks
	}

	var pending []string
	pendingWords := 0

	for _, para := range paragraphs(cleaned) {
		words := strings.Fields(para)
		n := len(words)

		if n > c.size {
			if len(pending) > 0 {
				out.emit(strings.Join(pending, "\n\n"))
				pending, pendingWords = nil, 0
			}
			c.window(out, words)
			continue
		}

		if pendingWords+n > c.size && len(pending) > 0 {
			flushed := strings.Join(pending, "\n\n")
			out.emit(flushed)

			tail := c.overlapTail(flushed, n)
			if len(tail) > 0 {
				pending = []string{strings.Join(tail, " "), para}
			} else {
				pending = []string{para}
			}
			pendingWords = len(tail) + n
			continue
		}

		pending = append(pending, para)
		pendingWords += n
	}

	if len(pending) > 0 {
		out.emit(strings.Join(pending, "\n\n"))
	}

	if len(out.chunks) == 0 {
		c.window(out, strings.Fields(cleaned))
	}
	return out.chunks
}

// overlapTail returns the trailing words of a flushed chunk to carry into the
// next one. It is capped so the seeded chunk still fits next words.
func (c *Chunker) overlapTail(flushed string, next int) []string {
	words := strings.Fields(flushed)
	k := min(c.overlap, len(words), c.size-next)
	if k <= 0 {
		return nil
	}
	return words[len(words)-k:]
}

// window slides a size-word window over words with stride size-overlap and
// stops at the first window that reaches the end.
func (c *Chunker) window(out *emitter, words []string) {
	stride := c.size - c.overlap
	for start := 0; start < len(words); start += stride {
		end := min(start+c.size, len(words))
		out.emit(strings.Join(words[start:end], " "))
		if end == len(words) {
			return
		}
	}
}

type emitter struct {
	chunks []domain.Chunk
}

func (e *emitter) emit(content string) {
	e.chunks = append(e.chunks, domain.Chunk{
		Content:    content,
		ChunkIndex: len(e.chunks),
	})
}
