// Package pdf extracts plain text from PDF uploads.
package pdf

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor implements port.TextExtractor using github.com/ledongthuc/pdf.
type Extractor struct {
	maxBytes int64
}

// NewExtractor returns an extractor refusing inputs above maxBytes (0 = no limit).
func NewExtractor(maxBytes int64) *Extractor {
	return &Extractor{maxBytes: maxBytes}
}

// Extract reads every page's plain text. The returned text is trimmed.
// The pdf package panics on some malformed files; that surfaces as an error.
func (e *Extractor) Extract(ctx context.Context, r io.ReaderAt, size int64) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", p)
		}
	}()

	if e.maxBytes > 0 && size > e.maxBytes {
		return "", fmt.Errorf("pdf too large: %d bytes (max %d)", size, e.maxBytes)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rdr, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := rdr.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract plain text: %w", err)
	}

	content, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read plain text: %w", err)
	}

	return strings.TrimSpace(string(content)), nil
}
