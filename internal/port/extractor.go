package port

import (
	"context"
	"io"
)

// TextExtractor pulls plain text out of an uploaded file.
type TextExtractor interface {
	Extract(ctx context.Context, r io.ReaderAt, size int64) (string, error)
}
