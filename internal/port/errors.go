package port

import "errors"

// Sentinel errors used across ports.
var (
	ErrGeneratorNotFound = errors.New("generator not found")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrDocumentNotReady  = errors.New("document not ready")
	ErrEmptyQuery        = errors.New("query is required")
	ErrNoText            = errors.New("no text extracted from document")
)
