package rag

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this module wraps exactly one of them.
var (
	// ErrInvalidArgument reports malformed input, rejected before any I/O
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrProvider reports a failing embedding or language-model backend
	ErrProvider = errors.New("provider error")
	// ErrStore reports a failed store operation; writes have been rolled back
	ErrStore = errors.New("store error")
)

// ErrorKind returns a short machine-readable name for err's kind
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrProvider):
		return "provider_error"
	case errors.Is(err, ErrStore):
		return "store_error"
	default:
		return "internal_error"
	}
}

// ValidateBatch checks that chunks and embeddings line up and that every
// embedding has the expected dimension. A dim of zero skips the dimension check.
func ValidateBatch(chunks []string, embeddings [][]float32, dim int) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("%w: chunks and embeddings must have same length (%d != %d)",
			ErrInvalidArgument, len(chunks), len(embeddings))
	}
	if dim <= 0 {
		return nil
	}
	for i, emb := range embeddings {
		if len(emb) != dim {
			return fmt.Errorf("%w: embedding %d has dimension %d, store expects %d",
				ErrInvalidArgument, i, len(emb), dim)
		}
	}
	return nil
}
