package reembed

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrEmbeddingMismatch is returned when the embedder answers with a
	// different number of vectors than texts it was given
	ErrEmbeddingMismatch = errors.New("embedding count mismatch")

	// ErrStoreRequired is returned when no graph store is supplied
	ErrStoreRequired = errors.New("graph store is required")

	// ErrEmbedderRequired is returned when no embedder is supplied
	ErrEmbedderRequired = errors.New("embedder is required")
)
