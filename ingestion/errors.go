package ingestion

import "errors"

var (
	// ErrStoreRequired is returned when an embedding store is not provided.
	ErrStoreRequired = errors.New("embedding store required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrInvalidEntity is returned for entities that cannot be embedded.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrEmbeddingMismatch is returned when the embedder returns the wrong number of vectors.
	ErrEmbeddingMismatch = errors.New("embedding result mismatch")

	// ErrPipelineReleased is returned by Ingest after Release.
	ErrPipelineReleased = errors.New("pipeline released")
)
