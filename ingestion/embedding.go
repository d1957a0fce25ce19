package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/codesense/ai"
	"github.com/poiesic/codesense/storage"
	"github.com/poiesic/codesense/vecmath"
)

// embeddingProcessor embeds entity text and stores the vectors.
type embeddingProcessor struct {
	store     storage.EmbeddingStore
	embedder  ai.Embedder
	normalize bool
	logger    *slog.Logger
}

var _ processor = (*embeddingProcessor)(nil)

// newEmbeddingProcessor creates a new embedding processor.
func newEmbeddingProcessor(store storage.EmbeddingStore, embedder ai.Embedder, normalize bool, logger *slog.Logger) (*embeddingProcessor, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		store:     store,
		embedder:  embedder,
		normalize: normalize,
		logger:    logger.With("processor", "embeddings"),
	}, nil
}

// process embeds the batch in one call and stores each entity.
// A store failure stops the batch; ids stored before it are still returned.
func (ep *embeddingProcessor) process(ctx context.Context, batch []Entity) ([]string, error) {
	ep.logger.Debug("processing entities for embeddings", "entities", len(batch))

	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].text()
	}

	vectors, err := ep.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		ep.logger.Error("error generating embeddings", "err", err)
		return nil, err
	}
	if len(vectors) != len(batch) {
		return nil, fmt.Errorf("%w: expected %d, received %d", ErrEmbeddingMismatch, len(batch), len(vectors))
	}

	stored := make([]string, 0, len(batch))
	for i := range batch {
		vec := vectors[i]
		if ep.normalize {
			vec = vecmath.Normalize(vec)
		}
		if err := ep.store.Put(ctx, batch[i].ID, vec, batch[i].metadata()); err != nil {
			return stored, fmt.Errorf("store %s: %w", batch[i].ID, err)
		}
		stored = append(stored, batch[i].ID)
	}
	return stored, nil
}
