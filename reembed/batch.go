package reembed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/codesense/ai"
	"github.com/poiesic/codesense/core"
	"github.com/poiesic/codesense/storage"
	"github.com/poiesic/codesense/vecmath"
)

// BatchResult counts what happened to one batch.
type BatchResult struct {
	Reembedded int
	Skipped    int
}

// BatchProcessor re-embeds batches of stored entities.
type BatchProcessor struct {
	target   storage.EmbeddingStore
	embedder ai.Embedder
	backoff  Backoff
	logger   *slog.Logger
}

// NewBatchProcessor creates a new batch processor writing to target.
func NewBatchProcessor(target storage.EmbeddingStore, embedder ai.Embedder, backoff Backoff, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	backoff.Logger = logger
	return &BatchProcessor{
		target:   target,
		embedder: embedder,
		backoff:  backoff,
		logger:   logger,
	}
}

// entityText returns the text an entity was embedded from.
func entityText(emb *core.Embedding) string {
	if text := emb.Metadata.GetString(core.MetaContent); text != "" {
		return text
	}
	return emb.Metadata.GetString(core.MetaName)
}

// Process embeds the stored content of each entity again and writes the
// normalised vectors with the original metadata. Entities with neither
// content nor name metadata are skipped.
func (bp *BatchProcessor) Process(ctx context.Context, records []*core.Embedding) (BatchResult, error) {
	var res BatchResult
	if len(records) == 0 {
		return res, nil
	}

	texts := make([]string, 0, len(records))
	todo := make([]*core.Embedding, 0, len(records))
	for _, record := range records {
		text := entityText(record)
		if text == "" {
			bp.logger.Warn("skipping entity without content", "entity", record.EntityID)
			res.Skipped++
			continue
		}
		texts = append(texts, text)
		todo = append(todo, record)
	}
	if len(todo) == 0 {
		return res, nil
	}

	var embeddings [][]float32
	err := bp.backoff.Do(ctx, func(ctx context.Context) error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		if errors.Is(err, context.Canceled) {
			return Permanent(err)
		}
		return err
	})
	if err != nil {
		return res, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	if len(embeddings) != len(todo) {
		return res, fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingMismatch, len(todo), len(embeddings))
	}

	for i, record := range todo {
		vec := vecmath.Normalize(embeddings[i])
		if err := bp.target.Put(ctx, record.EntityID, vec, record.Metadata); err != nil {
			return res, fmt.Errorf("failed to update %s: %w", record.EntityID, err)
		}
		res.Reembedded++
	}

	return res, nil
}
