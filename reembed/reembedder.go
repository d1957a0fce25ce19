// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/poiesic/codesense/ai"
	"github.com/poiesic/codesense/core"
	"github.com/poiesic/codesense/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of entities to process in each batch
	BatchSize int `yaml:"batch_size"`

	// ReportInterval is how often to report progress (number of entities)
	ReportInterval int `yaml:"report_interval"`

	// MaxRetries is the maximum number of attempts for each embedding call
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration `yaml:"retry_delay"`

	// BatchesPerSecond paces batches. Zero means unpaced.
	BatchesPerSecond float64 `yaml:"batches_per_second"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch_size must be positive", ErrInvalidConfig)
	case c.MaxRetries <= 0:
		return fmt.Errorf("%w: max_retries must be positive", ErrInvalidConfig)
	case c.RetryDelay < 0:
		return fmt.Errorf("%w: retry_delay cannot be negative", ErrInvalidConfig)
	case c.BatchesPerSecond < 0:
		return fmt.Errorf("%w: batches_per_second cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Stats summarises a completed run.
type Stats struct {
	Total      int
	Reembedded int
	Skipped    int
	Elapsed    time.Duration
}

// Reembedder orchestrates the reembedding of every stored entity.
type Reembedder struct {
	source    storage.EmbeddingStore
	target    storage.EmbeddingStore
	embedder  ai.Embedder
	config    *Config
	filter    storage.Filter
	progress  io.Writer
	limiter   *rate.Limiter
	logger    *slog.Logger
	processor *BatchProcessor
	iterator  *EmbeddingIterator
}

// Option configures a Reembedder.
type Option func(*Reembedder) error

// WithTarget writes new vectors to target instead of the source store.
// This is how a model with a different dimension is adopted.
func WithTarget(target storage.EmbeddingStore) Option {
	return func(r *Reembedder) error {
		if target == nil {
			return ErrStoreRequired
		}
		r.target = target
		return nil
	}
}

// WithFilter restricts reembedding to entities matching filter.
func WithFilter(filter storage.Filter) Option {
	return func(r *Reembedder) error {
		r.filter = filter
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reembedder) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(source storage.EmbeddingStore, embedder ai.Embedder, config *Config, progress io.Writer, opts ...Option) (*Reembedder, error) {
	if source == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = io.Discard
	}

	r := &Reembedder{
		source:   source,
		target:   source,
		embedder: embedder,
		config:   config,
		progress: progress,
		limiter:  rate.NewLimiter(rate.Inf, 0),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "reembed")

	if config.BatchesPerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(config.BatchesPerSecond), 1)
	}

	backoff := Backoff{MaxAttempts: config.MaxRetries, BaseDelay: config.RetryDelay}
	r.processor = NewBatchProcessor(r.target, embedder, backoff, r.logger)
	r.iterator = NewEmbeddingIterator(source, r.filter, config.BatchSize)
	return r, nil
}

// Run re-embeds every matching entity with the configured embedder.
// Progress is reported to the configured writer.
func (r *Reembedder) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	total, err := r.iterator.Count(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to query entities: %w", err)
	}
	stats.Total = total

	if total == 0 {
		fmt.Fprintf(r.progress, "No entities found in store (0 entities)\n")
		return stats, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d entities (batch size: %d)\n",
		total, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	err = r.iterator.ForEach(ctx, func(batch []*core.Embedding) error {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}

		res, err := r.processor.Process(ctx, batch)
		stats.Reembedded += res.Reembedded
		stats.Skipped += res.Skipped
		if err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}

		tracker.Increment(len(batch), res.Skipped)
		return nil
	})
	stats.Elapsed = tracker.Elapsed()
	if err != nil {
		r.logger.Error("reembedding stopped", "reembedded", stats.Reembedded, "err", err)
		return stats, err
	}

	tracker.Finish()

	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d entities in %v (%.1f entities/sec)\n",
		total, stats.Elapsed.Round(time.Millisecond), float64(total)/stats.Elapsed.Seconds())
	r.logger.Info("reembedding complete", "reembedded", stats.Reembedded, "skipped", stats.Skipped)

	return stats, nil
}
