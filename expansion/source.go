package expansion

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/poiesic/codesense/storage"
	"golang.org/x/sync/singleflight"
)

// Source owns the current corpus Index for a store and rebuilds it on demand.
// Concurrent Refresh calls share a single rebuild.
type Source struct {
	store   storage.EmbeddingStore
	current atomic.Pointer[Index]
	group   singleflight.Group
	logger  *slog.Logger
}

// SourceOption configures a Source.
type SourceOption func(*Source) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) SourceOption {
	return func(s *Source) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSource creates a Source over store. No index is built until the first
// Refresh or Expand.
func NewSource(store storage.EmbeddingStore, opts ...SourceOption) (*Source, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	s := &Source{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "expansion")
	return s, nil
}

// Current returns the most recently built index, or nil.
func (s *Source) Current() *Index {
	return s.current.Load()
}

// Refresh rebuilds the index from the store and publishes it.
// The previous index stays current if the rebuild fails. A caller whose ctx
// ends stops waiting, but the shared rebuild runs on for the other callers.
func (s *Source) Refresh(ctx context.Context) (*Index, error) {
	buildCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan("refresh", func() (any, error) {
		start := time.Now()
		idx, err := BuildIndex(buildCtx, s.store)
		if err != nil {
			return nil, err
		}
		s.current.Store(idx)
		s.logger.Debug("corpus index rebuilt",
			"documents", idx.Len(),
			"terms", idx.Vocabulary(),
			"elapsed", time.Since(start))
		return idx, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			s.logger.Warn("corpus index rebuild failed", "err", res.Err, "shared", res.Shared)
			return nil, res.Err
		}
		return res.Val.(*Index), nil
	}
}

// Expand expands query against the current index, building it first if needed.
func (s *Source) Expand(ctx context.Context, query string, cfg Config) (*Result, error) {
	idx := s.Current()
	if idx == nil {
		var err error
		if idx, err = s.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	return NewExpander(idx).Expand(ctx, query, cfg)
}
