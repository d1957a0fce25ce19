package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/codesense/ai"
	"github.com/poiesic/codesense/storage"
)

// DefaultBatchSize is the number of entities embedded per request.
const DefaultBatchSize = 32

// Pipeline embeds entities concurrently and stores the results.
type Pipeline struct {
	store     storage.EmbeddingStore
	provider  ai.AIProvider
	pool      *ants.Pool
	poolSize  int
	batchSize int
	normalize bool
	proc      processor
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.poolSize = size
		return nil
	}
}

// WithBatchSize sets how many entities are embedded per request.
// Default is DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("batch size must be positive, got %d", size)
		}
		p.batchSize = size
		return nil
	}
}

// WithNormalize controls L2 normalisation of vectors before storage.
// Default is true.
func WithNormalize(normalize bool) Option {
	return func(p *Pipeline) error {
		p.normalize = normalize
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// antsLogger routes worker pool diagnostics through slog.
type antsLogger struct {
	logger *slog.Logger
}

func (l antsLogger) Printf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(store storage.EmbeddingStore, provider ai.AIProvider, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	p := &Pipeline{
		store:     store,
		provider:  provider,
		poolSize:  poolSize,
		batchSize: DefaultBatchSize,
		normalize: true,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	proc, err := newEmbeddingProcessor(store, provider.Embedder(), p.normalize, p.logger)
	if err != nil {
		return nil, err
	}
	p.proc = proc

	pool, err := ants.NewPool(p.poolSize,
		ants.WithLogger(antsLogger{logger: p.logger}),
		ants.WithPanicHandler(func(v any) {
			p.logger.Error("ingestion worker panicked", "panic", v)
		}),
	)
	if err != nil {
		return nil, err
	}
	p.pool = pool

	return p, nil
}

// Ingest validates, embeds and stores the entities and waits for completion.
// It returns the sorted ids that were stored. Invalid entities and failed
// batches are reported together in the joined error; everything else is
// still stored. When an id occurs more than once the last entity wins.
func (p *Pipeline) Ingest(ctx context.Context, entities ...Entity) ([]string, error) {
	if p.pool.IsClosed() {
		return nil, ErrPipelineReleased
	}

	var errs []error
	valid := make([]Entity, 0, len(entities))
	seen := make(map[string]int, len(entities))
	for _, e := range entities {
		if err := e.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if i, ok := seen[e.ID]; ok {
			valid[i] = e
			continue
		}
		seen[e.ID] = len(valid)
		valid = append(valid, e)
	}

	var (
		mu  sync.Mutex
		ids []string
		wg  sync.WaitGroup
	)
	record := func(stored []string, err error) {
		mu.Lock()
		defer mu.Unlock()
		ids = append(ids, stored...)
		if err != nil {
			errs = append(errs, err)
		}
	}

	for batch := range slices.Chunk(valid, p.batchSize) {
		if err := ctx.Err(); err != nil {
			record(nil, err)
			break
		}
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					record(nil, fmt.Errorf("batch starting at %s panicked: %v", batch[0].ID, r))
				}
			}()
			record(p.proc.process(ctx, batch))
		})
		if err != nil {
			wg.Done()
			if errors.Is(err, ants.ErrPoolClosed) {
				err = ErrPipelineReleased
			}
			record(nil, err)
			break
		}
	}
	wg.Wait()

	slices.Sort(ids)
	if len(errs) > 0 {
		p.logger.Warn("ingestion finished with errors", "stored", len(ids), "failed", len(errs))
	} else {
		p.logger.Info("ingestion finished", "stored", len(ids))
	}
	return ids, errors.Join(errs...)
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
