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


package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/codesense/core"
)

// EmbeddingStore persists vectors and metadata keyed by entity id.
type EmbeddingStore interface {
	// Put inserts or replaces the embedding for entityID.
	// The first successful Put fixes the store dimension; a vector of any
	// other length fails with *core.DimensionMismatchError.
	Put(ctx context.Context, entityID string, vector []float32, md core.Metadata) error

	// Get returns the embedding for entityID.
	// A missing id is reported as found=false with a nil error.
	Get(ctx context.Context, entityID string) (emb *core.Embedding, found bool, err error)

	// Query returns embeddings whose metadata satisfies filter, ordered by
	// entity id. A nil filter matches everything. limit <= 0 means no limit.
	Query(ctx context.Context, filter Filter, limit int) ([]*core.Embedding, error)

	// Delete removes entityID. Deleting an absent id is not an error.
	Delete(ctx context.Context, entityID string) error

	// Dimension returns the established vector dimension, or 0 before the
	// first successful Put.
	Dimension() int

	// Close releases resources. Further calls fail with ErrStorageClosed.
	Close() error
}

// Options configures an adapter. Adapters ignore fields they do not use.
type Options struct {
	// Dimension is an advisory hint for the expected vector length.
	// The dimension actually enforced is fixed by the first Put.
	Dimension int

	// Location is the directory or connection descriptor of a durable backend.
	Location string

	// InMemory asks a durable adapter to run without touching disk.
	InMemory bool

	// Timeout bounds every individual operation. Zero means no bound beyond
	// the caller's context.
	Timeout time.Duration

	// Logger receives adapter diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// LoggerOrDefault returns o.Logger, or slog.Default() when unset.
func (o Options) LoggerOrDefault() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}
