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
	"slices"

	"github.com/poiesic/codesense/core"
	"github.com/poiesic/codesense/storage"
)

const (
	// DefaultBatchSize is the default number of entities handled per batch
	DefaultBatchSize = 100
)

// EmbeddingIterator walks the stored embeddings in entity id order.
type EmbeddingIterator struct {
	store     storage.EmbeddingStore
	filter    storage.Filter
	batchSize int
}

// NewEmbeddingIterator creates a new iterator over store.
// filter restricts the walk; nil visits every entity.
// batchSize: number of entities per batch (defaults when <= 0)
func NewEmbeddingIterator(store storage.EmbeddingStore, filter storage.Filter, batchSize int) *EmbeddingIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &EmbeddingIterator{
		store:     store,
		filter:    filter,
		batchSize: batchSize,
	}
}

// Count returns how many entities ForEach would visit.
func (it *EmbeddingIterator) Count(ctx context.Context) (int, error) {
	records, err := it.store.Query(ctx, it.filter, 0)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// ForEach calls fn for each batch of embeddings.
// Iteration stops on the first error from fn or when every entity is visited.
// Context cancellation is checked between batches.
func (it *EmbeddingIterator) ForEach(ctx context.Context, fn func([]*core.Embedding) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	records, err := it.store.Query(ctx, it.filter, 0)
	if err != nil {
		return err
	}

	for batch := range slices.Chunk(records, it.batchSize) {
		if err := fn(batch); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}
