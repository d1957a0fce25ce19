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


// Package memory provides an in-process EmbeddingStore registered as "memory".
//
// Records live in a map guarded by a RWMutex. Metadata equality pairs are
// indexed with roaring bitmaps so that filters built from storage.Equals can
// pre-select candidates instead of scanning every record.
package memory

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/poiesic/codesense/core"
	"github.com/poiesic/codesense/storage"
)

// Kind is the adapter name under which this store registers.
const Kind = "memory"

func init() {
	storage.MustRegisterAdapter(Kind, func(_ context.Context, opts storage.Options) (storage.EmbeddingStore, error) {
		return New(opts), nil
	})
}

// Store is an in-memory EmbeddingStore.
type Store struct {
	mu       sync.RWMutex
	dim      int
	closed   bool
	records  map[string]*core.Embedding
	ordinals map[string]uint32
	ids      []string // ordinal -> entity id; "" once deleted
	postings map[string]*roaring.Bitmap
	live     *roaring.Bitmap
	logger   *slog.Logger
}

var _ storage.EmbeddingStore = (*Store)(nil)

// New creates an empty in-memory store.
func New(opts storage.Options) *Store {
	return &Store{
		records:  make(map[string]*core.Embedding),
		ordinals: make(map[string]uint32),
		postings: make(map[string]*roaring.Bitmap),
		live:     roaring.New(),
		logger:   opts.LoggerOrDefault().With("component", "memory-store"),
	}
}

func postingKey(key string, v core.Value) string {
	return key + "\x00" + string(rune('0'+v.Kind)) + v.Text()
}

// Put implements storage.EmbeddingStore.
func (s *Store) Put(ctx context.Context, entityID string, vector []float32, md core.Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := core.ValidateEmbedding(entityID, vector); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrStorageClosed
	}
	if err := core.CheckDimension(s.dim, vector); err != nil {
		return err
	}

	now := time.Now().UTC()
	rec := &core.Embedding{
		EntityID:   entityID,
		Vector:     slices.Clone(vector),
		Metadata:   md.Clone(),
		InsertedAt: now,
		UpdatedAt:  now,
	}
	if len(rec.Metadata) == 0 {
		rec.Metadata = nil
	}

	ord, exists := s.ordinals[entityID]
	if exists {
		old := s.records[entityID]
		rec.InsertedAt = old.InsertedAt
		s.unindex(ord, old.Metadata)
	} else {
		ord = uint32(len(s.ids))
		s.ids = append(s.ids, entityID)
		s.ordinals[entityID] = ord
		s.live.Add(ord)
	}
	rec.Checksum = storage.Checksum(rec)
	s.records[entityID] = rec
	s.index(ord, rec.Metadata)

	if s.dim == 0 {
		s.dim = len(vector)
		s.logger.Debug("store dimension established", "dimension", s.dim)
	}
	return nil
}

// Get implements storage.EmbeddingStore.
func (s *Store) Get(ctx context.Context, entityID string) (*core.Embedding, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, false, storage.ErrStorageClosed
	}
	rec, ok := s.records[entityID]
	if !ok {
		return nil, false, nil
	}
	return rec.Clone(), true, nil
}

// Query implements storage.EmbeddingStore.
func (s *Store) Query(ctx context.Context, filter storage.Filter, limit int) ([]*core.Embedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrStorageClosed
	}

	candidates := s.candidates(filter)
	matches := make([]*core.Embedding, 0, candidates.GetCardinality())
	it := candidates.Iterator()
	for it.HasNext() {
		rec := s.records[s.ids[it.Next()]]
		if storage.Matches(filter, rec.Metadata) {
			matches = append(matches, rec)
		}
	}

	slices.SortFunc(matches, func(a, b *core.Embedding) int {
		switch {
		case a.EntityID < b.EntityID:
			return -1
		case a.EntityID > b.EntityID:
			return 1
		}
		return 0
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]*core.Embedding, len(matches))
	for i, rec := range matches {
		out[i] = rec.Clone()
	}
	return out, nil
}

// candidates narrows the live set using equality hints from filter.
// Must be called with the lock held.
func (s *Store) candidates(filter storage.Filter) *roaring.Bitmap {
	groups := storage.EqualityGroups(filter)
	if len(groups) == 0 {
		return s.live
	}
	acc := s.live.Clone()
	for _, group := range groups {
		bms := make([]*roaring.Bitmap, 0, len(group))
		for _, eq := range group {
			if bm, ok := s.postings[postingKey(eq.Key, eq.Value)]; ok {
				bms = append(bms, bm)
			}
		}
		acc.And(roaring.FastOr(bms...))
		if acc.IsEmpty() {
			break
		}
	}
	return acc
}

// Delete implements storage.EmbeddingStore.
func (s *Store) Delete(ctx context.Context, entityID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrStorageClosed
	}
	ord, ok := s.ordinals[entityID]
	if !ok {
		return nil
	}
	s.unindex(ord, s.records[entityID].Metadata)
	s.live.Remove(ord)
	s.ids[ord] = ""
	delete(s.ordinals, entityID)
	delete(s.records, entityID)
	return nil
}

// Dimension implements storage.EmbeddingStore.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Len returns the number of stored embeddings.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close implements storage.EmbeddingStore. Closing twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.records = nil
	s.ordinals = nil
	s.ids = nil
	s.postings = nil
	s.live = roaring.New()
	return nil
}

func (s *Store) index(ord uint32, md core.Metadata) {
	for k, v := range md {
		key := postingKey(k, v)
		bm, ok := s.postings[key]
		if !ok {
			bm = roaring.New()
			s.postings[key] = bm
		}
		bm.Add(ord)
	}
}

func (s *Store) unindex(ord uint32, md core.Metadata) {
	for k, v := range md {
		key := postingKey(k, v)
		if bm, ok := s.postings[key]; ok {
			bm.Remove(ord)
			if bm.IsEmpty() {
				delete(s.postings, key)
			}
		}
	}
}
