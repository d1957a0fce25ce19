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


package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/codesense/core"
	"github.com/poiesic/codesense/storage"
)

// Adapter names under which the store registers.
const (
	Kind      = "durable"
	KindAlias = "badger"
)

func init() {
	storage.MustRegisterAdapter(Kind, Open)
	storage.MustRegisterAdapter(KindAlias, Open)
}

// Store is a durable EmbeddingStore backed by BadgerDB.
type Store struct {
	backend *Backend
	timeout time.Duration
	logger  *slog.Logger

	writeMu sync.Mutex // serializes writers so the dimension check and set are atomic
	dim     atomic.Int64
	closed  atomic.Bool
}

var _ storage.EmbeddingStore = (*Store)(nil)

// Open opens a Badger store. opts.Location is required unless opts.InMemory is set.
func Open(ctx context.Context, opts storage.Options) (storage.EmbeddingStore, error) {
	return OpenStore(ctx, opts)
}

// OpenStore is Open returning the concrete type.
func OpenStore(ctx context.Context, opts storage.Options) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !opts.InMemory && opts.Location == "" {
		return nil, storage.ErrLocationRequired
	}
	logger := opts.LoggerOrDefault().With("component", "badger-store")

	backend, err := OpenBackend(opts.Location, opts.InMemory, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStorageUnavailable, err)
	}
	s := &Store{
		backend: backend,
		timeout: opts.Timeout,
		logger:  logger,
	}

	dim, err := s.loadDimension()
	if err != nil {
		backend.Close()
		return nil, err
	}
	s.dim.Store(int64(dim))
	if opts.Dimension > 0 && dim > 0 && opts.Dimension != dim {
		logger.Warn("dimension hint differs from stored dimension", "hint", opts.Dimension, "stored", dim)
	}
	logger.Debug("store opened", "location", opts.Location, "in_memory", opts.InMemory, "dimension", dim)
	return s, nil
}

func (s *Store) loadDimension() (int, error) {
	var dim int
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(dimensionKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			dim, err = storage.UnmarshalDimension(val)
			return err
		})
	}, false)
	return dim, err
}

// run executes fn under ctx and the store timeout and normalizes its error.
// fn keeps running in the background if the deadline passes first; the
// transaction it holds is discarded when it returns.
func (s *Store) run(ctx context.Context, op string, fn func() error) error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return s.mapError(op, err)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.logger.Warn("storage operation timed out", "op", op)
			return fmt.Errorf("%w: %s", storage.ErrStorageTimeout, op)
		}
		return ctx.Err()
	}
}

func (s *Store) mapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrDBClosed):
		return storage.ErrStorageClosed
	case errors.Is(err, core.ErrInvalidEmbedding),
		errors.Is(err, core.ErrDimensionMismatch),
		errors.Is(err, storage.ErrCorruptRecord):
		return err
	}
	s.logger.Error("storage operation failed", "op", op, "error", err)
	return fmt.Errorf("%w: %s: %w", storage.ErrStorageUnavailable, op, err)
}

// readEmbedding loads and verifies the record at key. A missing key yields nil, nil.
func readEmbedding(tx *badger.Txn, key []byte) (*core.Embedding, error) {
	item, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec *core.Embedding
	err = item.Value(func(val []byte) error {
		rec, err = decodeEmbedding(key, val)
		return err
	})
	return rec, err
}

func decodeEmbedding(key, val []byte) (*core.Embedding, error) {
	rec, err := storage.UnmarshalEmbedding(val)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", storage.ErrCorruptRecord, entityIDFromKey(key), err)
	}
	if rec.EntityID != entityIDFromKey(key) || rec.Checksum != storage.Checksum(rec) {
		return nil, fmt.Errorf("%w: %s: checksum mismatch", storage.ErrCorruptRecord, entityIDFromKey(key))
	}
	return rec, nil
}

// Put implements storage.EmbeddingStore.
func (s *Store) Put(ctx context.Context, entityID string, vector []float32, md core.Metadata) error {
	if err := core.ValidateEmbedding(entityID, vector); err != nil {
		return err
	}
	rec := &core.Embedding{
		EntityID: entityID,
		Vector:   slices.Clone(vector),
		Metadata: md.Clone(),
	}
	if len(rec.Metadata) == 0 {
		rec.Metadata = nil
	}

	return s.run(ctx, "put", func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		dim := int(s.dim.Load())
		if err := core.CheckDimension(dim, vector); err != nil {
			return err
		}

		err := s.backend.WithTx(func(tx *badger.Txn) error {
			key := makeEmbeddingKey(entityID)
			now := time.Now().UTC()
			rec.InsertedAt = now
			rec.UpdatedAt = now

			old, err := readEmbedding(tx, key)
			switch {
			case errors.Is(err, storage.ErrCorruptRecord):
				s.logger.Warn("overwriting corrupt record", "entity_id", entityID)
			case err != nil:
				return err
			case old != nil:
				rec.InsertedAt = old.InsertedAt
			}
			rec.Checksum = storage.Checksum(rec)

			if err := tx.Set(key, storage.MarshalEmbedding(rec)); err != nil {
				return err
			}
			if dim == 0 {
				if err := tx.Set([]byte(dimensionKey), storage.MarshalDimension(len(vector))); err != nil {
					return err
				}
			}
			return tx.Commit()
		}, true)
		if err != nil {
			return err
		}

		if dim == 0 {
			s.dim.Store(int64(len(vector)))
			s.logger.Debug("store dimension established", "dimension", len(vector))
		}
		return nil
	})
}

// Get implements storage.EmbeddingStore.
func (s *Store) Get(ctx context.Context, entityID string) (*core.Embedding, bool, error) {
	var rec *core.Embedding
	err := s.run(ctx, "get", func() error {
		return s.backend.WithTx(func(tx *badger.Txn) error {
			var err error
			rec, err = readEmbedding(tx, makeEmbeddingKey(entityID))
			return err
		}, false)
	})
	if err != nil {
		return nil, false, err
	}
	return rec, rec != nil, nil
}

// Query implements storage.EmbeddingStore.
// Keys sort by entity id, so the scan stops as soon as limit matches are found.
func (s *Store) Query(ctx context.Context, filter storage.Filter, limit int) ([]*core.Embedding, error) {
	var out []*core.Embedding
	err := s.run(ctx, "query", func() error {
		return s.backend.WithTx(func(tx *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(embeddingPrefix)
			iter := tx.NewIterator(opts)
			defer iter.Close()

			for iter.Rewind(); iter.Valid(); iter.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}
				item := iter.Item()
				var rec *core.Embedding
				err := item.Value(func(val []byte) error {
					var err error
					rec, err = decodeEmbedding(item.Key(), val)
					return err
				})
				if err != nil {
					return err
				}
				if !storage.Matches(filter, rec.Metadata) {
					continue
				}
				out = append(out, rec)
				if limit > 0 && len(out) == limit {
					return nil
				}
			}
			return nil
		}, false)
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*core.Embedding{}
	}
	return out, nil
}

// Delete implements storage.EmbeddingStore.
func (s *Store) Delete(ctx context.Context, entityID string) error {
	return s.run(ctx, "delete", func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		return s.backend.WithTx(func(tx *badger.Txn) error {
			if err := tx.Delete(makeEmbeddingKey(entityID)); err != nil {
				return err
			}
			return tx.Commit()
		}, true)
	})
}

// Dimension implements storage.EmbeddingStore.
func (s *Store) Dimension() int {
	return int(s.dim.Load())
}

// Close implements storage.EmbeddingStore. Closing twice is a no-op.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.logger.Debug("closing store")
	return s.backend.Close()
}
