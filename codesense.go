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


// Package codesense wires an embedding store, an embedding provider and the
// expansion corpus into a single handle for ingestion and discovery.
package codesense

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/poiesic/codesense/ai"
	"github.com/poiesic/codesense/ai/openai"
	"github.com/poiesic/codesense/discovery"
	"github.com/poiesic/codesense/expansion"
	"github.com/poiesic/codesense/ingestion"
	"github.com/poiesic/codesense/reembed"
	"github.com/poiesic/codesense/storage"
	"github.com/poiesic/codesense/storage/badger"
	_ "github.com/poiesic/codesense/storage/memory"
)

// DefaultAdapter is the storage adapter used when none is configured.
const DefaultAdapter = badger.Kind

type Database struct {
	store    storage.EmbeddingStore
	provider ai.AIProvider
	expander *expansion.Source
	logger   *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	adapter  string
	store    storage.Options
	aiConfig *ai.Config
	provider ai.AIProvider
	logger   *slog.Logger
}

// WithAdapter selects a registered storage adapter by name.
func WithAdapter(kind string) DatabaseOption {
	return func(o *databaseOptions) { o.adapter = kind }
}

// WithInMemory keeps a durable adapter's data in memory only.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) { o.store.InMemory = true }
}

// WithStoreOptions replaces the adapter options. The location argument of
// NewDatabase still wins when it is not empty.
func WithStoreOptions(opts storage.Options) DatabaseOption {
	return func(o *databaseOptions) { o.store = opts }
}

// WithAIConfig configures the OpenAI-compatible embedding provider.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) { o.aiConfig = config }
}

// WithAIProvider uses provider instead of building one from the AI config.
// The Database takes ownership and closes it.
func WithAIProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) { o.provider = provider }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) { o.logger = logger }
}

// NewDatabase opens the store at location and prepares the embedding provider.
func NewDatabase(ctx context.Context, location string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		adapter:  DefaultAdapter,
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if location != "" {
		options.store.Location = location
	}
	if options.store.Logger == nil {
		options.store.Logger = options.logger
	}

	store, err := storage.Open(ctx, options.adapter, options.store)
	if err != nil {
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	expander, err := expansion.NewSource(store, expansion.WithLogger(options.logger))
	if err != nil {
		provider.Close()
		store.Close()
		return nil, err
	}

	return &Database{
		store:    store,
		provider: provider,
		expander: expander,
		logger:   options.logger,
	}, nil
}

// Close releases the provider and the store.
func (db *Database) Close() error {
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}
	if err := db.store.Close(); err != nil {
		db.logger.Error("error closing embedding store", "err", err)
		return err
	}
	return nil
}

func (db *Database) Store() storage.EmbeddingStore {
	return db.store
}

func (db *Database) Provider() ai.AIProvider {
	return db.provider
}

// Expander returns the expansion corpus over this database's store.
func (db *Database) Expander() *expansion.Source {
	return db.expander
}

func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(db.store, db.provider, opts...)
}

// NewDiscoveryEngine returns an engine that expands queries from this database.
func (db *Database) NewDiscoveryEngine(opts ...discovery.Option) (*discovery.Engine, error) {
	opts = append([]discovery.Option{discovery.WithExpander(db.expander), discovery.WithLogger(db.logger)}, opts...)
	return discovery.New(db.store, db.provider.Embedder(), opts...)
}

func (db *Database) NewReembedder(config *reembed.Config, progress io.Writer, opts ...reembed.Option) (*reembed.Reembedder, error) {
	opts = append([]reembed.Option{reembed.WithLogger(db.logger)}, opts...)
	return reembed.NewReembedder(db.store, db.provider.Embedder(), config, progress, opts...)
}

// Ingest embeds and stores entities, then rebuilds the expansion corpus.
// Entities that were stored are kept even when others fail.
func (db *Database) Ingest(ctx context.Context, entities []ingestion.Entity, opts ...ingestion.Option) ([]string, error) {
	opts = append([]ingestion.Option{ingestion.WithLogger(db.logger)}, opts...)
	pipeline, err := db.NewIngestionPipeline(opts...)
	if err != nil {
		return nil, err
	}
	defer pipeline.Release()

	ids, ingestErr := pipeline.Ingest(ctx, entities...)
	if len(ids) > 0 {
		if _, err := db.expander.Refresh(ctx); err != nil {
			return ids, errors.Join(ingestErr, err)
		}
	}
	return ids, ingestErr
}

// Export writes a compressed snapshot of the store.
func (db *Database) Export(ctx context.Context, w io.Writer) (int, error) {
	return storage.Export(ctx, db.store, w)
}

// Import loads a snapshot and rebuilds the expansion corpus.
func (db *Database) Import(ctx context.Context, r io.Reader) (int, error) {
	n, err := storage.Import(ctx, db.store, r)
	if n > 0 {
		if _, refreshErr := db.expander.Refresh(ctx); refreshErr != nil {
			return n, errors.Join(err, refreshErr)
		}
	}
	return n, err
}
