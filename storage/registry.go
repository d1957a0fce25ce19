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
	"fmt"
	"slices"
	"sync"
)

// Factory creates a store from adapter options.
type Factory func(ctx context.Context, opts Options) (EmbeddingStore, error)

// Registry maps adapter names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds an adapter under kind.
// Returns ErrAdapterExists when kind is taken.
func (r *Registry) Register(kind string, factory Factory) error {
	if kind == "" || factory == nil {
		return ErrInvalidAdapter
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[kind]; ok {
		return fmt.Errorf("%w: %q", ErrAdapterExists, kind)
	}
	r.factories[kind] = factory
	return nil
}

// Open creates a store using the adapter registered under kind.
func (r *Registry) Open(ctx context.Context, kind string, opts Options) (EmbeddingStore, error) {
	r.mu.RLock()
	factory, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAdapter, kind)
	}
	return factory(ctx, opts)
}

// Adapters lists registered adapter names in sorted order.
func (r *Registry) Adapters() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

var defaultRegistry = NewRegistry()

// RegisterAdapter adds an adapter to the default registry.
func RegisterAdapter(kind string, factory Factory) error {
	return defaultRegistry.Register(kind, factory)
}

// MustRegisterAdapter is RegisterAdapter for use in init functions.
func MustRegisterAdapter(kind string, factory Factory) {
	if err := RegisterAdapter(kind, factory); err != nil {
		panic(err)
	}
}

// Open creates a store using an adapter from the default registry.
func Open(ctx context.Context, kind string, opts Options) (EmbeddingStore, error) {
	return defaultRegistry.Open(ctx, kind, opts)
}

// Adapters lists the adapters in the default registry.
func Adapters() []string {
	return defaultRegistry.Adapters()
}
