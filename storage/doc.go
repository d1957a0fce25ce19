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


// Package storage provides the embedding storage abstraction for codesense.
//
// EmbeddingStore persists one vector plus scalar metadata per entity id.
// Adapters are selected by name through a registry so that new backends can
// be added without touching the rest of the engine:
//
//	store, err := storage.Open(ctx, "durable", storage.Options{Location: "/var/lib/codesense"})
//
// Adapters register themselves from init(), so the adapter package must be
// imported for its side effects:
//
//	import _ "github.com/poiesic/codesense/storage/memory"
//
// # Consistency
//
// Every adapter guarantees read-after-write on a single handle: a Get that
// follows a successful Put of the same id returns the value just written.
// Consistency between two handles over the same durable location is defined
// by the backend.
//
// # Dimension
//
// The first successful Put fixes the vector dimension of a store. Later
// writes with a different length fail with *core.DimensionMismatchError.
//
// # Thread Safety
//
// All adapters must be safe for concurrent use. Returned embeddings are
// copies; callers may modify them freely.
package storage
