package badger

import (
	"context"

	"github.com/poiesic/codesense/storage"
)

// NewMemoryStore creates an in-memory Badger store for testing.
// Caller must close the store when done.
func NewMemoryStore() (*Store, error) {
	return OpenStore(context.Background(), storage.Options{InMemory: true})
}
