package memory

import (
	"context"
	"testing"

	"github.com/poiesic/codesense/core"
	"github.com/poiesic/codesense/storage"
	"github.com/poiesic/codesense/storage/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.EmbeddingStore {
		return New(storage.Options{})
	})
}

func TestRegisteredAsMemory(t *testing.T) {
	assert.Contains(t, storage.Adapters(), Kind)

	s, err := storage.Open(context.Background(), Kind, storage.Options{Dimension: 3})
	require.NoError(t, err)
	defer s.Close()
	_, ok := s.(*Store)
	assert.True(t, ok)
}

func TestEqualityIndexMaintained(t *testing.T) {
	ctx := context.Background()
	s := New(storage.Options{})
	defer s.Close()

	require.NoError(t, s.Put(ctx, "a", []float32{1}, core.Metadata{core.MetaType: core.String("function")}))
	require.NoError(t, s.Put(ctx, "b", []float32{1}, core.Metadata{core.MetaType: core.String("function")}))

	key := postingKey(core.MetaType, core.String("function"))
	require.Contains(t, s.postings, key)
	assert.Equal(t, uint64(2), s.postings[key].GetCardinality())

	// retyping moves the ordinal between postings
	require.NoError(t, s.Put(ctx, "b", []float32{1}, core.Metadata{core.MetaType: core.String("class")}))
	assert.Equal(t, uint64(1), s.postings[key].GetCardinality())

	require.NoError(t, s.Delete(ctx, "a"))
	assert.NotContains(t, s.postings, key)
	assert.Equal(t, 1, s.Len())

	got, err := s.Query(ctx, storage.Equals(core.MetaType, core.String("class")), 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].EntityID)
}

func TestIndexIgnoresKindMismatch(t *testing.T) {
	ctx := context.Background()
	s := New(storage.Options{})
	defer s.Close()

	require.NoError(t, s.Put(ctx, "a", []float32{1}, core.Metadata{"n": core.Int(1)}))
	got, err := s.Query(ctx, storage.Equals("n", core.String("1")), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCancelledContext(t *testing.T) {
	s := New(storage.Options{})
	defer s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Put(ctx, "a", []float32{1}, nil), context.Canceled)
}
