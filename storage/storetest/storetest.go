// Package storetest holds the behavioural checks every EmbeddingStore adapter
// must pass. Adapter packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/poiesic/codesense/core"
	"github.com/poiesic/codesense/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Opener returns a fresh, empty store. The suite closes it.
type Opener func(t *testing.T) storage.EmbeddingStore

// Run executes the conformance suite against stores produced by open.
func Run(t *testing.T, open Opener) {
	t.Run("put then get round trips", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		md := core.Metadata{
			core.MetaName: core.String("Parse"),
			"lines":       core.Int(42),
			"score":       core.Float(0.5),
			"exported":    core.Bool(true),
		}
		require.NoError(t, s.Put(ctx, "a", []float32{1, 0, 0}, md))

		got, found, err := s.Get(ctx, "a")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "a", got.EntityID)
		assert.Equal(t, []float32{1, 0, 0}, got.Vector)
		assert.True(t, md.Equal(got.Metadata), "metadata %v != %v", got.Metadata, md)
		assert.False(t, got.InsertedAt.IsZero())
		assert.False(t, got.UpdatedAt.IsZero())
	})

	t.Run("get missing is not an error", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		got, found, err := s.Get(context.Background(), "nope")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, got)
	})

	t.Run("overwrite replaces value", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, "a", []float32{1, 0}, core.Metadata{"v": core.Int(1)}))
		first, _, err := s.Get(ctx, "a")
		require.NoError(t, err)

		require.NoError(t, s.Put(ctx, "a", []float32{0, 1}, core.Metadata{"v": core.Int(2)}))
		got, found, err := s.Get(ctx, "a")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []float32{0, 1}, got.Vector)
		assert.Equal(t, int64(2), got.Metadata["v"].I)
		assert.True(t, got.InsertedAt.Equal(first.InsertedAt))

		all, err := s.Query(ctx, nil, 0)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("first put fixes dimension", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		assert.Equal(t, 0, s.Dimension())
		require.NoError(t, s.Put(ctx, "a", []float32{1, 0, 0}, core.Metadata{}))
		assert.Equal(t, 3, s.Dimension())

		err := s.Put(ctx, "b", []float32{1, 0}, core.Metadata{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrDimensionMismatch))
		var dm *core.DimensionMismatchError
		require.True(t, errors.As(err, &dm))
		assert.Equal(t, 3, dm.Expected)
		assert.Equal(t, 2, dm.Actual)

		_, found, err := s.Get(ctx, "b")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("invalid input rejected", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		assert.ErrorIs(t, s.Put(ctx, "", []float32{1}, nil), core.ErrInvalidEmbedding)
		assert.ErrorIs(t, s.Put(ctx, "a", nil, nil), core.ErrInvalidEmbedding)
		assert.Equal(t, 0, s.Dimension())
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, "a", []float32{1}, nil))
		for range 2 {
			require.NoError(t, s.Delete(ctx, "a"))
			_, found, err := s.Get(ctx, "a")
			require.NoError(t, err)
			assert.False(t, found)
		}
		require.NoError(t, s.Delete(ctx, "never-existed"))
	})

	t.Run("query filters and orders by id", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()
		seed(t, s)

		all, err := s.Query(ctx, nil, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"doc/readme", "pkg/a.Func", "pkg/b.Type", "vendor/x.Func"}, ids(all))

		funcs, err := s.Query(ctx, storage.Equals(core.MetaType, core.String("function")), 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"pkg/a.Func", "vendor/x.Func"}, ids(funcs))

		pkg, err := s.Query(ctx, storage.HasPrefix(core.MetaPath, "pkg/"), 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"pkg/a.Func", "pkg/b.Type"}, ids(pkg))

		combined, err := s.Query(ctx, storage.And(
			storage.Or(
				storage.Equals(core.MetaType, core.String("function")),
				storage.Equals(core.MetaType, core.String("class")),
			),
			storage.Not(storage.HasPrefix(core.MetaPath, "vendor/")),
		), 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"pkg/a.Func", "pkg/b.Type"}, ids(combined))

		custom, err := s.Query(ctx, storage.MatchFunc(func(md core.Metadata) bool {
			return md["lines"].I > 10
		}), 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"pkg/b.Type"}, ids(custom))

		none, err := s.Query(ctx, storage.Equals(core.MetaType, core.String("module")), 0)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("query limit", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		seed(t, s)

		got, err := s.Query(context.Background(), nil, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"doc/readme", "pkg/a.Func"}, ids(got))
	})

	t.Run("returned values are copies", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		vec := []float32{1, 2}
		md := core.Metadata{"k": core.String("v")}
		require.NoError(t, s.Put(ctx, "a", vec, md))
		vec[0] = 99
		md["k"] = core.String("changed")

		got, _, err := s.Get(ctx, "a")
		require.NoError(t, err)
		got.Vector[1] = 77
		got.Metadata["k"] = core.String("mutated")

		again, _, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2}, again.Vector)
		assert.Equal(t, "v", again.Metadata.GetString("k"))
	})

	t.Run("operations after close fail", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Close())
		ctx := context.Background()

		assert.ErrorIs(t, s.Put(ctx, "a", []float32{1}, nil), storage.ErrStorageClosed)
		_, _, err := s.Get(ctx, "a")
		assert.ErrorIs(t, err, storage.ErrStorageClosed)
		_, err = s.Query(ctx, nil, 0)
		assert.ErrorIs(t, err, storage.ErrStorageClosed)
		assert.ErrorIs(t, s.Delete(ctx, "a"), storage.ErrStorageClosed)
	})

	t.Run("concurrent writers", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		var wg sync.WaitGroup
		for w := range 8 {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := range 25 {
					id := fmt.Sprintf("w%d-%02d", w, i)
					assert.NoError(t, s.Put(ctx, id, []float32{float32(w), float32(i)}, core.Metadata{"w": core.Int(int64(w))}))
				}
			}(w)
		}
		wg.Wait()

		all, err := s.Query(ctx, nil, 0)
		require.NoError(t, err)
		assert.Len(t, all, 200)

		w3, err := s.Query(ctx, storage.Equals("w", core.Int(3)), 0)
		require.NoError(t, err)
		assert.Len(t, w3, 25)
	})
}

func seed(t *testing.T, s storage.EmbeddingStore) {
	t.Helper()
	ctx := context.Background()
	rows := []struct {
		id   string
		typ  string
		path string
		n    int64
	}{
		{"pkg/b.Type", "class", "pkg/b.go", 40},
		{"pkg/a.Func", "function", "pkg/a.go", 10},
		{"vendor/x.Func", "function", "vendor/x.go", 5},
		{"doc/readme", "document", "README.md", 3},
	}
	for i, r := range rows {
		md := core.Metadata{
			core.MetaType: core.String(r.typ),
			core.MetaPath: core.String(r.path),
			"lines":       core.Int(r.n),
		}
		require.NoError(t, s.Put(ctx, r.id, []float32{float32(i), 1}, md))
	}
}

func ids(es []*core.Embedding) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.EntityID
	}
	return out
}
