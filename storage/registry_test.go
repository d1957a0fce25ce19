package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	t.Run("register and open", func(t *testing.T) {
		r := NewRegistry()
		var got Options
		require.NoError(t, r.Register("fake", func(_ context.Context, opts Options) (EmbeddingStore, error) {
			got = opts
			return nil, boom
		}))

		_, err := r.Open(ctx, "fake", Options{Dimension: 7, Location: "/tmp/x"})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 7, got.Dimension)
		assert.Equal(t, "/tmp/x", got.Location)
	})

	t.Run("unknown adapter", func(t *testing.T) {
		_, err := NewRegistry().Open(ctx, "nope", Options{})
		assert.ErrorIs(t, err, ErrUnknownAdapter)
	})

	t.Run("duplicate kind", func(t *testing.T) {
		r := NewRegistry()
		f := func(context.Context, Options) (EmbeddingStore, error) { return nil, nil }
		require.NoError(t, r.Register("a", f))
		assert.ErrorIs(t, r.Register("a", f), ErrAdapterExists)
	})

	t.Run("invalid registration", func(t *testing.T) {
		r := NewRegistry()
		assert.ErrorIs(t, r.Register("", func(context.Context, Options) (EmbeddingStore, error) { return nil, nil }), ErrInvalidAdapter)
		assert.ErrorIs(t, r.Register("a", nil), ErrInvalidAdapter)
	})

	t.Run("adapters sorted", func(t *testing.T) {
		r := NewRegistry()
		f := func(context.Context, Options) (EmbeddingStore, error) { return nil, nil }
		for _, k := range []string{"zeta", "alpha", "mid"} {
			require.NoError(t, r.Register(k, f))
		}
		assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Adapters())
	})

	t.Run("must register panics on duplicate", func(t *testing.T) {
		f := func(context.Context, Options) (EmbeddingStore, error) { return nil, nil }
		MustRegisterAdapter("registry-test-dup", f)
		assert.Panics(t, func() { MustRegisterAdapter("registry-test-dup", f) })
		assert.Contains(t, Adapters(), "registry-test-dup")
	})
}
