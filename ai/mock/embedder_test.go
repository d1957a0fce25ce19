package mock

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/poiesic/codesense/vecmath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Defaults(t *testing.T) {
	ctx := context.Background()
	m := NewMockEmbedder()

	a, err := m.EmbedText(ctx, "parse query")
	require.NoError(t, err)
	assert.Len(t, a, DefaultDimension)
	assert.InDelta(t, 1.0, vecmath.Norm(a), 1e-5)

	again, err := m.EmbedText(ctx, "parse query")
	require.NoError(t, err)
	assert.Equal(t, a, again)

	other, err := m.EmbedText(ctx, "open store")
	require.NoError(t, err)
	assert.NotEqual(t, a, other)

	batch, err := m.EmbedTexts(ctx, []string{"parse query", "open store"})
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, a, batch[0])
	assert.Equal(t, other, batch[1])

	assert.Equal(t, 4, m.CallCount())
}

func TestMockEmbedder_Dimension(t *testing.T) {
	m := &MockEmbedder{Dimension: 8}
	v, err := m.EmbedText(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, v, 8)
}

func TestMockEmbedder_Injection(t *testing.T) {
	boom := errors.New("boom")
	m := NewMockEmbedder()
	m.EmbedTextFunc = func(context.Context, string) ([]float32, error) { return nil, boom }
	m.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		return make([][]float32, len(texts)), nil
	}

	_, err := m.EmbedText(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
	out, err := m.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	m.Reset()
	assert.Zero(t, m.CallCount())
	_, err = m.EmbedText(context.Background(), "x")
	assert.NoError(t, err)
}

func TestMockEmbedder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMockEmbedder().EmbedTexts(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMockEmbedder_Concurrent(t *testing.T) {
	m := NewMockEmbedder()
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.EmbedText(context.Background(), "x")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, m.CallCount())
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider().(*MockProvider)
	assert.Same(t, p.GetMockEmbedder(), p.Embedder())
	require.NoError(t, p.Close())
	assert.True(t, p.Closed())
}
