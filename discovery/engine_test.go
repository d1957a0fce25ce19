package discovery

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/codesense/ai/mock"
	"github.com/poiesic/codesense/core"
	"github.com/poiesic/codesense/expansion"
	"github.com/poiesic/codesense/query"
	"github.com/poiesic/codesense/rerank"
	"github.com/poiesic/codesense/storage"
	"github.com/poiesic/codesense/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entity struct {
	id, typ, name, content string
	vec                    []float32
}

var corpus = []entity{
	{"a", "function", "ParseQuery", "parse boolean query using the lexer", []float32{1, 0}},
	{"b", "function", "NextToken", "lexer scans tokens", []float32{0.8, 0.6}},
	{"c", "class", "MemoryStore", "roaring bitmap index", []float32{0, 1}},
	{"d", "document", "README", "boolean query syntax", []float32{0.6, 0.8}},
}

func newCorpusStore(t *testing.T) storage.EmbeddingStore {
	t.Helper()
	s := memory.New(storage.Options{})
	t.Cleanup(func() { s.Close() })
	for _, e := range corpus {
		md := core.Metadata{
			core.MetaType:    core.String(e.typ),
			core.MetaName:    core.String(e.name),
			core.MetaContent: core.String(e.content),
		}
		require.NoError(t, s.Put(context.Background(), e.id, e.vec, md))
	}
	return s
}

// fixedEmbedder embeds every query as the first axis.
func fixedEmbedder() *mock.MockEmbedder {
	m := mock.NewMockEmbedder()
	m.EmbedTextFunc = func(ctx context.Context, _ string) ([]float32, error) {
		return []float32{1, 0}, ctx.Err()
	}
	return m
}

func newTestEngine(t *testing.T, store storage.EmbeddingStore, opts ...Option) *Engine {
	t.Helper()
	source, err := expansion.NewSource(store)
	require.NoError(t, err)
	opts = append([]Option{WithExpander(source)}, opts...)
	e, err := New(store, fixedEmbedder(), opts...)
	require.NoError(t, err)
	return e
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Expansion = expansion.Config{MaxSuggestions: 20, MinRelevance: 0.4, Scope: expansion.ScopeAll}
	return cfg
}

func ids(res *Result) []string {
	out := make([]string, len(res.Items))
	for i, it := range res.Items {
		out[i] = it.ID
	}
	return out
}

func TestNew(t *testing.T) {
	store := memory.New(storage.Options{})

	_, err := New(nil, mock.NewMockEmbedder())
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = New(store, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	e, err := New(store, mock.NewMockEmbedder(), WithLogger(nil), WithMonitor(nil))
	require.NoError(t, err)
	assert.NotNil(t, e.monitor)
	assert.Nil(t, e.expander)
	assert.True(t, e.queryIDs)
}

func TestDiscover(t *testing.T) {
	ctx := context.Background()
	store := newCorpusStore(t)
	engine := newTestEngine(t, store)

	t.Run("direct and expanded matches", func(t *testing.T) {
		res, err := engine.Discover(ctx, "lexer", testConfig())
		require.NoError(t, err)

		assert.Equal(t, []string{"a", "b", "d"}, ids(res))
		assert.False(t, res.Items[0].MatchedViaExpansion)
		assert.False(t, res.Items[1].MatchedViaExpansion)
		assert.True(t, res.Items[2].MatchedViaExpansion)

		assert.Equal(t, 1.0, res.Items[0].Factors.BaseScore)
		assert.Equal(t, 0.5, res.Items[2].Factors.BaseScore)
		assert.InDelta(t, 1.0, res.Items[0].FinalScore, 1e-9)
		assert.InDelta(t, 0.8, res.Items[1].FinalScore, 1e-6)
		assert.InDelta(t, 0.6, res.Items[2].FinalScore, 1e-6)

		assert.Contains(t, res.ExpandedTerms, "boolean")
		assert.Contains(t, res.ExpandedTerms, "query")
		assert.NotContains(t, res.ExpandedTerms, "lexer")
		assert.IsIncreasing(t, res.ExpandedTerms)
		assert.False(t, res.Truncated)
		assert.Equal(t, core.IDFromContent("lexer").Hex(), res.QueryID)
	})

	t.Run("expansion disabled has no expansion provenance", func(t *testing.T) {
		cfg := testConfig()
		cfg.Expand = false
		res, err := engine.Discover(ctx, "lexer", cfg)
		require.NoError(t, err)

		assert.Equal(t, []string{"a", "b"}, ids(res))
		for _, it := range res.Items {
			assert.False(t, it.MatchedViaExpansion)
		}
		assert.Empty(t, res.ExpandedTerms)
		assert.NotNil(t, res.ExpandedTerms)
	})

	t.Run("negations constrain the expansion branch", func(t *testing.T) {
		res, err := engine.Discover(ctx, "lexer -boolean", testConfig())
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, ids(res))
	})

	t.Run("field terms constrain the expansion branch", func(t *testing.T) {
		res, err := engine.Discover(ctx, "lexer type:document", testConfig())
		require.NoError(t, err)
		assert.Equal(t, []string{"d"}, ids(res))
		assert.True(t, res.Items[0].MatchedViaExpansion)
	})

	t.Run("entity types restrict results", func(t *testing.T) {
		cfg := testConfig()
		cfg.EntityTypes = []string{"function"}
		res, err := engine.Discover(ctx, "lexer", cfg)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids(res))
	})

	t.Run("preferred types earn the type factor", func(t *testing.T) {
		cfg := testConfig()
		cfg.PreferredTypes = []string{"document"}
		cfg.Rerank.Weights = rerank.Weights{VectorSimilarity: 1, TypeMatch: 1}
		res, err := engine.Discover(ctx, "lexer", cfg)
		require.NoError(t, err)
		assert.Equal(t, []string{"d", "a", "b"}, ids(res))
		assert.Equal(t, 1.0, res.Items[0].Factors.TypeMatch)
	})

	t.Run("rerank limit truncates", func(t *testing.T) {
		cfg := testConfig()
		cfg.Rerank.Limit = 2
		res, err := engine.Discover(ctx, "lexer", cfg)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids(res))
		assert.True(t, res.Truncated)
	})

	t.Run("candidate limit truncates", func(t *testing.T) {
		cfg := testConfig()
		cfg.CandidateLimit = 1
		res, err := engine.Discover(ctx, "lexer", cfg)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, ids(res), "the closest match survives the cut")
		assert.True(t, res.Truncated)
	})

	t.Run("min score drops items without truncating", func(t *testing.T) {
		cfg := testConfig()
		cfg.Rerank.MinScore = 0.7
		res, err := engine.Discover(ctx, "lexer", cfg)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids(res))
		assert.False(t, res.Truncated)
	})

	t.Run("blank query matches everything", func(t *testing.T) {
		res, err := engine.Discover(ctx, "  ", testConfig())
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c", "d"}, ids(res), "equal scores are ordered by id")
		for _, it := range res.Items {
			assert.Zero(t, it.Factors.VectorSimilarity)
		}
	})

	t.Run("syntax errors propagate", func(t *testing.T) {
		_, err := engine.Discover(ctx, "lexer AND", testConfig())
		var syn *query.SyntaxError
		require.ErrorAs(t, err, &syn)
		assert.ErrorIs(t, err, query.ErrSyntax)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig()
		cfg.CandidateLimit = 0
		_, err := engine.Discover(ctx, "lexer", cfg)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("query ids can be disabled", func(t *testing.T) {
		e := newTestEngine(t, store, WithQueryIDs(false))
		res, err := e.Discover(ctx, "lexer", testConfig())
		require.NoError(t, err)
		assert.Empty(t, res.QueryID)
	})
}

func TestDiscover_CandidateLimitKeepsNearest(t *testing.T) {
	ctx := context.Background()
	s := memory.New(storage.Options{})
	t.Cleanup(func() { s.Close() })
	md := core.Metadata{core.MetaType: core.String("function"), core.MetaContent: core.String("parser helper")}
	for _, id := range []string{"a0", "a1", "a2", "a3", "a4"} {
		require.NoError(t, s.Put(ctx, id, []float32{0, 1}, md))
	}
	require.NoError(t, s.Put(ctx, "z", []float32{1, 0}, md))

	e, err := New(s, fixedEmbedder())
	require.NoError(t, err)

	t.Run("ranked query", func(t *testing.T) {
		cfg := testConfig()
		cfg.Expand = false
		cfg.CandidateLimit = 3
		cfg.Rerank.Limit = 1
		res, err := e.Discover(ctx, "parser", cfg)
		require.NoError(t, err)
		require.Len(t, res.Items, 1)
		assert.Equal(t, "z", res.Items[0].ID)
		assert.InDelta(t, 1.0, res.Items[0].FinalScore, 1e-9)
		assert.True(t, res.Truncated)
	})

	t.Run("unranked filter keeps store order", func(t *testing.T) {
		cfg := testConfig()
		cfg.CandidateLimit = 2
		res, err := e.Discover(ctx, "-lexer", cfg)
		require.NoError(t, err)
		assert.Equal(t, []string{"a0", "a1"}, ids(res))
		assert.True(t, res.Truncated)
	})
}

func TestDiscover_ExcludeOnlyIsUnranked(t *testing.T) {
	store := newCorpusStore(t)
	embedder := fixedEmbedder()
	e, err := New(store, embedder)
	require.NoError(t, err)

	res, err := e.Discover(context.Background(), "-boolean", testConfig())
	require.NoError(t, err)
	assert.Zero(t, embedder.CallCount(), "nothing positive to embed")
	assert.Equal(t, []string{"b", "c"}, ids(res))
	for _, it := range res.Items {
		assert.Zero(t, it.Factors.VectorSimilarity)
	}
}

func TestDiscover_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("expansion failure degrades gracefully", func(t *testing.T) {
		store := newCorpusStore(t)
		emptySource, err := expansion.NewSource(memory.New(storage.Options{}))
		require.NoError(t, err)
		monitor := &recordingMonitor{}
		e, err := New(store, fixedEmbedder(), WithExpander(emptySource), WithMonitor(monitor))
		require.NoError(t, err)

		res, err := e.Discover(ctx, "lexer", testConfig())
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids(res))
		assert.ErrorIs(t, monitor.expansionErr, expansion.ErrEmptyCorpus)
	})

	t.Run("embedding failure fails the request", func(t *testing.T) {
		store := newCorpusStore(t)
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
			return nil, errors.New("embedder down")
		}
		e, err := New(store, embedder)
		require.NoError(t, err)

		_, err = e.Discover(ctx, "lexer", testConfig())
		assert.ErrorContains(t, err, "embedder down")
	})

	t.Run("dimension mismatch propagates", func(t *testing.T) {
		store := newCorpusStore(t)
		embedder := mock.NewMockEmbedder()
		embedder.Dimension = 3
		e, err := New(store, embedder)
		require.NoError(t, err)

		_, err = e.Discover(ctx, "lexer", testConfig())
		var dim *core.DimensionMismatchError
		require.ErrorAs(t, err, &dim)
		assert.Equal(t, 3, dim.Expected)
		assert.Equal(t, 2, dim.Actual)
	})

	t.Run("storage errors propagate", func(t *testing.T) {
		store := newCorpusStore(t)
		e, err := New(store, fixedEmbedder())
		require.NoError(t, err)
		require.NoError(t, store.Close())

		_, err = e.Discover(ctx, "lexer", testConfig())
		assert.ErrorIs(t, err, storage.ErrStorageClosed)
	})
}

func TestDiscover_Recency(t *testing.T) {
	store := newCorpusStore(t)
	e, err := New(store, fixedEmbedder())
	require.NoError(t, err)
	e.now = func() time.Time { return time.Now().Add(30 * 24 * time.Hour) }

	res, err := e.Discover(context.Background(), "lexer", testConfig())
	require.NoError(t, err)
	require.NotEmpty(t, res.Items)
	assert.InDelta(t, 0.5, res.Items[0].Factors.Recency, 0.01)
}

func TestDiscover_Concurrent(t *testing.T) {
	store := newCorpusStore(t)
	engine := newTestEngine(t, store)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := engine.Discover(context.Background(), "lexer", testConfig())
			assert.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "d"}, ids(res))
		}()
	}
	wg.Wait()
}

type recordingMonitor struct {
	mu           sync.Mutex
	steps        []string
	expansionErr error
	candidates   int
}

func (m *recordingMonitor) record(step string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step)
}

func (m *recordingMonitor) Start(string)          { m.record("start") }
func (m *recordingMonitor) AfterParse(query.Node) { m.record("parse") }
func (m *recordingMonitor) AfterExpansion(_ []string, err error) {
	m.record("expansion")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expansionErr = err
}
func (m *recordingMonitor) AfterRetrieval(n int) {
	m.record("retrieval")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates = n
}
func (m *recordingMonitor) Finish(*Result) { m.record("finish") }

func TestDiscover_Monitor(t *testing.T) {
	monitor := &recordingMonitor{}
	engine := newTestEngine(t, newCorpusStore(t), WithMonitor(monitor))

	_, err := engine.Discover(context.Background(), "lexer", testConfig())
	require.NoError(t, err)
	assert.Equal(t, "start parse expansion retrieval finish", strings.Join(monitor.steps, " "))
	assert.Equal(t, 3, monitor.candidates)
	assert.NoError(t, monitor.expansionErr)
}
