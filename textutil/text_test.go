package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"parseQuery", []string{"parse", "Query"}},
		{"parse_query", []string{"parse", "query"}},
		{"parseHTTPRequest", []string{"parse", "HTTP", "Request"}},
		{"v2Store", []string{"v", "2", "Store"}},
		{"lower", []string{"lower"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitIdentifier(tt.in))
		})
	}
}

func TestTokens(t *testing.T) {
	t.Run("splits identifiers and keeps the whole word", func(t *testing.T) {
		got := Tokens("func NewEmbeddingStore(path string)")
		assert.Equal(t, []string{"newembeddingstore", "new", "embedding", "store", "path", "string"}, got)
	})

	t.Run("drops stop words and duplicates", func(t *testing.T) {
		got := Tokens("the store and the Store")
		assert.Equal(t, []string{"store"}, got)
	})

	t.Run("paths", func(t *testing.T) {
		got := Tokens("storage/badger/backend.go")
		assert.Equal(t, []string{"storage", "badger", "backend", "go"}, got)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, Tokens("  "))
	})
}

func TestFields(t *testing.T) {
	t.Run("keeps stop words and single characters", func(t *testing.T) {
		got := Fields("get the user from a GetUser")
		assert.Equal(t, []string{"get", "the", "user", "from", "a", "getuser"}, got)
	})

	t.Run("splits identifiers", func(t *testing.T) {
		assert.Equal(t, []string{"v2store", "v", "2", "store"}, Fields("v2Store"))
	})
}
