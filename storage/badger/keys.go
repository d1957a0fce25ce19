package badger

import "bytes"

// Key layout
const (
	embeddingPrefix = "emb:"
	dimensionKey    = "meta:dimension"
)

// makeEmbeddingKey generates the primary key for an embedding.
// Format: emb:<entity id>
func makeEmbeddingKey(entityID string) []byte {
	buf := make([]byte, 0, len(embeddingPrefix)+len(entityID))
	buf = append(buf, embeddingPrefix...)
	return append(buf, entityID...)
}

// entityIDFromKey recovers the entity id from a primary key.
func entityIDFromKey(key []byte) string {
	return string(bytes.TrimPrefix(key, []byte(embeddingPrefix)))
}
