// Package reembed rebuilds the vectors of stored entities with a new or
// updated embedding model.
//
// Entities are read back from an EmbeddingStore in batches, their stored
// content is embedded again and the normalised vectors are written to the
// same store or to a separate target store. Embedding calls are retried with
// exponential backoff, batches can be paced with a rate limit and progress is
// reported to an io.Writer.
package reembed
