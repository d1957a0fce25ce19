// Package ingestion embeds code and documentation entities and writes them
// to an EmbeddingStore.
//
// The Pipeline type splits incoming entities into batches and embeds each
// batch on an ants worker pool. Ingest waits for every batch; failures of
// individual batches are joined into the returned error while the batches
// that succeeded stay stored.
package ingestion
