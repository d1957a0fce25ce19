// Package discovery answers free-text code search queries.
//
// An Engine parses the query into a boolean filter, optionally widens it
// with related vocabulary from an expansion.Source, retrieves matching
// candidates from an EmbeddingStore and orders them with rerank. Each result
// item records whether it was found only through an expanded term.
//
// Basic usage:
//
//	engine, err := discovery.New(store, embedder, discovery.WithExpander(source))
//	if err != nil {
//		return err
//	}
//	res, err := engine.Discover(ctx, `parse AND -test path:pkg/*`, discovery.DefaultConfig())
//
// Query syntax errors are returned as *query.SyntaxError. Expansion failures
// are logged and the request continues without expansion.
package discovery
