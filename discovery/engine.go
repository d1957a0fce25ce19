// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package discovery

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/codesense/ai"
	"github.com/poiesic/codesense/core"
	"github.com/poiesic/codesense/expansion"
	"github.com/poiesic/codesense/query"
	"github.com/poiesic/codesense/rerank"
	"github.com/poiesic/codesense/storage"
	"github.com/poiesic/codesense/vecmath"
)

// Base scores handed to the reranker.
const (
	directMatchScore    = 1.0
	expansionMatchScore = 0.5
)

// Item is a ranked result with its provenance.
type Item struct {
	rerank.Result
	MatchedViaExpansion bool `json:"matched_via_expansion"`
}

// Result is the outcome of one Discover call.
type Result struct {
	QueryID       string   `json:"query_id,omitempty"`
	Query         string   `json:"query"`
	Items         []Item   `json:"items"`
	ExpandedTerms []string `json:"expanded_terms"`
	Truncated     bool     `json:"truncated"`
}

// Engine runs discovery requests against one store.
type Engine struct {
	store    storage.EmbeddingStore
	embedder ai.Embedder
	expander *expansion.Source
	monitor  Monitor
	queryIDs bool
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithExpander enables query expansion from source.
func WithExpander(source *expansion.Source) Option {
	return func(e *Engine) error {
		e.expander = source
		return nil
	}
}

// WithMonitor sets hooks that observe each request.
func WithMonitor(monitor Monitor) Option {
	return func(e *Engine) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		e.monitor = monitor
		return nil
	}
}

// WithQueryIDs controls whether results carry a content-derived query id.
// Default is true.
func WithQueryIDs(enabled bool) Option {
	return func(e *Engine) error {
		e.queryIDs = enabled
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// New creates a discovery engine.
func New(store storage.EmbeddingStore, embedder ai.Embedder, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	e := &Engine{
		store:    store,
		embedder: embedder,
		monitor:  &noopMonitor{},
		queryIDs: true,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "discovery")
	return e, nil
}

// Discover parses raw, expands it, retrieves matching candidates and ranks them.
//
// Parse errors are returned unchanged as *query.SyntaxError. Expansion errors
// are logged and the request continues without expansion. Embedding, storage
// and dimension errors fail the request.
//
// When more entities match than cfg.CandidateLimit, the closest ones to the
// query vector are kept. Queries without positive terms are not embedded and
// come back unranked in store order.
func (e *Engine) Discover(ctx context.Context, raw string, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e.monitor.Start(raw)

	parsed, err := query.Parse(raw)
	if err != nil {
		return nil, err
	}
	e.monitor.AfterParse(parsed)

	positive := strings.Join(query.Terms(parsed), " ")

	var (
		expanded []string
		vector   []float32
	)
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Expand && e.expander != nil && positive != "" {
		g.Go(func() error {
			res, err := e.expander.Expand(gctx, positive, cfg.Expansion)
			if err != nil {
				e.logger.Warn("expansion failed, continuing without it", "query", raw, "err", err)
				e.monitor.AfterExpansion(nil, err)
				return nil
			}
			expanded = res.Terms()
			e.monitor.AfterExpansion(expanded, nil)
			return nil
		})
	}
	// Without positive terms the request is a pure filter and stays unranked.
	if positive != "" {
		g.Go(func() error {
			v, err := e.embedder.EmbedText(gctx, positive)
			if err != nil {
				e.logger.Error("error generating embedding for query", "query", raw, "err", err)
				return err
			}
			vector = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	expanded = uniqueSorted(expanded)
	effective := parsed
	if len(expanded) > 0 {
		effective = query.Or{Left: parsed, Right: expansionBranch(parsed, expanded)}
	}

	filter := storage.Filter(storage.MatchFunc(func(md core.Metadata) bool {
		return query.Evaluate(effective, md)
	}))
	types, _ := parseTypes(cfg.EntityTypes)
	if len(types) > 0 {
		filter = storage.And(typeFilter(types), filter)
	}

	candidates, err := e.store.Query(ctx, filter, 0)
	if err != nil {
		return nil, err
	}
	matched := len(candidates)
	truncated := matched > cfg.CandidateLimit
	if truncated {
		e.logger.Debug("candidate limit reached", "limit", cfg.CandidateLimit, "matched", matched)
		candidates, err = nearest(vector, candidates, cfg.CandidateLimit, cfg.Rerank.Metric)
		if err != nil {
			return nil, err
		}
	}
	e.monitor.AfterRetrieval(len(candidates))

	items := make([]rerank.Item, len(candidates))
	viaExpansion := make(map[string]bool)
	for i, c := range candidates {
		base := directMatchScore
		if !query.Evaluate(parsed, c.Metadata) {
			base = expansionMatchScore
			viaExpansion[c.EntityID] = true
		}
		items[i] = rerank.Item{
			ID:         c.EntityID,
			Vector:     c.Vector,
			BaseScore:  base,
			EntityType: c.Type(),
			UpdatedAt:  c.UpdatedAt,
			Metadata:   c.Metadata,
		}
	}

	preferred, _ := parseTypes(cfg.PreferredTypes)
	opts := cfg.Rerank
	opts.Limit = max(len(items), 1)
	ranked, err := rerank.Rerank(rerank.Query{Vector: vector, EntityTypes: preferred, Now: e.now()}, items, opts)
	if err != nil {
		return nil, err
	}
	if len(ranked) > cfg.Rerank.Limit {
		truncated = true
		ranked = ranked[:cfg.Rerank.Limit]
	}

	res := &Result{
		Query:         raw,
		Items:         make([]Item, len(ranked)),
		ExpandedTerms: expanded,
		Truncated:     truncated,
	}
	if res.ExpandedTerms == nil {
		res.ExpandedTerms = []string{}
	}
	if e.queryIDs {
		res.QueryID = core.IDFromContent(raw).Hex()
	}
	for i, r := range ranked {
		res.Items[i] = Item{Result: r, MatchedViaExpansion: viaExpansion[r.ID]}
	}

	e.logger.Debug("discovery complete", "query", raw, "candidates", len(candidates),
		"results", len(res.Items), "expanded", len(expanded), "truncated", truncated)
	e.monitor.Finish(res)
	return res, nil
}

// expansionBranch matches any expanded term while keeping the hard
// constraints of parsed: its negated and field-qualified top-level conjuncts.
func expansionBranch(parsed query.Node, terms []string) query.Node {
	alternatives := make([]query.Node, len(terms))
	for i, t := range terms {
		alternatives[i] = query.Term{Value: t}
	}
	nodes := []query.Node{query.OrAll(alternatives...)}
	for _, c := range query.Conjuncts(parsed) {
		if isHardConstraint(c) {
			nodes = append(nodes, c)
		}
	}
	return query.AndAll(nodes...)
}

func isHardConstraint(n query.Node) bool {
	switch n := n.(type) {
	case query.Not:
		return true
	case query.Term:
		return n.Field != ""
	case query.Modified:
		if n.Modifier == query.Excluded {
			return true
		}
		if n.Modifier == query.Optional {
			return false
		}
		return isHardConstraint(n.Child)
	}
	return false
}

// nearest keeps the limit candidates closest to vector. Without a query
// vector there is nothing to rank by and the first limit in store order are kept.
func nearest(vector []float32, candidates []*core.Embedding, limit int, metric vecmath.Metric) ([]*core.Embedding, error) {
	if len(vector) == 0 {
		return candidates[:limit], nil
	}
	pool := make([]vecmath.Candidate, len(candidates))
	byID := make(map[string]*core.Embedding, len(candidates))
	for i, c := range candidates {
		pool[i] = vecmath.Candidate{ID: c.EntityID, Vector: c.Vector}
		byID[c.EntityID] = c
	}
	best, err := vecmath.KNearest(vector, pool, limit, metric)
	if err != nil {
		return nil, err
	}
	out := make([]*core.Embedding, len(best))
	for i, n := range best {
		out[i] = byID[n.ID]
	}
	return out, nil
}

// typeFilter is expressed as equality terms so indexed stores can use it.
func typeFilter(types []core.EntityType) storage.Filter {
	alternatives := make([]storage.Filter, len(types))
	for i, t := range types {
		alternatives[i] = storage.Equals(core.MetaType, core.String(t.String()))
	}
	return storage.Or(alternatives...)
}

func uniqueSorted(terms []string) []string {
	if len(terms) == 0 {
		return nil
	}
	out := slices.Clone(terms)
	slices.Sort(out)
	return slices.Compact(out)
}
