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


package expansion

import (
	"context"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/poiesic/codesense/textutil"
)

// minSharedPrefix is the shortest common prefix that counts as lexical relatedness.
const minSharedPrefix = 4

// Suggestion is a proposed additional query term.
type Suggestion struct {
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}

// Result holds the suggestions for one query.
type Result struct {
	Original    string       `json:"original"`
	Suggestions []Suggestion `json:"suggestions"`
}

// Terms returns the suggested terms in rank order.
func (r *Result) Terms() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.Suggestions))
	for i, s := range r.Suggestions {
		out[i] = s.Term
	}
	return out
}

// Expander proposes terms related to a query using a fixed Index.
type Expander struct {
	index *Index
}

// NewExpander creates an Expander over idx.
func NewExpander(idx *Index) *Expander {
	return &Expander{index: idx}
}

// Expand scores every indexed term against the query tokens. A term's score
// is the larger of its best Ochiai co-occurrence coefficient with a query
// token and its shared-prefix similarity to one. Query tokens, including the
// parts of split identifiers, are never suggested.
func (e *Expander) Expand(ctx context.Context, query string, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if e.index.Len() == 0 {
		return nil, ErrEmptyCorpus
	}
	res := &Result{Original: query, Suggestions: []Suggestion{}}
	if cfg.MaxSuggestions == 0 {
		return res, nil
	}

	scope := e.index.scopes[cfg.scope()]
	queryTokens := textutil.Tokens(query)
	exclude := make(map[string]bool, len(queryTokens))
	for _, q := range queryTokens {
		exclude[q] = true
	}

	type anchor struct {
		term string
		docs *roaring.Bitmap
		n    float64
	}
	anchors := make([]anchor, 0, len(queryTokens))
	for _, q := range queryTokens {
		a := anchor{term: q}
		if bm, ok := e.index.postings[q]; ok {
			a.docs = roaring.And(bm, scope)
			a.n = float64(a.docs.GetCardinality())
		}
		anchors = append(anchors, a)
	}

	for i, t := range e.index.terms {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if exclude[t] {
			continue
		}
		docs := e.index.postings[t]
		nt := float64(docs.AndCardinality(scope))
		if nt == 0 {
			continue
		}

		best := 0.0
		for _, a := range anchors {
			if a.n > 0 {
				both := float64(a.docs.AndCardinality(docs))
				best = math.Max(best, both/math.Sqrt(a.n*nt))
			}
			best = math.Max(best, lexical(a.term, t))
		}
		if best > 0 && best >= cfg.MinRelevance {
			res.Suggestions = append(res.Suggestions, Suggestion{Term: t, Score: best})
		}
	}

	slices.SortFunc(res.Suggestions, func(a, b Suggestion) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return strings.Compare(a.Term, b.Term)
	})
	if len(res.Suggestions) > cfg.MaxSuggestions {
		res.Suggestions = res.Suggestions[:cfg.MaxSuggestions]
	}
	return res, nil
}

// lexical returns shared-prefix length over the longer length, or 0 when the
// prefix is shorter than minSharedPrefix runes.
func lexical(a, b string) float64 {
	shared := 0
	for a != "" && b != "" {
		ra, na := utf8.DecodeRuneInString(a)
		rb, nb := utf8.DecodeRuneInString(b)
		if ra != rb {
			break
		}
		shared++
		a, b = a[na:], b[nb:]
	}
	if shared < minSharedPrefix {
		return 0
	}
	longest := max(shared+utf8.RuneCountInString(a), shared+utf8.RuneCountInString(b))
	return float64(shared) / float64(longest)
}
