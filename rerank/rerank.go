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


// Package rerank orders retrieval candidates by a weighted sum of scoring factors.
package rerank

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/codesense/core"
	"github.com/poiesic/codesense/vecmath"
)

// Item is a candidate to score.
type Item struct {
	ID         string          `json:"id"`
	Vector     []float32       `json:"-"`
	BaseScore  float64         `json:"base_score"`
	EntityType core.EntityType `json:"-"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Metadata   core.Metadata   `json:"metadata,omitempty"`
}

// Query carries the request-side inputs to scoring.
type Query struct {
	Vector      []float32
	EntityTypes []core.EntityType
	Now         time.Time // Zero means time.Now()
}

// Factors are the per-item inputs to the final score, before weighting.
type Factors struct {
	VectorSimilarity float64 `json:"vector_similarity"`
	Recency          float64 `json:"recency"`
	BaseScore        float64 `json:"base_score"`
	TypeMatch        float64 `json:"type_match"`
}

// Result is a scored item.
type Result struct {
	Item
	FinalScore float64 `json:"score"`
	Factors    Factors `json:"factors"`
}

// Rerank scores candidates, drops those below opts.MinScore, sorts the rest by
// descending score with ties broken by id, and keeps at most opts.Limit.
// The candidates slice and the items in it are left untouched.
func Rerank(q Query, candidates []Item, opts Options) ([]Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	now := q.Now
	if now.IsZero() {
		now = time.Now()
	}

	results := make([]Result, 0, len(candidates))
	for _, item := range candidates {
		f, err := factors(q, item, opts, now)
		if err != nil {
			return nil, fmt.Errorf("rerank %s: %w", item.ID, err)
		}
		score := opts.Weights.apply(f)
		if score < opts.MinScore {
			continue
		}
		results = append(results, Result{Item: item, FinalScore: score, Factors: f})
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		switch {
		case a.FinalScore > b.FinalScore:
			return -1
		case a.FinalScore < b.FinalScore:
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

func factors(q Query, item Item, opts Options, now time.Time) (Factors, error) {
	f := Factors{
		BaseScore: item.BaseScore,
		Recency:   recency(item.UpdatedAt, now, opts.RecencyHalfLife),
	}
	if q.Vector != nil {
		sim, err := vecmath.Score(opts.Metric, q.Vector, item.Vector)
		if err != nil {
			return f, err
		}
		f.VectorSimilarity = sim
	}
	if slices.Contains(q.EntityTypes, item.EntityType) {
		f.TypeMatch = 1
	}
	return f, nil
}

// recency decays by half every halfLife. Future timestamps count as fresh.
func recency(updated, now time.Time, halfLife time.Duration) float64 {
	if updated.IsZero() {
		return 0
	}
	age := now.Sub(updated)
	if age <= 0 {
		return 1
	}
	r := math.Pow(0.5, float64(age)/float64(halfLife))
	return math.Max(0, math.Min(1, r))
}
