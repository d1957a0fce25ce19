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


package rerank

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/poiesic/codesense/vecmath"
)

// Default option values.
const (
	DefaultLimit           = 10
	DefaultRecencyHalfLife = 30 * 24 * time.Hour
)

// Weights scale each scoring factor in the final linear sum.
type Weights struct {
	VectorSimilarity float64 `yaml:"vector_similarity" json:"vector_similarity"`
	Recency          float64 `yaml:"recency" json:"recency"`
	BaseScore        float64 `yaml:"base_score" json:"base_score"`
	TypeMatch        float64 `yaml:"type_match" json:"type_match"`
}

// DefaultWeights ranks purely by vector similarity.
func DefaultWeights() Weights {
	return Weights{VectorSimilarity: 1}
}

func (w Weights) apply(f Factors) float64 {
	return w.VectorSimilarity*f.VectorSimilarity +
		w.Recency*f.Recency +
		w.BaseScore*f.BaseScore +
		w.TypeMatch*f.TypeMatch
}

// Options controls scoring, filtering and truncation.
type Options struct {
	Metric          vecmath.Metric `yaml:"metric" json:"metric"`
	Weights         Weights        `yaml:"weights" json:"weights"`
	Limit           int            `yaml:"limit" json:"limit"`
	MinScore        float64        `yaml:"min_score" json:"min_score"`
	RecencyHalfLife time.Duration  `yaml:"recency_half_life" json:"recency_half_life"`
}

// Option adjusts Options.
type Option func(*Options) error

// DefaultOptions returns cosine similarity, vector-only weights, a limit of
// 10, no score floor and a 30 day recency half-life.
func DefaultOptions() Options {
	return Options{
		Metric:          vecmath.MetricCosine,
		Weights:         DefaultWeights(),
		Limit:           DefaultLimit,
		MinScore:        math.Inf(-1),
		RecencyHalfLife: DefaultRecencyHalfLife,
	}
}

// NewOptions applies opts on top of DefaultOptions.
func NewOptions(opts ...Option) (Options, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return Options{}, err
		}
	}
	return o, o.Validate()
}

// WithMetric sets the similarity metric.
func WithMetric(m vecmath.Metric) Option {
	return func(o *Options) error {
		o.Metric = m
		return nil
	}
}

// WithWeights replaces the factor weights.
func WithWeights(w Weights) Option {
	return func(o *Options) error {
		o.Weights = w
		return nil
	}
}

// WithLimit sets the maximum number of results.
func WithLimit(n int) Option {
	return func(o *Options) error {
		if n <= 0 {
			return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidOptions, n)
		}
		o.Limit = n
		return nil
	}
}

// WithMinScore drops results whose final score is below min.
func WithMinScore(min float64) Option {
	return func(o *Options) error {
		o.MinScore = min
		return nil
	}
}

// WithRecencyHalfLife sets the age at which the recency factor reaches 0.5.
func WithRecencyHalfLife(d time.Duration) Option {
	return func(o *Options) error {
		o.RecencyHalfLife = d
		return nil
	}
}

// Validate checks that the options are usable.
func (o Options) Validate() error {
	if _, err := vecmath.ParseMetric(o.Metric.String()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if o.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidOptions, o.Limit)
	}
	if math.IsNaN(o.MinScore) {
		return fmt.Errorf("%w: min score is NaN", ErrInvalidOptions)
	}
	if o.RecencyHalfLife <= 0 {
		return fmt.Errorf("%w: recency half-life must be positive", ErrInvalidOptions)
	}
	for name, w := range map[string]float64{
		"vector_similarity": o.Weights.VectorSimilarity,
		"recency":           o.Weights.Recency,
		"base_score":        o.Weights.BaseScore,
		"type_match":        o.Weights.TypeMatch,
	} {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: weight %s is not finite", ErrInvalidOptions, name)
		}
	}
	return nil
}

// OptionsFromMap builds Options from loosely typed input such as decoded JSON.
// Recognised keys are metric, limit, min_score, recency_half_life and weights
// (a map keyed by factor name). Unknown keys fail with ErrUnknownOption.
// Keys are applied in sorted order, so the reported error is stable.
func OptionsFromMap(m map[string]any) (Options, error) {
	o := DefaultOptions()
	for _, key := range slices.Sorted(maps.Keys(m)) {
		raw := m[key]
		var err error
		switch key {
		case "metric":
			var s string
			if s, err = asString(key, raw); err == nil {
				o.Metric, err = vecmath.ParseMetric(s)
			}
		case "limit":
			var f float64
			if f, err = asNumber(key, raw); err == nil {
				if f != math.Trunc(f) {
					err = fmt.Errorf("%w: limit must be an integer", ErrInvalidOptions)
				}
				o.Limit = int(f)
			}
		case "min_score":
			o.MinScore, err = asNumber(key, raw)
		case "recency_half_life":
			o.RecencyHalfLife, err = asDuration(key, raw)
		case "weights":
			o.Weights, err = weightsFromMap(o.Weights, raw)
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownOption, key)
		}
		if err != nil {
			return Options{}, err
		}
	}
	return o, o.Validate()
}

func weightsFromMap(w Weights, raw any) (Weights, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return w, fmt.Errorf("%w: weights must be a map, got %T", ErrInvalidOptions, raw)
	}
	for _, key := range slices.Sorted(maps.Keys(m)) {
		f, err := asNumber("weights."+key, m[key])
		if err != nil {
			return w, err
		}
		switch key {
		case "vector_similarity":
			w.VectorSimilarity = f
		case "recency":
			w.Recency = f
		case "base_score":
			w.BaseScore = f
		case "type_match":
			w.TypeMatch = f
		default:
			return w, fmt.Errorf("%w: %q", ErrUnknownOption, "weights."+key)
		}
	}
	return w, nil
}

func asString(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidOptions, key, v)
	}
	return s, nil
}

func asNumber(key string, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("%w: %s must be a number, got %T", ErrInvalidOptions, key, v)
}

// asDuration accepts a Go duration string or a number of seconds.
func asDuration(key string, v any) (time.Duration, error) {
	switch d := v.(type) {
	case time.Duration:
		return d, nil
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", ErrInvalidOptions, key, err)
		}
		return parsed, nil
	}
	secs, err := asNumber(key, v)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs * float64(time.Second)), nil
}
