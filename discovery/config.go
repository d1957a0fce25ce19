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
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/poiesic/codesense/core"
	"github.com/poiesic/codesense/expansion"
	"github.com/poiesic/codesense/rerank"
)

// DefaultCandidateLimit caps how many records one request pulls from the store.
const DefaultCandidateLimit = 1000

// Config controls a single Discover call.
type Config struct {
	// Expand widens the query with related vocabulary when an expander is configured.
	Expand bool `yaml:"expand" json:"expand"`

	// Expansion tunes the expander.
	Expansion expansion.Config `yaml:"expansion" json:"expansion"`

	// Rerank controls scoring, the score floor and the result limit.
	Rerank rerank.Options `yaml:"rerank" json:"rerank"`

	// CandidateLimit caps the records retrieved before reranking.
	CandidateLimit int `yaml:"candidate_limit" json:"candidate_limit"`

	// EntityTypes restricts results to these entity types. Empty allows all.
	EntityTypes []string `yaml:"entity_types" json:"entity_types,omitempty"`

	// PreferredTypes earn the rerank type-match factor.
	PreferredTypes []string `yaml:"preferred_types" json:"preferred_types,omitempty"`
}

// DefaultConfig enables expansion with default expander and rerank options.
func DefaultConfig() Config {
	return Config{
		Expand:         true,
		Expansion:      expansion.DefaultConfig(),
		Rerank:         rerank.DefaultOptions(),
		CandidateLimit: DefaultCandidateLimit,
	}
}

// Validate checks every nested option.
func (c Config) Validate() error {
	if c.CandidateLimit <= 0 {
		return fmt.Errorf("%w: candidate_limit must be positive", ErrInvalidConfig)
	}
	if err := c.Expansion.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Rerank.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := parseTypes(c.EntityTypes); err != nil {
		return fmt.Errorf("%w: entity_types: %w", ErrInvalidConfig, err)
	}
	if _, err := parseTypes(c.PreferredTypes); err != nil {
		return fmt.Errorf("%w: preferred_types: %w", ErrInvalidConfig, err)
	}
	return nil
}

func parseTypes(names []string) ([]core.EntityType, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]core.EntityType, 0, len(names))
	for _, name := range names {
		t, err := core.ParseEntityType(name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// LoadConfig reads YAML over DefaultConfig. Unknown keys are rejected.
// An empty document yields the defaults.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
