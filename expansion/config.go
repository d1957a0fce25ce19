package expansion

import (
	"fmt"
	"math"
)

// SourceScope restricts which documents contribute co-occurrence evidence.
type SourceScope string

const (
	ScopeAll  SourceScope = "all"
	ScopeCode SourceScope = "code"
	ScopeDocs SourceScope = "docs"
)

// Config controls how many suggestions Expand returns and how relevant they must be.
type Config struct {
	// MaxSuggestions caps the result. Zero disables suggestions.
	MaxSuggestions int `yaml:"max_suggestions" json:"max_suggestions"`
	// MinRelevance is the lowest score a suggestion may have.
	MinRelevance float64 `yaml:"min_relevance" json:"min_relevance"`
	// Scope is all, code or docs. Empty means all.
	Scope SourceScope `yaml:"scope" json:"scope"`
}

// DefaultConfig returns five suggestions with relevance of at least 0.1 over the whole corpus.
func DefaultConfig() Config {
	return Config{
		MaxSuggestions: 5,
		MinRelevance:   0.1,
		Scope:          ScopeAll,
	}
}

// Validate checks the config.
func (c Config) Validate() error {
	if c.MaxSuggestions < 0 {
		return fmt.Errorf("%w: max suggestions must not be negative", ErrInvalidConfig)
	}
	if math.IsNaN(c.MinRelevance) {
		return fmt.Errorf("%w: min relevance is NaN", ErrInvalidConfig)
	}
	switch c.Scope {
	case "", ScopeAll, ScopeCode, ScopeDocs:
	default:
		return fmt.Errorf("%w: unknown scope %q", ErrInvalidConfig, c.Scope)
	}
	return nil
}

func (c Config) scope() SourceScope {
	if c.Scope == "" {
		return ScopeAll
	}
	return c.Scope
}
