package storage

import (
	"strings"

	"github.com/poiesic/codesense/core"
)

// Filter is a predicate over embedding metadata.
type Filter interface {
	Match(md core.Metadata) bool
}

// MatchFunc adapts a function to the Filter interface.
type MatchFunc func(md core.Metadata) bool

// Match calls f(md).
func (f MatchFunc) Match(md core.Metadata) bool { return f(md) }

// EqualsFilter matches when key holds exactly value (same kind and payload).
type EqualsFilter struct {
	Key   string
	Value core.Value
}

// Match implements Filter.
func (f EqualsFilter) Match(md core.Metadata) bool {
	v, ok := md[f.Key]
	return ok && v.Equal(f.Value)
}

// PrefixFilter matches when the text form of key starts with Prefix.
type PrefixFilter struct {
	Key    string
	Prefix string
}

// Match implements Filter.
func (f PrefixFilter) Match(md core.Metadata) bool {
	v, ok := md[f.Key]
	return ok && strings.HasPrefix(v.Text(), f.Prefix)
}

// AndFilter matches when every child matches. No children matches everything.
type AndFilter []Filter

// Match implements Filter.
func (f AndFilter) Match(md core.Metadata) bool {
	for _, c := range f {
		if c != nil && !c.Match(md) {
			return false
		}
	}
	return true
}

// OrFilter matches when any child matches. No children matches nothing.
type OrFilter []Filter

// Match implements Filter.
func (f OrFilter) Match(md core.Metadata) bool {
	for _, c := range f {
		if c == nil || c.Match(md) {
			return true
		}
	}
	return false
}

// NotFilter inverts its child.
type NotFilter struct {
	Child Filter
}

// Match implements Filter.
func (f NotFilter) Match(md core.Metadata) bool {
	return f.Child != nil && !f.Child.Match(md)
}

// Equals returns a filter requiring md[key] == value.
func Equals(key string, value core.Value) Filter { return EqualsFilter{Key: key, Value: value} }

// HasPrefix returns a filter requiring md[key] to start with prefix.
func HasPrefix(key, prefix string) Filter { return PrefixFilter{Key: key, Prefix: prefix} }

// And combines filters conjunctively.
func And(filters ...Filter) Filter { return AndFilter(filters) }

// Or combines filters disjunctively.
func Or(filters ...Filter) Filter { return OrFilter(filters) }

// Not negates a filter.
func Not(f Filter) Filter { return NotFilter{Child: f} }

// Matches reports whether f accepts md. A nil filter accepts everything.
func Matches(f Filter, md core.Metadata) bool {
	return f == nil || f.Match(md)
}

// EqualityGroups extracts index hints from f: a conjunction of groups, where
// each group is a disjunction of equality terms. Any metadata accepted by f
// satisfies at least one term of every group. Filters that cannot be
// expressed this way contribute no group, so callers must still apply f.
func EqualityGroups(f Filter) [][]EqualsFilter {
	switch f := f.(type) {
	case EqualsFilter:
		return [][]EqualsFilter{{f}}
	case AndFilter:
		var groups [][]EqualsFilter
		for _, c := range f {
			groups = append(groups, EqualityGroups(c)...)
		}
		return groups
	case OrFilter:
		group := make([]EqualsFilter, 0, len(f))
		for _, c := range f {
			eq, ok := c.(EqualsFilter)
			if !ok {
				return nil
			}
			group = append(group, eq)
		}
		if len(group) == 0 {
			return nil
		}
		return [][]EqualsFilter{group}
	}
	return nil
}
