package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/poiesic/codesense/core"
	"github.com/poiesic/codesense/textutil"
)

// Evaluate reports whether md satisfies the predicate tree n.
//
// Field-qualified terms compare against the named key: equality ignoring
// case, or a prefix match for wildcard terms. Unqualified terms match when any
// string value contains the term as a token (identifiers are split, so "parse"
// matches "ParseQuery"). Phrases require a case-insensitive substring match.
func Evaluate(n Node, md core.Metadata) bool {
	switch n := n.(type) {
	case MatchAll:
		return true
	case Term:
		return matchTerm(n, md)
	case Not:
		return !Evaluate(n.Child, md)
	case And:
		return Evaluate(n.Left, md) && Evaluate(n.Right, md)
	case Or:
		return Evaluate(n.Left, md) || Evaluate(n.Right, md)
	case Modified:
		switch n.Modifier {
		case Required:
			return Evaluate(n.Child, md)
		case Excluded:
			return !Evaluate(n.Child, md)
		case Optional:
			return true
		case Phrase:
			if t, ok := n.Child.(Term); ok {
				return matchPhrase(t, md)
			}
			return Evaluate(n.Child, md)
		default:
			panic(fmt.Sprintf("query: unhandled modifier %v", n.Modifier))
		}
	default:
		panic(fmt.Sprintf("query: unhandled node type %T", n))
	}
}

func matchTerm(t Term, md core.Metadata) bool {
	want := textutil.Fold(t.Value)
	if t.Field != "" {
		v, ok := md[t.Field]
		if !ok {
			return false
		}
		got := textutil.Fold(v.Text())
		if t.Prefix {
			return strings.HasPrefix(got, want)
		}
		return got == want
	}

	// values like "pkg.Func" span several tokens and are matched as text
	compound := len(textutil.Words(want)) > 1
	for _, v := range stringValues(md) {
		if textutil.Fold(v) == want && !t.Prefix {
			return true
		}
		if compound {
			if strings.Contains(strings.ToLower(v), want) {
				return true
			}
			continue
		}
		for _, tok := range textutil.Fields(v) {
			if tok == want || (t.Prefix && strings.HasPrefix(tok, want)) {
				return true
			}
		}
	}
	return false
}

func matchPhrase(t Term, md core.Metadata) bool {
	want := strings.ToLower(t.Value)
	if t.Field != "" {
		v, ok := md[t.Field]
		return ok && strings.Contains(strings.ToLower(v.Text()), want)
	}
	for _, v := range stringValues(md) {
		if strings.Contains(strings.ToLower(v), want) {
			return true
		}
	}
	return false
}

// stringValues returns string-kinded values in key order so evaluation cost
// does not depend on map iteration.
func stringValues(md core.Metadata) []string {
	keys := make([]string, 0, len(md))
	for k, v := range md {
		if v.Kind == core.KindString {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = md[k].S
	}
	return out
}
