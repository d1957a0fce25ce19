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


package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Node is an element of a parsed query. The set of implementations is closed.
type Node interface {
	node()
}

// Modifier qualifies a child node.
type Modifier int

const (
	Required Modifier = iota + 1
	Excluded
	Optional
	Phrase
)

func (m Modifier) String() string {
	switch m {
	case Required:
		return "required"
	case Excluded:
		return "excluded"
	case Optional:
		return "optional"
	case Phrase:
		return "phrase"
	default:
		return "modifier(" + strconv.Itoa(int(m)) + ")"
	}
}

// MatchAll matches every entity. It is produced only for empty input.
type MatchAll struct{}

// Term matches a word, optionally restricted to one metadata field.
type Term struct {
	Field  string
	Value  string
	Prefix bool
}

// Not negates its child.
type Not struct {
	Child Node
}

// And requires both sides to match.
type And struct {
	Left, Right Node
}

// Or requires either side to match.
type Or struct {
	Left, Right Node
}

// Modified applies a Modifier to its child.
type Modified struct {
	Child    Node
	Modifier Modifier
}

func (MatchAll) node() {}
func (Term) node()     {}
func (Not) node()      {}
func (And) node()      {}
func (Or) node()       {}
func (Modified) node() {}

var (
	_ Node = MatchAll{}
	_ Node = Term{}
	_ Node = Not{}
	_ Node = And{}
	_ Node = Or{}
	_ Node = Modified{}
)

// String renders a node as a canonical S-expression.
func String(n Node) string {
	var b strings.Builder
	writeNode(&b, n)
	return b.String()
}

func writeNode(b *strings.Builder, n Node) {
	switch n := n.(type) {
	case MatchAll:
		b.WriteString("*")
	case Term:
		if n.Field != "" {
			b.WriteString(n.Field)
			b.WriteByte(':')
		}
		b.WriteString(strconv.Quote(n.Value))
		if n.Prefix {
			b.WriteByte('*')
		}
	case Not:
		b.WriteString("(not ")
		writeNode(b, n.Child)
		b.WriteByte(')')
	case And:
		b.WriteString("(and ")
		writeNode(b, n.Left)
		b.WriteByte(' ')
		writeNode(b, n.Right)
		b.WriteByte(')')
	case Or:
		b.WriteString("(or ")
		writeNode(b, n.Left)
		b.WriteByte(' ')
		writeNode(b, n.Right)
		b.WriteByte(')')
	case Modified:
		b.WriteByte('(')
		b.WriteString(n.Modifier.String())
		b.WriteByte(' ')
		writeNode(b, n.Child)
		b.WriteByte(')')
	default:
		panic(fmt.Sprintf("query: unhandled node type %T", n))
	}
}

// Terms returns the values of terms that contribute positively to a match,
// in order of appearance and without duplicates. Terms under a negation are
// skipped.
func Terms(n Node) []string {
	seen := make(map[string]bool)
	var out []string
	var walk func(Node, bool)
	walk = func(n Node, negated bool) {
		switch n := n.(type) {
		case MatchAll:
		case Term:
			if !negated && !seen[n.Value] {
				seen[n.Value] = true
				out = append(out, n.Value)
			}
		case Not:
			walk(n.Child, !negated)
		case And:
			walk(n.Left, negated)
			walk(n.Right, negated)
		case Or:
			walk(n.Left, negated)
			walk(n.Right, negated)
		case Modified:
			walk(n.Child, negated != (n.Modifier == Excluded))
		default:
			panic(fmt.Sprintf("query: unhandled node type %T", n))
		}
	}
	walk(n, false)
	return out
}

// Conjuncts flattens the top-level chain of And nodes.
func Conjuncts(n Node) []Node {
	if a, ok := n.(And); ok {
		return append(Conjuncts(a.Left), Conjuncts(a.Right)...)
	}
	return []Node{n}
}

// AndAll joins nodes with And, left-associative. No nodes yields MatchAll.
func AndAll(nodes ...Node) Node {
	return fold(nodes, func(l, r Node) Node { return And{Left: l, Right: r} })
}

// OrAll joins nodes with Or, left-associative. No nodes yields MatchAll.
func OrAll(nodes ...Node) Node {
	return fold(nodes, func(l, r Node) Node { return Or{Left: l, Right: r} })
}

func fold(nodes []Node, join func(l, r Node) Node) Node {
	if len(nodes) == 0 {
		return MatchAll{}
	}
	out := nodes[0]
	for _, n := range nodes[1:] {
		out = join(out, n)
	}
	return out
}
