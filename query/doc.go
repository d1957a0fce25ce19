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


// Package query parses boolean filter expressions into a predicate tree and
// evaluates that tree against entity metadata.
//
// # Grammar
//
// Precedence from lowest to highest:
//
//	or      := and { ("OR" | "||") and }
//	and     := unary { ["AND" | "&&"] unary }     adjacency is an implicit AND
//	unary   := ("-" | "NOT") unary | "+" unary | "~" unary | primary
//	primary := "(" or ")" | phrase | term
//	term    := [field ":"] word ["*"]
//	phrase  := [field ":"] '"' chars '"'
//
// Keywords are recognised only in upper case. Inside quotes, \" and \\ are
// escapes; outside quotes a backslash makes the next character literal.
//
// # Semantics
//
// An empty expression parses to MatchAll. A lone negation such as "-vendor"
// is valid and matches everything that does not contain the term. The
// Optional modifier (~term) never constrains a match; it only contributes the
// term to ranking and expansion.
package query
