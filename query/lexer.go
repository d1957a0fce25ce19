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
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokPhrase
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokNot   // NOT keyword
	tokMinus // - prefix
	tokPlus  // + prefix
	tokTilde // ~ prefix
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokWord:
		return "term"
	case tokPhrase:
		return "phrase"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokAnd:
		return "AND"
	case tokOr:
		return "OR"
	case tokNot:
		return "NOT"
	case tokMinus:
		return "'-'"
	case tokPlus:
		return "'+'"
	case tokTilde:
		return "'~'"
	}
	return "unknown"
}

type token struct {
	kind   tokenKind
	pos    int
	field  string
	value  string
	prefix bool
}

// lex splits input into tokens. It fails only on unterminated quotes,
// empty phrases and empty field values.
func lex(input string) ([]token, error) {
	l := &lexer{src: input}
	var toks []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks, nil
		}
	}
}

// lexer recognises prefix operators only at the start of a token, so
// "foo-bar" stays a single term.
type lexer struct {
	src string
	pos int
}

func (l *lexer) peek() (rune, int) {
	if l.pos >= len(l.src) {
		return utf8.RuneError, 0
	}
	return utf8.DecodeRuneInString(l.src[l.pos:])
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		r, w := l.peek()
		if !unicode.IsSpace(r) {
			return
		}
		l.pos += w
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: start}, nil
	}

	r, w := l.peek()
	switch r {
	case '(':
		l.pos += w
		return token{kind: tokLParen, pos: start}, nil
	case ')':
		l.pos += w
		return token{kind: tokRParen, pos: start}, nil
	case '-':
		l.pos += w
		return token{kind: tokMinus, pos: start}, nil
	case '+':
		l.pos += w
		return token{kind: tokPlus, pos: start}, nil
	case '~':
		l.pos += w
		return token{kind: tokTilde, pos: start}, nil
	case '"':
		value, err := l.phrase()
		if err != nil {
			return token{}, err
		}
		return token{kind: tokPhrase, pos: start, value: value}, nil
	}

	if strings.HasPrefix(l.src[l.pos:], "&&") {
		l.pos += 2
		return token{kind: tokAnd, pos: start}, nil
	}
	if strings.HasPrefix(l.src[l.pos:], "||") {
		l.pos += 2
		return token{kind: tokOr, pos: start}, nil
	}

	return l.word(start)
}

// word reads a bare term, handling field qualifiers, escapes and a trailing
// prefix wildcard.
func (l *lexer) word(start int) (token, error) {
	var b strings.Builder
	field := ""
	hasField := false
	escaped := false
	lastEscaped := false
	sawEscape := false

	for l.pos < len(l.src) {
		r, w := l.peek()
		if escaped {
			b.WriteRune(r)
			l.pos += w
			escaped = false
			lastEscaped = true
			continue
		}
		if r == '\\' {
			l.pos += w
			escaped = true
			sawEscape = true
			continue
		}
		if unicode.IsSpace(r) || r == '(' || r == ')' || r == '"' {
			break
		}
		if r == ':' && !hasField {
			l.pos += w
			field = b.String()
			b.Reset()
			hasField = true
			lastEscaped = false
			if field == "" {
				return token{}, syntaxErr(start, "empty field name")
			}
			if next, _ := l.peek(); next == '"' && l.pos < len(l.src) {
				value, err := l.phrase()
				if err != nil {
					return token{}, err
				}
				return token{kind: tokPhrase, pos: start, field: field, value: value}, nil
			}
			continue
		}
		b.WriteRune(r)
		l.pos += w
		lastEscaped = false
	}
	if escaped {
		return token{}, syntaxErr(l.pos, "dangling escape at end of input")
	}

	value := b.String()
	prefix := false
	if strings.HasSuffix(value, "*") && !lastEscaped {
		prefix = true
		value = strings.TrimSuffix(value, "*")
	}

	if !hasField && !sawEscape {
		switch value {
		case "AND":
			if !prefix {
				return token{kind: tokAnd, pos: start}, nil
			}
		case "OR":
			if !prefix {
				return token{kind: tokOr, pos: start}, nil
			}
		case "NOT":
			if !prefix {
				return token{kind: tokNot, pos: start}, nil
			}
		}
	}

	if value == "" {
		if hasField {
			return token{}, syntaxErr(l.pos, "empty value for field %q", field)
		}
		return token{}, syntaxErr(start, "empty prefix term")
	}
	return token{kind: tokWord, pos: start, field: field, value: value, prefix: prefix}, nil
}

// phrase reads a double-quoted string starting at the opening quote.
func (l *lexer) phrase() (string, error) {
	open := l.pos
	l.pos++ // opening quote
	var b strings.Builder
	for l.pos < len(l.src) {
		r, w := l.peek()
		l.pos += w
		switch r {
		case '\\':
			if l.pos >= len(l.src) {
				return "", syntaxErr(open, "unterminated quoted phrase")
			}
			esc, ew := l.peek()
			l.pos += ew
			b.WriteRune(esc)
		case '"':
			value := b.String()
			if strings.TrimSpace(value) == "" {
				return "", syntaxErr(open, "empty phrase")
			}
			return value, nil
		default:
			b.WriteRune(r)
		}
	}
	return "", syntaxErr(open, "unterminated quoted phrase")
}
