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

// Parse turns a filter expression into a predicate tree.
// Malformed input fails with *SyntaxError. Blank input yields MatchAll.
func Parse(input string) (Node, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	if p.peek().kind == tokEOF {
		return MatchAll{}, nil
	}

	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	switch tok := p.peek(); tok.kind {
	case tokEOF:
		return n, nil
	case tokRParen:
		return nil, syntaxErr(tok.pos, "unbalanced parenthesis: unexpected ')'")
	default:
		return nil, syntaxErr(tok.pos, "unexpected %s", tok.kind)
	}
}

// MustParse is like Parse but panics on error. Intended for tests and
// static expressions.
func MustParse(input string) Node {
	n, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return n
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) advance() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

// startsOperand reports whether tok can begin a unary expression.
func startsOperand(tok token) bool {
	switch tok.kind {
	case tokWord, tokPhrase, tokLParen, tokNot, tokMinus, tokPlus, tokTilde:
		return true
	}
	return false
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		op := p.advance()
		if !startsOperand(p.peek()) {
			return nil, syntaxErr(op.pos, "dangling operator OR")
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		switch {
		case tok.kind == tokAnd:
			p.advance()
			if !startsOperand(p.peek()) {
				return nil, syntaxErr(tok.pos, "dangling operator AND")
			}
		case startsOperand(tok):
			// implicit AND
		default:
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = And{Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (Node, error) {
	tok := p.peek()
	switch tok.kind {
	case tokNot, tokMinus, tokPlus, tokTilde:
		p.advance()
		if !startsOperand(p.peek()) {
			if tok.kind == tokNot {
				return nil, syntaxErr(tok.pos, "dangling operator NOT")
			}
			return nil, syntaxErr(tok.pos, "empty term after modifier %s", tok.kind)
		}
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		switch tok.kind {
		case tokPlus:
			return Modified{Child: child, Modifier: Required}, nil
		case tokTilde:
			return Modified{Child: child, Modifier: Optional}, nil
		default:
			return Not{Child: child}, nil
		}
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.advance()
	switch tok.kind {
	case tokWord:
		return Term{Field: tok.field, Value: tok.value, Prefix: tok.prefix}, nil
	case tokPhrase:
		return Modified{Child: Term{Field: tok.field, Value: tok.value}, Modifier: Phrase}, nil
	case tokLParen:
		if p.peek().kind == tokRParen {
			return nil, syntaxErr(tok.pos, "empty group")
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, syntaxErr(tok.pos, "unbalanced parenthesis: missing ')'")
		}
		p.advance()
		return inner, nil
	case tokRParen:
		return nil, syntaxErr(tok.pos, "unbalanced parenthesis: unexpected ')'")
	case tokAnd, tokOr:
		return nil, syntaxErr(tok.pos, "dangling operator %s", tok.kind)
	default:
		return nil, syntaxErr(tok.pos, "unexpected %s", tok.kind)
	}
}
