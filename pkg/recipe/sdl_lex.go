package recipe

import (
	"strings"

	"github.com/pkg/errors"
)

// lexSDL tokenizes and parses the S-expression-like format into a tree of
// sdlStatement. It is a small hand-written recursive-descent parser; each
// statement is one keyword followed by quoted-string positional
// arguments, key="value" attributes, and an optional brace-delimited body
// of nested statements.
func lexSDL(src string) ([]sdlStatement, error) {
	toks, err := tokenizeSDL(src)
	if err != nil {
		return nil, err
	}
	p := &sdlParser{toks: toks}
	stmts := p.parseStatements()
	if p.err != nil {
		return nil, p.err
	}
	if p.pos != len(p.toks) {
		return nil, errors.Errorf("unexpected token %q", p.toks[p.pos].text)
	}
	return stmts, nil
}

type sdlTokenKind uint8

const (
	tokWord sdlTokenKind = iota
	tokString
	tokLBrace
	tokRBrace
	tokEquals
)

type sdlToken struct {
	kind sdlTokenKind
	text string
}

func tokenizeSDL(src string) ([]sdlToken, error) {
	var toks []sdlToken
	i, n := 0, len(src)
	for i < n {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++
		case c == '#':
			for i < n && src[i] != '\n' {
				i++
			}
		case c == '{':
			toks = append(toks, sdlToken{kind: tokLBrace, text: "{"})
			i++
		case c == '}':
			toks = append(toks, sdlToken{kind: tokRBrace, text: "}"})
			i++
		case c == '=':
			toks = append(toks, sdlToken{kind: tokEquals, text: "="})
			i++
		case c == '"':
			j := i + 1
			var sb strings.Builder
			for j < n && src[j] != '"' {
				if src[j] == '\\' && j+1 < n {
					j++
				}
				sb.WriteByte(src[j])
				j++
			}
			if j >= n {
				return nil, errors.New("unterminated string literal")
			}
			toks = append(toks, sdlToken{kind: tokString, text: sb.String()})
			i = j + 1
		default:
			j := i
			for j < n && !isSDLDelim(src[j]) {
				j++
			}
			if j == i {
				return nil, errors.Errorf("unexpected character %q", string(c))
			}
			toks = append(toks, sdlToken{kind: tokWord, text: src[i:j]})
			i = j
		}
	}
	return toks, nil
}

func isSDLDelim(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '{', '}', '=', '"', '#':
		return true
	default:
		return false
	}
}

type sdlParser struct {
	toks []sdlToken
	pos  int
	err  error
}

func (p *sdlParser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *sdlParser) peek() (sdlToken, bool) {
	if p.pos >= len(p.toks) {
		return sdlToken{}, false
	}
	return p.toks[p.pos], true
}

func (p *sdlParser) parseStatements() []sdlStatement {
	var stmts []sdlStatement
	for p.err == nil {
		tok, ok := p.peek()
		if !ok || tok.kind == tokRBrace {
			return stmts
		}
		stmts = append(stmts, p.parseStatement())
	}
	return stmts
}

func (p *sdlParser) parseStatement() sdlStatement {
	kw, ok := p.peek()
	if !ok || kw.kind != tokWord {
		p.fail(errors.New("expected a statement keyword"))
		return sdlStatement{}
	}
	p.pos++

	st := sdlStatement{keyword: kw.text, attrs: map[string]string{}}

	for {
		tok, ok := p.peek()
		if !ok {
			return st
		}
		switch tok.kind {
		case tokString:
			p.pos++
			st.args = append(st.args, tok.text)
		case tokWord:
			// key=value attribute: word '=' string
			next, hasNext := p.tokAt(p.pos + 1)
			if hasNext && next.kind == tokEquals {
				val, hasVal := p.tokAt(p.pos + 2)
				if !hasVal || val.kind != tokString {
					p.fail(errors.Errorf("attribute %q expects a quoted value", tok.text))
					return st
				}
				st.attrs[tok.text] = val.text
				p.pos += 3
				continue
			}
			return st
		case tokLBrace:
			p.pos++
			st.body = p.parseStatements()
			if end, ok := p.peek(); !ok || end.kind != tokRBrace {
				p.fail(errors.New("expected closing '}'"))
				return st
			}
			p.pos++
			return st
		default:
			return st
		}
	}
}

func (p *sdlParser) tokAt(i int) (sdlToken, bool) {
	if i >= len(p.toks) {
		return sdlToken{}, false
	}
	return p.toks[i], true
}
