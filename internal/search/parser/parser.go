// Package parser turns a raw boolean query string into an expression tree.
//
// The grammar supports AND, OR, and NOT keywords (case-insensitive) with
// conventional precedence (NOT binds tightest, then AND, then OR),
// parenthesised grouping, and double-quoted phrases. Adjacent bare terms
// combine with an implicit AND. Malformed input fails with an
// ErrQueryParse error naming the offending fragment; it is never silently
// degraded.
package parser

import (
	"strings"
	"unicode"

	apperrors "github.com/memoslot/memoslot/pkg/errors"
)

// Node is one node of the parsed expression tree.
type Node interface {
	String() string
}

// Term is a single bare search term, kept raw so the evaluator can apply
// case-sensitive or case-folded normalization as the request demands.
type Term struct {
	Raw string
}

func (t *Term) String() string { return t.Raw }

// Phrase is a double-quoted span resolved by position-adjacency matching,
// not by independent term lookups.
type Phrase struct {
	Raw string
}

func (p *Phrase) String() string { return `"` + p.Raw + `"` }

// Not negates its child: matching entries are subtracted from the
// surrounding result without contributing weight.
type Not struct {
	Child Node
}

func (n *Not) String() string { return "NOT " + n.Child.String() }

// And intersects its operands, summing per-entry weights.
type And struct {
	Left, Right Node
}

func (a *And) String() string { return "(" + a.Left.String() + " AND " + a.Right.String() + ")" }

// Or unions its operands, taking the maximum per-entry weight.
type Or struct {
	Left, Right Node
}

func (o *Or) String() string { return "(" + o.Left.String() + " OR " + o.Right.String() + ")" }

type tokenKind int

const (
	tokTerm tokenKind = iota
	tokPhrase
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

// Parse builds the expression tree for query. An empty or blank query yields
// a nil root and no error (the evaluator treats it as matching nothing).
func Parse(query string) (Node, error) {
	tokens, err := lex(query)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}
	p := &parser{tokens: tokens}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, apperrors.QueryParse(p.peek().text, "unexpected token")
	}
	return node, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) done() bool {
	return p.pos >= len(p.tokens)
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for !p.done() && p.peek().kind == tokOr {
		op := p.next()
		if p.done() {
			return nil, apperrors.QueryParse(op.text, "operator missing right operand")
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for !p.done() {
		switch p.peek().kind {
		case tokAnd:
			op := p.next()
			if p.done() {
				return nil, apperrors.QueryParse(op.text, "operator missing right operand")
			}
		case tokTerm, tokPhrase, tokNot, tokLParen:
			// implicit AND between adjacent operands
		default:
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &And{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Node, error) {
	if p.done() {
		return nil, apperrors.QueryParse("", "expression missing operand")
	}
	if p.peek().kind == tokNot {
		op := p.next()
		if p.done() {
			return nil, apperrors.QueryParse(op.text, "operator missing operand")
		}
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Not{Child: child}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.next()
	switch tok.kind {
	case tokTerm:
		return &Term{Raw: tok.text}, nil
	case tokPhrase:
		return &Phrase{Raw: tok.text}, nil
	case tokLParen:
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.done() || p.peek().kind != tokRParen {
			return nil, apperrors.QueryParse(tok.text, "unbalanced parenthesis")
		}
		p.next()
		return node, nil
	case tokRParen:
		return nil, apperrors.QueryParse(tok.text, "unbalanced parenthesis")
	default:
		return nil, apperrors.QueryParse(tok.text, "operator missing operand")
	}
}

// lex splits query into operator, parenthesis, phrase, and term tokens.
func lex(query string) ([]token, error) {
	tokens := make([]token, 0, 8)
	runes := []rune(query)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "("})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")"})
			i++
		case r == '"':
			end := -1
			for j := i + 1; j < len(runes); j++ {
				if runes[j] == '"' {
					end = j
					break
				}
			}
			if end < 0 {
				return nil, apperrors.QueryParse(string(runes[i:]), "unbalanced quote")
			}
			phrase := strings.TrimSpace(string(runes[i+1 : end]))
			if phrase == "" {
				return nil, apperrors.QueryParse(`""`, "empty phrase")
			}
			tokens = append(tokens, token{kind: tokPhrase, text: phrase})
			i = end + 1
		default:
			start := i
			for i < len(runes) && !unicode.IsSpace(runes[i]) &&
				runes[i] != '(' && runes[i] != ')' && runes[i] != '"' {
				i++
			}
			word := string(runes[start:i])
			switch strings.ToUpper(word) {
			case "AND":
				tokens = append(tokens, token{kind: tokAnd, text: word})
			case "OR":
				tokens = append(tokens, token{kind: tokOr, text: word})
			case "NOT":
				tokens = append(tokens, token{kind: tokNot, text: word})
			default:
				tokens = append(tokens, token{kind: tokTerm, text: word})
			}
		}
	}
	return tokens, nil
}
