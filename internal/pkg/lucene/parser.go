package lucene

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser parses preprocessed queries into an expression tree.
//
// Grammar, loosest first; chains are right-recursive:
//
//	or     := and [OR or]
//	and    := unary [(AND | NOT | <implicit>) and]
//	unary  := NOT unary | clause
//	clause := '(' or ')' | [+|-] term | field ':' value
//	value  := [+|-] term | '(' or ')' | ('['|'{') bound TO bound (']'|'}')
//	term   := (word | "quoted") ['~' [number]] ['^' number]
type Parser struct {
	lexer   *Lexer
	input   string
	current Token
}

// Parse parses the input and returns the root expression with parent
// links attached. Empty input is a syntax error.
func Parse(input string) (Expr, error) {
	p := &Parser{lexer: NewLexer(input), input: input}
	p.advance()

	if p.current.Type == TokenEOF {
		return nil, p.errorf(p.current, "empty query")
	}

	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if p.current.Type != TokenEOF {
		return nil, p.errorf(p.current, "unexpected %v", p.current.Type)
	}

	return AttachParents(e), nil
}

func (p *Parser) advance() {
	p.current = p.lexer.NextToken()
}

func (p *Parser) errorf(tok Token, format string, args ...any) error {
	return &SyntaxError{
		Query: p.input,
		Pos:   tok.Pos,
		Near:  tok.Value,
		Msg:   fmt.Sprintf(format, args...),
	}
}

// parseOr handles OR expressions (lowest precedence).
func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	if p.current.Type != TokenOr {
		return left, nil
	}
	p.advance()

	right, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	return &Node{Left: left, Operator: OpOr, Right: right}, nil
}

// parseAnd handles AND, binary NOT and implicit conjunction.
func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	op := OpAnd
	switch {
	case p.current.Type == TokenAnd:
		p.advance()
	case p.current.Type == TokenNot:
		op = OpNot
		p.advance()
	case startsClause(p.current.Type):
		// adjacent clauses
	default:
		return left, nil
	}

	right, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	return &Node{Left: left, Operator: op, Right: right}, nil
}

// parseUnary handles a leading NOT.
func (p *Parser) parseUnary() (Expr, error) {
	if p.current.Type != TokenNot {
		return p.parseClause()
	}
	p.advance()

	operand, err := p.parseUnary() // NOT is right-associative
	if err != nil {
		return nil, err
	}

	return &Node{Left: operand, Operator: OpNot}, nil
}

func (p *Parser) parseClause() (Expr, error) {
	tok := p.current

	switch tok.Type {
	case TokenLParen:
		return p.parseGroup()

	case TokenPlus, TokenMinus:
		p.advance()
		if p.current.Type == TokenTo {
			p.current.Type = TokenWord
		}
		if p.current.Type != TokenWord && p.current.Type != TokenString {
			return nil, p.errorf(p.current, "expected term after %q", tok.Value)
		}
		return p.parseFieldOrTerm(tok.Value)

	case TokenWord, TokenString:
		return p.parseFieldOrTerm("")

	case TokenTo:
		// TO only means something inside a range
		p.current.Type = TokenWord
		return p.parseFieldOrTerm("")

	case TokenLBracket, TokenLBrace:
		return nil, p.errorf(tok, "range requires a field")

	case TokenColon:
		return nil, p.errorf(tok, "missing field before ':'")

	case TokenIllegal:
		return nil, p.illegal(tok)

	case TokenEOF:
		return nil, p.errorf(tok, "unexpected end of query")

	default:
		return nil, p.errorf(tok, "unexpected %v", tok.Type)
	}
}

func (p *Parser) illegal(tok Token) error {
	switch {
	case tok.Value == "/":
		return p.errorf(tok, "reserved character '/'")
	case strings.HasPrefix(tok.Value, `"`):
		return p.errorf(tok, "unterminated quoted term")
	default:
		return p.errorf(tok, "illegal character")
	}
}

func (p *Parser) parseGroup() (Expr, error) {
	open := p.current
	p.advance()

	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if p.current.Type != TokenRParen {
		if p.current.Type == TokenEOF {
			return nil, p.errorf(open, "unbalanced parenthesis")
		}
		return nil, p.errorf(p.current, "expected ')' but got %v", p.current.Type)
	}
	p.advance()

	return e, nil
}

func (p *Parser) parseFieldOrTerm(prefix string) (Expr, error) {
	tok := p.current
	p.advance()

	if tok.Type == TokenWord && p.current.Type == TokenColon && !p.current.Space {
		p.advance()
		return p.parseFieldValue(unescape(tok.Value), prefix)
	}

	t := &Term{
		Field:  Implicit,
		Term:   tokenText(tok),
		Prefix: prefix,
		Quoted: tok.Type == TokenString,
	}

	return t, p.parseModifiers(t)
}

func (p *Parser) parseFieldValue(field, prefix string) (Expr, error) {
	switch p.current.Type {
	case TokenLBracket, TokenLBrace:
		if prefix != "" {
			return nil, p.errorf(p.current, "prefix %q not allowed on a range", prefix)
		}
		return p.parseRange(field)

	case TokenLParen:
		if prefix != "" {
			return nil, p.errorf(p.current, "prefix %q not allowed on a field group", prefix)
		}
		e, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		applyField(e, field)
		return e, nil

	case TokenPlus, TokenMinus:
		if prefix != "" {
			return nil, p.errorf(p.current, "duplicate prefix")
		}
		prefix = p.current.Value
		p.advance()
	}

	tok := p.current
	switch tok.Type {
	case TokenWord, TokenString:
	case TokenAnd, TokenOr, TokenNot, TokenTo:
		// field:TO is a plain value
		if !isAlpha(tok.Value) {
			return nil, p.errorf(tok, "expected value after %q", field+":")
		}
	case TokenIllegal:
		return nil, p.illegal(tok)
	default:
		return nil, p.errorf(tok, "expected value after %q", field+":")
	}
	p.advance()

	t := &Term{
		Field:  field,
		Term:   tokenText(tok),
		Prefix: prefix,
		Quoted: tok.Type == TokenString,
	}

	return t, p.parseModifiers(t)
}

func (p *Parser) parseModifiers(t *Term) error {
	for !p.current.Space {
		switch p.current.Type {
		case TokenTilde:
			if t.Proximity != nil || t.Similarity != nil {
				return p.errorf(p.current, "duplicate '~'")
			}
			p.advance()

			if !p.current.Space && (p.current.Type == TokenPlus || p.current.Type == TokenMinus) {
				return p.errorf(p.current, "invalid fuzziness %q", p.current.Value)
			}

			if p.current.Type != TokenWord || p.current.Space {
				sim := 0.5
				t.Similarity = &sim
				continue
			}

			v := p.current.Value
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				t.Proximity = &n
			} else if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
				t.Similarity = &f
			} else {
				return p.errorf(p.current, "invalid fuzziness %q", v)
			}
			p.advance()

		case TokenCaret:
			if t.Boost != nil {
				return p.errorf(p.current, "duplicate '^'")
			}
			p.advance()

			if p.current.Type != TokenWord || p.current.Space {
				return p.errorf(p.current, "expected boost after '^'")
			}

			f, err := strconv.ParseFloat(p.current.Value, 64)
			if err != nil || f <= 0 {
				return p.errorf(p.current, "invalid boost %q", p.current.Value)
			}
			t.Boost = &f
			p.advance()

		default:
			return nil
		}
	}

	return nil
}

func (p *Parser) parseRange(field string) (Expr, error) {
	open := p.current
	p.advance()

	lo, err := p.parseBound()
	if err != nil {
		return nil, err
	}

	if p.current.Type != TokenTo {
		return nil, p.errorf(p.current, "range missing TO")
	}
	p.advance()

	hi, err := p.parseBound()
	if err != nil {
		return nil, err
	}

	closing := p.current
	switch closing.Type {
	case TokenRBracket, TokenRBrace:
	case TokenEOF:
		return nil, p.errorf(open, "unbalanced range bracket")
	default:
		return nil, p.errorf(closing, "expected ']' or '}' but got %v", closing.Type)
	}
	p.advance()

	minInc := open.Type == TokenLBracket
	maxInc := closing.Type == TokenRBracket

	return &Range{
		Field:        field,
		TermMin:      lo,
		TermMax:      hi,
		Inclusive:    minInc && maxInc,
		InclusiveMin: &minInc,
		InclusiveMax: &maxInc,
	}, nil
}

func (p *Parser) parseBound() (string, error) {
	sign := ""
	if p.current.Type == TokenPlus || p.current.Type == TokenMinus {
		sign = p.current.Value
		p.advance()
	}

	tok := p.current
	if tok.Type != TokenWord && tok.Type != TokenString {
		return "", p.errorf(tok, "expected range bound but got %v", tok.Type)
	}
	p.advance()

	return sign + tokenText(tok), nil
}

// applyField gives every implicit-field term under e the group's field.
func applyField(e Expr, field string) {
	switch x := e.(type) {
	case *Node:
		x.Field = field
		if x.Left != nil {
			applyField(x.Left, field)
		}
		if x.Right != nil {
			applyField(x.Right, field)
		}
	case *Term:
		if x.Field == Implicit {
			x.Field = field
		}
	case *Range:
	}
}

func startsClause(t TokenType) bool {
	switch t {
	case TokenWord, TokenString, TokenTo, TokenLParen, TokenLBracket, TokenLBrace,
		TokenPlus, TokenMinus, TokenColon, TokenIllegal:
		return true
	}
	return false
}

func tokenText(tok Token) string {
	if tok.Type == TokenString {
		return tok.Value
	}
	return unescape(tok.Value)
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}

	return b.String()
}

func isAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i] | 0x20
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return s != ""
}
