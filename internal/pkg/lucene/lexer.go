package lucene

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenType represents the type of a lexical token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenWord
	TokenString // "quoted"
	TokenColon
	TokenLParen
	TokenRParen
	TokenLBracket // [
	TokenRBracket // ]
	TokenLBrace   // {
	TokenRBrace   // }
	TokenPlus     // + prefix
	TokenMinus    // - prefix
	TokenTilde
	TokenCaret
	TokenAnd
	TokenOr
	TokenNot
	TokenTo
	TokenIllegal
)

var tokenNames = [...]string{
	TokenEOF:      "end of query",
	TokenWord:     "term",
	TokenString:   "quoted term",
	TokenColon:    "':'",
	TokenLParen:   "'('",
	TokenRParen:   "')'",
	TokenLBracket: "'['",
	TokenRBracket: "']'",
	TokenLBrace:   "'{'",
	TokenRBrace:   "'}'",
	TokenPlus:     "'+'",
	TokenMinus:    "'-'",
	TokenTilde:    "'~'",
	TokenCaret:    "'^'",
	TokenAnd:      "AND",
	TokenOr:       "OR",
	TokenNot:      "NOT",
	TokenTo:       "TO",
	TokenIllegal:  "illegal character",
}

func (t TokenType) String() string {
	if int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return "unknown"
}

// Token represents a lexical token.
type Token struct {
	Type  TokenType
	Value string
	Pos   int

	// Space is set when whitespace precedes the token.
	Space bool
}

// Lexer tokenizes preprocessed query input.
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, pos: 0}
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	space := l.skipWhitespace()

	tok := l.next()
	tok.Space = space || tok.Pos == 0
	return tok
}

func (l *Lexer) next() Token {
	start := l.pos
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: start}
	}

	ch := l.input[l.pos]

	// Single-character tokens
	single := TokenIllegal
	switch ch {
	case ':':
		single = TokenColon
	case '(':
		single = TokenLParen
	case ')':
		single = TokenRParen
	case '[':
		single = TokenLBracket
	case ']':
		single = TokenRBracket
	case '{':
		single = TokenLBrace
	case '}':
		single = TokenRBrace
	case '~':
		single = TokenTilde
	case '^':
		single = TokenCaret
	case '/':
		l.pos++
		return Token{Type: TokenIllegal, Value: "/", Pos: start}
	case '"':
		return l.readString()
	case '&':
		if strings.HasPrefix(l.input[l.pos:], "&&") {
			l.pos += 2
			return Token{Type: TokenAnd, Value: "&&", Pos: start}
		}
	case '|':
		if strings.HasPrefix(l.input[l.pos:], "||") {
			l.pos += 2
			return Token{Type: TokenOr, Value: "||", Pos: start}
		}
	case '!':
		l.pos++
		return Token{Type: TokenNot, Value: "!", Pos: start}
	case '+', '-':
		// a prefix binds to what follows it directly
		if l.pos+1 < len(l.input) && !spaceAt(l.input, l.pos+1) {
			l.pos++
			if ch == '+' {
				return Token{Type: TokenPlus, Value: "+", Pos: start}
			}
			return Token{Type: TokenMinus, Value: "-", Pos: start}
		}
	}

	if single != TokenIllegal {
		l.pos++
		return Token{Type: single, Value: l.input[start:l.pos], Pos: start}
	}

	return l.readWord()
}

func (l *Lexer) skipWhitespace() bool {
	start := l.pos
	for l.pos < len(l.input) && spaceAt(l.input, l.pos) {
		_, n := utf8.DecodeRuneInString(l.input[l.pos:])
		l.pos += n
	}
	return l.pos > start
}

func (l *Lexer) readString() Token {
	start := l.pos
	l.pos++ // skip opening quote

	var b strings.Builder
	for l.pos < len(l.input) && l.input[l.pos] != '"' {
		if l.input[l.pos] == '\\' && l.pos+1 < len(l.input) {
			b.WriteByte(l.input[l.pos+1])
			l.pos += 2 // skip escaped char
			continue
		}
		b.WriteByte(l.input[l.pos])
		l.pos++
	}
	if l.pos >= len(l.input) {
		return Token{Type: TokenIllegal, Value: l.input[start:], Pos: start}
	}
	l.pos++ // skip closing quote

	return Token{Type: TokenString, Value: b.String(), Pos: start}
}

func (l *Lexer) readWord() Token {
	start := l.pos
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\\' && l.pos+1 < len(l.input) {
			l.pos += 2
			continue
		}
		if !isWordChar(ch) {
			break
		}
		if ch >= utf8.RuneSelf {
			r, n := utf8.DecodeRuneInString(l.input[l.pos:])
			if unicode.IsSpace(r) {
				break
			}
			l.pos += n
			continue
		}
		l.pos++
	}

	if l.pos == start {
		// a lone prefix character or a dangling operator symbol
		_, n := utf8.DecodeRuneInString(l.input[l.pos:])
		l.pos += n
		return Token{Type: TokenIllegal, Value: l.input[start:l.pos], Pos: start}
	}

	value := l.input[start:l.pos]

	// Keywords are recognized in upper case only; Preprocess folds them.
	switch value {
	case "AND":
		return Token{Type: TokenAnd, Value: value, Pos: start}
	case "OR":
		return Token{Type: TokenOr, Value: value, Pos: start}
	case "NOT":
		return Token{Type: TokenNot, Value: value, Pos: start}
	case "TO":
		return Token{Type: TokenTo, Value: value, Pos: start}
	}

	return Token{Type: TokenWord, Value: value, Pos: start}
}

func isSpace(ch byte) bool {
	switch ch {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

// spaceAt reports whether a whitespace rune, ASCII or Unicode, starts at s[i].
func spaceAt(s string, i int) bool {
	if s[i] < utf8.RuneSelf {
		return isSpace(s[i])
	}

	r, _ := utf8.DecodeRuneInString(s[i:])
	return unicode.IsSpace(r)
}

func isWordChar(ch byte) bool {
	if isSpace(ch) {
		return false
	}
	switch ch {
	case ':', '(', ')', '[', ']', '{', '}', '"', '^', '~', '/':
		return false
	}
	return true
}
