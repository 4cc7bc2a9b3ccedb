package lucene

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// DefaultUpperCaseFields are identifier fields whose values are printed
// in upper case.
var DefaultUpperCaseFields = []string{"pubmed", "doi", "taxonomy"}

var defaultPrinter = NewPrinter(DefaultUpperCaseFields...)

// Printer turns trees back into query text.
type Printer struct {
	upper map[string]bool
}

// NewPrinter returns a printer upper-casing the values of the given fields.
func NewPrinter(upperCaseFields ...string) *Printer {
	p := &Printer{upper: make(map[string]bool, len(upperCaseFields))}
	for _, f := range upperCaseFields {
		p.upper[strings.ToLower(f)] = true
	}
	return p
}

// UpperCaseFields returns the sorted fields whose values are upper-cased.
func (p *Printer) UpperCaseFields() []string {
	fs := make([]string, 0, len(p.upper))
	for f := range p.upper {
		fs = append(fs, f)
	}
	sort.Strings(fs)
	return fs
}

// Unparse prints e with the default upper-case fields.
func Unparse(e Expr) string {
	return defaultPrinter.Unparse(e)
}

// Unparse prints e as canonical query text. The empty expression gives "".
//
// The root is printed bare and nested boolean nodes are parenthesized,
// except a right operand joined by the same AND or OR as its parent.
// Terms with a field are always quoted.
func (p *Printer) Unparse(e Expr) string {
	var b strings.Builder
	p.write(&b, e, false)
	return b.String()
}

func (p *Printer) write(b *strings.Builder, e Expr, paren bool) {
	e = collapse(e)
	if isNil(e) {
		return
	}

	switch x := e.(type) {
	case *Node:
		if x.Right == nil {
			if isNil(x.Left) {
				return
			}
			b.WriteString("NOT ")
			p.write(b, x.Left, isBinary(x.Left))
			return
		}

		if paren {
			b.WriteByte('(')
		}

		p.write(b, x.Left, isBinary(x.Left))

		b.WriteByte(' ')
		b.WriteString(string(x.Operator))
		b.WriteByte(' ')

		right := isBinary(x.Right)
		if r, ok := collapse(x.Right).(*Node); ok && r.Operator == x.Operator && x.Operator != OpNot {
			right = false
		}
		p.write(b, x.Right, right)

		if paren {
			b.WriteByte(')')
		}

	case *Term:
		p.writeTerm(b, x)

	case *Range:
		b.WriteString(x.Field)
		b.WriteByte(':')
		if x.MinInclusive() {
			b.WriteByte('[')
		} else {
			b.WriteByte('{')
		}
		b.WriteString(bound(x.TermMin))
		b.WriteString(" TO ")
		b.WriteString(bound(x.TermMax))
		if x.MaxInclusive() {
			b.WriteByte(']')
		} else {
			b.WriteByte('}')
		}
	}
}

func (p *Printer) writeTerm(b *strings.Builder, t *Term) {
	value := t.Term

	if t.Field == Implicit || t.Field == "" {
		b.WriteString(t.Prefix)
		if t.Quoted || needsQuote(value) {
			writeQuoted(b, value)
		} else {
			b.WriteString(value)
		}
	} else {
		if p.upper[strings.ToLower(t.Field)] {
			value = strings.ToUpper(value)
		}
		b.WriteString(t.Field)
		b.WriteByte(':')
		b.WriteString(t.Prefix)
		writeQuoted(b, value)
	}

	switch {
	case t.Proximity != nil:
		b.WriteByte('~')
		b.WriteString(strconv.Itoa(*t.Proximity))
	case t.Similarity != nil:
		s := strconv.FormatFloat(*t.Similarity, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0" // an integer would read back as proximity
		}
		b.WriteByte('~')
		b.WriteString(s)
	}

	if t.Boost != nil {
		b.WriteByte('^')
		b.WriteString(strconv.FormatFloat(*t.Boost, 'f', -1, 64))
	}
}

// collapse skips nodes left with a single operand that are not negations.
func collapse(e Expr) Expr {
	for {
		n, ok := e.(*Node)
		if !ok || n == nil {
			return e
		}

		switch {
		case n.Left == nil && n.Right != nil:
			e = n.Right
		case n.Right == nil && n.Operator != OpNot:
			e = n.Left
		default:
			return e
		}
	}
}

func isBinary(e Expr) bool {
	n, ok := collapse(e).(*Node)
	return ok && n != nil && n.Left != nil && n.Right != nil
}

func writeQuoted(b *strings.Builder, s string) {
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
}

func needsQuote(s string) bool {
	if s == "" || isKeyword(s) {
		return true
	}

	switch s[0] {
	case '!', '+', '-':
		return true
	}

	if strings.HasPrefix(s, "&&") || strings.HasPrefix(s, "||") {
		return true
	}

	return strings.ContainsAny(s, "\\:()[]{}\"^~/") || strings.IndexFunc(s, unicode.IsSpace) >= 0
}

// bound prints a range bound; a sign in front of a plain bound stays bare.
func bound(s string) string {
	if len(s) > 1 && (s[0] == '-' || s[0] == '+') && !needsQuote(s[1:]) {
		return s
	}
	if !needsQuote(s) {
		return s
	}

	var b strings.Builder
	writeQuoted(&b, s)
	return b.String()
}

func isKeyword(s string) bool {
	switch strings.ToUpper(s) {
	case "AND", "OR", "NOT", "TO":
		return true
	}
	return false
}
