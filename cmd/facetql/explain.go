package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/coffersTech/facetql/internal/pkg/lucene"
)

type palette struct {
	op, field, value, mod func(a ...interface{}) string
}

func newPalette(colored bool) palette {
	mk := func(attrs ...color.Attribute) func(a ...interface{}) string {
		c := color.New(attrs...)
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.SprintFunc()
	}

	return palette{
		op:    mk(color.FgYellow, color.Bold),
		field: mk(color.FgCyan),
		value: mk(color.FgGreen),
		mod:   mk(color.FgMagenta),
	}
}

// writeTree prints one node per line, children indented under their parent.
func writeTree(w io.Writer, e lucene.Expr, p palette) {
	if e == nil {
		fmt.Fprintln(w, "(empty)")
		return
	}

	var b strings.Builder
	dumpExpr(&b, e, 0, p)

	_, _ = io.WriteString(w, b.String())
}

func dumpExpr(b *strings.Builder, e lucene.Expr, depth int, p palette) {
	b.WriteString(strings.Repeat("  ", depth))

	switch e := e.(type) {
	case *lucene.Node:
		b.WriteString(p.op(string(e.Operator)))
		if e.Field != "" {
			b.WriteString(" " + p.field(e.Field))
		}
		b.WriteByte('\n')

		if e.Left != nil {
			dumpExpr(b, e.Left, depth+1, p)
		}
		if e.Right != nil {
			dumpExpr(b, e.Right, depth+1, p)
		}
	case *lucene.Term:
		b.WriteString(p.field(e.Field + ":"))
		b.WriteString(e.Prefix)

		v := e.Term
		if e.Quoted {
			v = strconv.Quote(v)
		}
		b.WriteString(p.value(v))

		if e.Proximity != nil {
			b.WriteString(p.mod("~" + strconv.Itoa(*e.Proximity)))
		}
		if e.Similarity != nil {
			b.WriteString(p.mod("~" + strconv.FormatFloat(*e.Similarity, 'g', -1, 64)))
		}
		if e.Boost != nil {
			b.WriteString(p.mod("^" + strconv.FormatFloat(*e.Boost, 'g', -1, 64)))
		}
		b.WriteByte('\n')
	case *lucene.Range:
		lo, hi := "{", "}"
		if e.MinInclusive() {
			lo = "["
		}
		if e.MaxInclusive() {
			hi = "]"
		}

		b.WriteString(p.field(e.Field + ":"))
		b.WriteString(p.value(lo + e.TermMin + " TO " + e.TermMax + hi))
		b.WriteByte('\n')
	}
}
