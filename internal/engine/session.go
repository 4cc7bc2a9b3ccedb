package engine

import (
	"sync"

	"github.com/coffersTech/facetql/internal/pkg/lucene"
)

// Session holds the current query of one search UI.
// All mutations of the tree go through mu.
type Session struct {
	ID       string
	Created  int64 // unix nanoseconds
	LastSeen int64

	mu       sync.Mutex
	tree     *lucene.Tree
	fallback bool
}

// State is a snapshot of a session handed to callers.
type State struct {
	ID       string       `json:"id"`
	Query    string       `json:"query"`
	Fallback bool         `json:"fallback"`
	Fields   []FieldValue `json:"fields"`
	Created  int64        `json:"created"`
	LastSeen int64        `json:"last_seen"`
}

// FieldValue is one explicit-field criterion present in a query.
type FieldValue struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Min     string `json:"min"`
	Max     string `json:"max"`
	Range   bool   `json:"range"`
	Negated bool   `json:"negated"`
}

// SessionRecord is the persisted form of a session.
type SessionRecord struct {
	ID       string
	Query    string
	Created  int64
	LastSeen int64
}

// state must be called with s.mu held.
func (s *Session) state(p *lucene.Printer) State {
	return State{
		ID:       s.ID,
		Query:    p.Unparse(s.tree.Root),
		Fallback: s.fallback,
		Fields:   ActiveFields(s.tree),
		Created:  s.Created,
		LastSeen: s.LastSeen,
	}
}

// ActiveFields lists the explicit-field terms and ranges of t, left to right.
func ActiveFields(t *lucene.Tree) []FieldValue {
	fields := []FieldValue{}

	lucene.Walk(t.Root, func(e lucene.Expr) bool {
		switch x := e.(type) {
		case *lucene.Term:
			if x.Field == lucene.Implicit {
				break
			}
			fields = append(fields, FieldValue{
				Field:   x.Field,
				Value:   x.Term,
				Negated: x.Prefix == "-" || negated(x),
			})
		case *lucene.Range:
			fields = append(fields, FieldValue{
				Field:   x.Field,
				Min:     x.TermMin,
				Max:     x.TermMax,
				Range:   true,
				Negated: negated(x),
			})
		}
		return true
	})

	return fields
}

// negated reports whether e sits under the operand side of a NOT.
func negated(e lucene.Expr) bool {
	for p := e.Parent(); p != nil; p = p.Parent() {
		if p.Operator == lucene.OpNot && (p.Unary() || p.Right == e) {
			return true
		}
		e = p
	}
	return false
}
