// Package lucene parses the Lucene query subset used by faceted search,
// lets callers find, add and remove field criteria in the parsed tree and
// prints the tree back as a canonical query string.
package lucene

// Implicit is the field of a term written without a field prefix.
const Implicit = "<implicit>"

// Operator joins the children of a Node.
type Operator string

const (
	OpAnd Operator = "AND"
	OpOr  Operator = "OR"
	OpNot Operator = "NOT"
)

// Valid reports whether op is one of the supported operators.
func (op Operator) Valid() bool {
	switch op {
	case OpAnd, OpOr, OpNot:
		return true
	}
	return false
}

// Expr is implemented by *Node, *Term and *Range.
type Expr interface {
	// Parent returns the node holding this expression, nil for the root.
	Parent() *Node

	setParent(p *Node)
	expr() // marker method
}

// Node is a boolean expression.
//
// Right is nil only for a unary negation (Operator == OpNot), which is
// how a leading NOT is represented.
type Node struct {
	Left     Expr
	Operator Operator
	Right    Expr

	// Field is set for the field group syntax field:(...).
	Field string

	parent *Node
}

// Term is a single term, optionally prefixed with a field.
type Term struct {
	Field string // Implicit when no field was given
	Term  string

	Prefix     string // "", "+" or "-"
	Boost      *float64
	Similarity *float64
	Proximity  *int

	// Quoted records that the term was written in double quotes.
	Quoted bool

	parent *Node
}

// Range is an interval over a field: field:[min TO max].
type Range struct {
	Field   string
	TermMin string
	TermMax string

	// Inclusive is the legacy flag for both bounds. InclusiveMin and
	// InclusiveMax override it per bound when set.
	Inclusive    bool
	InclusiveMin *bool
	InclusiveMax *bool

	parent *Node
}

func (n *Node) Parent() *Node  { return n.parent }
func (t *Term) Parent() *Node  { return t.parent }
func (r *Range) Parent() *Node { return r.parent }

func (n *Node) setParent(p *Node)  { n.parent = p }
func (t *Term) setParent(p *Node)  { t.parent = p }
func (r *Range) setParent(p *Node) { r.parent = p }

func (*Node) expr()  {}
func (*Term) expr()  {}
func (*Range) expr() {}

// Unary reports whether n is a negation with a single operand.
func (n *Node) Unary() bool {
	return n.Right == nil
}

// MinInclusive returns the effective inclusivity of the lower bound.
func (r *Range) MinInclusive() bool {
	if r.InclusiveMin != nil {
		return *r.InclusiveMin
	}
	return r.Inclusive
}

// MaxInclusive returns the effective inclusivity of the upper bound.
func (r *Range) MaxInclusive() bool {
	if r.InclusiveMax != nil {
		return *r.InclusiveMax
	}
	return r.Inclusive
}

// NewRange returns a range with both bounds inclusive or both exclusive.
func NewRange(field, min, max string, inclusive bool) *Range {
	minInc, maxInc := inclusive, inclusive
	return &Range{
		Field:        field,
		TermMin:      min,
		TermMax:      max,
		Inclusive:    inclusive,
		InclusiveMin: &minInc,
		InclusiveMax: &maxInc,
	}
}

// NewTerm returns an unprefixed term on field.
func NewTerm(field, term string) *Term {
	return &Term{Field: field, Term: term}
}

// isNil catches typed nil pointers stored in an Expr.
func isNil(e Expr) bool {
	switch x := e.(type) {
	case nil:
		return true
	case *Node:
		return x == nil
	case *Term:
		return x == nil
	case *Range:
		return x == nil
	}
	return false
}
