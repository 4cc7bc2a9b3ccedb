package lucene

import "strings"

// FindField returns the terms and ranges on field, left to right.
//
// A nil term matches any value. A *Term matches when the values are equal
// ignoring case; a *Range matches when both bounds and both inclusivities
// are equal.
func (t *Tree) FindField(field string, term Expr) []Expr {
	var hits []Expr

	Walk(t.Root, func(e Expr) bool {
		if matches(e, field, term) {
			hits = append(hits, e)
		}
		return true
	})

	return hits
}

// FindTerm is FindField with a plain term value.
func (t *Tree) FindTerm(field, value string) []Expr {
	return t.FindField(field, &Term{Field: field, Term: value})
}

func matches(e Expr, field string, want Expr) bool {
	switch x := e.(type) {
	case *Term:
		if x.Field != field {
			return false
		}
		if isNil(want) {
			return true
		}
		w, ok := want.(*Term)
		return ok && strings.EqualFold(x.Term, w.Term)

	case *Range:
		if x.Field != field {
			return false
		}
		if isNil(want) {
			return true
		}
		w, ok := want.(*Range)
		return ok &&
			x.TermMin == w.TermMin &&
			x.TermMax == w.TermMax &&
			x.MinInclusive() == w.MinInclusive() &&
			x.MaxInclusive() == w.MaxInclusive()
	}

	return false
}

// RemoveField removes every term or range FindField would return and
// reports how many were removed.
//
// A removed leaf's parent is replaced by the leaf's sibling. A negation
// left without an operand is removed with it. Removing the last leaf
// leaves the empty tree.
func (t *Tree) RemoveField(field string, term Expr) int {
	hits := t.FindField(field, term)
	for _, h := range hits {
		t.detach(h)
	}

	return len(hits)
}

func (t *Tree) detach(e Expr) {
	p := e.Parent()
	e.setParent(nil)

	if p == nil {
		if t.Root == e {
			t.Root = nil
		}
		return
	}

	if p.Unary() {
		p.Left = nil
		t.detach(p)
		return
	}

	sibling := p.Left
	if p.Left == e {
		sibling = p.Right
	}
	p.Left, p.Right = nil, nil

	if isNil(sibling) {
		t.detach(p)
		return
	}

	t.replace(p, sibling)
}

// replace puts repl where old is, in old's parent or at the root.
func (t *Tree) replace(old *Node, repl Expr) {
	gp := old.Parent()
	old.setParent(nil)
	repl.setParent(gp)

	switch {
	case gp == nil:
		t.Root = repl
	case gp.Left == Expr(old):
		gp.Left = repl
	default:
		gp.Right = repl
	}
}

// AddField joins field to the tree with op and returns the new root.
//
// Without an anchor the whole tree becomes the left operand of a new
// root. With an anchor, a new node {anchor op field} takes the anchor's
// place. The anchor must belong to t and field must be a detached term
// or range with a field name.
func (t *Tree) AddField(field Expr, op Operator, anchor Expr) (Expr, error) {
	switch f := field.(type) {
	case *Term:
		if f == nil || f.Field == "" {
			return nil, invalidArg("term without a field")
		}
	case *Range:
		if f == nil || f.Field == "" || f.Field == Implicit {
			return nil, invalidArg("range without a field")
		}
	case nil:
		return nil, invalidArg("nil field")
	default:
		return nil, invalidArg("field must be a term or a range, got %T", field)
	}

	if field.Parent() != nil || (!t.Empty() && t.Root == field) {
		return nil, invalidArg("field is already part of a tree")
	}

	if !op.Valid() {
		return nil, invalidArg("unknown operator %q", op)
	}

	if isNil(anchor) {
		if t.Empty() {
			field.setParent(nil)
			t.Root = field
			return t.Root, nil
		}

		n := &Node{Left: t.Root, Operator: op, Right: field}
		t.Root.setParent(n)
		field.setParent(n)
		t.Root = n

		return t.Root, nil
	}

	if !t.contains(anchor) {
		return nil, invalidArg("anchor does not belong to the tree")
	}

	gp := anchor.Parent()
	n := &Node{Left: anchor, Operator: op, Right: field, parent: gp}

	switch {
	case gp == nil:
		t.Root = n
	case gp.Left == anchor:
		gp.Left = n
	default:
		gp.Right = n
	}

	anchor.setParent(n)
	field.setParent(n)

	return t.Root, nil
}
