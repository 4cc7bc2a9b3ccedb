package engine

import (
	"github.com/coffersTech/facetql/internal/pkg/lucene"
)

// ToggleFacet removes field:value from t when present and adds it
// otherwise. It reports whether the facet was added.
func ToggleFacet(t *lucene.Tree, field, value string) (bool, error) {
	if len(t.FindTerm(field, value)) != 0 {
		t.RemoveField(field, lucene.NewTerm(field, value))
		return false, nil
	}

	return true, AddFacet(t, field, value)
}

// AddFacet adds field:value as another accepted value of the facet.
//
// Each run of field terms joined by OR gets the value appended after its
// last term. A run is a maximal OR group made only of field terms, or
// several such groups following one another in one OR chain, as in
// `f:A OR f:B OR foo`. Without a run the value is joined to the whole
// query with AND. Negated terms never take new values.
func AddFacet(t *lucene.Tree, field, value string) error {
	anchors := facetAnchors(t, field)
	if len(anchors) == 0 {
		_, err := t.AddField(lucene.NewTerm(field, value), lucene.OpAnd, nil)
		return err
	}

	for _, a := range anchors {
		if _, err := t.AddField(lucene.NewTerm(field, value), lucene.OpOr, a); err != nil {
			return err
		}
	}

	return nil
}

// SetRange replaces every criterion on field with field:[lo TO hi].
// Empty bounds are open; both empty only clears the field.
func SetRange(t *lucene.Tree, field, lo, hi string) error {
	t.RemoveField(field, nil)

	if lo == "" && hi == "" {
		return nil
	}
	if lo == "" {
		lo = "*"
	}
	if hi == "" {
		hi = "*"
	}

	_, err := t.AddField(lucene.NewRange(field, lo, hi, true), lucene.OpAnd, nil)
	return err
}

func facetAnchors(t *lucene.Tree, field string) []lucene.Expr {
	var groups []lucene.Expr
	seen := map[lucene.Expr]bool{}

	for _, hit := range t.FindField(field, nil) {
		term, ok := hit.(*lucene.Term)
		if !ok || term.Prefix == "-" || negated(term) {
			continue
		}

		group := facetGroup(hit, field)
		if seen[group] {
			continue
		}
		seen[group] = true

		groups = append(groups, group)
	}

	var anchors []lucene.Expr

	for i, g := range groups {
		if i+1 < len(groups) && chained(g, groups[i+1]) {
			continue
		}

		anchors = append(anchors, rightmost(g))
	}

	return anchors
}

// chained reports whether b directly follows a in the same OR chain.
func chained(a, b lucene.Expr) bool {
	p := a.Parent()
	if p == nil || p.Operator != lucene.OpOr || p.Unary() || p.Left != a {
		return false
	}

	for e := p.Right; ; {
		if e == b {
			return true
		}

		n, ok := e.(*lucene.Node)
		if !ok || n.Operator != lucene.OpOr || n.Unary() {
			return false
		}

		e = n.Left
	}
}

// facetGroup climbs from e while the parent is an OR of field terms only.
func facetGroup(e lucene.Expr, field string) lucene.Expr {
	for p := e.Parent(); p != nil; p = p.Parent() {
		if p.Operator != lucene.OpOr || p.Unary() || !onlyField(p, field) {
			break
		}
		e = p
	}

	return e
}

func onlyField(e lucene.Expr, field string) bool {
	ok := true

	lucene.Walk(e, func(x lucene.Expr) bool {
		switch x := x.(type) {
		case *lucene.Node:
			ok = x.Operator == lucene.OpOr && !x.Unary()
		case *lucene.Term:
			ok = x.Field == field && x.Prefix != "-"
		case *lucene.Range:
			ok = false
		}
		return ok
	})

	return ok
}

func rightmost(e lucene.Expr) lucene.Expr {
	for {
		n, ok := e.(*lucene.Node)
		if !ok || n.Right == nil {
			return e
		}
		e = n.Right
	}
}
