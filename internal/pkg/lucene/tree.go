package lucene

import "strings"

// Tree is a parsed query owned by a single caller.
// A nil Root is the empty tree; it prints as "".
type Tree struct {
	Root Expr
}

// NewTree preprocesses and parses query.
// A query without any token gives the empty tree.
func NewTree(query string) (*Tree, error) {
	q := Preprocess(query)
	if strings.TrimSpace(q) == "" {
		return &Tree{}, nil
	}

	root, err := Parse(q)
	if err != nil {
		return nil, err
	}

	return &Tree{Root: root}, nil
}

// AttachParents sets the parent link of every expression under root.
// The root's parent is cleared. It works in place and returns root.
func AttachParents(root Expr) Expr {
	if isNil(root) {
		return root
	}

	root.setParent(nil)
	attach(root)

	return root
}

func attach(e Expr) {
	n, ok := e.(*Node)
	if !ok {
		return
	}

	for _, c := range [...]Expr{n.Left, n.Right} {
		if isNil(c) {
			continue
		}
		c.setParent(n)
		attach(c)
	}
}

// Empty reports whether the tree has no expression.
func (t *Tree) Empty() bool {
	return isNil(t.Root)
}

// String returns the canonical query text.
func (t *Tree) String() string {
	return Unparse(t.Root)
}

// contains reports whether e is reachable from the root by parent links.
func (t *Tree) contains(e Expr) bool {
	if isNil(e) || t.Empty() {
		return false
	}

	top := e
	for p := e.Parent(); p != nil; p = p.Parent() {
		top = p
	}

	return top == t.Root
}

// Walk calls fn for every expression in order: left subtree, node, right subtree.
// Walking stops when fn returns false.
func Walk(e Expr, fn func(Expr) bool) bool {
	switch x := e.(type) {
	case *Node:
		if x == nil {
			return true
		}
		if x.Left != nil && !Walk(x.Left, fn) {
			return false
		}
		if !fn(x) {
			return false
		}
		if x.Right != nil && !Walk(x.Right, fn) {
			return false
		}
		return true
	case *Term:
		if x == nil {
			return true
		}
		return fn(x)
	case *Range:
		if x == nil {
			return true
		}
		return fn(x)
	}

	return true
}
