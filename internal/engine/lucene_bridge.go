package engine

import (
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/coffersTech/facetql/internal/pkg/lucene"
)

// ParseQuery builds the tree for raw user input.
//
// With fallback set, a query that fails to parse becomes a single quoted
// implicit term made of the input without its double quotes, and the
// second result is true.
func ParseQuery(raw string, fallback bool) (*lucene.Tree, bool, error) {
	tree, err := lucene.NewTree(raw)
	if err == nil {
		return tree, false, nil
	}

	if !fallback || !errors.Is(err, lucene.ErrSyntax) {
		return nil, false, err
	}

	tlog.Printw("query fallback", "query", raw, "err", err)

	return FallbackTree(raw), true, nil
}

// FallbackTree is the safe replacement for an unparsable query.
func FallbackTree(raw string) *lucene.Tree {
	text := strings.Join(strings.Fields(strings.ReplaceAll(raw, `"`, "")), " ")
	if text == "" {
		return &lucene.Tree{}
	}

	return &lucene.Tree{Root: &lucene.Term{Field: lucene.Implicit, Term: text, Quoted: true}}
}
