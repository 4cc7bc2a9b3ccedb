package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/facetql/internal/pkg/lucene"
)

func TestToggleFacet(t *testing.T) {
	tests := []struct {
		name  string
		query string
		field string
		value string
		added bool
		want  string
	}{
		{"first value", "hotair", "expert_db", "HGNC", true, `hotair AND expert_db:"HGNC"`},
		{"second value", `hotair AND expert_db:"HGNC"`, "expert_db", "ENA", true, `hotair AND (expert_db:"HGNC" OR expert_db:"ENA")`},
		{
			"third value",
			`hotair AND (expert_db:"HGNC" OR expert_db:"ENA")`,
			"expert_db", "RFAM", true,
			`hotair AND (expert_db:"HGNC" OR expert_db:"ENA" OR expert_db:"RFAM")`,
		},
		{
			"remove",
			`hotair AND (expert_db:"HGNC" OR expert_db:"ENA")`,
			"expert_db", "ena", false,
			`hotair AND expert_db:"HGNC"`,
		},
		{
			"independent groups",
			"(expert_db:A OR expert_db:B) AND foo AND expert_db:C",
			"expert_db", "D", true,
			`(expert_db:"A" OR expert_db:"B" OR expert_db:"D") AND foo AND (expert_db:"C" OR expert_db:"D")`,
		},
		{
			"mixed or",
			"expert_db:A OR foo",
			"expert_db", "B", true,
			`(expert_db:"A" OR expert_db:"B") OR foo`,
		},
		{
			"negated value",
			"foo AND NOT expert_db:A",
			"expert_db", "B", true,
			`(foo AND NOT expert_db:"A") AND expert_db:"B"`,
		},
		{
			"or chain with other terms",
			"expert_db:A OR expert_db:B OR foo",
			"expert_db", "C", true,
			`expert_db:"A" OR (expert_db:"B" OR expert_db:"C") OR foo`,
		},
		{
			"or chain broken by other term",
			"expert_db:A OR foo OR expert_db:B",
			"expert_db", "C", true,
			`(expert_db:"A" OR expert_db:"C") OR foo OR expert_db:"B" OR expert_db:"C"`,
		},
		{"empty query", "", "expert_db", "HGNC", true, `expert_db:"HGNC"`},
		{"only value", "expert_db:HGNC", "expert_db", "HGNC", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := lucene.NewTree(tt.query)
			require.NoError(t, err)

			added, err := ToggleFacet(tree, tt.field, tt.value)
			require.NoError(t, err)

			assert.Equal(t, tt.added, added)
			assert.Equal(t, tt.want, tree.String())
		})
	}
}

func TestAddFacetOnceInChain(t *testing.T) {
	tree, err := lucene.NewTree("expert_db:A OR expert_db:B OR expert_db:C OR foo")
	require.NoError(t, err)

	require.NoError(t, AddFacet(tree, "expert_db", "D"))

	var ds int
	for _, f := range ActiveFields(tree) {
		if f.Value == "D" {
			ds++
		}
	}
	assert.Equal(t, 1, ds, tree.String())

	added, err := ToggleFacet(tree, "expert_db", "D")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, `expert_db:"A" OR expert_db:"B" OR expert_db:"C" OR foo`, tree.String())
}

func TestToggleFacetTwice(t *testing.T) {
	tree, err := lucene.NewTree(`hotair AND expert_db:"HGNC"`)
	require.NoError(t, err)

	_, err = ToggleFacet(tree, "expert_db", "ENA")
	require.NoError(t, err)
	_, err = ToggleFacet(tree, "expert_db", "ENA")
	require.NoError(t, err)

	assert.Equal(t, `hotair AND expert_db:"HGNC"`, tree.String())
}

func TestSetRange(t *testing.T) {
	tree, err := lucene.NewTree("4V4Q")
	require.NoError(t, err)

	require.NoError(t, SetRange(tree, "length", "120", "1029"))
	assert.Equal(t, "4V4Q AND length:[120 TO 1029]", tree.String())

	require.NoError(t, SetRange(tree, "length", "200", "300"))
	assert.Equal(t, "4V4Q AND length:[200 TO 300]", tree.String())

	require.NoError(t, SetRange(tree, "length", "10", ""))
	assert.Equal(t, "4V4Q AND length:[10 TO *]", tree.String())

	require.NoError(t, SetRange(tree, "length", "", ""))
	assert.Equal(t, "4V4Q", tree.String())
}

func TestActiveFields(t *testing.T) {
	tree, err := lucene.NewTree(`hotair AND (expert_db:"HGNC" OR expert_db:ENA) AND NOT rna_type:rRNA AND length:[1 TO 2]`)
	require.NoError(t, err)

	assert.Equal(t, []FieldValue{
		{Field: "expert_db", Value: "HGNC"},
		{Field: "expert_db", Value: "ENA"},
		{Field: "rna_type", Value: "rRNA", Negated: true},
		{Field: "length", Min: "1", Max: "2", Range: true},
	}, ActiveFields(tree))

	assert.Equal(t, []FieldValue{}, ActiveFields(&lucene.Tree{}))
}
