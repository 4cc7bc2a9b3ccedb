package lucene

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreprocess(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"foo and bar:baz", "foo AND bar:baz"},
		{"not foo and bar:baz", "NOT foo AND bar:baz"},
		{"a Or b", "a OR b"},
		{"length:[1 to 5]", "length:[1 TO 5]"},
		{"  foo    bar  ", "foo bar"},
		{"expert_db: HGNC", "expert_db:HGNC"},
		{`"and or" and x`, `"and or" AND x`},
		{"android", "android"},
		{"URS0000000001/9606", "URS0000000001_9606"},
		{"urs00000A0B1C/562 AND foo", "urs00000A0B1C_562 AND foo"},
		{"URS0000000001", "URS0000000001"},
		{`"a b"~3  and  x`, `"a b"~3 AND x`},
		{`doi:"10.1093/nar"`, `doi:"10.1093/nar"`},
		{`a"b`, "a b"},
		{"", ""},
		{"   ", "   "},
		{"foo\u00a0bar", "foo bar"},
		{"a\u2003and\u3000b", "a AND b"},
		{"\u00a0foo\u00a0", "foo"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.out, Preprocess(tt.in))
		})
	}
}

func TestPreprocessIdempotent(t *testing.T) {
	for _, q := range []string{
		"foo and bar:baz",
		"a:  : b",
		`"x"y and z`,
		"URS0000000001/9606 or not rna_type: rRNA",
		`"unbalanced and`,
		"\tTaxonomy:9606\n",
	} {
		once := Preprocess(q)
		assert.Equal(t, once, Preprocess(once), "input %q", q)
	}
}
