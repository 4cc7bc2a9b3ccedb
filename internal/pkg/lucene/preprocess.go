package lucene

import (
	"regexp"
	"strings"
)

var (
	// a quoted run or a run of non-space, non-quote characters;
	// \s is ASCII only, \p{Z} adds Unicode spaces such as NBSP
	wordRE = regexp.MustCompile(`[^\s\p{Z}"]+|"[^"]*"`)

	keywordRE = regexp.MustCompile(`(?i)^(and|or|not|to)$`)

	// URS0000000001/9606 is an accession with a taxid; '/' is reserved in the grammar
	accessionRE = regexp.MustCompile(`(?i)(URS[0-9A-F]{10})/(\d+)`)
)

// Preprocess normalizes raw user input before parsing: boolean keywords
// and TO are upper-cased, whitespace between tokens collapses to a single
// space, the space after a field separator is dropped and URS.../taxid
// accessions are rewritten to URS..._taxid.
//
// Tokens written back to back stay joined, so "a b"~2 keeps its modifier.
// Input without any token is returned unchanged.
func Preprocess(raw string) string {
	locs := wordRE.FindAllStringIndex(raw, -1)
	if len(locs) == 0 {
		return raw
	}

	var b strings.Builder
	for i, loc := range locs {
		if i > 0 && loc[0] > locs[i-1][1] {
			b.WriteByte(' ')
		}

		w := raw[loc[0]:loc[1]]
		if keywordRE.MatchString(w) {
			w = strings.ToUpper(w)
		}
		b.WriteString(w)
	}

	q := strings.ReplaceAll(b.String(), ": ", ":")
	q = accessionRE.ReplaceAllString(q, "${1}_${2}")

	return q
}
