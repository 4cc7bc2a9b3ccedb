package engine

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/facetql/internal/pkg/lucene"
)

func writeJSONSnapshot(path string, recs []SessionRecord) error {
	data, err := json.Marshal(recs)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func readJSONSnapshot(path string) ([]SessionRecord, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var recs []SessionRecord
	return recs, json.Unmarshal(data, &recs)
}

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestEngine(t *testing.T, dir string) (*QueryEngine, *testClock) {
	t.Helper()

	qe := NewQueryEngine(dir, readJSONSnapshot, writeJSONSnapshot, time.Hour)
	t.Cleanup(func() {
		if qe.wal != nil {
			qe.wal.Close()
		}
	})

	clock := &testClock{t: time.Unix(1700000000, 0)}
	qe.now = clock.now

	return qe, clock
}

func TestSessionLifecycle(t *testing.T) {
	qe, _ := newTestEngine(t, t.TempDir())

	st, err := qe.Open("hotair and expert_db: HGNC")
	require.NoError(t, err)
	require.NotEmpty(t, st.ID)
	assert.Equal(t, `hotair AND expert_db:"HGNC"`, st.Query)
	assert.False(t, st.Fallback)

	st, err = qe.ToggleFacet(st.ID, "expert_db", "ENA")
	require.NoError(t, err)
	assert.Equal(t, `hotair AND (expert_db:"HGNC" OR expert_db:"ENA")`, st.Query)

	st, err = qe.SetRange(st.ID, "length", "120", "1029")
	require.NoError(t, err)
	assert.Equal(t, `(hotair AND (expert_db:"HGNC" OR expert_db:"ENA")) AND length:[120 TO 1029]`, st.Query)

	fields, err := qe.Fields(st.ID)
	require.NoError(t, err)
	assert.Len(t, fields, 3)

	st, err = qe.ClearField(st.ID, "expert_db")
	require.NoError(t, err)
	assert.Equal(t, "hotair AND length:[120 TO 1029]", st.Query)

	st, err = qe.Search(st.ID, "4V4Q")
	require.NoError(t, err)
	assert.Equal(t, "4V4Q", st.Query)

	got, err := qe.Get(st.ID)
	require.NoError(t, err)
	assert.Equal(t, st.Query, got.Query)

	require.NoError(t, qe.Close(st.ID))

	_, err = qe.Get(st.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, qe.Close(st.ID), ErrSessionNotFound)
}

func TestOpenEmpty(t *testing.T) {
	qe, _ := newTestEngine(t, t.TempDir())

	st, err := qe.Open("   ")
	require.NoError(t, err)
	assert.Equal(t, "", st.Query)
	assert.Empty(t, st.Fields)

	st, err = qe.ToggleFacet(st.ID, "expert_db", "RFAM")
	require.NoError(t, err)
	assert.Equal(t, `expert_db:"RFAM"`, st.Query)
}

func TestFallback(t *testing.T) {
	qe, _ := newTestEngine(t, t.TempDir())

	st, err := qe.Open(`foo AND ("bar"`)
	require.NoError(t, err)
	assert.True(t, st.Fallback)
	assert.Equal(t, `"foo AND (bar"`, st.Query)

	st, err = qe.Search(st.ID, "foo")
	require.NoError(t, err)
	assert.False(t, st.Fallback)

	qe.SetFallback(false)

	_, err = qe.Open("a/b")
	assert.ErrorIs(t, err, lucene.ErrSyntax)

	_, err = qe.Search(st.ID, "(a")
	assert.ErrorIs(t, err, lucene.ErrSyntax)
}

func TestStopWordTo(t *testing.T) {
	qe, _ := newTestEngine(t, t.TempDir())
	qe.SetFallback(false)

	st, err := qe.Open("resistance to antibiotics")
	require.NoError(t, err)
	assert.False(t, st.Fallback)
	assert.Equal(t, `resistance AND "TO" AND antibiotics`, st.Query)

	q, err := qe.Normalize("how to cook")
	require.NoError(t, err)
	assert.Equal(t, `how AND "TO" AND cook`, q)
}

func TestNormalize(t *testing.T) {
	qe, _ := newTestEngine(t, t.TempDir())

	q, err := qe.Normalize("foo and bar:baz")
	require.NoError(t, err)
	assert.Equal(t, `foo AND bar:"baz"`, q)

	_, err = qe.Normalize(" ")
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = qe.Normalize("a/b")
	assert.ErrorIs(t, err, lucene.ErrSyntax)
}

func TestInvalidMutations(t *testing.T) {
	qe, _ := newTestEngine(t, t.TempDir())

	st, err := qe.Open("foo")
	require.NoError(t, err)

	_, err = qe.ToggleFacet(st.ID, "", "x")
	assert.ErrorIs(t, err, lucene.ErrInvalidArgument)

	_, err = qe.SetRange(st.ID, "", "1", "2")
	assert.ErrorIs(t, err, lucene.ErrInvalidArgument)

	_, err = qe.ToggleFacet("missing", "expert_db", "x")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSetUpperCaseFields(t *testing.T) {
	qe, _ := newTestEngine(t, t.TempDir())

	st, err := qe.Open("gene:hotair pubmed:abc")
	require.NoError(t, err)
	assert.Equal(t, `gene:"hotair" AND pubmed:"ABC"`, st.Query)

	qe.SetUpperCaseFields([]string{"gene"})

	st, err = qe.Get(st.ID)
	require.NoError(t, err)
	assert.Equal(t, `gene:"HOTAIR" AND pubmed:"abc"`, st.Query)
}

func TestRecoverFromWAL(t *testing.T) {
	dir := t.TempDir()
	qe, _ := newTestEngine(t, dir)

	a, err := qe.Open("hotair")
	require.NoError(t, err)
	_, err = qe.ToggleFacet(a.ID, "expert_db", "HGNC")
	require.NoError(t, err)

	b, err := qe.Open("foo")
	require.NoError(t, err)
	require.NoError(t, qe.Close(b.ID))

	require.NoError(t, qe.wal.Close())
	qe.wal = nil

	qe2, _ := newTestEngine(t, dir)

	st, err := qe2.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, `hotair AND expert_db:"HGNC"`, st.Query)
	assert.Equal(t, a.Created, st.Created)

	_, err = qe2.Get(b.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestFlushAndRestore(t *testing.T) {
	dir := t.TempDir()
	qe, _ := newTestEngine(t, dir)

	a, err := qe.Open("hotair AND length:[1 TO 5]")
	require.NoError(t, err)
	_, err = qe.ToggleFacet(a.ID, "expert_db", "RFAM")
	require.NoError(t, err)

	require.NoError(t, qe.Flush())

	assert.FileExists(t, filepath.Join(dir, SnapshotFileName))
	assert.FileExists(t, filepath.Join(dir, statsFileName))

	recs, err := qe.wal.Replay()
	require.NoError(t, err)
	assert.Empty(t, recs)

	require.NoError(t, qe.Stop())
	qe.wal = nil

	qe2, _ := newTestEngine(t, dir)

	st, err := qe2.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, `(hotair AND length:[1 TO 5]) AND expert_db:"RFAM"`, st.Query)

	stats := qe2.GetStats()
	assert.Equal(t, 1, stats.ActiveSessions)
	assert.EqualValues(t, 1, stats.TotalSessions)
	assert.EqualValues(t, 1, stats.TotalMutations)
	assert.EqualValues(t, 1, stats.TopFields["expert_db"])
}

func TestCleaner(t *testing.T) {
	qe, clock := newTestEngine(t, t.TempDir())

	old, err := qe.Open("old")
	require.NoError(t, err)

	clock.advance(50 * time.Minute)

	fresh, err := qe.Open("fresh")
	require.NoError(t, err)

	clock.advance(20 * time.Minute)

	assert.Equal(t, 1, qe.purgeExpiredSessions())

	_, err = qe.Get(old.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = qe.Get(fresh.ID)
	assert.NoError(t, err)
}

func TestGetStats(t *testing.T) {
	qe, _ := newTestEngine(t, t.TempDir())

	st, err := qe.Open("hotair")
	require.NoError(t, err)

	_, err = qe.ToggleFacet(st.ID, "expert_db", "HGNC")
	require.NoError(t, err)
	_, err = qe.ToggleFacet(st.ID, "expert_db", "ENA")
	require.NoError(t, err)
	_, err = qe.SetRange(st.ID, "length", "1", "2")
	require.NoError(t, err)
	_, err = qe.Search(st.ID, `"unclosed (`)
	require.NoError(t, err)

	stats := qe.GetStats()
	assert.Equal(t, 1, stats.ActiveSessions)
	assert.EqualValues(t, 1, stats.TotalSessions)
	assert.EqualValues(t, 2, stats.TotalSearches)
	assert.EqualValues(t, 3, stats.TotalMutations)
	assert.EqualValues(t, 1, stats.FallbackCount)
	assert.Equal(t, map[string]int64{"expert_db": 2, "length": 1}, stats.TopFields)
}
