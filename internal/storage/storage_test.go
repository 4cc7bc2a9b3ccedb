package storage

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/facetql/internal/engine"
)

func newRW(t *testing.T) (*ColumnWriter, *ColumnReader) {
	t.Helper()

	w, err := NewColumnWriter()
	require.NoError(t, err)
	r, err := NewColumnReader()
	require.NoError(t, err)

	return w, r
}

func TestSnapshot(t *testing.T) {
	w, r := newRW(t)
	path := filepath.Join(t.TempDir(), "sessions.snap")

	recs := []engine.SessionRecord{
		{ID: "a", Query: `hotair AND expert_db:"HGNC"`, Created: 10, LastSeen: 30},
		{ID: "b", Query: "", Created: 20, LastSeen: 20},
		{ID: "c", Query: `"foo AND (bar"`, Created: 5, LastSeen: 50},
	}

	require.NoError(t, w.WriteSnapshot(path, recs))

	got, err := r.ReadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, recs, got)

	info, err := r.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, Info{Sessions: 3, MinLastSeen: 20, MaxLastSeen: 50}, info)
}

func TestSnapshotEmpty(t *testing.T) {
	w, r := newRW(t)
	path := filepath.Join(t.TempDir(), "sessions.snap")

	require.NoError(t, w.WriteSnapshot(path, nil))

	got, err := r.ReadSnapshot(path)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = r.ReadSnapshot(filepath.Join(t.TempDir(), "missing.snap"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSnapshotInvalid(t *testing.T) {
	w, r := newRW(t)
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.snap")
	require.NoError(t, os.WriteFile(bad, []byte("NANOLOG1xxxxxxxxxxxxxxxxxxxxxxxxx"), 0644))

	_, err := r.ReadSnapshot(bad)
	assert.ErrorIs(t, err, ErrInvalidHeader)

	short := filepath.Join(dir, "short.snap")
	require.NoError(t, os.WriteFile(short, []byte("FACETQL1abc"), 0644))

	_, err = r.ReadSnapshot(short)
	assert.ErrorIs(t, err, ErrCorrupt)

	path := filepath.Join(dir, "sessions.snap")
	require.NoError(t, w.WriteSnapshot(path, []engine.SessionRecord{{ID: "a", Query: "x", Created: 1, LastSeen: 2}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// drop a byte from the first column block
	torn := append(append([]byte{}, data[:len(MagicHeader)+6]...), data[len(MagicHeader)+7:]...)
	require.NoError(t, os.WriteFile(path, torn, 0644))

	_, err = r.ReadSnapshot(path)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestSnapshotHugeBlock(t *testing.T) {
	w, r := newRW(t)
	path := filepath.Join(t.TempDir(), "sessions.snap")

	require.NoError(t, w.WriteSnapshot(path, []engine.SessionRecord{{ID: "a", Query: "x", Created: 1, LastSeen: 2}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	binary.LittleEndian.PutUint32(data[len(MagicHeader):], 0xffffffff)
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = r.ReadSnapshot(path)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestSnapshotEngine(t *testing.T) {
	w, r := newRW(t)
	dir := t.TempDir()

	qe := engine.NewQueryEngine(dir, r.ReadSnapshot, w.WriteSnapshot, 0)

	st, err := qe.Open("hotair")
	require.NoError(t, err)
	_, err = qe.ToggleFacet(st.ID, "expert_db", "ENA")
	require.NoError(t, err)

	require.NoError(t, qe.Stop())

	qe = engine.NewQueryEngine(dir, r.ReadSnapshot, w.WriteSnapshot, 0)
	defer qe.Stop()

	got, err := qe.Get(st.ID)
	require.NoError(t, err)
	assert.Equal(t, `hotair AND expert_db:"ENA"`, got.Query)
}
