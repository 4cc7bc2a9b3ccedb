package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWALReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")

	w, err := OpenWAL(path)
	require.NoError(t, err)
	defer w.Close()

	recs := []WALRecord{
		{Session: "a", Op: OpOpen, Query: "hotair", TS: 1},
		{Session: "a", Op: OpMutate, Query: `hotair AND expert_db:"HGNC"`, TS: 2},
		{Session: "a", Op: OpClose, TS: 3},
	}
	for _, r := range recs {
		require.NoError(t, w.Write(r))
	}

	got, err := w.Replay()
	require.NoError(t, err)
	assert.Equal(t, recs, got)

	// writes after a replay still append
	require.NoError(t, w.Write(WALRecord{Session: "b", Op: OpOpen, TS: 4}))
	got, err = w.Replay()
	require.NoError(t, err)
	assert.Len(t, got, 4)

	require.NoError(t, w.Reset())
	got, err = w.Replay()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWALTornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")

	w, err := OpenWAL(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(WALRecord{Session: "a", Op: OpOpen, Query: "x", TS: 1}))
	require.NoError(t, w.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0xff, 0x00, 0x00, 0x00, '{'})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	w, err = OpenWAL(path)
	require.NoError(t, err)
	defer w.Close()

	got, err := w.Replay()
	assert.Error(t, err)
	assert.Equal(t, []WALRecord{{Session: "a", Op: OpOpen, Query: "x", TS: 1}}, got)

	// the torn tail is gone, new records follow the good ones
	require.NoError(t, w.Write(WALRecord{Session: "b", Op: OpOpen, TS: 2}))

	got, err = w.Replay()
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
