package engine

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// Flush writes a snapshot of all sessions, persists the counters and
// truncates the WAL.
func (qe *QueryEngine) Flush() error {
	if qe.writerFunc == nil {
		return errors.New("no snapshot writer")
	}

	qe.mu.Lock()
	defer qe.mu.Unlock()

	p := qe.printer.Load()
	recs := make([]SessionRecord, 0, len(qe.sessions))
	for _, s := range qe.sessions {
		recs = append(recs, SessionRecord{
			ID:       s.ID,
			Query:    p.Unparse(s.tree.Root),
			Created:  s.Created,
			LastSeen: s.LastSeen,
		})
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Created != recs[j].Created {
			return recs[i].Created < recs[j].Created
		}
		return recs[i].ID < recs[j].ID
	})

	if err := os.MkdirAll(qe.dataDir, 0755); err != nil {
		return errors.Wrap(err, "data dir")
	}

	// === Step 1: Write snapshot next to the old one, then swap ===
	path := filepath.Join(qe.dataDir, SnapshotFileName)
	tmp := path + ".tmp"

	if err := qe.writerFunc(tmp, recs); err != nil {
		return errors.Wrap(err, "write snapshot")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "rename snapshot")
	}

	// === Step 2: Move pending counters to the persisted ones ===
	qe.statsLock.Lock()
	qe.globalStats.add(qe.pending)
	qe.pending = newPersistentStats()
	stats := newPersistentStats()
	stats.add(qe.globalStats)
	qe.statsLock.Unlock()

	if err := savePersistentStats(qe.dataDir, stats); err != nil {
		tlog.Printw("stats persist", "err", err, "", tlog.Error)
	}

	// === Step 3: Everything is in the snapshot now ===
	if qe.wal != nil {
		if err := qe.wal.Reset(); err != nil {
			tlog.Printw("wal reset", "err", err, "", tlog.Error)
		}
	}

	tlog.Printw("flushed sessions", "file", path, "sessions", len(recs))

	return nil
}

// RunFlusher flushes every interval until ctx is done.
func (qe *QueryEngine) RunFlusher(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := qe.Flush(); err != nil {
				tlog.Printw("flush", "err", err, "", tlog.Error)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop flushes the sessions and closes the WAL.
func (qe *QueryEngine) Stop() error {
	err := qe.Flush()

	if qe.wal != nil {
		if cerr := qe.wal.Close(); err == nil {
			err = cerr
		}
	}

	return err
}
