package engine

import (
	"context"
	"time"

	"tlog.app/go/tlog"
)

// RunCleaner periodically removes sessions idle for longer than Retention.
func (qe *QueryEngine) RunCleaner(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	tlog.Printw("cleaner started", "retention", qe.Retention, "interval", interval)

	for {
		select {
		case <-ticker.C:
			if qe.Retention <= 0 {
				continue
			}
			qe.purgeExpiredSessions()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (qe *QueryEngine) purgeExpiredSessions() int {
	now := qe.now()
	threshold := now.Add(-qe.Retention).UnixNano()

	qe.mu.Lock()
	defer qe.mu.Unlock()

	n := 0
	for id, s := range qe.sessions {
		if s.LastSeen >= threshold {
			continue
		}

		delete(qe.sessions, id)
		qe.journal(WALRecord{Session: id, Op: OpExpire, TS: now.UnixNano()})
		n++
	}

	if n != 0 {
		tlog.Printw("expired sessions removed", "sessions", n)
	}

	return n
}
