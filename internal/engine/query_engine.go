package engine

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/coffersTech/facetql/internal/pkg/lucene"
)

// SnapshotReaderFunc reads the sessions of a snapshot file.
// A missing file gives no sessions and no error.
type SnapshotReaderFunc func(path string) ([]SessionRecord, error)

// SnapshotWriterFunc writes sessions to a snapshot file.
type SnapshotWriterFunc func(path string, recs []SessionRecord) error

const (
	walFileName = "wal.log"

	// SnapshotFileName is the snapshot file inside the data directory.
	SnapshotFileName = "sessions.snap"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyQuery      = errors.New("empty query")
)

// QueryEngine owns the search sessions and their query trees.
type QueryEngine struct {
	dataDir    string
	readerFunc SnapshotReaderFunc
	writerFunc SnapshotWriterFunc

	// Retention is how long an idle session is kept.
	Retention time.Duration

	// fallback replaces unparsable queries with a single quoted term.
	fallback atomic.Bool

	// mu protects the sessions map. Mutations hold it for reading,
	// Flush and the cleaner for writing.
	mu       sync.RWMutex
	sessions map[string]*Session

	printer atomic.Pointer[lucene.Printer]

	// Persistent Stats
	globalStats PersistentStats
	pending     PersistentStats // not flushed yet
	statsLock   sync.RWMutex

	// WAL for crash recovery
	wal *WAL

	now func() time.Time
}

// NewQueryEngine creates a QueryEngine, restoring sessions from the last
// snapshot and the WAL.
func NewQueryEngine(dataDir string, readerFunc SnapshotReaderFunc, writerFunc SnapshotWriterFunc, retention time.Duration) *QueryEngine {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		tlog.Printw("create data dir", "dir", dataDir, "err", err, "", tlog.Error)
	}

	wal, err := OpenWAL(filepath.Join(dataDir, walFileName))
	if err != nil {
		tlog.Printw("open wal", "err", err, "", tlog.Error)
	}

	qe := &QueryEngine{
		dataDir:     dataDir,
		readerFunc:  readerFunc,
		writerFunc:  writerFunc,
		Retention:   retention,
		sessions:    make(map[string]*Session),
		globalStats: loadPersistentStats(dataDir),
		pending:     newPersistentStats(),
		wal:         wal,
		now:         time.Now,
	}
	qe.printer.Store(lucene.NewPrinter(lucene.DefaultUpperCaseFields...))
	qe.fallback.Store(true)

	qe.recover()

	return qe
}

func (qe *QueryEngine) recover() {
	if qe.readerFunc != nil {
		path := filepath.Join(qe.dataDir, SnapshotFileName)

		recs, err := qe.readerFunc(path)
		if err != nil {
			tlog.Printw("read snapshot", "file", path, "err", err, "", tlog.Error)
		}

		for _, r := range recs {
			qe.restore(r.ID, r.Query, r.Created, r.LastSeen)
		}

		if len(recs) != 0 {
			tlog.Printw("sessions restored", "sessions", len(recs))
		}
	}

	if qe.wal == nil {
		return
	}

	recs, err := qe.wal.Replay()
	if err != nil {
		tlog.Printw("wal replay", "err", err, "", tlog.Error)
	}
	if len(recs) == 0 {
		return
	}

	tlog.Printw("crash recovery: replaying wal", "records", len(recs))

	for _, r := range recs {
		switch r.Op {
		case OpOpen, OpSearch, OpMutate:
			created := r.TS
			if s, ok := qe.sessions[r.Session]; ok {
				created = s.Created
			}
			qe.restore(r.Session, r.Query, created, r.TS)
		case OpClose, OpExpire:
			delete(qe.sessions, r.Session)
		}
	}
}

func (qe *QueryEngine) restore(id, query string, created, lastSeen int64) {
	tree, fallback, err := ParseQuery(query, true)
	if err != nil {
		tree = &lucene.Tree{}
	}

	qe.sessions[id] = &Session{
		ID:       id,
		Created:  created,
		LastSeen: lastSeen,
		tree:     tree,
		fallback: fallback,
	}
}

// SetUpperCaseFields sets the fields whose values are printed upper-cased.
func (qe *QueryEngine) SetUpperCaseFields(fields []string) {
	qe.printer.Store(lucene.NewPrinter(fields...))
}

// SetFallback sets whether unparsable queries fall back to a single
// quoted term instead of failing.
func (qe *QueryEngine) SetFallback(on bool) {
	qe.fallback.Store(on)
}

// Printer returns the printer used for canonical queries.
func (qe *QueryEngine) Printer() *lucene.Printer {
	return qe.printer.Load()
}

// Normalize returns the canonical form of raw without keeping a session.
// Parse errors are returned as is.
func (qe *QueryEngine) Normalize(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrEmptyQuery
	}

	tree, err := lucene.NewTree(raw)
	if err != nil {
		return "", err
	}

	return qe.printer.Load().Unparse(tree.Root), nil
}

// Open starts a session with raw as its current query.
// An empty query opens an empty session.
func (qe *QueryEngine) Open(raw string) (State, error) {
	tree, fallback, err := ParseQuery(raw, qe.fallback.Load())
	if err != nil {
		return State{}, errors.Wrap(err, "parse query")
	}

	now := qe.now().UnixNano()
	s := &Session{
		ID:       uuid.NewString(),
		Created:  now,
		LastSeen: now,
		tree:     tree,
		fallback: fallback,
	}

	qe.mu.Lock()
	qe.sessions[s.ID] = s
	st := s.state(qe.printer.Load())
	qe.journal(WALRecord{Session: s.ID, Op: OpOpen, Query: st.Query, TS: now})
	qe.mu.Unlock()

	qe.count(func(ps *PersistentStats) {
		ps.TotalSessions++
		if !tree.Empty() {
			ps.TotalSearches++
		}
		if fallback {
			ps.FallbackCount++
		}
	})

	tlog.Printw("session opened", "session", s.ID, "query", st.Query, "fallback", fallback)

	return st, nil
}

// Get returns the current state of a session.
func (qe *QueryEngine) Get(id string) (State, error) {
	return qe.withSession(id, "", func(*Session) error { return nil })
}

// Fields lists the explicit-field criteria of a session's query.
func (qe *QueryEngine) Fields(id string) ([]FieldValue, error) {
	st, err := qe.Get(id)
	if err != nil {
		return nil, err
	}

	return st.Fields, nil
}

// Search replaces the current query of a session.
func (qe *QueryEngine) Search(id, raw string) (State, error) {
	tree, fallback, err := ParseQuery(raw, qe.fallback.Load())
	if err != nil {
		return State{}, errors.Wrap(err, "parse query")
	}

	st, err := qe.withSession(id, OpSearch, func(s *Session) error {
		s.tree = tree
		s.fallback = fallback
		return nil
	})
	if err != nil {
		return st, err
	}

	qe.count(func(ps *PersistentStats) {
		if !tree.Empty() {
			ps.TotalSearches++
		}
		if fallback {
			ps.FallbackCount++
		}
	})

	return st, nil
}

// ToggleFacet adds or removes field:value in a session's query.
func (qe *QueryEngine) ToggleFacet(id, field, value string) (State, error) {
	if field == "" || value == "" {
		return State{}, errors.Wrap(lucene.ErrInvalidArgument, "facet needs a field and a value")
	}

	return qe.mutate(id, field, func(t *lucene.Tree) error {
		_, err := ToggleFacet(t, field, value)
		return err
	})
}

// SetRange replaces the criteria on field with an inclusive range.
func (qe *QueryEngine) SetRange(id, field, lo, hi string) (State, error) {
	if field == "" {
		return State{}, errors.Wrap(lucene.ErrInvalidArgument, "range needs a field")
	}

	return qe.mutate(id, field, func(t *lucene.Tree) error {
		return SetRange(t, field, lo, hi)
	})
}

// ClearField removes every criterion on field.
func (qe *QueryEngine) ClearField(id, field string) (State, error) {
	return qe.mutate(id, field, func(t *lucene.Tree) error {
		t.RemoveField(field, nil)
		return nil
	})
}

// Close ends a session.
func (qe *QueryEngine) Close(id string) error {
	qe.mu.Lock()
	defer qe.mu.Unlock()

	if _, ok := qe.sessions[id]; !ok {
		return errors.Wrap(ErrSessionNotFound, "session %v", id)
	}

	delete(qe.sessions, id)
	qe.journal(WALRecord{Session: id, Op: OpClose, TS: qe.now().UnixNano()})

	return nil
}

func (qe *QueryEngine) mutate(id, field string, fn func(t *lucene.Tree) error) (State, error) {
	st, err := qe.withSession(id, OpMutate, func(s *Session) error {
		return fn(s.tree)
	})
	if err != nil {
		return st, err
	}

	qe.count(func(ps *PersistentStats) {
		ps.TotalMutations++
		ps.FieldCounts[field]++
	})

	return st, nil
}

// withSession runs fn with the session locked. A non-empty op is
// journaled with the resulting query.
func (qe *QueryEngine) withSession(id, op string, fn func(s *Session) error) (State, error) {
	qe.mu.RLock()
	defer qe.mu.RUnlock()

	s, ok := qe.sessions[id]
	if !ok {
		return State{}, errors.Wrap(ErrSessionNotFound, "session %v", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(s); err != nil {
		return State{}, err
	}

	s.LastSeen = qe.now().UnixNano()
	st := s.state(qe.printer.Load())

	if op != "" {
		qe.journal(WALRecord{Session: id, Op: op, Query: st.Query, TS: s.LastSeen})
	}

	return st, nil
}

func (qe *QueryEngine) journal(rec WALRecord) {
	if qe.wal == nil {
		return
	}

	if err := qe.wal.Write(rec); err != nil {
		tlog.Printw("wal write", "session", rec.Session, "op", rec.Op, "err", err, "", tlog.Error)
	}
}
