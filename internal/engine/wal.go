package engine

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"sync"

	"tlog.app/go/errors"
)

// WAL operations.
const (
	OpOpen   = "open"
	OpSearch = "search"
	OpMutate = "mutate"
	OpClose  = "close"
	OpExpire = "expire"
)

// WALRecord is one session state change.
// Query is the canonical query after the change.
type WALRecord struct {
	Session string `json:"session"`
	Op      string `json:"op"`
	Query   string `json:"query,omitempty"`
	TS      int64  `json:"ts"`
}

// WAL handles write-ahead logging so session changes survive crashes
// between snapshots.
type WAL struct {
	file *os.File
	path string
	mu   sync.Mutex
}

// OpenWAL opens or creates a WAL file at the specified path.
func OpenWAL(path string) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "open wal")
	}
	return &WAL{
		file: f,
		path: path,
	}, nil
}

// Write appends a record and syncs it to disk.
func (w *WAL) Write(rec WALRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal record")
	}

	// Format: [Len uint32][JSON Bytes]
	buf := make([]byte, 4, 4+len(data))
	binary.LittleEndian.PutUint32(buf, uint32(len(data)))
	buf = append(buf, data...)

	if _, err := w.file.Write(buf); err != nil {
		return errors.Wrap(err, "write")
	}

	return w.file.Sync()
}

// Reset truncates the WAL file.
func (w *WAL) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Truncate(0); err != nil {
		return errors.Wrap(err, "truncate")
	}
	_, err := w.file.Seek(0, io.SeekStart)
	return err
}

// Close closes the WAL file.
func (w *WAL) Close() error {
	return w.file.Close()
}

// Replay reads the WAL and returns all records.
// A torn record at the end is cut off so later writes stay readable;
// the records before it are returned along with the error.
func (w *WAL) Replay() (recs []WALRecord, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "seek")
	}
	defer w.file.Seek(0, io.SeekEnd) //nolint:errcheck

	var good int64

	defer func() {
		if err == nil {
			return
		}
		if e := w.file.Truncate(good); e != nil {
			err = errors.Wrap(e, "truncate torn tail")
		}
	}()

	lenBuf := make([]byte, 4)
	for {
		_, err := io.ReadFull(w.file, lenBuf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return recs, errors.Wrap(err, "wal replay (len)")
		}

		length := binary.LittleEndian.Uint32(lenBuf)
		data := make([]byte, length)
		if _, err := io.ReadFull(w.file, data); err != nil {
			return recs, errors.Wrap(err, "wal replay (data)")
		}

		var rec WALRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return recs, errors.Wrap(err, "wal replay (unmarshal)")
		}
		recs = append(recs, rec)

		good += 4 + int64(length)
	}

	return recs, nil
}
