package storage

import (
	"bytes"
	"encoding/binary"
	"os"

	"github.com/klauspost/compress/zstd"
	"tlog.app/go/errors"

	"github.com/coffersTech/facetql/internal/engine"
)

// MagicHeader starts every snapshot file.
var MagicHeader = []byte("FACETQL1")

// footer: rowCount u32, minLastSeen i64, maxLastSeen i64
const footerSize = 4 + 8 + 8

type ColumnWriter struct {
	encoder *zstd.Encoder
}

func NewColumnWriter() (*ColumnWriter, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	return &ColumnWriter{encoder: enc}, nil
}

// WriteSnapshot writes sessions to a snapshot file, one column per
// session attribute.
func (cw *ColumnWriter) WriteSnapshot(filename string, recs []engine.SessionRecord) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "create snapshot")
	}
	defer func() {
		e := f.Close()
		if err == nil && e != nil {
			err = errors.Wrap(e, "close snapshot")
		}
	}()

	if _, err := f.Write(MagicHeader); err != nil {
		return errors.Wrap(err, "write header")
	}

	ids := make([]string, len(recs))
	queries := make([]string, len(recs))
	created := make([]int64, len(recs))
	lastSeen := make([]int64, len(recs))

	var minSeen, maxSeen int64
	for i, r := range recs {
		ids[i] = r.ID
		queries[i] = r.Query
		created[i] = r.Created
		lastSeen[i] = r.LastSeen

		if i == 0 || r.LastSeen < minSeen {
			minSeen = r.LastSeen
		}
		if i == 0 || r.LastSeen > maxSeen {
			maxSeen = r.LastSeen
		}
	}

	if err := cw.writeStringCol(f, ids); err != nil {
		return errors.Wrap(err, "ids")
	}
	if err := cw.writeStringCol(f, queries); err != nil {
		return errors.Wrap(err, "queries")
	}
	if err := cw.writeInt64Col(f, created); err != nil {
		return errors.Wrap(err, "created")
	}
	if err := cw.writeInt64Col(f, lastSeen); err != nil {
		return errors.Wrap(err, "last seen")
	}

	if err := cw.writeFooter(f, uint32(len(recs)), minSeen, maxSeen); err != nil {
		return errors.Wrap(err, "write footer")
	}

	return f.Sync()
}

func (cw *ColumnWriter) writeInt64Col(f *os.File, data []int64) error {
	raw := make([]byte, 8*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint64(raw[8*i:], uint64(v))
	}
	return cw.compressAndWrite(f, raw)
}

func (cw *ColumnWriter) writeStringCol(f *os.File, data []string) error {
	buf := new(bytes.Buffer)
	// [Len uint32][Bytes]...
	var l [4]byte
	for _, s := range data {
		binary.LittleEndian.PutUint32(l[:], uint32(len(s)))
		buf.Write(l[:])
		buf.WriteString(s)
	}
	return cw.compressAndWrite(f, buf.Bytes())
}

func (cw *ColumnWriter) compressAndWrite(f *os.File, raw []byte) error {
	compressed := cw.encoder.EncodeAll(raw, make([]byte, 0, len(raw)))

	if err := binary.Write(f, binary.LittleEndian, uint32(len(compressed))); err != nil {
		return err
	}

	_, err := f.Write(compressed)
	return err
}

func (cw *ColumnWriter) writeFooter(f *os.File, rowCount uint32, minSeen, maxSeen int64) error {
	var b [footerSize]byte
	binary.LittleEndian.PutUint32(b[0:4], rowCount)
	binary.LittleEndian.PutUint64(b[4:12], uint64(minSeen))
	binary.LittleEndian.PutUint64(b[12:20], uint64(maxSeen))

	_, err := f.Write(b[:])
	return err
}
