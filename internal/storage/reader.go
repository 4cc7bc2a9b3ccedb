package storage

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"tlog.app/go/errors"

	"github.com/coffersTech/facetql/internal/engine"
)

var (
	ErrInvalidHeader = errors.New("invalid snapshot header")
	ErrCorrupt       = errors.New("corrupt snapshot")
)

type ColumnReader struct {
	decoder *zstd.Decoder
}

func NewColumnReader() (*ColumnReader, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &ColumnReader{decoder: dec}, nil
}

// Info is the footer of a snapshot file.
type Info struct {
	Sessions    int
	MinLastSeen int64
	MaxLastSeen int64
}

// Stat reads the footer of a snapshot without decoding its columns.
func (cr *ColumnReader) Stat(filename string) (Info, error) {
	f, err := os.Open(filename)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	_, info, err := cr.open(f)
	return info, err
}

// ReadSnapshot reads all sessions of a snapshot file.
// A missing file holds no sessions.
func (cr *ColumnReader) ReadSnapshot(filename string) ([]engine.SessionRecord, error) {
	f, err := os.Open(filename)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "open snapshot")
	}
	defer f.Close()

	end, info, err := cr.open(f)
	if err != nil {
		return nil, err
	}

	r := io.NewSectionReader(f, int64(len(MagicHeader)), end-int64(len(MagicHeader)))

	ids, err := cr.readStringCol(r)
	if err != nil {
		return nil, errors.Wrap(err, "ids")
	}
	queries, err := cr.readStringCol(r)
	if err != nil {
		return nil, errors.Wrap(err, "queries")
	}
	created, err := cr.readInt64Col(r)
	if err != nil {
		return nil, errors.Wrap(err, "created")
	}
	lastSeen, err := cr.readInt64Col(r)
	if err != nil {
		return nil, errors.Wrap(err, "last seen")
	}

	n := info.Sessions
	if len(ids) != n || len(queries) != n || len(created) != n || len(lastSeen) != n {
		return nil, errors.Wrap(ErrCorrupt, "column length mismatch")
	}

	if n == 0 {
		return nil, nil
	}

	recs := make([]engine.SessionRecord, n)
	for i := range recs {
		recs[i] = engine.SessionRecord{
			ID:       ids[i],
			Query:    queries[i],
			Created:  created[i],
			LastSeen: lastSeen[i],
		}
	}

	return recs, nil
}

// open validates the header and reads the footer. It returns the offset
// where the footer starts.
func (cr *ColumnReader) open(f *os.File) (int64, Info, error) {
	header := make([]byte, len(MagicHeader))
	if _, err := io.ReadFull(f, header); err != nil {
		return 0, Info{}, ErrInvalidHeader
	}
	if !bytes.Equal(header, MagicHeader) {
		return 0, Info{}, ErrInvalidHeader
	}

	st, err := f.Stat()
	if err != nil {
		return 0, Info{}, err
	}
	if st.Size() < int64(len(MagicHeader)+footerSize) {
		return 0, Info{}, errors.Wrap(ErrCorrupt, "file too small")
	}

	end := st.Size() - footerSize

	footer := make([]byte, footerSize)
	if _, err := f.ReadAt(footer, end); err != nil {
		return 0, Info{}, err
	}

	info := Info{
		Sessions:    int(binary.LittleEndian.Uint32(footer[0:4])),
		MinLastSeen: int64(binary.LittleEndian.Uint64(footer[4:12])),
		MaxLastSeen: int64(binary.LittleEndian.Uint64(footer[12:20])),
	}

	return end, info, nil
}

// readAndDecompress reads a compressed block (size + data) and decompresses it.
// The size is checked against what is left of the section before allocating.
func (cr *ColumnReader) readAndDecompress(r *io.SectionReader) ([]byte, error) {
	var size uint32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, errors.Wrap(ErrCorrupt, "block size: %v", err)
	}

	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, errors.Wrap(err, "block offset")
	}
	if int64(size) > r.Size()-pos {
		return nil, errors.Wrap(ErrCorrupt, "block of %d bytes, %d left", size, r.Size()-pos)
	}

	compressed := make([]byte, size)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, errors.Wrap(ErrCorrupt, "block: %v", err)
	}

	decompressed, err := cr.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, errors.Wrap(ErrCorrupt, "decompress: %v", err)
	}

	return decompressed, nil
}

func (cr *ColumnReader) readInt64Col(r *io.SectionReader) ([]int64, error) {
	data, err := cr.readAndDecompress(r)
	if err != nil {
		return nil, err
	}
	if len(data)%8 != 0 {
		return nil, errors.Wrap(ErrCorrupt, "int64 column of %d bytes", len(data))
	}

	result := make([]int64, len(data)/8)
	for i := range result {
		result[i] = int64(binary.LittleEndian.Uint64(data[8*i:]))
	}
	return result, nil
}

// Format: [Len uint32][Bytes]...
func (cr *ColumnReader) readStringCol(r *io.SectionReader) ([]string, error) {
	data, err := cr.readAndDecompress(r)
	if err != nil {
		return nil, err
	}

	var result []string
	for len(data) > 0 {
		if len(data) < 4 {
			return nil, errors.Wrap(ErrCorrupt, "truncated string length")
		}
		l := binary.LittleEndian.Uint32(data)
		data = data[4:]
		if uint64(l) > uint64(len(data)) {
			return nil, errors.Wrap(ErrCorrupt, "truncated string")
		}
		result = append(result, string(data[:l]))
		data = data[l:]
	}
	return result, nil
}
