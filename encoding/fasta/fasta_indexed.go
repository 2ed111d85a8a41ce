package fasta

import (
	"io"
	"sync"

	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// faiRow is one line of a .fai file.
type faiRow struct {
	Name      string
	Length    uint64
	Offset    uint64
	LineBases uint64
	LineWidth uint64
}

type indexedFasta struct {
	mu       sync.Mutex
	rows     map[string]faiRow
	seqNames []string
	in       io.ReadSeeker
	bufOff   int64
	buf      []byte // file contents starting at bufOff.
	out      []byte
}

func readIndex(index io.Reader) ([]faiRow, error) {
	r := tsv.NewReader(index)
	var rows []faiRow
	for {
		var row faiRow
		if err := r.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrap(err, "invalid index line")
		}
		if row.LineBases == 0 || row.LineWidth < row.LineBases {
			return nil, errors.Errorf("invalid line geometry for %s: %d bases, %d bytes",
				row.Name, row.LineBases, row.LineWidth)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// NewIndexed creates a Fasta that reads sequence from in on demand, using the
// .fai index read from index.
func NewIndexed(in io.ReadSeeker, index io.Reader) (Fasta, error) {
	rows, err := readIndex(index)
	if err != nil {
		return nil, err
	}
	f := &indexedFasta{rows: make(map[string]faiRow, len(rows)), in: in, bufOff: -1}
	for _, row := range rows {
		f.rows[row.Name] = row
		f.seqNames = append(f.seqNames, row.Name)
	}
	return f, nil
}

// Len implements Fasta.Len().
func (f *indexedFasta) Len(seqName string) (uint64, error) {
	row, ok := f.rows[seqName]
	if !ok {
		return 0, errors.Errorf("sequence not found in index: %s", seqName)
	}
	return row.Length, nil
}

// SeqNames implements Fasta.SeqNames().
func (f *indexedFasta) SeqNames() []string {
	return f.seqNames
}

// read returns bytes [off, off+n) of the underlying file.
func (f *indexedFasta) read(off int64, n int) ([]byte, error) {
	if f.bufOff < 0 || off < f.bufOff || off+int64(n) > f.bufOff+int64(len(f.buf)) {
		if _, err := f.in.Seek(off, io.SeekStart); err != nil {
			return nil, errors.Wrapf(err, "seek to %d", off)
		}
		size := 64 << 10
		if size < n {
			size = n
		}
		if cap(f.buf) < size {
			f.buf = make([]byte, size)
		}
		f.buf = f.buf[:size]
		nRead, err := io.ReadAtLeast(f.in, f.buf, n)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return nil, err
		}
		if nRead < n {
			return nil, errors.New("unexpected end of FASTA file (stale index?)")
		}
		f.bufOff = off
		f.buf = f.buf[:nRead]
	}
	return f.buf[off-f.bufOff : off-f.bufOff+int64(n)], nil
}

// Get implements Fasta.Get().
func (f *indexedFasta) Get(seqName string, start, end uint64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if end <= start {
		return "", errors.New("start must be less than end")
	}
	row, ok := f.rows[seqName]
	if !ok {
		return "", errors.Errorf("sequence not found in index: %s", seqName)
	}
	if end > row.Length {
		return "", errors.Errorf("end is past end of sequence %s: %d", seqName, row.Length)
	}
	// File offsets of the first and last requested bases, newlines included.
	first := row.Offset + (start/row.LineBases)*row.LineWidth + start%row.LineBases
	last := row.Offset + ((end-1)/row.LineBases)*row.LineWidth + (end-1)%row.LineBases
	raw, err := f.read(int64(first), int(last-first+1))
	if err != nil {
		return "", err
	}
	f.out = f.out[:0]
	col := start % row.LineBases
	for i := 0; i < len(raw); {
		n := int(row.LineBases - col)
		if n > len(raw)-i {
			n = len(raw) - i
		}
		f.out = append(f.out, raw[i:i+n]...)
		i += n + int(row.LineWidth-row.LineBases)
		col = 0
	}
	return string(f.out), nil
}
