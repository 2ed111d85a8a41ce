package fasta

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
)

// GenerateIndex writes a samtools-compatible .fai index for the FASTA data in
// in to out. All lines of one sequence except its last must have the same
// width.
func GenerateIndex(out io.Writer, in io.Reader) (err error) {
	var (
		w       = tsv.NewWriter(out)
		r       = bufio.NewReader(in)
		row     faiRow
		started bool
		short   bool // a line shorter than LineBases was seen.
		off     int64
	)
	emit := func() {
		if !started {
			return
		}
		w.WriteString(row.Name)
		w.WriteInt64(int64(row.Length))
		w.WriteInt64(int64(row.Offset))
		w.WriteInt64(int64(row.LineBases))
		w.WriteInt64(int64(row.LineWidth))
		if e := w.EndLine(); e != nil && err == nil {
			err = e
		}
	}
	for err == nil {
		line, e := r.ReadBytes('\n')
		if e != nil && e != io.EOF {
			return e
		}
		off += int64(len(line))
		bases := bytes.TrimRight(line, "\r\n")
		switch {
		case len(bases) == 0:
		case bases[0] == '>':
			emit()
			row = faiRow{Name: seqName(bases), Offset: uint64(off)}
			started, short = true, false
		case !started:
			return errors.E(errors.Invalid, "malformed FASTA file")
		default:
			if row.LineBases == 0 {
				row.LineBases = uint64(len(bases))
				row.LineWidth = uint64(len(line))
			} else if short || uint64(len(bases)) > row.LineBases {
				return errors.E(errors.Invalid, "uneven line lengths in sequence", row.Name)
			}
			if uint64(len(bases)) < row.LineBases {
				short = true
			}
			row.Length += uint64(len(bases))
		}
		if e == io.EOF {
			break
		}
	}
	if off == 0 {
		return errors.E(errors.Invalid, "empty FASTA file")
	}
	emit()
	if e := w.Flush(); e != nil && err == nil {
		err = e
	}
	return
}

// Open opens the FASTA file at path. When path.fai exists the file is read on
// demand; otherwise it is decompressed if needed and loaded in memory. The
// returned function releases the underlying file.
func Open(ctx context.Context, path string) (Fasta, func() error, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	closeIn := func() error { return in.Close(ctx) }
	if idx, err := file.Open(ctx, path+".fai"); err == nil {
		defer idx.Close(ctx) // nolint: errcheck
		fa, err := NewIndexed(in.Reader(ctx), idx.Reader(ctx))
		if err != nil {
			_ = closeIn()
			return nil, nil, errors.E(err, path)
		}
		log.Debug.Printf("%s: using index %s.fai", path, path)
		return fa, closeIn, nil
	}
	// NewReader consumes the head of its input to sniff the format, so the
	// returned reader must be used even for uncompressed data.
	r, _ := compress.NewReader(in.Reader(ctx))
	defer r.Close() // nolint: errcheck
	fa, err := New(r)
	if e := closeIn(); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return nil, nil, errors.E(err, path)
	}
	return fa, func() error { return nil }, nil
}
