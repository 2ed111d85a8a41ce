package retro

// This file defines EvidenceWriter and EvidenceReader. EvidenceWriter dumps
// the evidence of each sample into a recordio file, with the options and the
// gene models in the trailer. EvidenceReader reads them back, so that
// clustering and filtering can be rerun without rescanning the BAMs.

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"

	"github.com/adamewing/gripper2/annotation"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
)

const (
	// <fileVersionHeader, fileVersion> is stored in the recordio header.
	fileVersionHeader = "gripper2version"
	fileVersion       = "GRIPPER2_EVIDENCE_V1"
)

// evidenceTrailer is stored in the trailer section of the recordio file.
type evidenceTrailer struct {
	// Opts are the options used to collect the evidence.
	Opts    Opts
	GTFOpts annotation.GTFOpts
	// Genes are the gene models. Only exported fields are stored; the reader
	// rebuilds exons and junctions.
	Genes []*annotation.Gene
}

// EvidenceWriter writes the Evidence of each sample to a recordio file.
type EvidenceWriter struct {
	out     file.File
	w       recordio.Writer
	trailer evidenceTrailer
}

// NewEvidenceWriter creates the recordio file at path.
func NewEvidenceWriter(ctx context.Context, path string, opts Opts, gtfOpts annotation.GTFOpts, genes []*annotation.Gene) (*EvidenceWriter, error) {
	recordiozstd.Init()
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, "rio create", path)
	}
	w := recordio.NewWriter(out.Writer(ctx), recordio.WriterOpts{
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(fileVersionHeader, fileVersion)
	w.AddHeader(recordio.KeyTrailer, true)
	return &EvidenceWriter{
		out:     out,
		w:       w,
		trailer: evidenceTrailer{Opts: opts, GTFOpts: gtfOpts, Genes: genes},
	}, nil
}

// Write adds the evidence of one sample.
func (w *EvidenceWriter) Write(ev *Evidence) error {
	var b bytes.Buffer
	if err := gob.NewEncoder(&b).Encode(ev); err != nil {
		return errors.E(err, "encode evidence", ev.Sample)
	}
	w.w.Append(b.Bytes())
	return nil
}

// Close writes the trailer and closes the file. It must be called exactly
// once, after all Writes.
func (w *EvidenceWriter) Close(ctx context.Context) error {
	var b bytes.Buffer
	e := errors.Once{}
	e.Set(gob.NewEncoder(&b).Encode(w.trailer))
	w.w.SetTrailer(b.Bytes())
	e.Set(w.w.Finish())
	e.Set(w.out.Close(ctx))
	return e.Err()
}

// EvidenceReader reads a file written by EvidenceWriter.
type EvidenceReader struct {
	in      file.File
	r       recordio.Scanner
	trailer evidenceTrailer
	db      *annotation.DB

	ev  *Evidence // last evidence read by Scan.
	err error
}

// NewEvidenceReader opens the recordio file at path and reads its trailer.
func NewEvidenceReader(ctx context.Context, path string) (*EvidenceReader, error) {
	recordiozstd.Init()
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "rio open", path)
	}
	r := recordio.NewScanner(in.Reader(ctx), recordio.ScannerOpts{})
	fail := func(err error) (*EvidenceReader, error) {
		_ = in.Close(ctx)
		return nil, errors.E(err, path)
	}
	if err := r.Err(); err != nil {
		return fail(err)
	}
	versionFound := false
	for _, kv := range r.Header() {
		if kv.Key == fileVersionHeader {
			if v, _ := kv.Value.(string); v != fileVersion {
				return fail(errors.E(errors.Invalid, fmt.Sprintf("evidence file version mismatch, got %v, expect %v", kv.Value, fileVersion)))
			}
			versionFound = true
			break
		}
	}
	if !versionFound {
		return fail(errors.E(errors.Invalid, fileVersionHeader+" not found"))
	}
	var t evidenceTrailer
	if err := gob.NewDecoder(bytes.NewReader(r.Trailer())).Decode(&t); err != nil {
		return fail(errors.E(errors.Invalid, "decode trailer", err))
	}
	annotation.Restore(t.Genes, t.GTFOpts)
	db, err := annotation.NewDB(t.Genes)
	if err != nil {
		return fail(err)
	}
	return &EvidenceReader{in: in, r: r, trailer: t, db: db}, nil
}

// Opts returns the options stored in the file.
func (r *EvidenceReader) Opts() Opts { return r.trailer.Opts }

// DB returns the gene models stored in the file.
func (r *EvidenceReader) DB() *annotation.DB { return r.db }

// Scan reads the evidence of the next sample.
func (r *EvidenceReader) Scan() bool {
	if r.err != nil || !r.r.Scan() {
		return false
	}
	r.ev = &Evidence{}
	if err := gob.NewDecoder(bytes.NewReader(r.r.Get().([]byte))).Decode(r.ev); err != nil {
		r.err = errors.E(errors.Invalid, "decode evidence", err)
		return false
	}
	return true
}

// Get yields the current evidence.
//
// REQUIRES: Last Scan call returned true.
func (r *EvidenceReader) Get() *Evidence { return r.ev }

// Close closes the reader and returns any error seen. It must be called
// exactly once.
func (r *EvidenceReader) Close(ctx context.Context) error {
	e := errors.Once{}
	e.Set(r.err)
	e.Set(r.r.Err())
	e.Set(r.in.Close(ctx))
	return e.Err()
}

// ReadEvidenceFile reads every sample of the file at path.
func ReadEvidenceFile(ctx context.Context, path string) ([]*Evidence, *annotation.DB, Opts, error) {
	r, err := NewEvidenceReader(ctx, path)
	if err != nil {
		return nil, nil, Opts{}, err
	}
	var evs []*Evidence
	for r.Scan() {
		evs = append(evs, r.Get())
	}
	if err := r.Close(ctx); err != nil {
		return nil, nil, Opts{}, err
	}
	return evs, r.DB(), r.Opts(), nil
}
