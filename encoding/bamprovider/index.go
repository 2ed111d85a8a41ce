package bamprovider

import (
	"context"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/bam"
)

// IndexBAM writes a BAI index for the coordinate-sorted BAM at bamPath to
// indexPath (bamPath + ".bai" when empty).
func IndexBAM(ctx context.Context, bamPath, indexPath string) (err error) {
	if indexPath == "" {
		indexPath = bamPath + ".bai"
	}
	in, err := file.Open(ctx, bamPath)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, in, &err)
	r, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		return errors.E(err, bamPath)
	}
	defer func() {
		if e := r.Close(); e != nil && err == nil {
			err = e
		}
	}()
	var idx bam.Index
	n := 0
	for {
		rec, e := r.Read()
		if e == io.EOF {
			break
		}
		if e != nil {
			return errors.E(e, bamPath)
		}
		if e := idx.Add(rec, r.LastChunk()); e != nil {
			return errors.E(errors.Invalid, e, bamPath, "(is the BAM coordinate-sorted?)")
		}
		n++
	}
	out, err := file.Create(ctx, indexPath)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	if err = bam.WriteIndex(out.Writer(ctx), &idx); err != nil {
		return errors.E(err, indexPath)
	}
	log.Printf("%s: indexed %d records", indexPath, n)
	return nil
}
