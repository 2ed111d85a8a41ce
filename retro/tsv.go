package retro

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hts/bgzf"
)

// tsvColumns are the fixed leading columns of the call TSV. One column per
// sample follows, holding "discordant,split,ref,vaf", or "." when the
// sample has no candidate at the site.
var tsvColumns = []string{
	"#CHROM", "POS", "START", "END", "ID", "GENE", "GENE_ID", "GENE_STRAND", "INS_STRAND",
	"FILTER", "DISCORDANT", "JUNCTION", "SPLIT", "POLYA", "EXONS",
}

// WriteTSV writes calls as a tab-separated table. POS is 1-based; START and
// END are the 0-based, half-open span of the mates.
func WriteTSV(w io.Writer, calls []*Call, samples []string) error {
	out := tsv.NewWriter(w)
	out.WriteString(strings.Join(append(append([]string{}, tsvColumns...), samples...), "\t"))
	if err := out.EndLine(); err != nil {
		return err
	}
	for _, c := range calls {
		out.WriteString(c.Chrom)
		out.WriteInt64(int64(c.Pos + 1))
		out.WriteInt64(int64(c.Start))
		out.WriteInt64(int64(c.End))
		out.WriteString(c.ID)
		out.WriteString(c.GeneName)
		out.WriteString(c.GeneID)
		out.WriteString(string(c.GeneStrand))
		out.WriteString(string(c.Strand))
		out.WriteString(strings.Join(c.Filters, ";"))
		out.WriteInt64(int64(c.Discordant()))
		out.WriteInt64(int64(c.Junctions()))
		out.WriteInt64(int64(c.Split()))
		out.WriteInt64(int64(c.PolyA()))
		out.WriteString(exonList(c.Exons))
		for _, s := range c.Samples {
			out.WriteString(sampleField(s))
		}
		if err := out.EndLine(); err != nil {
			return err
		}
	}
	return out.Flush()
}

// WriteTSVFile writes calls to path. A ".gz" suffix selects BGZF
// compression.
func WriteTSVFile(ctx context.Context, path string, calls []*Call, samples []string, parallelism int) (err error) {
	dst, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, dst, &err)
	if !strings.HasSuffix(path, ".gz") {
		return WriteTSV(dst.Writer(ctx), calls, samples)
	}
	bgzfWriter := bgzf.NewWriter(dst.Writer(ctx), parallelism)
	defer func() {
		if e := bgzfWriter.Close(); e != nil && err == nil {
			err = e
		}
	}()
	return WriteTSV(bgzfWriter, calls, samples)
}

// exonList formats 0-based exon ranks as a comma-separated list of 1-based
// exon numbers.
func exonList(exons []int) string {
	if len(exons) == 0 {
		return "."
	}
	parts := make([]string, len(exons))
	for i, e := range exons {
		parts[i] = strconv.Itoa(e + 1)
	}
	return strings.Join(parts, ",")
}

func sampleField(s SampleCall) string {
	if !s.Present {
		return "."
	}
	return strconv.Itoa(s.Discordant) + "," + strconv.Itoa(s.Split) + "," +
		strconv.Itoa(s.RefReads) + "," + strconv.FormatFloat(s.VAF, 'f', 3, 64)
}
