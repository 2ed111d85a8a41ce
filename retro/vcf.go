package retro

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/adamewing/gripper2/encoding/fasta"
	"github.com/adamewing/gripper2/version"
	"github.com/google/uuid"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hts/sam"
)

// VCFOpts configures WriteVCF.
type VCFOpts struct {
	// Header supplies the contig lines. May be nil.
	Header *sam.Header
	// Ref, if non-nil, supplies the REF bases; otherwise REF is N.
	Ref fasta.Fasta
	// RefPath is written as ##reference when non-empty.
	RefPath string
	// RunID is written as ##gripper2RunID. If "", a random UUID is used.
	RunID string
	// Date is written as ##fileDate. If zero, the current date is used.
	Date time.Time
}

const altAllele = "<INS:RETRO>"

var vcfInfo = []string{
	`##INFO=<ID=SVTYPE,Number=1,Type=String,Description="Type of structural variant">`,
	`##INFO=<ID=END,Number=1,Type=Integer,Description="End position of the variant">`,
	`##INFO=<ID=GENE,Number=1,Type=String,Description="Parent gene name">`,
	`##INFO=<ID=GENEID,Number=1,Type=String,Description="Parent gene ID">`,
	`##INFO=<ID=GSTRAND,Number=1,Type=String,Description="Strand of the parent gene">`,
	`##INFO=<ID=ISTRAND,Number=1,Type=String,Description="Orientation of the inserted copy, . if unresolved">`,
	`##INFO=<ID=DISC,Number=1,Type=Integer,Description="Discordant pairs, all samples">`,
	`##INFO=<ID=JUNC,Number=1,Type=Integer,Description="Exon-junction reads of the parent gene, all samples">`,
	`##INFO=<ID=SPLIT,Number=1,Type=Integer,Description="Split reads at the breakpoint, all samples">`,
	`##INFO=<ID=POLYA,Number=1,Type=Integer,Description="Poly-A clipped reads near the breakpoint, all samples">`,
	`##INFO=<ID=EXONS,Number=.,Type=Integer,Description="Parent exons hit by anchor reads, 1-based">`,
}

var vcfFormat = []string{
	`##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype; presence only, no genotyping model">`,
	`##FORMAT=<ID=AD,Number=R,Type=Integer,Description="Reference and alternate read support">`,
	`##FORMAT=<ID=VAF,Number=1,Type=Float,Description="Alternate support fraction">`,
}

// WriteVCF writes calls as VCFv4.2 records with a symbolic <INS:RETRO> ALT
// allele. Calls must be sorted in header order.
func WriteVCF(w io.Writer, calls []*Call, samples []string, opts VCFOpts) error {
	out := tsv.NewWriter(w)
	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	date := opts.Date
	if date.IsZero() {
		date = time.Now()
	}
	meta := []string{
		"##fileformat=VCFv4.2",
		"##fileDate=" + date.Format("20060102"),
		"##source=" + version.String(),
		"##gripper2RunID=" + runID,
	}
	if opts.RefPath != "" {
		meta = append(meta, "##reference="+opts.RefPath)
	}
	if opts.Header != nil {
		for _, ref := range opts.Header.Refs() {
			meta = append(meta, fmt.Sprintf("##contig=<ID=%s,length=%d>", ref.Name(), ref.Len()))
		}
	}
	meta = append(meta,
		`##ALT=<ID=INS:RETRO,Description="Insertion of a processed gene copy">`,
		`##FILTER=<ID=PASS,Description="All filters passed">`)
	for _, f := range FilterDescriptions {
		meta = append(meta, fmt.Sprintf(`##FILTER=<ID=%s,Description="%s">`, f.ID, f.Description))
	}
	meta = append(meta, vcfInfo...)
	meta = append(meta, vcfFormat...)
	for _, l := range meta {
		out.WriteString(l)
		if err := out.EndLine(); err != nil {
			return err
		}
	}
	out.WriteString("#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT")
	for _, s := range samples {
		out.WriteString(s)
	}
	if err := out.EndLine(); err != nil {
		return err
	}

	for _, c := range calls {
		// The record is anchored at the base before the insertion.
		pos := c.Pos
		if pos < 1 {
			pos = 1
		}
		out.WriteString(c.Chrom)
		out.WriteInt64(int64(pos))
		out.WriteString(c.ID)
		out.WriteString(refBase(opts.Ref, c.Chrom, pos-1))
		out.WriteString(altAllele)
		out.WriteString(".")
		out.WriteString(strings.Join(c.Filters, ";"))
		out.WriteString(infoField(c, pos))
		out.WriteString("GT:AD:VAF")
		for _, s := range c.Samples {
			out.WriteString(formatField(s))
		}
		if err := out.EndLine(); err != nil {
			return err
		}
	}
	return out.Flush()
}

// WriteVCFFile writes calls to the VCF file at path.
func WriteVCFFile(ctx context.Context, path string, calls []*Call, samples []string, opts VCFOpts) (err error) {
	dst, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, dst, &err)
	return WriteVCF(dst.Writer(ctx), calls, samples, opts)
}

func refBase(ref fasta.Fasta, chrom string, pos int) string {
	if ref == nil {
		return "N"
	}
	b, ok := getSeq(ref, chrom, pos, pos+1)
	if !ok {
		return "N"
	}
	return strings.ToUpper(b)
}

func infoField(c *Call, pos int) string {
	strand := func(s byte) string {
		if s == 0 {
			return "."
		}
		return string(s)
	}
	exons := exonList(c.Exons)
	info := []string{
		"SVTYPE=INS",
		"END=" + strconv.Itoa(pos),
		"GENE=" + c.GeneName,
		"GENEID=" + c.GeneID,
		"GSTRAND=" + strand(c.GeneStrand),
		"ISTRAND=" + strand(c.Strand),
		"DISC=" + strconv.Itoa(c.Discordant()),
		"JUNC=" + strconv.Itoa(c.Junctions()),
		"SPLIT=" + strconv.Itoa(c.Split()),
		"POLYA=" + strconv.Itoa(c.PolyA()),
	}
	if exons != "." {
		info = append(info, "EXONS="+exons)
	}
	return strings.Join(info, ";")
}

// formatField renders GT:AD:VAF. GT only reflects whether the sample has
// alternate support, and whether reference reads were seen.
func formatField(s SampleCall) string {
	if !s.Present {
		return "./.:.:."
	}
	gt := "./1"
	if s.RefReads > 0 {
		gt = "0/1"
	}
	alt := s.Discordant + s.Split
	return fmt.Sprintf("%s:%d,%d:%s", gt, s.RefReads, alt, strconv.FormatFloat(s.VAF, 'f', 3, 64))
}
