package annotation

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
)

// Transcript is one annotated isoform. Exons are sorted and non-overlapping.
type Transcript struct {
	ID, Name, Type string
	Exons          []Exon
}

// Gene is an annotated gene.
type Gene struct {
	ID     string // e.g., "ENSG00000141510.16"
	Name   string // e.g., "TP53"
	Type   string // gene_type / gene_biotype
	Chrom  string
	Start  int
	End    int
	Strand byte // '+', '-' or '.'
	// Index is the rank of the gene in its chromosome, by start position.
	Index       int
	Transcripts []*Transcript

	exons     []Exon
	junctions []Junction
}

// Exons returns the union of exons over all transcripts, sorted.
func (g *Gene) Exons() []Exon { return g.exons }

// Junctions returns the distinct exon-exon junctions of g, sorted by
// LeftEnd then RightStart.
func (g *Gene) Junctions() []Junction { return g.junctions }

// String returns "name(id)".
func (g *Gene) String() string { return g.Name + "(" + g.ID + ")" }

// Junction is the splice between two consecutive exons of one transcript, in
// genomic orientation: Left precedes Right regardless of strand.
type Junction struct {
	Gene        *Gene
	Left, Right Exon
}

// IntronLen returns the length of the spliced-out intron.
func (j Junction) IntronLen() int { return j.Right.Start - j.Left.End }

// GTFOpts controls which GTF records ReadGTF keeps.
type GTFOpts struct {
	// CodingOnly keeps transcripts with a coding biotype only.
	CodingOnly bool
	// KeepMitochondrial keeps genes on chrM/MT.
	KeepMitochondrial bool
	// KeepReadthrough keeps readthrough genes such as "RP11-1407O15.2" or
	// "ABC-DEF".
	KeepReadthrough bool
	// KeepPARY keeps "_PAR_Y" gene copies.
	KeepPARY bool
	// KeepVersionedGenes keeps genes whose names contain '.', e.g. clone-based
	// names like "AC012345.1".
	KeepVersionedGenes bool
	// MinExons drops genes with fewer distinct exons. A single-exon gene has no
	// junction, so the default is 2.
	MinExons int
	// MinIntronLen is the shortest gap between exons treated as an intron.
	MinIntronLen int
}

// DefaultGTFOpts is the default value of GTFOpts.
var DefaultGTFOpts = GTFOpts{
	CodingOnly:   false,
	MinExons:     2,
	MinIntronLen: 1,
}

// gtfRecord is one line of a GTF file.
type gtfRecord struct {
	Chrom    string
	Source   string
	Molecule string
	Start    int
	Stop     int
	Score    string // unused floating point value, but may be "."
	Strand   string
	Frame    string
	Fields   string
}

var digitsRe = regexp.MustCompile(`^\d+$`)

// parseInfoFields parses the attribute column, e.g.
// `gene_id "ENSG01"; gene_name "ABC";`, into parsed.
func parseInfoFields(parsed map[string]string, info string) {
	for k := range parsed {
		delete(parsed, k)
	}
	for _, field := range strings.Split(info, ";") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		sp := strings.IndexByte(field, ' ')
		if sp < 0 {
			continue
		}
		key := field[:sp]
		if _, ok := parsed[key]; ok {
			// Repeated keys such as "tag"; the first one wins.
			continue
		}
		parsed[key] = strings.Trim(strings.TrimSpace(field[sp+1:]), "\"")
	}
}

// firstOf returns the first nonempty value among keys.
func firstOf(fields map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := fields[k]; v != "" {
			return v
		}
	}
	return ""
}

func readRawGTF(ctx context.Context, path string) (genes, transcripts, exonRecs []gtfRecord, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return
	}
	defer file.CloseAndReport(ctx, in, &err)
	// NewReader consumes the head of its input to sniff the format, so the
	// returned reader must be used even for uncompressed data.
	r, _ := compress.NewReader(in.Reader(ctx))
	defer r.Close() // nolint: errcheck
	scanner := tsv.NewReader(bufio.NewReaderSize(r, 64<<10))
	scanner.Comment = '#'
	scanner.LazyQuotes = true
	for {
		var line gtfRecord
		if e := scanner.Read(&line); e != nil {
			if e != io.EOF {
				err = errors.E(errors.Invalid, path, e)
			}
			break
		}
		switch line.Molecule {
		case "gene":
			genes = append(genes, line)
		case "transcript":
			transcripts = append(transcripts, line)
		case "exon":
			exonRecs = append(exonRecs, line)
		}
	}
	return
}

// ReadGTF reads the GTF file at path. Genes are returned sorted by ID.
func ReadGTF(ctx context.Context, path string, opts GTFOpts) ([]*Gene, error) {
	log.Print("GTF: " + path)
	geneRecs, txRecs, exonRecs, err := readRawGTF(ctx, path)
	if err != nil {
		return nil, err
	}
	log.Printf("Read %d genes, %d transcripts, %d exons", len(geneRecs), len(txRecs), len(exonRecs))
	genes, err := buildGenes(geneRecs, txRecs, exonRecs, opts)
	if err != nil {
		return nil, errors.E(err, path)
	}
	return genes, nil
}

func buildGenes(geneRecs, txRecs, exonRecs []gtfRecord, opts GTFOpts) ([]*Gene, error) {
	var (
		records    = map[string]*Gene{}
		txByID     = map[string]*Transcript{}
		txGene     = map[*Transcript]*Gene{}
		fields     = map[string]string{}
		nDropped   int
		nTxDropped int
	)
	for _, rec := range geneRecs {
		parseInfoFields(fields, rec.Fields)
		g := &Gene{
			ID:    fields["gene_id"],
			Name:  firstOf(fields, "gene_name", "gene_id"),
			Type:  firstOf(fields, "gene_type", "gene_biotype"),
			Chrom: rec.Chrom,
			Start: rec.Start - 1,
			End:   rec.Stop,
		}
		if g.ID == "" {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("gene record at %s:%d has no gene_id", rec.Chrom, rec.Start))
		}
		if rec.Strand != "" {
			g.Strand = rec.Strand[0]
		}
		if _, ok := records[g.ID]; ok {
			return nil, errors.E(errors.Invalid, "duplicate gene_id "+g.ID)
		}
		records[g.ID] = g
	}
	for _, rec := range txRecs {
		parseInfoFields(fields, rec.Fields)
		g, ok := records[fields["gene_id"]]
		if !ok {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("transcript %s references unknown gene %s",
				fields["transcript_id"], fields["gene_id"]))
		}
		txType := firstOf(fields, "transcript_type", "transcript_biotype")
		if opts.CodingOnly && !isCodingBiotype(txType) {
			nTxDropped++
			continue
		}
		tx := &Transcript{
			ID:   fields["transcript_id"],
			Name: fields["transcript_name"],
			Type: txType,
		}
		txByID[tx.ID] = tx
		txGene[tx] = g
		g.Transcripts = append(g.Transcripts, tx)
	}
	for _, rec := range exonRecs {
		parseInfoFields(fields, rec.Fields)
		if opts.CodingOnly && !isCodingBiotype(firstOf(fields, "transcript_type", "transcript_biotype")) {
			continue
		}
		tx, ok := txByID[fields["transcript_id"]]
		if !ok {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("exon at %s:%d references unknown transcript %s",
				rec.Chrom, rec.Start, fields["transcript_id"]))
		}
		if g := txGene[tx]; g.ID != fields["gene_id"] {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("exon of transcript %s names gene %s, want %s",
				tx.ID, fields["gene_id"], g.ID))
		}
		tx.Exons = append(tx.Exons, Exon{rec.Start - 1, rec.Stop})
	}

	var genes []*Gene
	for _, g := range records {
		if !keepGene(g, opts) {
			nDropped++
			continue
		}
		finishGene(g, opts)
		if len(g.exons) < opts.MinExons {
			nDropped++
			continue
		}
		genes = append(genes, g)
	}
	sort.Slice(genes, func(i, j int) bool { return genes[i].ID < genes[j].ID })

	byChrom := map[string][]*Gene{}
	for _, g := range genes {
		byChrom[g.Chrom] = append(byChrom[g.Chrom], g)
	}
	for _, gs := range byChrom {
		sort.SliceStable(gs, func(i, j int) bool { return gs[i].Start < gs[j].Start })
		for i, g := range gs {
			g.Index = i
		}
	}
	log.Printf("Retained %d genes; dropped %d genes and %d transcripts", len(genes), nDropped, nTxDropped)
	return genes, nil
}

// finishGene sorts transcript exons and computes the gene's exon union and
// junctions.
func finishGene(g *Gene, opts GTFOpts) {
	sort.Slice(g.Transcripts, func(i, j int) bool { return g.Transcripts[i].ID < g.Transcripts[j].ID })
	var union exons
	seen := map[[2]int]bool{}
	for _, tx := range g.Transcripts {
		txExons := exons(tx.Exons)
		txExons.collapse()
		tx.Exons = txExons
		union = append(union, txExons...)
		for i := 1; i < len(txExons); i++ {
			left, right := txExons[i-1], txExons[i]
			if right.Start-left.End < opts.MinIntronLen {
				continue
			}
			key := [2]int{left.End, right.Start}
			if seen[key] {
				continue
			}
			seen[key] = true
			g.junctions = append(g.junctions, Junction{Gene: g, Left: left, Right: right})
		}
	}
	union.collapse()
	g.exons = union
	sort.Slice(g.junctions, func(i, j int) bool {
		a, b := g.junctions[i], g.junctions[j]
		return a.Left.End < b.Left.End || (a.Left.End == b.Left.End && a.Right.Start < b.Right.Start)
	})
}

// Restore recomputes the exon union and junctions of genes that were
// decoded from a serialized form, where only exported fields survive.
func Restore(genes []*Gene, opts GTFOpts) {
	for _, g := range genes {
		g.exons, g.junctions = nil, nil
		finishGene(g, opts)
	}
}

func keepGene(g *Gene, opts GTFOpts) bool {
	if len(g.Transcripts) == 0 {
		return false
	}
	if !opts.KeepMitochondrial && (g.Chrom == "chrM" || g.Chrom == "MT") {
		return false
	}
	if !opts.KeepPARY && strings.Contains(g.ID, "_PAR_Y") {
		return false
	}
	if !opts.KeepVersionedGenes && strings.Contains(g.Name, ".") {
		return false
	}
	if !opts.KeepReadthrough && isReadthrough(g.Name) {
		return false
	}
	return true
}

// isReadthrough reports whether name looks like "GENE1-GENE2". Names such as
// "HLA-A", "MT-CO1" or "NKX2-1" are not readthroughs.
func isReadthrough(name string) bool {
	parts := strings.Split(name, "-")
	if len(parts) < 2 {
		return false
	}
	if parts[0] == "HLA" || parts[0] == "MT" {
		return false
	}
	return !digitsRe.MatchString(parts[1])
}

// Obtained from https://www.gencodegenes.org/gencode_biotypes.html
var codingBiotypes = map[string]bool{
	"protein_coding":          true,
	"nonsense_mediated_decay": true,
	"non_stop_decay":          true,
	"IG_C_gene":               true,
	"IG_D_gene":               true,
	"IG_J_gene":               true,
	"IG_LV_gene":              true,
	"IG_V_gene":               true,
	"TR_C_gene":               true,
	"TR_J_gene":               true,
	"TR_V_gene":               true,
	"TR_D_gene":               true,
	"polymorphic_pseudogene":  true,
}

func isCodingBiotype(t string) bool { return codingBiotypes[t] }
