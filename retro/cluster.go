package retro

import (
	"fmt"
	"sort"

	"github.com/adamewing/gripper2/annotation"
	"github.com/grailbio/base/log"
)

// Candidate is a cluster of discordant mates for one gene at one locus,
// i.e. a possible insertion site of a copy of the gene.
type Candidate struct {
	GeneID     string
	GeneName   string
	GeneChrom  string
	GeneStrand byte

	// Chrom, Start, End span the clustered mates. 0-based, half-open.
	Chrom string
	Start int
	End   int
	// Forward and Reverse count the mates on each strand.
	Forward int
	Reverse int
	// Exons lists the distinct parent exon ranks hit by anchors, sorted.
	Exons []int
	// Breakpoint is the estimated insertion position, 0-based.
	Breakpoint int
	// Strand is the orientation of the inserted copy on the reference:
	// '+', '-', or '.' when the mates don't agree.
	Strand byte

	// Junctions is the number of junction reads seen for the gene.
	Junctions int

	// Set by Refine.
	Refined  bool
	SplitBP  int // breakpoint voted by split reads, -1 if none.
	Split    int
	PolyA    int
	RefReads int
	VAF      float64

	// Filters is set by Filter; empty means not filtered yet.
	Filters []string
}

// Discordant is the number of discordant pairs supporting c.
func (c *Candidate) Discordant() int { return c.Forward + c.Reverse }

// Pass reports whether c passed every filter.
func (c *Candidate) Pass() bool { return isPass(c.Filters) }

func (c *Candidate) String() string {
	return fmt.Sprintf("%s(%s)@%s:%d[%d-%d] disc=%d exons=%d junc=%d",
		c.GeneName, c.GeneID, c.Chrom, c.Breakpoint, c.Start, c.End, c.Discordant(), len(c.Exons), c.Junctions)
}

// Cluster groups the discordant mates of ev by gene and single-linkage
// clusters them by position: consecutive mates no more than
// opts.ClusterWindow apart join one candidate. ev must be sorted, as Scan
// leaves it. Candidates come out in (chrom, breakpoint, gene) order.
func Cluster(ev *Evidence, db *annotation.DB, opts Opts) []*Candidate {
	junctions := ev.JunctionCounts()
	var cands []*Candidate
	ds := ev.Discordant
	for i := 0; i < len(ds); {
		j := i + 1
		for j < len(ds) && ds[j].GeneID == ds[i].GeneID && ds[j].MateChrom == ds[i].MateChrom &&
			ds[j].MatePos-ds[j-1].MatePos <= opts.ClusterWindow {
			j++
		}
		g := db.GeneByID(ds[i].GeneID)
		if g == nil {
			log.Error.Printf("cluster: gene %s not in the annotation, skipping %d reads", ds[i].GeneID, j-i)
		} else {
			c := newCandidate(g, ds[i:j])
			c.Junctions = junctions[g.ID]
			cands = append(cands, c)
		}
		i = j
	}
	SortCandidates(cands)
	log.Debug.Printf("%s: %d candidates from %d discordant reads", ev.Sample, len(cands), len(ds))
	return cands
}

func newCandidate(g *annotation.Gene, ds []DiscordantRead) *Candidate {
	c := &Candidate{
		GeneID:     g.ID,
		GeneName:   g.Name,
		GeneChrom:  g.Chrom,
		GeneStrand: g.Strand,
		Chrom:      ds[0].MateChrom,
		Start:      ds[0].MatePos,
		End:        ds[0].MateEnd,
		SplitBP:    -1,
	}
	fwdEnd, revStart := -1, -1
	exons := map[int]bool{}
	same, opposite := 0, 0
	for _, d := range ds {
		if d.MatePos < c.Start {
			c.Start = d.MatePos
		}
		if d.MateEnd > c.End {
			c.End = d.MateEnd
		}
		if d.MateReverse {
			c.Reverse++
			if revStart < 0 || d.MatePos < revStart {
				revStart = d.MatePos
			}
		} else {
			c.Forward++
			if d.MateEnd > fwdEnd {
				fwdEnd = d.MateEnd
			}
		}
		exons[d.AnchorExon] = true
		// In a pair from a copy inserted in the gene's orientation, the
		// mate and the anchor are on opposite strands.
		if d.MateReverse != d.AnchorReverse {
			same++
		} else {
			opposite++
		}
	}
	for e := range exons {
		c.Exons = append(c.Exons, e)
	}
	sort.Ints(c.Exons)

	switch {
	case fwdEnd >= 0 && revStart >= 0:
		c.Breakpoint = (fwdEnd + revStart) / 2
	case fwdEnd >= 0:
		c.Breakpoint = fwdEnd
	default:
		c.Breakpoint = revStart
	}

	c.Strand = '.'
	switch {
	case same > opposite:
		c.Strand = g.Strand
	case opposite > same:
		c.Strand = flipStrand(g.Strand)
	}
	return c
}

func flipStrand(s byte) byte {
	switch s {
	case '+':
		return '-'
	case '-':
		return '+'
	}
	return s
}

// SortCandidates sorts by chrom, breakpoint, then gene ID.
func SortCandidates(cands []*Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Chrom != b.Chrom {
			return a.Chrom < b.Chrom
		}
		if a.Breakpoint != b.Breakpoint {
			return a.Breakpoint < b.Breakpoint
		}
		return a.GeneID < b.GeneID
	})
}
