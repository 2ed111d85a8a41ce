package retro

import (
	"sort"

	"github.com/adamewing/gripper2/annotation"
	"github.com/adamewing/gripper2/interval"
)

// Filter labels.
const (
	FilterPass       = "PASS"
	FilterLowSupport = "LowSupport"
	FilterFewExons   = "FewExons"
	FilterNoJunction = "NoJunction"
	FilterNearParent = "NearParent"
	FilterExcluded   = "Excluded"
	FilterAmbiguous  = "Ambiguous"
)

// FilterDescriptions maps each label to a description for VCF headers.
var FilterDescriptions = []struct{ ID, Description string }{
	{FilterLowSupport, "Fewer discordant pairs than min_discordant"},
	{FilterFewExons, "Anchors hit fewer parent exons than min_distinct_exons"},
	{FilterNoJunction, "Parent gene has fewer exon-junction reads than min_junction_reads"},
	{FilterNearParent, "Site lies within gene_margin of the parent gene"},
	{FilterExcluded, "Breakpoint lies in an excluded region"},
	{FilterAmbiguous, "More than max_genes_per_site genes cluster at the site"},
}

// Filter sets the Filters of every candidate. exclude may be nil. cands
// must hold all candidates of one sample, since the Ambiguous label depends
// on the other genes clustering at the same locus.
func Filter(cands []*Candidate, db *annotation.DB, exclude *interval.BEDUnion, opts Opts) {
	ambiguous := ambiguousSites(cands, opts)
	for i, c := range cands {
		var f []string
		if c.Discordant() < opts.MinDiscordant {
			f = append(f, FilterLowSupport)
		}
		if len(c.Exons) < opts.MinDistinctExons {
			f = append(f, FilterFewExons)
		}
		if c.Junctions < opts.MinJunctionReads {
			f = append(f, FilterNoJunction)
		}
		if g := db.GeneByID(c.GeneID); g != nil && annotation.NearGene(g, c.Chrom, c.Breakpoint, opts.GeneMargin) {
			f = append(f, FilterNearParent)
		}
		if exclude != nil && exclude.ContainsByName(c.Chrom, interval.PosType(c.Breakpoint)) {
			f = append(f, FilterExcluded)
		}
		if ambiguous[i] {
			f = append(f, FilterAmbiguous)
		}
		if len(f) == 0 {
			f = []string{FilterPass}
		}
		c.Filters = f
	}
}

// ambiguousSites flags candidates whose locus, the mate span widened by
// opts.ClusterWindow, overlaps those of more than opts.MaxGenesPerSite
// distinct genes.
func ambiguousSites(cands []*Candidate, opts Opts) []bool {
	idx := make([]int, len(cands))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := cands[idx[i]], cands[idx[j]]
		if a.Chrom != b.Chrom {
			return a.Chrom < b.Chrom
		}
		return a.Start < b.Start
	})
	flags := make([]bool, len(cands))
	for i := 0; i < len(idx); {
		// Group overlapping loci.
		first := cands[idx[i]]
		end := first.End + opts.ClusterWindow
		j := i + 1
		for j < len(idx) && cands[idx[j]].Chrom == first.Chrom && cands[idx[j]].Start-opts.ClusterWindow < end {
			if e := cands[idx[j]].End + opts.ClusterWindow; e > end {
				end = e
			}
			j++
		}
		genes := map[string]bool{}
		for _, k := range idx[i:j] {
			genes[cands[k].GeneID] = true
		}
		if len(genes) > opts.MaxGenesPerSite {
			for _, k := range idx[i:j] {
				flags[k] = true
			}
		}
		i = j
	}
	return flags
}
