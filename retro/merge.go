package retro

import (
	"fmt"
	"sort"

	"blainsmith.com/go/seahash"
)

// SampleCall is the support for a call in one sample.
type SampleCall struct {
	// Present is false when the sample had no candidate at the site.
	Present    bool
	Breakpoint int
	Discordant int
	Junctions  int
	Split      int
	PolyA      int
	Exons      int
	RefReads   int
	VAF        float64
	Filters    []string
}

// Call is a retrocopy insertion site, merged across samples.
type Call struct {
	ID         string
	GeneID     string
	GeneName   string
	GeneStrand byte
	Chrom      string
	// Pos is the breakpoint, 0-based.
	Pos int
	// Start, End span the mates of all samples.
	Start  int
	End    int
	Strand byte
	// Exons is the union of the parent exon ranks hit in all samples.
	Exons []int
	// Filters is PASS if any sample passed, else the union of the sample
	// labels.
	Filters []string
	// Samples has one entry per input sample, in input order.
	Samples []SampleCall
}

// Discordant sums the discordant pairs of all samples.
func (c *Call) Discordant() int {
	n := 0
	for _, s := range c.Samples {
		n += s.Discordant
	}
	return n
}

// Split sums the split reads of all samples.
func (c *Call) Split() int {
	n := 0
	for _, s := range c.Samples {
		n += s.Split
	}
	return n
}

// PolyA sums the poly-A clipped reads of all samples.
func (c *Call) PolyA() int {
	n := 0
	for _, s := range c.Samples {
		n += s.PolyA
	}
	return n
}

// Junctions sums the junction reads of all samples.
func (c *Call) Junctions() int {
	n := 0
	for _, s := range c.Samples {
		n += s.Junctions
	}
	return n
}

// Pass reports whether the call passed in at least one sample.
func (c *Call) Pass() bool { return isPass(c.Filters) }

func isPass(labels []string) bool { return len(labels) == 1 && labels[0] == FilterPass }

// callID derives a stable ID from the gene and the locus.
func callID(geneID, chrom string, pos int) string {
	h := seahash.Sum64([]byte(fmt.Sprintf("%s\x00%s\x00%d", geneID, chrom, pos)))
	return fmt.Sprintf("RETRO_%016x", h)
}

// MergeSamples joins the candidates of several samples into calls.
// perSample[i] holds the filtered candidates of sample i. Candidates of the
// same gene whose mate spans, widened by opts.ClusterWindow, overlap become
// one call. The breakpoint of a call is taken from its best supported
// sample, earliest sample first on ties. Calls come out in (chrom, pos, gene)
// order.
func MergeSamples(perSample [][]*Candidate, opts Opts) []*Call {
	type entry struct {
		sample int
		c      *Candidate
	}
	var all []entry
	for i, cands := range perSample {
		for _, c := range cands {
			all = append(all, entry{i, c})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i].c, all[j].c
		if a.GeneID != b.GeneID {
			return a.GeneID < b.GeneID
		}
		if a.Chrom != b.Chrom {
			return a.Chrom < b.Chrom
		}
		return a.Start < b.Start
	})

	var calls []*Call
	for i := 0; i < len(all); {
		first := all[i].c
		end := first.End + opts.ClusterWindow
		j := i + 1
		for j < len(all) && all[j].c.GeneID == first.GeneID && all[j].c.Chrom == first.Chrom &&
			all[j].c.Start-opts.ClusterWindow < end {
			if e := all[j].c.End + opts.ClusterWindow; e > end {
				end = e
			}
			j++
		}
		call := &Call{
			GeneID:     first.GeneID,
			GeneName:   first.GeneName,
			GeneStrand: first.GeneStrand,
			Chrom:      first.Chrom,
			Start:      first.Start,
			End:        first.End,
			Samples:    make([]SampleCall, len(perSample)),
		}
		var best *Candidate
		exons := map[int]bool{}
		// Per sample: the best supported cluster and the exons of all its
		// clusters.
		sampleBest := map[int]*Candidate{}
		sampleExons := map[int]map[int]bool{}
		for _, e := range all[i:j] {
			c := e.c
			if c.Start < call.Start {
				call.Start = c.Start
			}
			if c.End > call.End {
				call.End = c.End
			}
			if sampleExons[e.sample] == nil {
				sampleExons[e.sample] = map[int]bool{}
			}
			for _, x := range c.Exons {
				exons[x] = true
				sampleExons[e.sample][x] = true
			}
			sc := &call.Samples[e.sample]
			if sc.Present {
				// Two clusters of one sample joined through another sample's
				// cluster: support adds up, the site follows the better one.
				sc.Discordant += c.Discordant()
				sc.Split += c.Split
				sc.PolyA += c.PolyA
				if isPass(sc.Filters) || c.Pass() {
					sc.Filters = []string{FilterPass}
				} else {
					sc.Filters = unionFilters(sc.Filters, c.Filters)
				}
				if support(c) > support(sampleBest[e.sample]) {
					sampleBest[e.sample] = c
					sc.Breakpoint = c.Breakpoint
					sc.RefReads = c.RefReads
				}
				sc.VAF = vaf(sc.Discordant+sc.Split, sc.RefReads)
			} else {
				sampleBest[e.sample] = c
				*sc = SampleCall{
					Present:    true,
					Breakpoint: c.Breakpoint,
					Discordant: c.Discordant(),
					Junctions:  c.Junctions,
					Split:      c.Split,
					PolyA:      c.PolyA,
					RefReads:   c.RefReads,
					VAF:        c.VAF,
					Filters:    c.Filters,
				}
			}
			sc.Exons = len(sampleExons[e.sample])
			if best == nil || support(c) > support(best) {
				best = c
			}
		}
		call.Pos = best.Breakpoint
		call.Strand = best.Strand
		for x := range exons {
			call.Exons = append(call.Exons, x)
		}
		sort.Ints(call.Exons)
		call.Filters = mergeFilters(call.Samples)
		call.ID = callID(call.GeneID, call.Chrom, call.Pos)
		calls = append(calls, call)
		i = j
	}
	SortCalls(calls, nil)
	return calls
}

func support(c *Candidate) int { return c.Discordant() + c.Split }

// vaf is the alternate fraction of the reads at a site, 0 without reads.
func vaf(alt, ref int) float64 {
	if alt+ref == 0 {
		return 0
	}
	return float64(alt) / float64(alt+ref)
}

func mergeFilters(samples []SampleCall) []string {
	var labels []string
	for _, s := range samples {
		if !s.Present {
			continue
		}
		if isPass(s.Filters) {
			return []string{FilterPass}
		}
		labels = unionFilters(labels, s.Filters)
	}
	return labels
}

// unionFilters returns the sorted union of two label lists, without PASS.
func unionFilters(a, b []string) []string {
	set := map[string]bool{}
	for _, l := range a {
		set[l] = true
	}
	for _, l := range b {
		set[l] = true
	}
	delete(set, FilterPass)
	var out []string
	for l := range set {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// SortCalls sorts calls by chrom, pos, then gene ID. If refOrder is non-nil
// it gives the rank of each chromosome; chromosomes missing from it sort
// last, by name.
func SortCalls(calls []*Call, refOrder map[string]int) {
	rank := func(chrom string) int {
		if refOrder == nil {
			return 0
		}
		if r, ok := refOrder[chrom]; ok {
			return r
		}
		return len(refOrder)
	}
	sort.SliceStable(calls, func(i, j int) bool {
		a, b := calls[i], calls[j]
		if ra, rb := rank(a.Chrom), rank(b.Chrom); ra != rb {
			return ra < rb
		}
		if a.Chrom != b.Chrom {
			return a.Chrom < b.Chrom
		}
		if a.Pos != b.Pos {
			return a.Pos < b.Pos
		}
		return a.GeneID < b.GeneID
	})
}
