package annotation

import "sort"

// Exon is a 0-based, half-open genomic range.
type Exon struct {
	Start, End int
}

// Len returns the length of e in bases.
func (e Exon) Len() int { return e.End - e.Start }

type exons []Exon

// merge appends r to g. If the last item in g overlaps or touches r, the two
// are merged instead.
func (g *exons) merge(r Exon) {
	if n := len(*g); n > 0 {
		last := &(*g)[n-1]
		if r.Start <= last.End && last.Start <= r.End {
			if r.Start < last.Start {
				last.Start = r.Start
			}
			if r.End > last.End {
				last.End = r.End
			}
			return
		}
	}
	*g = append(*g, r)
}

// collapse sorts g and merges all overlapping ranges.
func (g *exons) collapse() {
	sort.Slice(*g, func(i, j int) bool {
		a, b := (*g)[i], (*g)[j]
		return a.Start < b.Start || (a.Start == b.Start && a.End < b.End)
	})
	merged := exons{}
	for _, r := range *g {
		merged.merge(r)
	}
	*g = merged
}
