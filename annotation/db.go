package annotation

import (
	"sort"

	"github.com/biogo/store/interval"
)

// ExonHit is an exon overlapping a query, together with its gene.
type ExonHit struct {
	Gene *Gene
	Exon Exon
	// Rank is the exon's position in Gene.Exons().
	Rank int
}

type exonNode struct {
	id  uintptr
	hit ExonHit
}

func (n *exonNode) Overlap(b interval.IntRange) bool {
	return n.hit.Exon.End > b.Start && n.hit.Exon.Start < b.End
}
func (n *exonNode) ID() uintptr { return n.id }
func (n *exonNode) Range() interval.IntRange {
	return interval.IntRange{Start: n.hit.Exon.Start, End: n.hit.Exon.End}
}

type query struct{ start, end int }

func (q query) Overlap(b interval.IntRange) bool { return b.End > q.start && b.Start < q.end }

// DB indexes genes by exon and junction position. It is immutable once built
// and safe for concurrent reads.
type DB struct {
	genes  []*Gene
	byName map[string]*Gene
	byID   map[string]*Gene
	trees  map[string]*interval.IntTree
	// Junctions per chromosome, sorted by Left.End and by Right.Start.
	byLeftEnd    map[string][]Junction
	byRightStart map[string][]Junction
}

// NewDB indexes genes. If two genes share a name, the first one in the list
// wins GeneByName.
func NewDB(genes []*Gene) (*DB, error) {
	db := &DB{
		genes:        genes,
		byName:       map[string]*Gene{},
		byID:         map[string]*Gene{},
		trees:        map[string]*interval.IntTree{},
		byLeftEnd:    map[string][]Junction{},
		byRightStart: map[string][]Junction{},
	}
	var id uintptr
	for _, g := range genes {
		db.byID[g.ID] = g
		if _, ok := db.byName[g.Name]; !ok {
			db.byName[g.Name] = g
		}
		tree := db.trees[g.Chrom]
		if tree == nil {
			tree = &interval.IntTree{}
			db.trees[g.Chrom] = tree
		}
		for rank, e := range g.exons {
			id++
			if err := tree.Insert(&exonNode{id: id, hit: ExonHit{Gene: g, Exon: e, Rank: rank}}, true); err != nil {
				return nil, err
			}
		}
		db.byLeftEnd[g.Chrom] = append(db.byLeftEnd[g.Chrom], g.junctions...)
	}
	for chrom, tree := range db.trees {
		tree.AdjustRanges()
		js := db.byLeftEnd[chrom]
		sort.SliceStable(js, func(i, j int) bool { return js[i].Left.End < js[j].Left.End })
		rs := append([]Junction(nil), js...)
		sort.SliceStable(rs, func(i, j int) bool { return rs[i].Right.Start < rs[j].Right.Start })
		db.byRightStart[chrom] = rs
	}
	return db, nil
}

// Genes returns all genes, in the order given to NewDB.
func (db *DB) Genes() []*Gene { return db.genes }

// GeneByName finds a gene by name, or returns nil.
func (db *DB) GeneByName(name string) *Gene { return db.byName[name] }

// GeneByID finds a gene by ID, or returns nil.
func (db *DB) GeneByID(id string) *Gene { return db.byID[id] }

// ExonsOverlapping returns the exons overlapping [start, end) on chrom,
// sorted by exon start then gene ID.
func (db *DB) ExonsOverlapping(chrom string, start, end int) []ExonHit {
	tree := db.trees[chrom]
	if tree == nil || end <= start {
		return nil
	}
	found := tree.Get(query{start, end})
	if len(found) == 0 {
		return nil
	}
	hits := make([]ExonHit, len(found))
	for i, f := range found {
		hits[i] = f.(*exonNode).hit
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Exon.Start != hits[j].Exon.Start {
			return hits[i].Exon.Start < hits[j].Exon.Start
		}
		return hits[i].Gene.ID < hits[j].Gene.ID
	})
	return hits
}

// JunctionsEndingAt returns junctions whose left exon ends within tol bases of
// pos (pos is the first base after the left exon).
func (db *DB) JunctionsEndingAt(chrom string, pos, tol int) []Junction {
	js := db.byLeftEnd[chrom]
	i := sort.Search(len(js), func(i int) bool { return js[i].Left.End >= pos-tol })
	var out []Junction
	for ; i < len(js) && js[i].Left.End <= pos+tol; i++ {
		out = append(out, js[i])
	}
	return out
}

// JunctionsStartingAt returns junctions whose right exon starts within tol
// bases of pos.
func (db *DB) JunctionsStartingAt(chrom string, pos, tol int) []Junction {
	js := db.byRightStart[chrom]
	i := sort.Search(len(js), func(i int) bool { return js[i].Right.Start >= pos-tol })
	var out []Junction
	for ; i < len(js) && js[i].Right.Start <= pos+tol; i++ {
		out = append(out, js[i])
	}
	return out
}

// NearGene reports whether pos on chrom is within margin bases of g.
func NearGene(g *Gene, chrom string, pos, margin int) bool {
	return chrom == g.Chrom && pos >= g.Start-margin && pos < g.End+margin
}

// Span is a chromosome range.
type Span struct {
	Chrom      string
	Start, End int
}

// GeneSpans returns the union of all gene bodies extended by pad bases,
// sorted by chromosome and start.
func (db *DB) GeneSpans(pad int) []Span {
	byChrom := map[string]exons{}
	for _, g := range db.genes {
		start := g.Start - pad
		if start < 0 {
			start = 0
		}
		byChrom[g.Chrom] = append(byChrom[g.Chrom], Exon{start, g.End + pad})
	}
	chroms := make([]string, 0, len(byChrom))
	for c := range byChrom {
		chroms = append(chroms, c)
	}
	sort.Strings(chroms)
	var spans []Span
	for _, c := range chroms {
		rs := byChrom[c]
		rs.collapse()
		for _, r := range rs {
			spans = append(spans, Span{c, r.Start, r.End})
		}
	}
	return spans
}
