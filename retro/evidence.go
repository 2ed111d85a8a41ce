package retro

import (
	"encoding/binary"
	"sort"

	farm "github.com/dgryski/go-farm"
	"github.com/minio/highwayhash"
)

// JunctionSource tells how a junction read was recognized.
type JunctionSource uint8

const (
	// ClipMatch: a soft clip at an exon boundary matches the next exon.
	ClipMatch JunctionSource = iota
	// ClipPosition: a soft clip lies at an exon boundary. Used when no
	// reference sequence is available.
	ClipPosition
	// SupplementaryAlignment: the clipped part is aligned (SA tag) at the
	// neighboring exon boundary.
	SupplementaryAlignment
	// SpanningPair: the two reads of a pair lie in different exons farther
	// apart than a fragment.
	SpanningPair
)

func (s JunctionSource) String() string {
	switch s {
	case ClipMatch:
		return "clip"
	case ClipPosition:
		return "clippos"
	case SupplementaryAlignment:
		return "sa"
	case SpanningPair:
		return "pair"
	}
	return "unknown"
}

// JunctionRead is a read supporting the splice between two exons of a gene.
type JunctionRead struct {
	GeneID     string
	Chrom      string
	LeftEnd    int
	RightStart int
	Pos        int
	Source     JunctionSource
	NameHash   uint64
}

// DiscordantRead is an anchor read in an exon of GeneID whose mate maps far
// from the gene.
type DiscordantRead struct {
	GeneID        string
	AnchorChrom   string
	AnchorPos     int
	AnchorExon    int // rank in Gene.Exons()
	AnchorReverse bool
	MateChrom     string
	MatePos       int
	MateEnd       int
	MateReverse   bool
	NameHash      uint64
}

// Evidence is everything Scan collected for one sample.
type Evidence struct {
	Sample     string
	Junctions  []JunctionRead
	Discordant []DiscordantRead
	Stats      Stats
}

// JunctionCounts returns the number of junction reads per gene ID.
func (e *Evidence) JunctionCounts() map[string]int {
	counts := map[string]int{}
	for _, j := range e.Junctions {
		counts[j.GeneID]++
	}
	return counts
}

func hashName(name string) uint64 {
	return farm.Hash64([]byte(name))
}

var fragmentSeed = [highwayhash.Size]byte{'g', 'r', 'i', 'p', 'p', 'e', 'r', '2'}

// fragmentKey identifies a discordant fragment by the alignment coordinates
// and strands of both reads. PCR duplicates share a key. buf is scratch
// space; the grown buffer is returned for reuse.
func fragmentKey(d *DiscordantRead, buf []byte) (uint64, []byte) {
	buf = buf[:0]
	buf = append(buf, d.GeneID...)
	buf = append(buf, 0)
	buf = append(buf, d.AnchorChrom...)
	buf = append(buf, 0)
	buf = append(buf, d.MateChrom...)
	buf = append(buf, 0)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(d.AnchorPos))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(d.MatePos))
	var strands byte
	if d.AnchorReverse {
		strands |= 1
	}
	if d.MateReverse {
		strands |= 2
	}
	buf = append(buf, strands)
	return highwayhash.Sum64(buf, fragmentSeed[:]), buf
}

// dedup sorts the evidence and removes duplicates. Junction reads are
// unique per (read name, gene, junction); discordant reads per read name and
// gene, then per fragment key. It returns the number of records dropped.
func (e *Evidence) dedup() int {
	e.sort()
	dropped := 0
	type jkey struct {
		name        uint64
		gene        string
		left, right int
	}
	seenJ := map[jkey]bool{}
	js := e.Junctions[:0]
	for _, j := range e.Junctions {
		k := jkey{j.NameHash, j.GeneID, j.LeftEnd, j.RightStart}
		if seenJ[k] {
			dropped++
			continue
		}
		seenJ[k] = true
		js = append(js, j)
	}
	e.Junctions = js

	type dkey struct {
		name uint64
		gene string
	}
	seenName := map[dkey]bool{}
	seenFrag := map[uint64]bool{}
	var buf []byte
	ds := e.Discordant[:0]
	for _, d := range e.Discordant {
		nk := dkey{d.NameHash, d.GeneID}
		var fk uint64
		fk, buf = fragmentKey(&d, buf)
		if seenName[nk] || seenFrag[fk] {
			dropped++
			continue
		}
		seenName[nk] = true
		seenFrag[fk] = true
		ds = append(ds, d)
	}
	e.Discordant = ds
	return dropped
}

func (e *Evidence) sort() {
	sort.SliceStable(e.Junctions, func(i, j int) bool {
		a, b := &e.Junctions[i], &e.Junctions[j]
		if a.GeneID != b.GeneID {
			return a.GeneID < b.GeneID
		}
		if a.Pos != b.Pos {
			return a.Pos < b.Pos
		}
		if a.NameHash != b.NameHash {
			return a.NameHash < b.NameHash
		}
		if a.LeftEnd != b.LeftEnd {
			return a.LeftEnd < b.LeftEnd
		}
		return a.Source < b.Source
	})
	sort.SliceStable(e.Discordant, func(i, j int) bool {
		a, b := &e.Discordant[i], &e.Discordant[j]
		if a.GeneID != b.GeneID {
			return a.GeneID < b.GeneID
		}
		if a.MateChrom != b.MateChrom {
			return a.MateChrom < b.MateChrom
		}
		if a.MatePos != b.MatePos {
			return a.MatePos < b.MatePos
		}
		if a.NameHash != b.NameHash {
			return a.NameHash < b.NameHash
		}
		return a.AnchorPos < b.AnchorPos
	})
}
