package retro

import (
	"github.com/adamewing/gripper2/annotation"
	"github.com/adamewing/gripper2/encoding/fasta"
	"github.com/adamewing/gripper2/interval"
	"github.com/grailbio/hts/sam"
)

// classifier turns alignment records into evidence. It only reads shared
// state, so one classifier serves all scan goroutines.
type classifier struct {
	db      *annotation.DB
	ref     fasta.Fasta        // nil: match clips by position only.
	exclude *interval.BEDUnion // nil: nothing excluded.
	opts    Opts
}

// shardResult is the evidence from one scan job.
type shardResult struct {
	junctions  []JunctionRead
	discordant []DiscordantRead
	stats      Stats
}

const skipFlags = sam.Unmapped | sam.Secondary | sam.QCFail | sam.Supplementary

func (c *classifier) usable(r *sam.Record) bool {
	if r.Flags&skipFlags != 0 || r.Ref == nil {
		return false
	}
	if c.opts.ExcludeDuplicates && r.Flags&sam.Duplicate != 0 {
		return false
	}
	return int(r.MapQ) >= c.opts.MinMapQ
}

func (c *classifier) classify(r *sam.Record, out *shardResult) {
	out.stats.Reads++
	if !c.usable(r) {
		out.stats.Filtered++
		return
	}
	chrom := r.Ref.Name()
	hits := c.db.ExonsOverlapping(chrom, r.Pos, r.End())
	if len(hits) == 0 {
		return
	}
	out.stats.ExonReads++
	nameHash := hashName(r.Name)
	if jr, ok := c.junction(r, chrom, hits); ok {
		jr.NameHash = nameHash
		out.junctions = append(out.junctions, jr)
		out.stats.JunctionReads++
	}
	c.pair(r, chrom, hits, nameHash, out)
}

func hitGene(hits []annotation.ExonHit, g *annotation.Gene) bool {
	for _, h := range hits {
		if h.Gene == g {
			return true
		}
	}
	return false
}

// junction checks whether a soft clip of r continues into the neighboring
// exon of a gene r overlaps.
func (c *classifier) junction(r *sam.Record, chrom string, hits []annotation.ExonHit) (JunctionRead, bool) {
	lead, trail := softClips(r)
	if lead < c.opts.MinClipLen && trail < c.opts.MinClipLen {
		return JunctionRead{}, false
	}
	tol := c.opts.BoundaryTolerance
	sas := parseSA(r)
	// Records without SEQ, or with a shorter one than the CIGAR claims, are
	// matched by clip position only.
	var seq []byte
	if c.ref != nil && r.Seq.Length >= lead+trail && r.Seq.Length > 0 {
		seq = r.Seq.Expand()
	}
	if lead >= c.opts.MinClipLen {
		for _, j := range c.db.JunctionsStartingAt(chrom, r.Pos, tol) {
			if !hitGene(hits, j.Gene) {
				continue
			}
			var seqs clipSeqs
			if seq != nil {
				seqs = func() (string, string, bool) {
					exonic, ok := upstreamSpliced(c.ref, chrom, j, r.Pos, lead)
					return string(seq[:lead]), exonic, ok
				}
			}
			src, ok := c.matchClip(sas, chrom, j, true, seqs)
			if ok {
				return JunctionRead{GeneID: j.Gene.ID, Chrom: chrom, LeftEnd: j.Left.End,
					RightStart: j.Right.Start, Pos: r.Pos, Source: src}, true
			}
		}
	}
	if trail >= c.opts.MinClipLen {
		end := r.End()
		for _, j := range c.db.JunctionsEndingAt(chrom, end, tol) {
			if !hitGene(hits, j.Gene) {
				continue
			}
			var seqs clipSeqs
			if seq != nil {
				seqs = func() (string, string, bool) {
					exonic, ok := downstreamSpliced(c.ref, chrom, j, end, trail)
					return string(seq[len(seq)-trail:]), exonic, ok
				}
			}
			src, ok := c.matchClip(sas, chrom, j, false, seqs)
			if ok {
				return JunctionRead{GeneID: j.Gene.ID, Chrom: chrom, LeftEnd: j.Left.End,
					RightStart: j.Right.Start, Pos: r.Pos, Source: src}, true
			}
		}
	}
	return JunctionRead{}, false
}

// clipSeqs returns the clipped bases of a read and the exonic bases they
// should match.
type clipSeqs func() (clip, exonic string, ok bool)

// matchClip decides whether a clip at junction j is junction evidence.
// leading tells whether the clip is at the start of the read, i.e. at the
// right exon. A nil seqs means the clip can't be compared with the
// reference, so its position decides.
func (c *classifier) matchClip(sas []suppAlignment, chrom string, j annotation.Junction, leading bool,
	seqs clipSeqs) (JunctionSource, bool) {
	tol := c.opts.BoundaryTolerance
	for _, sa := range sas {
		if sa.chrom != chrom {
			continue
		}
		if leading && abs(sa.end-j.Left.End) <= tol {
			return SupplementaryAlignment, true
		}
		if !leading && abs(sa.pos-j.Right.Start) <= tol {
			return SupplementaryAlignment, true
		}
	}
	if seqs == nil {
		return ClipPosition, true
	}
	clip, exonic, ok := seqs()
	if !ok {
		return 0, false
	}
	return ClipMatch, clipMatches(clip, exonic, c.opts.MaxClipMismatch)
}

// pair records r as a discordant anchor, or as one read of an exon-spanning
// pair, for each gene it overlaps.
func (c *classifier) pair(r *sam.Record, chrom string, hits []annotation.ExonHit, nameHash uint64, out *shardResult) {
	if r.Flags&sam.Paired == 0 || r.Flags&sam.MateUnmapped != 0 || r.MateRef == nil {
		return
	}
	if mq, ok := auxInt(r.AuxFields.Get(tagMQ)); ok && mq < c.opts.MinMateMapQ {
		return
	}
	sameChrom := r.MateRef.ID() == r.Ref.ID()
	if sameChrom && abs(r.MatePos-r.Pos) <= c.opts.MaxFragmentLen {
		return
	}
	mateChrom := r.MateRef.Name()
	seen := map[*annotation.Gene]bool{}
	for _, hit := range hits {
		g := hit.Gene
		if seen[g] {
			continue
		}
		seen[g] = true
		if annotation.NearGene(g, mateChrom, r.MatePos, c.opts.GeneMargin) {
			// Count spanning pairs once, from the leftmost read.
			if sameChrom && r.Pos < r.MatePos {
				if rank, ok := c.exonRank(g, mateChrom, r.MatePos); ok && rank > hit.Rank {
					exons := g.Exons()
					out.junctions = append(out.junctions, JunctionRead{
						GeneID:     g.ID,
						Chrom:      chrom,
						LeftEnd:    exons[hit.Rank].End,
						RightStart: exons[rank].Start,
						Pos:        r.Pos,
						Source:     SpanningPair,
						NameHash:   nameHash,
					})
					out.stats.SpanningPairs++
				}
			}
			continue
		}
		if c.exclude != nil && c.exclude.ContainsByName(mateChrom, interval.PosType(r.MatePos)) {
			continue
		}
		out.discordant = append(out.discordant, DiscordantRead{
			GeneID:        g.ID,
			AnchorChrom:   chrom,
			AnchorPos:     r.Pos,
			AnchorExon:    hit.Rank,
			AnchorReverse: r.Flags&sam.Reverse != 0,
			MateChrom:     mateChrom,
			MatePos:       r.MatePos,
			MateEnd:       r.MatePos + mateRefLen(r),
			MateReverse:   r.Flags&sam.MateReverse != 0,
			NameHash:      nameHash,
		})
		out.stats.DiscordantAnchors++
	}
}

// exonRank returns the rank of g's exon containing pos.
func (c *classifier) exonRank(g *annotation.Gene, chrom string, pos int) (int, bool) {
	for _, h := range c.db.ExonsOverlapping(chrom, pos, pos+1) {
		if h.Gene == g {
			return h.Rank, true
		}
	}
	return 0, false
}
