package retro

import (
	"context"

	"github.com/adamewing/gripper2/encoding/bamprovider"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
	"golang.org/x/sync/errgroup"
)

// minSplitToMove is the number of split reads needed before the voted
// split-read position replaces the mate-based breakpoint.
const minSplitToMove = 2

// siteEvidence accumulates the reads around one candidate.
type siteEvidence struct {
	votes    map[int]int
	clips    []int // clip positions, one per clipped read
	polyA    int
	refReads int
}

// Refine reads the alignments around each candidate breakpoint and fills in
// the split-read, poly-A, and reference support of cands. Candidates are
// processed concurrently, at most opts.Parallelism at a time.
func Refine(ctx context.Context, provider bamprovider.Provider, cands []*Candidate, opts Opts) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.parallelism())
	for _, c := range cands {
		c := c
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return refineOne(provider, c, opts)
		})
	}
	return eg.Wait()
}

func refineOne(provider bamprovider.Provider, c *Candidate, opts Opts) error {
	site := siteEvidence{votes: map[int]int{}}
	iter := bamprovider.NewRefIterator(provider, c.Chrom, c.Breakpoint-opts.SiteWindow, c.Breakpoint+opts.SiteWindow)
	for iter.Scan() {
		site.add(iter.Record(), c.Breakpoint, opts)
	}
	if err := iter.Close(); err != nil {
		return errors.E(err, c.String())
	}
	site.apply(c, opts)
	log.Debug.Printf("refine %v: split=%d polya=%d ref=%d", c, c.Split, c.PolyA, c.RefReads)
	return nil
}

func (s *siteEvidence) add(r *sam.Record, bp int, opts Opts) {
	if r.Flags&skipFlags != 0 || int(r.MapQ) < opts.MinMapQ {
		return
	}
	if opts.ExcludeDuplicates && r.Flags&sam.Duplicate != 0 {
		return
	}
	lead, trail := softClips(r)
	if lead < opts.MinSiteClipLen && trail < opts.MinSiteClipLen {
		if r.Flags&sam.ProperPair != 0 && r.Pos <= bp-opts.MinRefOverlap && r.End() >= bp+opts.MinRefOverlap {
			s.refReads++
		}
		return
	}
	// A read clipped at both ends votes with its longer clip.
	pos := r.End()
	if lead >= trail {
		pos = r.Pos
	}
	s.votes[pos]++
	s.clips = append(s.clips, pos)
	if r.Seq.Length < lead+trail || r.Seq.Length == 0 {
		// No bases to inspect for a poly-A tail.
		return
	}
	seq := r.Seq.Expand()
	clip := seq[len(seq)-trail:]
	if lead >= trail {
		clip = seq[:lead]
	}
	if isPolyA(clip, opts.PolyAFraction) {
		s.polyA++
	}
}

// apply picks the clip position with the most votes, breaking ties by
// distance to the current breakpoint, and stores the support in c.
func (s *siteEvidence) apply(c *Candidate, opts Opts) {
	best, bestVotes := -1, 0
	for pos, n := range s.votes {
		if n > bestVotes || (n == bestVotes && closer(pos, best, c.Breakpoint)) {
			best, bestVotes = pos, n
		}
	}
	c.Refined = true
	c.PolyA = s.polyA
	c.RefReads = s.refReads
	c.Split = 0
	c.SplitBP = best
	if best >= 0 {
		for _, pos := range s.clips {
			if abs(pos-best) <= opts.BoundaryTolerance {
				c.Split++
			}
		}
		if c.Split >= minSplitToMove {
			c.Breakpoint = best
		}
	}
	c.VAF = vaf(c.Discordant()+c.Split, c.RefReads)
}

// closer reports whether a is closer to x than b, preferring the lower
// position on ties. b < 0 means no position.
func closer(a, b, x int) bool {
	if b < 0 {
		return true
	}
	da, db := abs(a-x), abs(b-x)
	if da != db {
		return da < db
	}
	return a < b
}

// isPolyA reports whether at least frac of seq is A, or at least frac is T.
func isPolyA(seq []byte, frac float64) bool {
	if len(seq) == 0 {
		return false
	}
	var a, t int
	for _, b := range seq {
		switch b {
		case 'A', 'a':
			a++
		case 'T', 't':
			t++
		}
	}
	n := float64(len(seq))
	return float64(a)/n >= frac || float64(t)/n >= frac
}
