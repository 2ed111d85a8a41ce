package retro

import "fmt"

// Stats counts what happened during a run. Fields are summed across shards
// and, in Detect, across samples.
type Stats struct {
	// Reads is the number of records read from the BAM.
	Reads int
	// Filtered is the number of records skipped for flags or mapping quality.
	Filtered int
	// ExonReads is the number of usable records overlapping an exon.
	ExonReads int
	// JunctionReads is the number of exon-junction reads found.
	JunctionReads int
	// SpanningPairs counts pairs whose reads lie in different exons of one gene
	// farther apart than a fragment.
	SpanningPairs int
	// DiscordantAnchors is the number of anchor reads with a distant mate.
	DiscordantAnchors int
	// Duplicates is the number of evidence records dropped as duplicates.
	Duplicates int
	// Candidates is the number of clusters formed.
	Candidates int
	// Passing is the number of candidates that passed every filter.
	Passing int
}

// Merge adds the field values of the two Stats objects and creates new Stats.
func (s Stats) Merge(o Stats) Stats {
	s.Reads += o.Reads
	s.Filtered += o.Filtered
	s.ExonReads += o.ExonReads
	s.JunctionReads += o.JunctionReads
	s.SpanningPairs += o.SpanningPairs
	s.DiscordantAnchors += o.DiscordantAnchors
	s.Duplicates += o.Duplicates
	s.Candidates += o.Candidates
	s.Passing += o.Passing
	return s
}

func (s Stats) String() string {
	return fmt.Sprintf("reads=%d filtered=%d exon=%d junction=%d spanning=%d discordant=%d dups=%d candidates=%d pass=%d",
		s.Reads, s.Filtered, s.ExonReads, s.JunctionReads, s.SpanningPairs, s.DiscordantAnchors,
		s.Duplicates, s.Candidates, s.Passing)
}
