package retro

import (
	"context"

	"github.com/adamewing/gripper2/annotation"
	"github.com/adamewing/gripper2/encoding/bamprovider"
	"github.com/adamewing/gripper2/encoding/fasta"
	"github.com/adamewing/gripper2/interval"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/hts/sam"
)

// ScanRequest describes the inputs of Scan.
type ScanRequest struct {
	// Sample names the evidence. Required.
	Sample   string
	Provider bamprovider.Provider
	DB       *annotation.DB
	// Ref, if set, is used to match clipped bases against exon sequence.
	Ref fasta.Fasta
	// Exclude, if set, drops discordant mates in its intervals.
	Exclude *interval.BEDUnion
	// Regions, if set, restricts the scan to anchors in these intervals.
	Regions []interval.Entry
}

// scanSpans returns the gene spans to read, padded so that reads starting
// just before an exon are seen, limited to references in header and to
// regions.
func scanSpans(header *sam.Header, db *annotation.DB, regions []interval.Entry, pad int) []bamprovider.Span {
	var spans []bamprovider.Span
	missing := map[string]bool{}
	for _, sp := range db.GeneSpans(pad) {
		if bamprovider.RefByName(header, sp.Chrom) == nil {
			missing[sp.Chrom] = true
			continue
		}
		if len(regions) == 0 {
			spans = append(spans, bamprovider.Span{Ref: sp.Chrom, Start: sp.Start, End: sp.End})
			continue
		}
		for _, r := range regions {
			if r.ChrName != sp.Chrom {
				continue
			}
			start, end := sp.Start, sp.End
			if int(r.Start0) > start {
				start = int(r.Start0)
			}
			if int(r.End) < end {
				end = int(r.End)
			}
			if start < end {
				spans = append(spans, bamprovider.Span{Ref: sp.Chrom, Start: start, End: end})
			}
		}
	}
	if len(missing) > 0 {
		log.Printf("%d annotated chromosome(s) not in the BAM header, skipped", len(missing))
	}
	return spans
}

// Scan reads the alignments around annotated genes and collects junction
// reads and discordant anchors. The result is sorted and deduplicated, and
// doesn't depend on opts.Parallelism.
func Scan(ctx context.Context, req ScanRequest, opts Opts) (*Evidence, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	header, err := req.Provider.GetHeader()
	if err != nil {
		return nil, errors.E(err, req.Sample)
	}
	spans := scanSpans(header, req.DB, req.Regions, opts.MaxFragmentLen)
	shards, err := req.Provider.GenerateShards(bamprovider.GenerateShardsOpts{
		ShardSize: opts.ShardSize,
		Spans:     spans,
	})
	if err != nil {
		return nil, errors.E(err, req.Sample)
	}
	c := &classifier{db: req.DB, ref: req.Ref, exclude: req.Exclude, opts: opts}

	parallelism := opts.parallelism()
	if parallelism > len(shards) {
		parallelism = len(shards)
	}
	log.Printf("%s: scanning %d shards with parallelism %d", req.Sample, len(shards), parallelism)
	results := make([]shardResult, parallelism)
	err = traverse.Each(parallelism, func(jobIdx int) error {
		startIdx := (jobIdx * len(shards)) / parallelism
		endIdx := ((jobIdx + 1) * len(shards)) / parallelism
		out := &results[jobIdx]
		for _, shard := range shards[startIdx:endIdx] {
			if err := ctx.Err(); err != nil {
				return err
			}
			iter := req.Provider.NewIterator(shard)
			for iter.Scan() {
				rec := iter.Record()
				if !shard.RecordInShard(rec) {
					continue
				}
				c.classify(rec, out)
			}
			if err := iter.Close(); err != nil {
				return errors.E(err, shard.String())
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.E(err, req.Sample)
	}

	ev := &Evidence{Sample: req.Sample}
	for _, r := range results {
		ev.Junctions = append(ev.Junctions, r.junctions...)
		ev.Discordant = append(ev.Discordant, r.discordant...)
		ev.Stats = ev.Stats.Merge(r.stats)
	}
	ev.Stats.Duplicates = ev.dedup()
	log.Printf("%s: %v", req.Sample, ev.Stats)
	return ev, nil
}
