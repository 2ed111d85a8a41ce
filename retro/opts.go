package retro

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// Opts controls detection. Field tags name the keys accepted in a TOML
// config file.
type Opts struct {
	// MinMapQ is the minimum mapping quality of reads used as evidence.
	MinMapQ int `toml:"min_mapq"`
	// MinMateMapQ is the minimum mate mapping quality, read from the MQ tag
	// when the aligner wrote one.
	MinMateMapQ int `toml:"min_mate_mapq"`
	// ExcludeDuplicates skips reads flagged as PCR or optical duplicates.
	ExcludeDuplicates bool `toml:"exclude_duplicates"`

	// MinClipLen is the shortest soft clip considered as an exon junction.
	MinClipLen int `toml:"min_clip_len"`
	// MaxClipMismatch is the max Hamming distance between a clip and the
	// neighboring exon.
	MaxClipMismatch int `toml:"max_clip_mismatch"`
	// BoundaryTolerance is how far, in bases, a clip may be from an exon
	// boundary.
	BoundaryTolerance int `toml:"boundary_tolerance"`

	// MaxFragmentLen is the largest same-chromosome mate distance of a
	// concordant pair.
	MaxFragmentLen int `toml:"max_fragment_len"`
	// GeneMargin: mates within this distance of the anchor's gene are not
	// discordant.
	GeneMargin int `toml:"gene_margin"`

	// ClusterWindow is the largest gap between consecutive mates of one
	// cluster.
	ClusterWindow int `toml:"cluster_window"`
	// MinDiscordant is the minimum number of discordant pairs per site.
	MinDiscordant int `toml:"min_discordant"`
	// MinDistinctExons is the minimum number of parent exons hit by anchors.
	MinDistinctExons int `toml:"min_distinct_exons"`
	// MinJunctionReads is the minimum number of junction reads for the parent
	// gene.
	MinJunctionReads int `toml:"min_junction_reads"`
	// MaxGenesPerSite marks sites claimed by more genes than this as
	// ambiguous.
	MaxGenesPerSite int `toml:"max_genes_per_site"`

	// SiteWindow is the half-width of the region read around each site.
	SiteWindow int `toml:"site_window"`
	// MinSiteClipLen is the shortest soft clip counted as a split read.
	MinSiteClipLen int `toml:"min_site_clip_len"`
	// MinRefOverlap is how far a read must extend past the breakpoint on both
	// sides to count as reference support.
	MinRefOverlap int `toml:"min_ref_overlap"`
	// PolyAFraction is the A (or T) fraction of a clip that makes it a poly-A
	// tail.
	PolyAFraction float64 `toml:"polya_fraction"`

	// ShardSize is the number of bases per scan shard.
	ShardSize int `toml:"shard_size"`
	// Parallelism caps concurrent shards and site queries. 0 means
	// runtime.NumCPU().
	Parallelism int `toml:"parallelism"`
}

// DefaultOpts sets the default values to Opts.
var DefaultOpts = Opts{
	MinMapQ:           20,
	MinMateMapQ:       20,
	ExcludeDuplicates: true,
	MinClipLen:        10,
	MaxClipMismatch:   1,
	BoundaryTolerance: 2,
	MaxFragmentLen:    1000,
	GeneMargin:        5000,
	ClusterWindow:     500,
	MinDiscordant:     4,
	MinDistinctExons:  2,
	MinJunctionReads:  2,
	MaxGenesPerSite:   3,
	SiteWindow:        600,
	MinSiteClipLen:    10,
	MinRefOverlap:     10,
	PolyAFraction:     0.8,
	ShardSize:         10000000,
	Parallelism:       0,
}

// Validate checks that opts are usable.
func (o Opts) Validate() error {
	var bad []string
	check := func(ok bool, name string) {
		if !ok {
			bad = append(bad, name)
		}
	}
	check(o.MinClipLen > 0, "min_clip_len")
	check(o.MaxClipMismatch >= 0, "max_clip_mismatch")
	check(o.BoundaryTolerance >= 0, "boundary_tolerance")
	check(o.MaxFragmentLen > 0, "max_fragment_len")
	check(o.GeneMargin >= 0, "gene_margin")
	check(o.ClusterWindow > 0, "cluster_window")
	check(o.MinDiscordant > 0, "min_discordant")
	check(o.MaxGenesPerSite > 0, "max_genes_per_site")
	check(o.SiteWindow > 0, "site_window")
	check(o.MinSiteClipLen > 0, "min_site_clip_len")
	check(o.PolyAFraction > 0 && o.PolyAFraction <= 1, "polya_fraction")
	check(o.ShardSize > 0, "shard_size")
	check(o.Parallelism >= 0, "parallelism")
	if len(bad) > 0 {
		return errors.E(errors.Invalid, "invalid options: "+strings.Join(bad, ", "))
	}
	return nil
}

func (o Opts) parallelism() int {
	if o.Parallelism > 0 {
		return o.Parallelism
	}
	return runtime.NumCPU()
}

// LoadOpts overlays the TOML config file at path on base. Keys absent from
// the file keep their base values; unknown keys are an error.
func LoadOpts(ctx context.Context, path string, base Opts) (Opts, error) {
	data, err := file.ReadFile(ctx, path)
	if err != nil {
		return base, err
	}
	opts := base
	md, err := toml.Decode(string(data), &opts)
	if err != nil {
		return base, errors.E(errors.Invalid, path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return base, errors.E(errors.Invalid, fmt.Sprintf("%s: unknown keys %v", path, undecoded))
	}
	return opts, opts.Validate()
}
