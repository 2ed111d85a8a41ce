package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/adamewing/gripper2/annotation"
	"github.com/adamewing/gripper2/interval"
	"github.com/adamewing/gripper2/retro"
	"github.com/grailbio/base/errors"
	"v.io/x/lib/cmdline"
)

// optField binds a command-line flag to one retro.Opts field.
type optField struct {
	name  string
	usage string
	field func(o *retro.Opts) interface{}
}

var optFields = []optField{
	{"min-mapq", "Minimum mapping quality of evidence reads", func(o *retro.Opts) interface{} { return &o.MinMapQ }},
	{"min-mate-mapq", "Minimum mate mapping quality (MQ tag)", func(o *retro.Opts) interface{} { return &o.MinMateMapQ }},
	{"exclude-duplicates", "Skip reads flagged as duplicates", func(o *retro.Opts) interface{} { return &o.ExcludeDuplicates }},
	{"min-clip-len", "Shortest soft clip considered as an exon junction", func(o *retro.Opts) interface{} { return &o.MinClipLen }},
	{"max-clip-mismatch", "Max mismatches between a junction clip and the adjacent exon", func(o *retro.Opts) interface{} { return &o.MaxClipMismatch }},
	{"boundary-tolerance", "Max distance of a clip from an exon boundary", func(o *retro.Opts) interface{} { return &o.BoundaryTolerance }},
	{"max-fragment-len", "Largest same-chromosome mate distance of a concordant pair", func(o *retro.Opts) interface{} { return &o.MaxFragmentLen }},
	{"gene-margin", "Mates within this distance of the anchor gene are not discordant", func(o *retro.Opts) interface{} { return &o.GeneMargin }},
	{"cluster-window", "Max gap between consecutive mates of one cluster", func(o *retro.Opts) interface{} { return &o.ClusterWindow }},
	{"min-discordant", "Minimum discordant pairs per site", func(o *retro.Opts) interface{} { return &o.MinDiscordant }},
	{"min-distinct-exons", "Minimum parent exons hit by anchors", func(o *retro.Opts) interface{} { return &o.MinDistinctExons }},
	{"min-junction-reads", "Minimum exon-junction reads for the parent gene", func(o *retro.Opts) interface{} { return &o.MinJunctionReads }},
	{"max-genes-per-site", "Sites claimed by more genes are Ambiguous", func(o *retro.Opts) interface{} { return &o.MaxGenesPerSite }},
	{"site-window", "Half-width of the region read around each site", func(o *retro.Opts) interface{} { return &o.SiteWindow }},
	{"min-site-clip-len", "Shortest soft clip counted as a split read", func(o *retro.Opts) interface{} { return &o.MinSiteClipLen }},
	{"min-ref-overlap", "Bases a reference read must extend past the breakpoint on each side", func(o *retro.Opts) interface{} { return &o.MinRefOverlap }},
	{"polya-fraction", "A or T fraction that makes a clip a poly-A tail", func(o *retro.Opts) interface{} { return &o.PolyAFraction }},
	{"shard-size", "Bases per scan shard", func(o *retro.Opts) interface{} { return &o.ShardSize }},
	{"parallelism", "Max concurrent shards and site queries; 0 means one per CPU", func(o *retro.Opts) interface{} { return &o.Parallelism }},
}

// optFlags holds the values of the retro.Opts flags of one command.
type optFlags struct {
	cmd  *cmdline.Command
	vals retro.Opts
}

func newOptFlags(cmd *cmdline.Command) *optFlags {
	f := &optFlags{cmd: cmd, vals: retro.DefaultOpts}
	fs := &cmd.Flags
	for _, o := range optFields {
		switch p := o.field(&f.vals).(type) {
		case *int:
			fs.IntVar(p, o.name, *p, o.usage)
		case *bool:
			fs.BoolVar(p, o.name, *p, o.usage)
		case *float64:
			fs.Float64Var(p, o.name, *p, o.usage)
		default:
			panic(fmt.Sprintf("flag %s: unsupported type %T", o.name, p))
		}
	}
	return f
}

// resolve returns base, overlaid with the config file if configPath is set,
// then with the flags given explicitly on the command line.
func (f *optFlags) resolve(ctx context.Context, base retro.Opts, configPath string) (retro.Opts, error) {
	opts := base
	if configPath != "" {
		var err error
		if opts, err = retro.LoadOpts(ctx, configPath, base); err != nil {
			return opts, err
		}
	}
	// cmdline parses a copy of cmd.Flags; only the copy knows which flags
	// were given.
	parsed := f.cmd.ParsedFlags
	if parsed == nil {
		parsed = &f.cmd.Flags
	}
	set := map[string]bool{}
	parsed.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	for _, o := range optFields {
		if !set[o.name] {
			continue
		}
		switch dst := o.field(&opts).(type) {
		case *int:
			*dst = *o.field(&f.vals).(*int)
		case *bool:
			*dst = *o.field(&f.vals).(*bool)
		case *float64:
			*dst = *o.field(&f.vals).(*float64)
		}
	}
	return opts, opts.Validate()
}

// gtfFlags holds the annotation filtering flags.
type gtfFlags struct {
	opts annotation.GTFOpts
}

func newGTFFlags(fs *flag.FlagSet) *gtfFlags {
	f := &gtfFlags{opts: annotation.DefaultGTFOpts}
	fs.BoolVar(&f.opts.CodingOnly, "coding-only", f.opts.CodingOnly, "Use protein-coding transcripts only")
	fs.BoolVar(&f.opts.KeepMitochondrial, "keep-mito", f.opts.KeepMitochondrial, "Keep genes on the mitochondrial chromosome")
	fs.BoolVar(&f.opts.KeepReadthrough, "keep-readthrough", f.opts.KeepReadthrough, "Keep readthrough genes")
	fs.BoolVar(&f.opts.KeepPARY, "keep-par-y", f.opts.KeepPARY, "Keep _PAR_Y gene copies")
	fs.BoolVar(&f.opts.KeepVersionedGenes, "keep-versioned-genes", f.opts.KeepVersionedGenes, "Keep genes with clone-based names such as AC012345.1")
	fs.IntVar(&f.opts.MinExons, "min-exons", f.opts.MinExons, "Drop genes with fewer distinct exons")
	fs.IntVar(&f.opts.MinIntronLen, "min-intron-len", f.opts.MinIntronLen, "Shortest gap between exons treated as an intron")
	return f
}

// splitList splits a comma-separated flag value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// readExclude loads the exclusion BED at path, or returns nil if path is "".
func readExclude(ctx context.Context, path string) (*interval.BEDUnion, error) {
	if path == "" {
		return nil, nil
	}
	u, err := interval.NewBEDUnionFromPath(ctx, path, interval.NewBEDOpts{})
	if err != nil {
		return nil, errors.E(err, "exclude", path)
	}
	return &u, nil
}

// samples pairs BAM paths with their index paths and optional names.
func samples(bams []string, indexes, names string) ([]retro.Sample, error) {
	idx := splitList(indexes)
	nm := splitList(names)
	if len(idx) > 0 && len(idx) != len(bams) {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("got %d -index paths for %d BAMs", len(idx), len(bams)))
	}
	if len(nm) > 0 && len(nm) != len(bams) {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("got %d -samples names for %d BAMs", len(nm), len(bams)))
	}
	var out []retro.Sample
	for i, b := range bams {
		s := retro.Sample{Path: b}
		if len(idx) > 0 {
			s.Index = idx[i]
		}
		if len(nm) > 0 {
			s.Name = nm[i]
		}
		out = append(out, s)
	}
	return out, nil
}
