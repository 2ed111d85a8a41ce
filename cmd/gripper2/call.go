package main

import (
	"context"
	"fmt"

	"github.com/adamewing/gripper2/annotation"
	"github.com/adamewing/gripper2/encoding/fasta"
	"github.com/adamewing/gripper2/interval"
	"github.com/adamewing/gripper2/retro"
	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/sam"
	"v.io/x/lib/cmdline"
)

// outputFlags are shared by call and filter.
type outputFlags struct {
	out           *string
	gzip          *bool
	vcf           *bool
	metricsOutput *string
}

func newOutputFlags(cmd *cmdline.Command) outputFlags {
	return outputFlags{
		out:           cmd.Flags.String("out", "gripper2", "Output path prefix; calls go to <out>.tsv and <out>.vcf"),
		gzip:          cmd.Flags.Bool("gzip", false, "BGZF-compress the TSV output, <out>.tsv.gz"),
		vcf:           cmd.Flags.Bool("vcf", true, "Also write calls as VCF"),
		metricsOutput: cmd.Flags.String("metrics-output", "", "If set, write run metrics in Prometheus text format to this path"),
	}
}

type callFlags struct {
	ref        *string
	index      *string
	sampleList *string
	exclude    *string
	region     *string
	config     *string
	rioOutput  *string
	output     outputFlags
	opts       *optFlags
	gtf        *gtfFlags
}

func newCmdCall() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "call",
		Short:    "Scan BAMs for retrocopy insertions",
		ArgsName: "gtf bam...",
		Long: `
Call scans coordinate-sorted, indexed BAM files for reads spanning exon-exon
junctions and for discordant pairs anchored in exons, clusters the discordant
mates into insertion sites, refines each site with split reads, and writes the
calls. BAMs may be given as separate arguments or as a comma-separated list.`,
	}
	flags := callFlags{
		ref:        cmd.Flags.String("ref", "", "Reference FASTA. Enables sequence matching of junction clips"),
		index:      cmd.Flags.String("index", "", "Comma-separated BAM index paths, one per BAM. By default <bam>.bai"),
		sampleList: cmd.Flags.String("samples", "", "Comma-separated sample names, one per BAM. By default the SM of the first read group"),
		exclude:    cmd.Flags.String("exclude", "", "BED file of regions where mates and sites are ignored"),
		region:     cmd.Flags.String("region", "", "Comma-separated regions to scan, e.g. chr1:1000-2000. By default, all genes"),
		config:     cmd.Flags.String("config", "", "TOML file of detection options; flags given explicitly override it"),
		rioOutput:  cmd.Flags.String("rio-output", "", "If set, dump the evidence to this recordio file for 'gripper2 filter'"),
		output:     newOutputFlags(cmd),
	}
	flags.opts = newOptFlags(cmd)
	flags.gtf = newGTFFlags(&cmd.Flags)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) < 2 {
			return fmt.Errorf("call takes a GTF and at least one BAM, but got %v", argv)
		}
		var bams []string
		for _, a := range argv[1:] {
			bams = append(bams, splitList(a)...)
		}
		return runCall(vcontext.Background(), flags, argv[0], bams)
	})
	return cmd
}

func runCall(ctx context.Context, flags callFlags, gtfPath string, bams []string) (err error) {
	opts, err := flags.opts.resolve(ctx, retro.DefaultOpts, *flags.config)
	if err != nil {
		return err
	}
	ss, err := samples(bams, *flags.index, *flags.sampleList)
	if err != nil {
		return err
	}
	regions, err := interval.ParseRegions(*flags.region)
	if err != nil {
		return err
	}
	exclude, err := readExclude(ctx, *flags.exclude)
	if err != nil {
		return err
	}
	genes, err := annotation.ReadGTF(ctx, gtfPath, flags.gtf.opts)
	if err != nil {
		return err
	}
	db, err := annotation.NewDB(genes)
	if err != nil {
		return err
	}
	var ref fasta.Fasta
	if *flags.ref != "" {
		var closeRef func() error
		if ref, closeRef, err = fasta.Open(ctx, *flags.ref); err != nil {
			return err
		}
		defer func() {
			if e := closeRef(); e != nil && err == nil {
				err = e
			}
		}()
	}

	res, err := retro.Detect(ctx, retro.DetectRequest{
		Samples: ss,
		DB:      db,
		Ref:     ref,
		Exclude: exclude,
		Regions: regions,
		Opts:    opts,
	})
	if err != nil {
		return err
	}
	if *flags.rioOutput != "" {
		w, err := retro.NewEvidenceWriter(ctx, *flags.rioOutput, opts, flags.gtf.opts, genes)
		if err != nil {
			return err
		}
		e := errors.Once{}
		for _, ev := range res.Evidence {
			e.Set(w.Write(ev))
		}
		e.Set(w.Close(ctx))
		if err := e.Err(); err != nil {
			return err
		}
		log.Printf("wrote evidence to %s", *flags.rioOutput)
	}
	return writeOutputs(ctx, flags.output, res.Calls, res.Samples, res.SampleStats, res.Header, ref, *flags.ref, opts)
}

// writeOutputs writes the TSV, and optionally the VCF and metrics files.
func writeOutputs(ctx context.Context, flags outputFlags, calls []*retro.Call, samples []string,
	stats []retro.Stats, header *sam.Header, ref fasta.Fasta, refPath string, opts retro.Opts) error {
	tsvPath := *flags.out + ".tsv"
	if *flags.gzip {
		tsvPath += ".gz"
	}
	if err := retro.WriteTSVFile(ctx, tsvPath, calls, samples, max(1, opts.Parallelism)); err != nil {
		return err
	}
	if *flags.vcf {
		vcfPath := *flags.out + ".vcf"
		if err := retro.WriteVCFFile(ctx, vcfPath, calls, samples, retro.VCFOpts{
			Header:  header,
			Ref:     ref,
			RefPath: refPath,
		}); err != nil {
			return err
		}
	}
	if *flags.metricsOutput != "" {
		if err := retro.WriteMetrics(ctx, *flags.metricsOutput, samples, stats); err != nil {
			return errors.E(err, *flags.metricsOutput)
		}
	}
	pass := 0
	for _, c := range calls {
		if c.Pass() {
			pass++
		}
	}
	log.Printf("wrote %d calls (%d passing) to %s", len(calls), pass, tsvPath)
	return nil
}
