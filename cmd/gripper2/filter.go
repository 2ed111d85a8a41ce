package main

import (
	"context"
	"fmt"

	"github.com/adamewing/gripper2/encoding/bamprovider"
	"github.com/adamewing/gripper2/encoding/fasta"
	"github.com/adamewing/gripper2/retro"
	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/sam"
	"v.io/x/lib/cmdline"
)

type filterFlags struct {
	bams    *string
	index   *string
	ref     *string
	exclude *string
	config  *string
	output  outputFlags
	opts    *optFlags
}

func newCmdFilter() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "filter",
		Short:    "Re-cluster and filter evidence dumped by 'gripper2 call -rio-output'",
		ArgsName: "rio",
		Long: `
Filter reads the evidence file written by 'call', and reruns clustering,
filtering, and sample merging with new options, without rescanning the BAMs.
Options start from the values stored in the file. Sites are refined with split
reads only when -bam is given.`,
	}
	flags := filterFlags{
		bams:    cmd.Flags.String("bam", "", "Comma-separated BAMs, in the sample order of the evidence file, used to refine sites"),
		index:   cmd.Flags.String("index", "", "Comma-separated BAM index paths, one per BAM"),
		ref:     cmd.Flags.String("ref", "", "Reference FASTA, for the VCF REF column"),
		exclude: cmd.Flags.String("exclude", "", "BED file of regions where sites are ignored"),
		config:  cmd.Flags.String("config", "", "TOML file of detection options"),
		output:  newOutputFlags(cmd),
	}
	flags.opts = newOptFlags(cmd)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("filter takes one recordio path, but got %v", argv)
		}
		return runFilter(vcontext.Background(), flags, argv[0])
	})
	return cmd
}

func runFilter(ctx context.Context, flags filterFlags, rioPath string) (err error) {
	evs, db, stored, err := retro.ReadEvidenceFile(ctx, rioPath)
	if err != nil {
		return err
	}
	opts, err := flags.opts.resolve(ctx, stored, *flags.config)
	if err != nil {
		return err
	}
	exclude, err := readExclude(ctx, *flags.exclude)
	if err != nil {
		return err
	}
	names := make([]string, len(evs))
	for i, ev := range evs {
		names[i] = ev.Sample
	}

	var (
		providers []bamprovider.Provider
		header    *sam.Header
	)
	if bams := splitList(*flags.bams); len(bams) > 0 {
		var ss []retro.Sample
		if ss, err = samples(bams, *flags.index, ""); err != nil {
			return err
		}
		if len(ss) != len(evs) {
			return errors.E(errors.Invalid, fmt.Sprintf("got %d BAMs for %d samples in %s", len(ss), len(evs), rioPath))
		}
		defer func() {
			e := errors.Once{}
			e.Set(err)
			for _, p := range providers {
				e.Set(p.Close())
			}
			err = e.Err()
		}()
		for _, s := range ss {
			providers = append(providers, bamprovider.NewProvider(s.Path, bamprovider.ProviderOpts{Index: s.Index}))
		}
		if header, err = providers[0].GetHeader(); err != nil {
			return err
		}
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

	calls, stats, err := retro.CallEvidence(ctx, evs, providers, db, exclude, opts)
	if err != nil {
		return err
	}
	retro.SortCalls(calls, retro.RefOrder(header))
	return writeOutputs(ctx, flags.output, calls, names, stats, header, ref, *flags.ref, opts)
}
