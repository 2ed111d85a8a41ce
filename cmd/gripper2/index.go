package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/adamewing/gripper2/encoding/bamprovider"
	"github.com/adamewing/gripper2/encoding/fasta"
	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"v.io/x/lib/cmdline"
)

func newCmdIndex() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "index",
		Short:    "Write .bai indexes for BAM files and .fai indexes for FASTA files",
		ArgsName: "path...",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) == 0 {
			return fmt.Errorf("index takes at least one path")
		}
		ctx := vcontext.Background()
		for _, path := range argv {
			if err := indexFile(ctx, path); err != nil {
				return err
			}
		}
		return nil
	})
	return cmd
}

// indexFile writes path.bai for a BAM and path.fai for anything else.
func indexFile(ctx context.Context, path string) error {
	if strings.HasSuffix(path, ".bam") {
		if err := bamprovider.IndexBAM(ctx, path, ""); err != nil {
			return err
		}
		log.Printf("wrote %s.bai", path)
		return nil
	}
	return indexFASTA(ctx, path)
}

func indexFASTA(ctx context.Context, path string) (err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, in, &err)
	out, err := file.Create(ctx, path+".fai")
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	if err := fasta.GenerateIndex(out.Writer(ctx), in.Reader(ctx)); err != nil {
		return errors.E(err, path)
	}
	log.Printf("wrote %s.fai", path)
	return nil
}
