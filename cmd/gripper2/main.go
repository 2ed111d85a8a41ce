// gripper2 detects gene retrocopy insertion polymorphisms in paired-end WGS
// alignments.
//
// Example:
//
//	gripper2 index ref.fa sample.bam
//	gripper2 call -ref=ref.fa -out=calls -rio-output=calls.rio genes.gtf sample.bam
//	gripper2 filter -min-discordant=6 -out=strict calls.rio
package main

import (
	"log"

	"github.com/grailbio/base/cmdutil"
	"v.io/x/lib/cmdline"
)

func newCmdVersion() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "version",
		Short: "Print the distribution metadata",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		return printVersion(env.Stdout)
	})
	return cmd
}

func newRoot() *cmdline.Command {
	return &cmdline.Command{
		Name:     "gripper2",
		Short:    "Detect gene retrocopy insertion polymorphisms from short-read paired-end WGS",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdCall(),
			newCmdFilter(),
			newCmdIndex(),
			newCmdVersion(),
		},
	}
}

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(newRoot())
}
