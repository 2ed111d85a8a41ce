package main

import (
	"fmt"
	"io"

	"github.com/adamewing/gripper2/version"
)

func printVersion(w io.Writer) error {
	if _, err := fmt.Fprintln(w, version.String()); err != nil {
		return err
	}
	for _, f := range version.Metadata() {
		if _, err := fmt.Fprintf(w, "%s: %s\n", f.Key, f.Value); err != nil {
			return err
		}
	}
	return nil
}
