package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"medgate/internal/vlm"
)

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Fprintf(stdout, "medgate %s (commit: %s, built: %s, tokenizer: %s)\n", version, commit, date, vlm.TokenizerRuntime)
			return nil
		},
	}
}
