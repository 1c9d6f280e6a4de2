package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	libVersion    = "0.1.0"
	formatVersion = "1"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of schemapack",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "schemapack %s (wire format %s)\n", libVersion, formatVersion)
		},
	}
}
