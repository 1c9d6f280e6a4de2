package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "List the schemas of a YAML document",
		Long:  `Compiles the --schema document and prints each schema with its id, hash, fixed size and canonical layout.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadSchemas(); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			name := color.New(color.FgGreen, color.Bold)
			dim := color.New(color.FgHiBlack)
			for _, s := range a.reg.Schemas() {
				size := "variable"
				if n, ok := s.FixedSize(); ok {
					size = fmt.Sprintf("%d bytes", n)
				}
				fmt.Fprintf(w, "#%-3d %s %s %s\n", s.ID(), name.Sprint(s.Label()), dim.Sprint(s.Hash()), dim.Sprint(size))
				fmt.Fprintf(w, "     %s\n", s.Canonical())
			}
			return nil
		},
	}
}
