package main

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Neumenon/schemapack/schemapack"
)

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [file]",
		Short: "Print the header of a binary buffer",
		Long: `Reads a buffer from file or stdin and prints its structure, root schema
id, element count and size without decoding it. With --schema the id is
resolved to a name and layout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			data, compressed, err := maybeDecompress(input, a.cfg.BufferSize)
			if err != nil {
				return err
			}
			structure, err := schemapack.PeekStructure(data)
			if err != nil {
				return fmt.Errorf("inspect: %w", err)
			}
			id, err := schemapack.PeekSchemaID(data)
			if err != nil {
				return fmt.Errorf("inspect: %w", err)
			}

			w := cmd.OutOrStdout()
			printRow(w, "structure", structure.String())
			printRow(w, "schema id", fmt.Sprint(id))
			if structure == schemapack.StructureArray && len(data) >= 4 {
				printRow(w, "elements", fmt.Sprint(binary.BigEndian.Uint16(data[2:4])))
			}
			printRow(w, "bytes", fmt.Sprint(len(data)))
			if compressed {
				printRow(w, "zstd bytes", fmt.Sprint(len(input)))
			}

			if a.schemaPath == "" {
				return nil
			}
			if err := a.loadSchemas(); err != nil {
				return err
			}
			s, ok := a.reg.Lookup(id)
			if !ok {
				return fmt.Errorf("inspect: %w: %d", schemapack.ErrUnknownSchema, id)
			}
			printRow(w, "schema", color.New(color.FgGreen, color.Bold).Sprint(s.Label()))
			printRow(w, "hash", s.Hash())
			printRow(w, "layout", s.Canonical())
			return nil
		},
	}
}

func printRow(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%s %s\n", color.New(color.FgCyan).Sprintf("%-10s", label+":"), value)
}
