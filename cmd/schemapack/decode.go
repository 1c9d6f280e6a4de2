package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Neumenon/schemapack/schemapack"
)

func newDecodeCmd(a *app) *cobra.Command {
	var (
		out    string
		pretty bool
	)
	cmd := &cobra.Command{
		Use:   "decode [file]",
		Short: "Decode a binary buffer to JSON",
		Long: `Reads a buffer from file or stdin and prints it as JSON. The schema is
chosen by the id stored in the buffer; --root additionally requires a match.
Zstd frames written by "encode --compress" are unwrapped automatically.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadSchemas(); err != nil {
				return err
			}
			input, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			data, compressed, err := maybeDecompress(input, a.cfg.BufferSize)
			if err != nil {
				return err
			}

			router := schemapack.NewRouter(a.cfg.ModelOptions()...)
			router.RegisterAll(a.reg)
			s, value, err := router.Decode(data)
			if err != nil {
				return fmt.Errorf("decode: %w", err)
			}
			if a.rootName != "" && s.Name() != a.rootName {
				return fmt.Errorf("decode: %w: buffer holds %s, want %s", schemapack.ErrSchemaMismatch, s.Label(), a.rootName)
			}
			a.log.Info("decoded", "schema", s.Label(), "bytes", len(data), "compressed", compressed)

			var text []byte
			if pretty {
				text, err = json.MarshalIndent(value, "", "  ")
			} else {
				text, err = json.Marshal(value)
			}
			if err != nil {
				return fmt.Errorf("marshal json: %w", err)
			}
			return writeOutput(cmd, out, append(text, '\n'))
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON output")
	return cmd
}
