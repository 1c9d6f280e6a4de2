package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Neumenon/schemapack/schemapack"
)

func newEncodeCmd(a *app) *cobra.Command {
	var (
		out       string
		zstdFrame bool
	)
	cmd := &cobra.Command{
		Use:   "encode [file]",
		Short: "Encode a JSON object or array of objects",
		Long: `Reads JSON from file or stdin and writes the binary encoding of the root
schema. An array encodes as an array buffer, an object as a single buffer.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.rootSchema()
			if err != nil {
				return err
			}
			input, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			value, err := parseJSON(input)
			if err != nil {
				return err
			}

			m := schemapack.NewModel(s, a.cfg.ModelOptions()...)
			data, err := m.Encode(value)
			if err != nil {
				return fmt.Errorf("encode %s: %w", s.Label(), err)
			}
			size := len(data)
			if zstdFrame {
				if data, err = compress(data); err != nil {
					return err
				}
			}
			a.log.Info("encoded", "schema", s.Label(), "bytes", size, "written", len(data), "json", len(input))
			return writeOutput(cmd, out, data)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&zstdFrame, "compress", false, "wrap the output in a zstd frame")
	return cmd
}

// parseJSON keeps numbers as json.Number so 64-bit integers survive.
func parseJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("parse json: unexpected data after value")
	}
	return v, nil
}
