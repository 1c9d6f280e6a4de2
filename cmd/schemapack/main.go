// schemapack - schema-driven binary codec CLI
//
// Usage:
//
//	schemapack schema  --schema game.yaml                      List defined schemas
//	schemapack encode  --schema game.yaml --root player [file]  JSON to binary
//	schemapack decode  --schema game.yaml [file]                Binary to JSON
//	schemapack inspect [--schema game.yaml] [file]              Show the buffer header
//	schemapack version                                         Print version info
//
// If no file is given, input is read from stdin. Settings come from
// SCHEMAPACK_BUFFER_SIZE, SCHEMAPACK_LOG_LEVEL and SCHEMAPACK_LOG_FORMAT.
package main

import (
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
