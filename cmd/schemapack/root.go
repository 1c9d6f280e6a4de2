package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Neumenon/schemapack/internal/config"
	"github.com/Neumenon/schemapack/internal/logging"
	"github.com/Neumenon/schemapack/schemafile"
	"github.com/Neumenon/schemapack/schemapack"
)

var errNoSchemaFile = errors.New("--schema is required")

// app carries state shared by all commands of one invocation.
type app struct {
	schemaPath string
	rootName   string
	noColor    bool

	cfg *config.Config
	log *slog.Logger
	reg *schemapack.Registry
	set *schemafile.Set
}

func newRootCmd() *cobra.Command {
	a := &app{log: logging.NewNop()}

	root := &cobra.Command{
		Use:           "schemapack",
		Short:         "schemapack encodes JSON values into compact schema-driven binary",
		Long:          `schemapack compiles YAML schema documents and converts values between JSON and the schemapack binary layout.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.noColor {
				color.NoColor = true
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logging.New(cfg.SlogLevel(), cfg.LogFormat, cmd.ErrOrStderr())
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.schemaPath, "schema", "", "YAML schema document")
	root.PersistentFlags().StringVar(&a.rootName, "root", "", "name of the root schema")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newSchemaCmd(a),
		newEncodeCmd(a),
		newDecodeCmd(a),
		newInspectCmd(a),
		newVersionCmd(),
	)
	return root
}

// loadSchemas compiles the --schema document once per invocation.
func (a *app) loadSchemas() error {
	if a.set != nil {
		return nil
	}
	if a.schemaPath == "" {
		return errNoSchemaFile
	}
	reg := schemapack.NewRegistry(schemapack.WithLogger(a.log))
	set, err := schemafile.LoadFile(reg, a.schemaPath)
	if err != nil {
		return err
	}
	a.reg, a.set = reg, set
	a.log.Debug("schemas loaded", "path", a.schemaPath, "count", set.Len())
	return nil
}

// rootSchema resolves --root, or the only schema of a one-schema document.
func (a *app) rootSchema() (*schemapack.Schema, error) {
	if err := a.loadSchemas(); err != nil {
		return nil, err
	}
	if a.rootName == "" {
		if a.set.Len() == 1 {
			s, _ := a.set.Get(a.set.Names()[0])
			return s, nil
		}
		return nil, fmt.Errorf("--root is required, choose one of: %s", strings.Join(a.set.Names(), ", "))
	}
	s, ok := a.set.Get(a.rootName)
	if !ok {
		return nil, fmt.Errorf("unknown root schema %q", a.rootName)
	}
	return s, nil
}
