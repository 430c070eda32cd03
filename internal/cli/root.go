// Package cli implements the decl command line.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/decl/internal/constants"
	"github.com/coral-mesh/decl/internal/logging"
	"github.com/coral-mesh/decl/pkg/decl/model"
	"github.com/coral-mesh/decl/pkg/version"
)

// rootOptions holds state shared by all subcommands.
type rootOptions struct {
	logLevel string
	logger   zerolog.Logger
}

// NewRootCmd creates the decl command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{logger: zerolog.Nop()}

	cmd := &cobra.Command{
		Use:   "decl",
		Short: "Embed and read versioned metadata in ELF notes",
		Long: `Embed build metadata into the .note.decl section of an ELF artifact and read
it back without executing the artifact.

Each artifact carries two notes from the "decl" producer:
- Version: the payload schema version (currently ` + model.Version + `)
- Data: the JSON payload {"an_int": ..., "some_strings": [...]}

Commands:
- patch: add the notes to an already linked ELF file
- gen:   generate C source that compiles the notes into a cgo binary
- read:  decode the notes of an artifact
- schema: print the JSON Schema of a payload version`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := logging.DefaultConfig()
			if cmd.Flags().Changed("log-level") {
				cfg.Level = opts.logLevel
			}
			if _, err := logging.ParseLevel(cfg.Level); err != nil {
				return err
			}
			cfg.Output = cmd.ErrOrStderr()
			cfg.Pretty = logging.IsTerminal(cfg.Output)

			opts.logger = logging.NewWithComponent(cfg, cmd.Name())
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", constants.DefaultLogLevel,
		"Log level (trace, debug, info, warn, error); defaults to $"+constants.EnvLogLevel)

	cmd.AddCommand(newReadCmd(opts))
	cmd.AddCommand(newPatchCmd(opts))
	cmd.AddCommand(newGenCmd(opts))
	cmd.AddCommand(newSchemaCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "decl version %s\n", version.Version)
			fmt.Fprintf(w, "Schema version: %s\n", model.Version)
			fmt.Fprintf(w, "Git commit: %s\n", version.GitCommit)
			fmt.Fprintf(w, "Build date: %s\n", version.BuildDate)
			fmt.Fprintf(w, "Go version: %s\n", version.GoVersion)
		},
	}
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
