package cli

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/decl/internal/constants"
	"github.com/coral-mesh/decl/internal/safe"
	"github.com/coral-mesh/decl/pkg/decl/embed"
	"github.com/coral-mesh/decl/pkg/decl/note"
)

// newGenCmd creates the 'gen' command.
func newGenCmd(opts *rootOptions) *cobra.Command {
	var (
		payload payloadFlags
		output  string
	)

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate C source that compiles decl notes into a cgo binary",
		Long: `Generate a C file declaring the Version and Data notes in the .note.decl
section. Placed in a Go package that imports "C", cgo compiles it into the
binary and the host linker keeps the section.

Use with go:generate:
  //go:generate decl gen --int 42 --string a --string b -o decl_note.c`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := payload.resolve(cmd)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := embed.GenerateC(&buf, data); err != nil {
				return err
			}

			if output == "-" {
				_, err := cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if err := safe.WriteFileAtomic(output, buf.Bytes(), 0o644, opts.logger); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}

			opts.logger.Info().
				Str("file", output).
				Str("fingerprint", note.Fingerprint(embed.DataDesc(data))).
				Msg("Generated note source")
			return nil
		},
	}

	payload.register(cmd.Flags())
	cmd.Flags().StringVarP(&output, "output", "o", constants.DefaultGeneratedSource, "Output file, - for stdout")

	return cmd
}
