package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/decl/pkg/decl"
)

// newReadCmd creates the 'read' command.
func newReadCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "read <artifact>",
		Short: "Print the metadata embedded in an ELF artifact",
		Long: `Decode the Version and Data notes in the .note.decl section of an ELF artifact
and print the payload as YAML.

The artifact is never executed. Extraction fails if the section or either
note is missing, if the schema version is unknown to this build, or if the
payload does not decode.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := decl.ExtractFile(path, decl.WithLogger(opts.logger))
			if err != nil {
				return fmt.Errorf("parsing %s: %w", path, err)
			}

			if err := (yamlFormatter{}).Format(data, cmd.OutOrStdout()); err != nil {
				return fmt.Errorf("failed to print payload: %w", err)
			}
			return nil
		},
	}
}
