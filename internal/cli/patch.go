package cli

import (
	"github.com/spf13/cobra"

	"github.com/coral-mesh/decl/pkg/decl/embed"
)

// newPatchCmd creates the 'patch' command.
func newPatchCmd(opts *rootOptions) *cobra.Command {
	var (
		payload payloadFlags
		output  string
	)

	cmd := &cobra.Command{
		Use:   "patch <artifact>",
		Short: "Add decl notes to a linked ELF artifact",
		Long: `Append a .note.decl section holding the Version and Data notes to an ELF
artifact. The section is not loaded at run time and existing sections are
left untouched. Artifacts that already have a .note.decl section are
rejected.

Examples:
  decl patch ./app --int 42 --string a --string b
  decl patch ./app --config decl.yaml -o ./app.annotated`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := payload.resolve(cmd)
			if err != nil {
				return err
			}

			src := args[0]
			dst := output
			if dst == "" {
				dst = src
			}

			return embed.PatchFile(src, dst, data, opts.logger)
		},
	}

	payload.register(cmd.Flags())
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the patched artifact here instead of in place")

	return cmd
}
