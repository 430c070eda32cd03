package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/decl/pkg/decl"
	"github.com/coral-mesh/decl/pkg/decl/model"
)

// newSchemaCmd creates the 'schema' command.
func newSchemaCmd() *cobra.Command {
	var (
		list   bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "schema [version]",
		Short: "Print the JSON Schema of a payload version",
		Long: `Print the JSON Schema describing the Data note payload of a schema version
understood by this build. Without an argument the current version (` + model.Version + `)
is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schemas := decl.DefaultSchemas()

			if list {
				for _, v := range schemas.Versions() {
					fmt.Fprintln(cmd.OutOrStdout(), v)
				}
				return nil
			}

			formatter, err := NewFormatter(OutputFormat(format))
			if err != nil {
				return err
			}

			v := model.Version
			if len(args) == 1 {
				v = args[0]
			}

			out, err := schemas.JSONSchema(v)
			if err != nil {
				return err
			}
			return formatter.Format(schemaDocument(OutputFormat(format), out), cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List the supported schema versions")
	addFormatFlag(cmd, &format, FormatJSON)

	return cmd
}

// schemaDocument wraps a JSON Schema document for format. JSON is valid
// YAML, so the YAML form is its node tree, which keeps the key order.
func schemaDocument(format OutputFormat, doc []byte) any {
	if format != FormatYAML {
		return json.RawMessage(doc)
	}
	var node yaml.Node
	if err := yaml.Unmarshal(doc, &node); err != nil {
		return json.RawMessage(doc)
	}
	return &node
}
