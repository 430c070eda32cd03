package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// OutputFormat represents the desired output format.
type OutputFormat string

const (
	FormatYAML OutputFormat = "yaml"
	FormatJSON OutputFormat = "json"
)

var supportedFormats = []OutputFormat{FormatYAML, FormatJSON}

// Formatter writes a value in an output format.
type Formatter interface {
	Format(data any, w io.Writer) error
}

// NewFormatter creates a new Formatter for the given format.
func NewFormatter(format OutputFormat) (Formatter, error) {
	switch format {
	case FormatYAML:
		return yamlFormatter{}, nil
	case FormatJSON:
		return jsonFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format %q, must be one of: %s", format, formatNames())
	}
}

type yamlFormatter struct{}

func (yamlFormatter) Format(data any, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

type jsonFormatter struct{}

func (jsonFormatter) Format(data any, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// addFormatFlag adds a --format/-f flag with shell completion.
func addFormatFlag(cmd *cobra.Command, formatVar *string, defaultFormat OutputFormat) {
	cmd.Flags().StringVarP(formatVar, "format", "f", string(defaultFormat),
		fmt.Sprintf("Output format (%s)", formatNames()))

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		names := make([]string, len(supportedFormats))
		for i, f := range supportedFormats {
			names[i] = string(f)
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})
}

func formatNames() string {
	names := make([]string, len(supportedFormats))
	for i, f := range supportedFormats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
