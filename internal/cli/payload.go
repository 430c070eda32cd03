package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/coral-mesh/decl/internal/config"
	"github.com/coral-mesh/decl/pkg/decl/model"
)

// payloadFlags are the flags describing the payload to embed.
type payloadFlags struct {
	anInt      int32
	strings    []string
	configPath string
}

func (p *payloadFlags) register(fs *pflag.FlagSet) {
	fs.Int32Var(&p.anInt, "int", 0, "Integer value (an_int)")
	fs.StringArrayVar(&p.strings, "string", nil, "String value, repeatable and kept in order (some_strings)")
	fs.StringVarP(&p.configPath, "config", "c", "", "YAML file with an_int and some_strings; flags override it")
}

// resolve merges the config file and the flags into a payload.
func (p *payloadFlags) resolve(cmd *cobra.Command) (model.Data, error) {
	cfg := &config.EmbedConfig{}
	if p.configPath != "" {
		var err error
		cfg, err = config.LoadEmbedConfig(p.configPath)
		if err != nil {
			return model.Data{}, err
		}
	}

	var anInt *int32
	if cmd.Flags().Changed("int") {
		anInt = &p.anInt
	}
	var strs []string
	if cmd.Flags().Changed("string") {
		strs = p.strings
	}
	cfg.Override(anInt, strs)

	if err := cfg.Validate(); err != nil {
		return model.Data{}, fmt.Errorf("invalid payload: %w (use --int or set it in --config)", err)
	}
	return cfg.Data(), nil
}
