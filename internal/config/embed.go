// Package config loads the description of the payload to embed.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/decl/internal/constants"
	"github.com/coral-mesh/decl/internal/safe"
	"github.com/coral-mesh/decl/pkg/decl/model"
)

// EmbedConfig is the YAML document describing a payload:
//
//	an_int: 42
//	some_strings:
//	  - a
//	  - b
type EmbedConfig struct {
	// AnInt is a pointer so that a missing key is distinguishable from 0.
	AnInt       *int32   `yaml:"an_int" json:"an_int"`
	SomeStrings []string `yaml:"some_strings" json:"some_strings"`
}

// LoadEmbedConfig reads an embed config file. Files ending in .json or
// .jsonc are parsed as JSONC, anything else as YAML.
func LoadEmbedConfig(path string) (*EmbedConfig, error) {
	data, err := safe.ReadFile(path, &safe.ReadFileOptions{MaxSize: constants.MaxConfigSize})
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	parse := ParseEmbedConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		parse = ParseEmbedConfigJSONC
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseEmbedConfig decodes an embed config document. Unknown keys are
// rejected. The result is not validated.
func ParseEmbedConfig(data []byte) (*EmbedConfig, error) {
	var cfg EmbedConfig

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &cfg, nil
}

// ParseEmbedConfigJSONC decodes an embed config written as JSON with
// comments and trailing commas. Unknown keys are rejected. The result is
// not validated.
func ParseEmbedConfigJSONC(data []byte) (*EmbedConfig, error) {
	var cfg EmbedConfig

	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return &cfg, nil
}

// Override applies command line values on top of the file values. A nil
// anInt or strings leaves the corresponding field unchanged.
func (c *EmbedConfig) Override(anInt *int32, strings []string) {
	if anInt != nil {
		v := *anInt
		c.AnInt = &v
	}
	if strings != nil {
		c.SomeStrings = strings
	}
}

// Validate checks that the payload is complete.
func (c *EmbedConfig) Validate() error {
	if c.AnInt == nil {
		return fmt.Errorf("an_int is required")
	}
	return nil
}

// Data returns the payload described by the config. Validate must have
// succeeded.
func (c *EmbedConfig) Data() model.Data {
	data := model.Data{SomeStrings: c.SomeStrings}
	if c.AnInt != nil {
		data.AnInt = *c.AnInt
	}
	if data.SomeStrings == nil {
		data.SomeStrings = []string{}
	}
	return data
}
