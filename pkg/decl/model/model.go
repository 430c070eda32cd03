// Package model defines the payload embedded by decl and the schema version
// it is written with.
package model

import (
	"bytes"
	"encoding/json"
)

// Version is the schema version written into the Version note of every
// artifact produced by this module.
const Version = "0.1.0"

// Data is the payload of schema version 0.1.0.
type Data struct {
	AnInt       int32    `json:"an_int" yaml:"an_int" jsonschema:"required,description=Integer build parameter"`
	SomeStrings []string `json:"some_strings" yaml:"some_strings" jsonschema:"required,description=Ordered string build parameters"`
}

// MarshalJSON encodes Data with some_strings always present as an array.
// HTML characters are written as is.
func (d Data) MarshalJSON() ([]byte, error) {
	type plain Data
	if d.SomeStrings == nil {
		d.SomeStrings = []string{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(plain(d)); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
