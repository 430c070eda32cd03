package decl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/invopop/jsonschema"

	"github.com/coral-mesh/decl/pkg/decl/model"
)

// Decoder turns the body of a Data note, NUL already stripped, into a payload.
type Decoder func(body []byte) (*model.Data, error)

// Schema binds a version string to the decoder for payloads written with it.
type Schema struct {
	Version string
	Decode  Decoder
	// Prototype is a zero value of the on-disk payload type, used to
	// describe the schema as a JSON Schema document.
	Prototype any
}

// Schemas is a registry of payload schemas keyed by version string. A
// registry is safe for concurrent lookups once registration is done.
type Schemas struct {
	byVersion map[string]Schema
}

// NewSchemas creates a registry holding the given schemas.
func NewSchemas(schemas ...Schema) (*Schemas, error) {
	s := &Schemas{byVersion: make(map[string]Schema, len(schemas))}
	for _, schema := range schemas {
		if err := s.Register(schema); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Register adds a schema. Registering the same version twice is an error.
func (s *Schemas) Register(schema Schema) error {
	if schema.Version == "" {
		return errors.New("schema version must not be empty")
	}
	if schema.Decode == nil {
		return fmt.Errorf("schema %s has no decoder", schema.Version)
	}
	if _, ok := s.byVersion[schema.Version]; ok {
		return fmt.Errorf("schema %s already registered", schema.Version)
	}
	s.byVersion[schema.Version] = schema
	return nil
}

// Lookup returns the schema registered for version.
func (s *Schemas) Lookup(version string) (Schema, bool) {
	schema, ok := s.byVersion[version]
	return schema, ok
}

// Versions returns the registered versions in sorted order.
func (s *Schemas) Versions() []string {
	return slices.Sorted(maps.Keys(s.byVersion))
}

// JSONSchema returns a JSON Schema document describing the payload of version.
func (s *Schemas) JSONSchema(version string) ([]byte, error) {
	schema, ok := s.Lookup(version)
	if !ok {
		return nil, &UnsupportedVersionError{Version: version}
	}
	if schema.Prototype == nil {
		return nil, fmt.Errorf("schema %s has no prototype", version)
	}

	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}
	doc := reflector.Reflect(schema.Prototype)
	doc.ID = jsonschema.ID("https://github.com/coral-mesh/decl/schema/" + version)
	doc.Title = "decl payload " + version

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return out, nil
}

var defaultSchemas = mustSchemas(Schema{
	Version:   "0.1.0",
	Decode:    decodeV010,
	Prototype: &model.Data{},
})

// DefaultSchemas returns the registry of every schema this build understands.
// The returned registry is shared and must not be modified.
func DefaultSchemas() *Schemas {
	return defaultSchemas
}

func mustSchemas(schemas ...Schema) *Schemas {
	s, err := NewSchemas(schemas...)
	if err != nil {
		panic(err)
	}
	return s
}

// decodeV010 decodes the 0.1.0 payload. The body must be valid UTF-8 and
// hold one JSON object. Both keys are required, matched case-sensitively,
// and may appear only once. some_strings must be an array of strings with
// no null elements. Unknown keys are ignored.
func decodeV010(body []byte) (*model.Data, error) {
	if !utf8.Valid(body) {
		return nil, errors.New("payload is not valid UTF-8")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var (
		anInt       *int32
		someStrings []string
		seenStrings bool
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, found %v", tok)
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}

		switch key {
		case "an_int":
			if anInt != nil {
				return nil, errors.New("duplicate field `an_int`")
			}
			v, err := decodeInt32(value)
			if err != nil {
				return nil, fmt.Errorf("field `an_int`: %w", err)
			}
			anInt = &v
		case "some_strings":
			if seenStrings {
				return nil, errors.New("duplicate field `some_strings`")
			}
			v, err := decodeStrings(value)
			if err != nil {
				return nil, fmt.Errorf("field `some_strings`: %w", err)
			}
			someStrings, seenStrings = v, true
		}
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing characters after payload")
	}

	if anInt == nil {
		return nil, errors.New("missing field `an_int`")
	}
	if !seenStrings {
		return nil, errors.New("missing field `some_strings`")
	}

	return &model.Data{AnInt: *anInt, SomeStrings: someStrings}, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, found %v", want, tok)
	}
	return nil
}

func decodeInt32(raw json.RawMessage) (int32, error) {
	if isNull(raw) {
		return 0, errors.New("expected i32, found null")
	}
	var v int32
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func decodeStrings(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return nil, errors.New("expected a sequence, found null")
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(elems))
	for i, elem := range elems {
		if isNull(elem) {
			return nil, fmt.Errorf("element %d: expected a string, found null", i)
		}
		var v string
		if err := json.Unmarshal(elem, &v); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		if loneSurrogate(elem, v) {
			return nil, fmt.Errorf("element %d: lone surrogate in string escape", i)
		}
		out = append(out, v)
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// loneSurrogate reports whether decoding raw produced a replacement
// character the source did not spell out, which only happens for an
// unpaired surrogate escape. The body is known to be valid UTF-8.
func loneSurrogate(raw json.RawMessage, decoded string) bool {
	const replacement = string(utf8.RuneError)
	spelled := strings.Count(string(raw), replacement) +
		strings.Count(strings.ToLower(string(raw)), `\ufffd`)
	return strings.Count(decoded, replacement) > spelled
}
