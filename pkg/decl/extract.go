// Package decl reads versioned metadata embedded in the .note.decl section
// of ELF artifacts.
//
// Extraction is a strict pipeline: the input must be a 32- or 64-bit ELF
// file with a SHT_NOTE section named .note.decl holding a Version note and
// a Data note from the decl producer. The Version note selects the schema
// used to decode the Data note. Any failure aborts extraction and no
// partial payload is returned.
package decl

import (
	"bytes"
	"debug/elf"
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/decl/internal/constants"
	"github.com/coral-mesh/decl/internal/elfobj"
	"github.com/coral-mesh/decl/internal/safe"
	"github.com/coral-mesh/decl/pkg/decl/container"
	"github.com/coral-mesh/decl/pkg/decl/model"
	"github.com/coral-mesh/decl/pkg/decl/note"
)

type options struct {
	logger  zerolog.Logger
	schemas *Schemas
}

// Option configures an extraction.
type Option func(*options)

// WithLogger sets the logger used to trace extraction steps at debug level.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSchemas replaces the default schema registry.
func WithSchemas(schemas *Schemas) Option {
	return func(o *options) {
		o.schemas = schemas
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:  zerolog.Nop(),
		schemas: DefaultSchemas(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Extract decodes the payload embedded in contents, the bytes of an ELF
// artifact. contents is only read.
func Extract(contents []byte, opts ...Option) (*model.Data, error) {
	o := newOptions(opts)

	kind := elfobj.Classify(contents)
	if !kind.IsELF() {
		return nil, &UnsupportedFileKindError{Kind: kind.String()}
	}

	f, err := elfobj.Open(contents)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedContainer, err)
	}
	o.logger.Debug().
		Stringer("kind", kind).
		Stringer("byte_order", f.ByteOrder()).
		Msg("Parsed ELF header")

	return extract(f, o)
}

// ExtractFrom runs the extraction pipeline against an already parsed container.
func ExtractFrom(c container.Container, opts ...Option) (*model.Data, error) {
	return extract(c, newOptions(opts))
}

// ExtractFile reads the artifact at path and extracts its payload.
func ExtractFile(path string, opts ...Option) (*model.Data, error) {
	contents, err := safe.ReadFile(path, &safe.ReadFileOptions{
		MaxSize:       constants.MaxArtifactSize,
		AllowSymlinks: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}
	return Extract(contents, opts...)
}

func extract(c container.Container, o options) (*model.Data, error) {
	notes, err := declNotes(c, o.logger)
	if err != nil {
		return nil, err
	}

	version, err := readVersion(notes)
	if err != nil {
		return nil, err
	}

	schema, ok := o.schemas.Lookup(version)
	if !ok {
		return nil, &UnsupportedVersionError{Version: version}
	}
	o.logger.Debug().Str("version", version).Msg("Selected payload schema")

	dataNote, err := findNote(notes, note.TypeData)
	if err != nil {
		return nil, err
	}
	body, err := cString(dataNote)
	if err != nil {
		return nil, err
	}

	data, err := schema.Decode(body)
	if err != nil {
		return nil, &PayloadError{Version: version, Err: err}
	}

	o.logger.Debug().
		Str("version", version).
		Str("fingerprint", note.Fingerprint(dataNote.Desc)).
		Msg("Decoded payload")

	return data, nil
}

// declNotes returns the notes of the decl section written by the decl
// producer, in file order. Notes of other producers are skipped.
func declNotes(c container.Container, logger zerolog.Logger) ([]note.Record, error) {
	section, ok := c.Section(note.SectionName)
	if !ok {
		return nil, fmt.Errorf("%w: `%s`", ErrMissingSection, note.SectionName)
	}
	if section.Type() != elf.SHT_NOTE {
		return nil, &InvalidSectionTypeError{Section: section.Name(), Type: section.Type()}
	}

	var notes []note.Record
	for rec, err := range section.Notes() {
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedContainer, err)
		}
		if !rec.IsDecl() {
			logger.Debug().
				Bytes("name", rec.Name).
				Stringer("type", rec.Type).
				Msg("Skipping note from another producer")
			continue
		}
		notes = append(notes, rec)
	}

	return notes, nil
}

func readVersion(notes []note.Record) (string, error) {
	rec, err := findNote(notes, note.TypeVersion)
	if err != nil {
		return "", err
	}
	text, err := cString(rec)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(text) {
		return "", &TextError{Type: rec.Type, Reason: "invalid UTF-8"}
	}
	return string(text), nil
}

// findNote returns the first note of type t; later duplicates are ignored.
func findNote(notes []note.Record, t note.Type) (note.Record, error) {
	for _, rec := range notes {
		if rec.Type == t {
			return rec, nil
		}
	}
	return note.Record{}, &MissingNoteError{Type: t}
}

// cString returns the description of rec without its NUL terminator. The
// description must end in exactly one NUL and contain no other.
func cString(rec note.Record) ([]byte, error) {
	n := len(rec.Desc)
	if n == 0 || rec.Desc[n-1] != 0 {
		return nil, &TextError{Type: rec.Type, Reason: "data provided is not nul terminated"}
	}
	if i := bytes.IndexByte(rec.Desc[:n-1], 0); i >= 0 {
		return nil, &TextError{Type: rec.Type, Reason: fmt.Sprintf("data provided contains an interior nul byte at pos %d", i)}
	}
	return rec.Desc[:n-1], nil
}
