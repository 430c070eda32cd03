package decl

import (
	"debug/elf"
	"errors"
	"fmt"

	"github.com/coral-mesh/decl/pkg/decl/note"
)

// Sentinel errors for every way extraction can fail. The typed errors below
// match their sentinel with errors.Is and carry context for errors.As.
var (
	ErrUnsupportedFileKind = errors.New("unsupported file kind")
	ErrMalformedContainer  = errors.New("reading object file")
	ErrMissingSection      = errors.New("missing ELF section")
	ErrInvalidSectionType  = errors.New("invalid ELF section type")
	ErrMissingNote         = errors.New("missing note")
	ErrInvalidText         = errors.New("invalid note text")
	ErrPayload             = errors.New("decoding payload")
	ErrUnsupportedVersion  = errors.New("unsupported data version")
)

// UnsupportedFileKindError reports input that is not a 32- or 64-bit ELF file.
type UnsupportedFileKindError struct {
	Kind string
}

func (e *UnsupportedFileKindError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnsupportedFileKind, e.Kind)
}

func (e *UnsupportedFileKindError) Is(target error) bool { return target == ErrUnsupportedFileKind }

// InvalidSectionTypeError reports a .note.decl section that is not SHT_NOTE.
type InvalidSectionTypeError struct {
	Section string
	Type    elf.SectionType
}

func (e *InvalidSectionTypeError) Error() string {
	return fmt.Sprintf("%s: `%s` is %v (%#010x)", ErrInvalidSectionType, e.Section, e.Type, uint32(e.Type))
}

func (e *InvalidSectionTypeError) Is(target error) bool { return target == ErrInvalidSectionType }

// MissingNoteError reports that no decl note of a required type was found.
type MissingNoteError struct {
	Type note.Type
}

func (e *MissingNoteError) Error() string {
	return fmt.Sprintf("%s: %#010x (%v)", ErrMissingNote, uint32(e.Type), e.Type)
}

func (e *MissingNoteError) Is(target error) bool { return target == ErrMissingNote }

// TextError reports a note description that is not NUL-terminated UTF-8.
type TextError struct {
	Type   note.Type
	Reason string
}

func (e *TextError) Error() string {
	return fmt.Sprintf("%s in %v note: %s", ErrInvalidText, e.Type, e.Reason)
}

func (e *TextError) Is(target error) bool { return target == ErrInvalidText }

// PayloadError reports a Data note whose body does not decode under the
// schema selected by the Version note.
type PayloadError struct {
	Version string
	Err     error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("%s (schema %s): %v", ErrPayload, e.Version, e.Err)
}

func (e *PayloadError) Is(target error) bool { return target == ErrPayload }

func (e *PayloadError) Unwrap() error { return e.Err }

// UnsupportedVersionError reports a Version note naming a schema this build
// has no decoder for.
type UnsupportedVersionError struct {
	Version string
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnsupportedVersion, e.Version)
}

func (e *UnsupportedVersionError) Is(target error) bool { return target == ErrUnsupportedVersion }
