// Package elfobj adapts debug/elf to the container interfaces used by the
// decl extractor and provides a minimal ELF writer for embedding.
package elfobj

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"iter"

	"github.com/coral-mesh/decl/pkg/decl/container"
	"github.com/coral-mesh/decl/pkg/decl/note"
)

// Kind is the coarse classification of an object file.
type Kind int

const (
	KindUnknown Kind = iota
	KindELF32
	KindELF64
	KindArchive
	KindMachO
	KindPE
	KindWasm
)

func (k Kind) String() string {
	switch k {
	case KindELF32:
		return "ELF32"
	case KindELF64:
		return "ELF64"
	case KindArchive:
		return "archive"
	case KindMachO:
		return "Mach-O"
	case KindPE:
		return "PE"
	case KindWasm:
		return "Wasm"
	default:
		return "unknown"
	}
}

// IsELF reports whether k is an ELF variant decl can read.
func (k Kind) IsELF() bool {
	return k == KindELF32 || k == KindELF64
}

var machOMagics = [][]byte{
	{0xfe, 0xed, 0xfa, 0xce}, {0xce, 0xfa, 0xed, 0xfe},
	{0xfe, 0xed, 0xfa, 0xcf}, {0xcf, 0xfa, 0xed, 0xfe},
	{0xca, 0xfe, 0xba, 0xbe},
}

// Classify inspects the leading bytes of contents. An ELF identification
// with a class other than 32 or 64 bits is KindUnknown.
func Classify(contents []byte) Kind {
	switch {
	case bytes.HasPrefix(contents, []byte(elf.ELFMAG)):
		if len(contents) <= elf.EI_CLASS {
			return KindUnknown
		}
		switch elf.Class(contents[elf.EI_CLASS]) {
		case elf.ELFCLASS32:
			return KindELF32
		case elf.ELFCLASS64:
			return KindELF64
		}
		return KindUnknown
	case bytes.HasPrefix(contents, []byte("!<arch>\n")):
		return KindArchive
	case bytes.HasPrefix(contents, []byte("MZ")):
		return KindPE
	case bytes.HasPrefix(contents, []byte("\x00asm")):
		return KindWasm
	}
	for _, magic := range machOMagics {
		if bytes.HasPrefix(contents, magic) {
			return KindMachO
		}
	}
	return KindUnknown
}

// File is a parsed ELF file backed by an in-memory buffer.
type File struct {
	elf *elf.File
}

var _ container.Container = (*File)(nil)

// Open parses contents as an ELF file. The buffer is borrowed, not copied,
// and must not be modified while the File is in use.
func Open(contents []byte) (*File, error) {
	f, err := elf.NewFile(bytes.NewReader(contents))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ELF: %w", err)
	}
	return &File{elf: f}, nil
}

// Class returns the ELF class of the file.
func (f *File) Class() elf.Class {
	return f.elf.Class
}

// ByteOrder returns the byte order declared by the ELF header.
func (f *File) ByteOrder() binary.ByteOrder {
	return f.elf.ByteOrder
}

// Section implements container.Container.
func (f *File) Section(name string) (container.Section, bool) {
	s := f.elf.Section(name)
	if s == nil {
		return nil, false
	}
	return &section{s: s, order: f.elf.ByteOrder}, true
}

type section struct {
	s     *elf.Section
	order binary.ByteOrder
}

func (s *section) Name() string {
	return s.s.Name
}

func (s *section) Type() elf.SectionType {
	return s.s.Type
}

func (s *section) Notes() iter.Seq2[note.Record, error] {
	return func(yield func(note.Record, error) bool) {
		data, err := s.s.Data()
		if err != nil {
			yield(note.Record{}, fmt.Errorf("failed to read section %s: %w", s.s.Name, err))
			return
		}
		for rec, err := range note.Records(s.order, data, s.s.Addralign) {
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}
