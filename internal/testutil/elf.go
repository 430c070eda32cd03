package testutil

import (
	"debug/elf"
	"encoding/binary"
	"testing"

	"github.com/coral-mesh/decl/internal/elfobj"
	"github.com/coral-mesh/decl/pkg/decl/note"
)

// Note is a raw note record for fixtures. Unlike note.AppendRecord it
// allows any producer name, including names without a NUL terminator.
type Note struct {
	Name string
	Type note.Type
	Desc []byte
}

// DeclNote returns a note with the decl producer name.
func DeclNote(t note.Type, desc string) Note {
	return Note{Name: note.Name, Type: t, Desc: []byte(desc)}
}

// EncodeNotes lays out notes back to back with 4-byte padding.
func EncodeNotes(order binary.ByteOrder, notes ...Note) []byte {
	var out []byte
	for _, n := range notes {
		var hdr [12]byte
		order.PutUint32(hdr[0:], uint32(len(n.Name)))
		order.PutUint32(hdr[4:], uint32(len(n.Desc)))
		order.PutUint32(hdr[8:], uint32(n.Type))
		out = append(out, hdr[:]...)
		out = appendPadded(out, []byte(n.Name))
		out = appendPadded(out, n.Desc)
	}
	return out
}

func appendPadded(out, b []byte) []byte {
	out = append(out, b...)
	return append(out, make([]byte, note.Align(len(b), 4)-len(b))...)
}

// BuildELF returns a relocatable ELF file holding sections.
func BuildELF(t testing.TB, class elf.Class, order binary.ByteOrder, sections ...elfobj.SectionSpec) []byte {
	t.Helper()

	machine := elf.EM_X86_64
	if class == elf.ELFCLASS32 {
		machine = elf.EM_386
	}
	if order == binary.BigEndian {
		machine = elf.EM_PPC64
		if class == elf.ELFCLASS32 {
			machine = elf.EM_PPC
		}
	}

	contents, err := elfobj.Build(class, order, machine, sections...)
	if err != nil {
		t.Fatalf("failed to build ELF fixture: %v", err)
	}
	return contents
}

// NoteSection returns a .note.decl SHT_NOTE section holding notes encoded
// in order.
func NoteSection(order binary.ByteOrder, notes ...Note) elfobj.SectionSpec {
	return elfobj.SectionSpec{
		Name:      note.SectionName,
		Type:      elf.SHT_NOTE,
		Addralign: 4,
		Data:      EncodeNotes(order, notes...),
	}
}

// TextSection returns a small executable section so fixtures look like
// real object files.
func TextSection() elfobj.SectionSpec {
	return elfobj.SectionSpec{
		Name:      ".text",
		Type:      elf.SHT_PROGBITS,
		Flags:     elf.SHF_ALLOC | elf.SHF_EXECINSTR,
		Addralign: 16,
		Data:      []byte{0x55, 0x48, 0x89, 0xe5, 0x5d, 0xc3},
	}
}

// DeclELF returns a little-endian ELF64 file with a .text section and a
// .note.decl section holding notes.
func DeclELF(t testing.TB, notes ...Note) []byte {
	t.Helper()
	return BuildELF(t, elf.ELFCLASS64, binary.LittleEndian, TextSection(), NoteSection(binary.LittleEndian, notes...))
}
