package elfobj

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
)

var (
	// ErrSectionExists is returned by AppendSection when the file already
	// has a section with the requested name.
	ErrSectionExists = errors.New("section already exists")

	// ErrUnsupportedLayout is returned for ELF files whose section table
	// cannot be rewritten (no table, extended numbering, oversized offsets).
	ErrUnsupportedLayout = errors.New("unsupported ELF layout")
)

// SectionSpec describes a section to write.
type SectionSpec struct {
	Name      string
	Type      elf.SectionType
	Flags     elf.SectionFlag
	Addralign uint64
	Data      []byte
}

func (s SectionSpec) align() uint64 {
	if s.Addralign == 0 {
		return 1
	}
	return s.Addralign
}

// sectionHeader is the class-independent form of a section header entry.
type sectionHeader struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Off       uint64
	Size      uint64
	Link      uint32
	Info      uint32
	Addralign uint64
	Entsize   uint64
}

// AppendSection returns a copy of contents with one more section. The
// section data, a rewritten section name table and a new section header
// table are appended to the end of the file; the ELF header is updated to
// point at the new table. Program headers and the bytes of existing
// sections are left untouched, so the new section is not loaded at run
// time.
func AppendSection(contents []byte, spec SectionSpec) ([]byte, error) {
	f, err := elf.NewFile(bytes.NewReader(contents))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ELF: %w", err)
	}
	if f.Section(spec.Name) != nil {
		return nil, fmt.Errorf("%w: %s", ErrSectionExists, spec.Name)
	}

	class, order := f.Class, f.ByteOrder
	hdr, err := readHeader(contents, class, order)
	if err != nil {
		return nil, err
	}

	switch {
	case hdr.Shoff == 0 || hdr.Shnum == 0:
		return nil, fmt.Errorf("%w: no section header table", ErrUnsupportedLayout)
	case hdr.Shstrndx == uint16(elf.SHN_UNDEF) || hdr.Shstrndx >= hdr.Shnum:
		return nil, fmt.Errorf("%w: no section name table", ErrUnsupportedLayout)
	case uint32(hdr.Shnum)+1 >= uint32(elf.SHN_LORESERVE):
		return nil, fmt.Errorf("%w: %d sections", ErrUnsupportedLayout, hdr.Shnum)
	case int(hdr.Shentsize) != sectionHeaderSize(class):
		return nil, fmt.Errorf("%w: section header size %d", ErrUnsupportedLayout, hdr.Shentsize)
	}

	headers := make([]sectionHeader, hdr.Shnum)
	for i := range headers {
		off := hdr.Shoff + uint64(i)*uint64(hdr.Shentsize)
		if off+uint64(hdr.Shentsize) > uint64(len(contents)) {
			return nil, fmt.Errorf("section header %d out of bounds", i)
		}
		headers[i], err = readSectionHeader(contents[off:], class, order)
		if err != nil {
			return nil, fmt.Errorf("failed to read section header %d: %w", i, err)
		}
	}

	strtab := headers[hdr.Shstrndx]
	if strtab.Off+strtab.Size > uint64(len(contents)) {
		return nil, fmt.Errorf("section name table out of bounds")
	}
	names := slices.Clone(contents[strtab.Off : strtab.Off+strtab.Size])
	nameOff := uint32(len(names))
	names = append(names, spec.Name...)
	names = append(names, 0)

	out := make([]byte, len(contents), len(contents)+len(spec.Data)+len(names)+(len(headers)+1)*sectionHeaderSize(class)+16)
	copy(out, contents)

	out = pad(out, spec.align())
	dataOff := uint64(len(out))
	out = append(out, spec.Data...)

	strOff := uint64(len(out))
	out = append(out, names...)

	out = pad(out, wordSize(class))
	shoff := uint64(len(out))

	headers[hdr.Shstrndx].Off = strOff
	headers[hdr.Shstrndx].Size = uint64(len(names))
	headers = append(headers, sectionHeader{
		Name:      nameOff,
		Type:      uint32(spec.Type),
		Flags:     uint64(spec.Flags),
		Off:       dataOff,
		Size:      uint64(len(spec.Data)),
		Addralign: spec.align(),
	})

	if class == elf.ELFCLASS32 && shoff > math.MaxUint32 {
		return nil, fmt.Errorf("%w: file too large for ELF32", ErrUnsupportedLayout)
	}

	for _, sh := range headers {
		if out, err = appendSectionHeader(out, class, order, sh); err != nil {
			return nil, err
		}
	}

	hdr.Shoff = shoff
	hdr.Shnum = uint16(len(headers))
	if err := putHeader(out, class, order, hdr); err != nil {
		return nil, err
	}

	return out, nil
}

// Build writes a minimal relocatable ELF file holding the given sections,
// followed by a .shstrtab section and the section header table.
func Build(class elf.Class, order binary.ByteOrder, machine elf.Machine, sections ...SectionSpec) ([]byte, error) {
	if class != elf.ELFCLASS32 && class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("unsupported ELF class %v", class)
	}

	out := make([]byte, headerSize(class))
	headers := []sectionHeader{{}}
	names := []byte{0}
	addName := func(name string) uint32 {
		off := uint32(len(names))
		names = append(names, name...)
		names = append(names, 0)
		return off
	}

	for _, s := range sections {
		out = pad(out, s.align())
		headers = append(headers, sectionHeader{
			Name:      addName(s.Name),
			Type:      uint32(s.Type),
			Flags:     uint64(s.Flags),
			Off:       uint64(len(out)),
			Size:      uint64(len(s.Data)),
			Addralign: s.align(),
		})
		out = append(out, s.Data...)
	}

	shstrndx := len(headers)
	headers = append(headers, sectionHeader{
		Name:      addName(".shstrtab"),
		Type:      uint32(elf.SHT_STRTAB),
		Off:       uint64(len(out)),
		Addralign: 1,
	})
	headers[shstrndx].Size = uint64(len(names))
	out = append(out, names...)

	out = pad(out, wordSize(class))
	shoff := uint64(len(out))

	var err error
	for _, sh := range headers {
		if out, err = appendSectionHeader(out, class, order, sh); err != nil {
			return nil, err
		}
	}

	hdr := elf.Header64{
		Ident:     ident(class, order),
		Type:      uint16(elf.ET_REL),
		Machine:   uint16(machine),
		Version:   uint32(elf.EV_CURRENT),
		Shoff:     shoff,
		Ehsize:    uint16(headerSize(class)),
		Shentsize: uint16(sectionHeaderSize(class)),
		Shnum:     uint16(len(headers)),
		Shstrndx:  uint16(shstrndx),
	}
	if err := putHeader(out, class, order, hdr); err != nil {
		return nil, err
	}

	return out, nil
}

func ident(class elf.Class, order binary.ByteOrder) [elf.EI_NIDENT]byte {
	var id [elf.EI_NIDENT]byte
	copy(id[:], elf.ELFMAG)
	id[elf.EI_CLASS] = byte(class)
	id[elf.EI_DATA] = byte(elf.ELFDATA2MSB)
	if isLittleEndian(order) {
		id[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	}
	id[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	return id
}

func isLittleEndian(order binary.ByteOrder) bool {
	var probe [2]byte
	order.PutUint16(probe[:], 1)
	return probe[0] == 1
}

func headerSize(class elf.Class) int {
	if class == elf.ELFCLASS64 {
		return binary.Size(elf.Header64{})
	}
	return binary.Size(elf.Header32{})
}

func sectionHeaderSize(class elf.Class) int {
	if class == elf.ELFCLASS64 {
		return binary.Size(elf.Section64{})
	}
	return binary.Size(elf.Section32{})
}

func wordSize(class elf.Class) uint64 {
	if class == elf.ELFCLASS64 {
		return 8
	}
	return 4
}

func pad(b []byte, align uint64) []byte {
	for uint64(len(b))%align != 0 {
		b = append(b, 0)
	}
	return b
}

func readHeader(contents []byte, class elf.Class, order binary.ByteOrder) (elf.Header64, error) {
	r := bytes.NewReader(contents)
	if class == elf.ELFCLASS64 {
		var h elf.Header64
		if err := binary.Read(r, order, &h); err != nil {
			return h, fmt.Errorf("failed to read ELF header: %w", err)
		}
		return h, nil
	}

	var h elf.Header32
	if err := binary.Read(r, order, &h); err != nil {
		return elf.Header64{}, fmt.Errorf("failed to read ELF header: %w", err)
	}
	return elf.Header64{
		Ident:     h.Ident,
		Type:      h.Type,
		Machine:   h.Machine,
		Version:   h.Version,
		Entry:     uint64(h.Entry),
		Phoff:     uint64(h.Phoff),
		Shoff:     uint64(h.Shoff),
		Flags:     h.Flags,
		Ehsize:    h.Ehsize,
		Phentsize: h.Phentsize,
		Phnum:     h.Phnum,
		Shentsize: h.Shentsize,
		Shnum:     h.Shnum,
		Shstrndx:  h.Shstrndx,
	}, nil
}

func putHeader(out []byte, class elf.Class, order binary.ByteOrder, h elf.Header64) error {
	var (
		b   []byte
		err error
	)
	if class == elf.ELFCLASS64 {
		b, err = binary.Append(nil, order, h)
	} else {
		b, err = binary.Append(nil, order, elf.Header32{
			Ident:     h.Ident,
			Type:      h.Type,
			Machine:   h.Machine,
			Version:   h.Version,
			Entry:     uint32(h.Entry),
			Phoff:     uint32(h.Phoff),
			Shoff:     uint32(h.Shoff),
			Flags:     h.Flags,
			Ehsize:    h.Ehsize,
			Phentsize: h.Phentsize,
			Phnum:     h.Phnum,
			Shentsize: h.Shentsize,
			Shnum:     h.Shnum,
			Shstrndx:  h.Shstrndx,
		})
	}
	if err != nil {
		return fmt.Errorf("failed to encode ELF header: %w", err)
	}
	copy(out, b)
	return nil
}

func readSectionHeader(b []byte, class elf.Class, order binary.ByteOrder) (sectionHeader, error) {
	r := bytes.NewReader(b)
	if class == elf.ELFCLASS64 {
		var s elf.Section64
		if err := binary.Read(r, order, &s); err != nil {
			return sectionHeader{}, err
		}
		return sectionHeader{
			Name: s.Name, Type: s.Type, Flags: s.Flags, Addr: s.Addr, Off: s.Off,
			Size: s.Size, Link: s.Link, Info: s.Info, Addralign: s.Addralign, Entsize: s.Entsize,
		}, nil
	}

	var s elf.Section32
	if err := binary.Read(r, order, &s); err != nil {
		return sectionHeader{}, err
	}
	return sectionHeader{
		Name: s.Name, Type: s.Type, Flags: uint64(s.Flags), Addr: uint64(s.Addr), Off: uint64(s.Off),
		Size: uint64(s.Size), Link: s.Link, Info: s.Info, Addralign: uint64(s.Addralign), Entsize: uint64(s.Entsize),
	}, nil
}

func appendSectionHeader(out []byte, class elf.Class, order binary.ByteOrder, s sectionHeader) ([]byte, error) {
	var err error
	if class == elf.ELFCLASS64 {
		out, err = binary.Append(out, order, elf.Section64{
			Name: s.Name, Type: s.Type, Flags: s.Flags, Addr: s.Addr, Off: s.Off,
			Size: s.Size, Link: s.Link, Info: s.Info, Addralign: s.Addralign, Entsize: s.Entsize,
		})
	} else {
		out, err = binary.Append(out, order, elf.Section32{
			Name: s.Name, Type: s.Type, Flags: uint32(s.Flags), Addr: uint32(s.Addr), Off: uint32(s.Off),
			Size: uint32(s.Size), Link: s.Link, Info: s.Info, Addralign: uint32(s.Addralign), Entsize: uint32(s.Entsize),
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode section header: %w", err)
	}
	return out, nil
}
