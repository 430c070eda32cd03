// Package note defines the byte layout of the ELF note records written to
// and read from the .note.decl section.
//
// A record is laid out as
//
//	namesz(4) descsz(4) type(4) name(namesz, padded to 4) desc(descsz, padded to 4)
//
// descsz is the logical payload length and never includes padding. The desc
// field always starts at a 4-byte aligned offset so that generic note
// readers (readelf, debug/elf based tools) can walk the section.
package note

import (
	"encoding/binary"
	"fmt"
	"math"
)

// SectionName is the ELF section holding decl notes.
const SectionName = ".note.decl"

// Producer identifies decl notes among other notes sharing a section.
const Producer = "decl"

// Name is the producer name as stored in a record, NUL terminated.
const Name = Producer + "\x00"

// Alignment is the boundary name and desc are padded to.
const Alignment = 4

const headerSize = 12

// DescOffset is the offset of desc from the start of a record.
const DescOffset = headerSize + (len(Name)+Alignment-1)&^(Alignment-1)

// Type discriminates the records of a single producer.
type Type uint32

const (
	// TypeVersion holds the NUL-terminated schema version string.
	TypeVersion Type = 1
	// TypeData holds the NUL-terminated JSON payload.
	TypeData Type = 3
)

func (t Type) String() string {
	switch t {
	case TypeVersion:
		return "Version"
	case TypeData:
		return "Data"
	default:
		return fmt.Sprintf("Type(%#010x)", uint32(t))
	}
}

// Align rounds n up to a multiple of a, which must be a power of two.
func Align(n, a int) int {
	return (n + a - 1) &^ (a - 1)
}

// Size returns the physical size of a record carrying descLen payload bytes.
func Size(descLen int) int {
	return DescOffset + Align(descLen, Alignment)
}

// Encode lays out a record in the byte order of the running machine.
func Encode(t Type, desc []byte) []byte {
	return AppendRecord(nil, binary.NativeEndian, t, desc)
}

// AppendRecord appends a record encoded in the given byte order to dst and
// returns the extended slice. Padding bytes are zero.
func AppendRecord(dst []byte, order binary.ByteOrder, t Type, desc []byte) []byte {
	if uint64(len(desc)) > math.MaxUint32 {
		panic(fmt.Sprintf("note: desc of %d bytes does not fit descsz", len(desc)))
	}

	off := len(dst)
	dst = append(dst, make([]byte, Size(len(desc)))...)
	rec := dst[off:]

	order.PutUint32(rec[0:], uint32(len(Name)))
	order.PutUint32(rec[4:], uint32(len(desc)))
	order.PutUint32(rec[8:], uint32(t))
	copy(rec[headerSize:], Name)
	copy(rec[DescOffset:], desc)

	return dst
}
