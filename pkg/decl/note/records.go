package note

import (
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
)

// ErrTruncated is returned when a section ends in the middle of a record.
var ErrTruncated = errors.New("truncated note")

// Record is one note as stored in a section. Name and Desc alias the
// section bytes and must not be modified.
type Record struct {
	Name []byte
	Type Type
	Desc []byte
}

// Producer returns the record name with one trailing NUL stripped, if present.
func (r Record) Producer() []byte {
	if n := len(r.Name); n > 0 && r.Name[n-1] == 0 {
		return r.Name[:n-1]
	}
	return r.Name
}

// IsDecl reports whether the record was written by decl. Both the
// NUL-terminated name and the bare four-byte name of older artifacts match.
func (r Record) IsDecl() bool {
	return string(r.Producer()) == Producer
}

// Records iterates over the notes stored in data, the raw contents of a
// note section, in file order. align is the section alignment; 8 selects
// 8-byte note alignment, any other value means 4. Iteration stops after
// the first error.
func Records(order binary.ByteOrder, data []byte, align uint64) iter.Seq2[Record, error] {
	a := uint64(Alignment)
	if align == 8 {
		a = 8
	}

	return func(yield func(Record, error) bool) {
		rest := data
		offset := 0
		for len(rest) > 0 {
			if len(rest) < headerSize {
				yield(Record{}, fmt.Errorf("%w: %d trailing bytes at offset %d", ErrTruncated, len(rest), offset))
				return
			}

			namesz := uint64(order.Uint32(rest[0:]))
			descsz := uint64(order.Uint32(rest[4:]))
			typ := Type(order.Uint32(rest[8:]))

			nameEnd := headerSize + namesz
			descOff := alignUp(nameEnd, a)
			descEnd := descOff + descsz
			if descEnd > uint64(len(rest)) {
				yield(Record{}, fmt.Errorf("%w: record at offset %d needs %d bytes, have %d",
					ErrTruncated, offset, descEnd, len(rest)))
				return
			}

			rec := Record{
				Name: rest[headerSize:nameEnd:nameEnd],
				Type: typ,
				Desc: rest[descOff:descEnd:descEnd],
			}

			// Padding after the last record may be missing.
			next := min(alignUp(descEnd, a), uint64(len(rest)))
			rest = rest[next:]
			offset += int(next)

			if !yield(rec, nil) {
				return
			}
		}
	}
}

func alignUp(n, a uint64) uint64 {
	return (n + a - 1) &^ (a - 1)
}
