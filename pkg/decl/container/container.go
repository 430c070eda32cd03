// Package container describes the view of an object file the decl extractor
// needs: named sections and the notes they hold.
package container

import (
	"debug/elf"
	"iter"

	"github.com/coral-mesh/decl/pkg/decl/note"
)

// Container is a parsed object file.
type Container interface {
	// Section returns the first section with the given name.
	Section(name string) (Section, bool)
}

// Section is one section of a Container.
type Section interface {
	Name() string
	Type() elf.SectionType
	// Notes iterates over the note records of the section in file order.
	Notes() iter.Seq2[note.Record, error]
}
