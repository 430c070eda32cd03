package embed

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/coral-mesh/decl/pkg/decl/model"
	"github.com/coral-mesh/decl/pkg/decl/note"
)

// cSource declares each note as a struct so the C compiler lays out the
// header fields in the byte order of the target. The section attribute
// places the notes in .note.decl (SHT_NOTE, since the name starts with
// .note) and "used" keeps them when nothing references them.
var cSource = template.Must(template.New("notes").Parse(`// Code generated by decl gen. DO NOT EDIT.

// Add this file next to a Go file that imports "C" so cgo compiles it into
// the binary. Build with -ldflags=-linkmode=external so the host linker
// keeps the section.
//
// Schema version: {{.Version}}
// Payload: {{.Payload}}
// Fingerprint: {{.Fingerprint}}

#include <stdint.h>
{{range .Notes}}
static const struct {
	uint32_t namesz;
	uint32_t descsz;
	uint32_t type;
	unsigned char name[{{.NameCap}}];
	unsigned char desc[{{.DescCap}}];
} {{.Symbol}} __attribute__((section("{{$.Section}}"), used, aligned({{$.Align}}))) = {
	{{.Namesz}},
	{{.Descsz}},
	{{.Type}}, /* {{.TypeName}} */
	"{{$.Producer}}",
	{
{{- range .Lines}}
		{{.}}
{{- end}}
	},
};
{{end}}`))

type cNote struct {
	Symbol   string
	Namesz   int
	Descsz   int
	Type     uint32
	TypeName string
	NameCap  int
	DescCap  int
	Lines    []string
}

// GenerateC writes a C translation unit that defines the Version and Data
// notes for data inside the .note.decl section.
func GenerateC(w io.Writer, data model.Data) error {
	payload := DataDesc(data)

	params := struct {
		Version     string
		Payload     string
		Fingerprint string
		Section     string
		Producer    string
		Align       int
		Notes       []cNote
	}{
		Version:     model.Version,
		Payload:     strings.ReplaceAll(string(payload[:len(payload)-1]), "*/", `*\/`),
		Fingerprint: note.Fingerprint(payload),
		Section:     note.SectionName,
		Producer:    note.Producer,
		Align:       note.Alignment,
		Notes: []cNote{
			newCNote("decl_version", note.TypeVersion, VersionDesc()),
			newCNote("decl_data", note.TypeData, payload),
		},
	}

	if err := cSource.Execute(w, params); err != nil {
		return fmt.Errorf("failed to render C source: %w", err)
	}
	return nil
}

func newCNote(symbol string, t note.Type, desc []byte) cNote {
	return cNote{
		Symbol:   symbol,
		Namesz:   len(note.Name),
		Descsz:   len(desc),
		Type:     uint32(t),
		TypeName: t.String(),
		NameCap:  note.Align(len(note.Name), note.Alignment),
		DescCap:  note.Align(len(desc), note.Alignment),
		Lines:    byteLines(desc, 12),
	}
}

// byteLines formats b as comma-terminated hex literals, perLine per line.
func byteLines(b []byte, perLine int) []string {
	var lines []string
	for len(b) > 0 {
		n := min(perLine, len(b))
		var sb strings.Builder
		for i, c := range b[:n] {
			if i > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "0x%02x,", c)
		}
		lines = append(lines, sb.String())
		b = b[n:]
	}
	return lines
}
