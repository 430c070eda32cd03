// Package embed produces decl notes for an artifact.
//
// Notes can be appended to an already linked ELF file with Patch, or
// compiled in with the C source produced by GenerateC. Both paths emit the
// same two records: a Version note naming the schema, then a Data note
// holding the JSON payload.
package embed

import (
	"bytes"
	"encoding/binary"
	"encoding/json"

	interrors "github.com/coral-mesh/decl/internal/errors"
	"github.com/coral-mesh/decl/pkg/decl/model"
	"github.com/coral-mesh/decl/pkg/decl/note"
)

// VersionDesc returns the description of the Version note.
func VersionDesc() []byte {
	return nulTerminated([]byte(model.Version))
}

// DataDesc returns the description of the Data note: the compact JSON
// encoding of data followed by a NUL. HTML characters are not escaped.
// JSON escapes NUL bytes inside strings, so the terminator is the only NUL
// in the result.
func DataDesc(data model.Data) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Integers and strings always encode.
	interrors.Must(enc.Encode(data), "failed to encode payload")
	return nulTerminated(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
}

// Records returns the Version and Data notes for data, encoded in order.
func Records(order binary.ByteOrder, data model.Data) []byte {
	out := note.AppendRecord(nil, order, note.TypeVersion, VersionDesc())
	return note.AppendRecord(out, order, note.TypeData, DataDesc(data))
}

func nulTerminated(b []byte) []byte {
	out := make([]byte, len(b)+1)
	copy(out, b)
	return out
}
