package decl_test

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/decl/internal/elfobj"
	"github.com/coral-mesh/decl/internal/testutil"
	"github.com/coral-mesh/decl/pkg/decl"
	"github.com/coral-mesh/decl/pkg/decl/model"
	"github.com/coral-mesh/decl/pkg/decl/note"
)

const (
	versionDesc = "0.1.0\x00"
	dataDesc    = `{"an_int":42,"some_strings":["a","b"]}` + "\x00"
)

func TestExtract(t *testing.T) {
	contents := testutil.DeclELF(t,
		testutil.DeclNote(note.TypeVersion, versionDesc),
		testutil.DeclNote(note.TypeData, dataDesc),
	)

	data, err := decl.Extract(contents, decl.WithLogger(testutil.NewTestLoggerWithOutput(t)))
	require.NoError(t, err)
	assert.Equal(t, &model.Data{AnInt: 42, SomeStrings: []string{"a", "b"}}, data)
}

func TestExtract_AllVariants(t *testing.T) {
	variants := []struct {
		name  string
		class elf.Class
		order binary.ByteOrder
	}{
		{"elf32-le", elf.ELFCLASS32, binary.LittleEndian},
		{"elf32-be", elf.ELFCLASS32, binary.BigEndian},
		{"elf64-le", elf.ELFCLASS64, binary.LittleEndian},
		{"elf64-be", elf.ELFCLASS64, binary.BigEndian},
	}

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			contents := testutil.BuildELF(t, v.class, v.order,
				testutil.TextSection(),
				testutil.NoteSection(v.order,
					testutil.DeclNote(note.TypeVersion, versionDesc),
					testutil.DeclNote(note.TypeData, `{"an_int":-1,"some_strings":[]}`+"\x00"),
				),
			)

			data, err := decl.Extract(contents)
			require.NoError(t, err)
			assert.Equal(t, int32(-1), data.AnInt)
			assert.Empty(t, data.SomeStrings)
		})
	}
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name     string
		contents func(t *testing.T) []byte
		wantErr  error
	}{
		{
			name:     "not an object file",
			contents: func(t *testing.T) []byte { return []byte("#!/bin/sh\necho hi\n") },
			wantErr:  decl.ErrUnsupportedFileKind,
		},
		{
			name: "truncated ELF",
			contents: func(t *testing.T) []byte {
				return testutil.DeclELF(t)[:40]
			},
			wantErr: decl.ErrMalformedContainer,
		},
		{
			name: "missing section",
			contents: func(t *testing.T) []byte {
				return testutil.BuildELF(t, elf.ELFCLASS64, binary.LittleEndian, testutil.TextSection())
			},
			wantErr: decl.ErrMissingSection,
		},
		{
			name: "section is not a note section",
			contents: func(t *testing.T) []byte {
				s := testutil.NoteSection(binary.LittleEndian,
					testutil.DeclNote(note.TypeVersion, versionDesc),
					testutil.DeclNote(note.TypeData, dataDesc),
				)
				s.Type = elf.SHT_PROGBITS
				return testutil.BuildELF(t, elf.ELFCLASS64, binary.LittleEndian, s)
			},
			wantErr: decl.ErrInvalidSectionType,
		},
		{
			name: "truncated note",
			contents: func(t *testing.T) []byte {
				s := testutil.NoteSection(binary.LittleEndian,
					testutil.DeclNote(note.TypeVersion, versionDesc),
				)
				s.Data = s.Data[:len(s.Data)-5]
				return testutil.BuildELF(t, elf.ELFCLASS64, binary.LittleEndian, s)
			},
			wantErr: decl.ErrMalformedContainer,
		},
		{
			name: "version note without terminator",
			contents: func(t *testing.T) []byte {
				return testutil.DeclELF(t,
					testutil.DeclNote(note.TypeVersion, "0.1.0"),
					testutil.DeclNote(note.TypeData, dataDesc),
				)
			},
			wantErr: decl.ErrInvalidText,
		},
		{
			name: "version note with interior NUL",
			contents: func(t *testing.T) []byte {
				return testutil.DeclELF(t,
					testutil.DeclNote(note.TypeVersion, "0.1\x000\x00"),
					testutil.DeclNote(note.TypeData, dataDesc),
				)
			},
			wantErr: decl.ErrInvalidText,
		},
		{
			name: "version note with invalid UTF-8",
			contents: func(t *testing.T) []byte {
				return testutil.DeclELF(t,
					testutil.DeclNote(note.TypeVersion, "0.\xff.0\x00"),
					testutil.DeclNote(note.TypeData, dataDesc),
				)
			},
			wantErr: decl.ErrInvalidText,
		},
		{
			name: "data note without terminator",
			contents: func(t *testing.T) []byte {
				return testutil.DeclELF(t,
					testutil.DeclNote(note.TypeVersion, versionDesc),
					testutil.DeclNote(note.TypeData, `{"an_int":1,"some_strings":[]}`),
				)
			},
			wantErr: decl.ErrInvalidText,
		},
		{
			name: "malformed JSON",
			contents: func(t *testing.T) []byte {
				return testutil.DeclELF(t,
					testutil.DeclNote(note.TypeVersion, versionDesc),
					testutil.DeclNote(note.TypeData, `{"an_int":`+"\x00"),
				)
			},
			wantErr: decl.ErrPayload,
		},
		{
			name: "schema mismatch",
			contents: func(t *testing.T) []byte {
				return testutil.DeclELF(t,
					testutil.DeclNote(note.TypeVersion, versionDesc),
					testutil.DeclNote(note.TypeData, `{"an_int":"42","some_strings":[]}`+"\x00"),
				)
			},
			wantErr: decl.ErrPayload,
		},
		{
			name: "data note with invalid UTF-8",
			contents: func(t *testing.T) []byte {
				return testutil.DeclELF(t,
					testutil.DeclNote(note.TypeVersion, versionDesc),
					testutil.DeclNote(note.TypeData, `{"an_int":1,"some_strings":["a`+"\xff"+`b"]}`+"\x00"),
				)
			},
			wantErr: decl.ErrPayload,
		},
		{
			name: "data note with case-folded keys",
			contents: func(t *testing.T) []byte {
				return testutil.DeclELF(t,
					testutil.DeclNote(note.TypeVersion, versionDesc),
					testutil.DeclNote(note.TypeData, `{"AN_INT":5,"Some_Strings":["x"]}`+"\x00"),
				)
			},
			wantErr: decl.ErrPayload,
		},
		{
			name: "data note with duplicate key",
			contents: func(t *testing.T) []byte {
				return testutil.DeclELF(t,
					testutil.DeclNote(note.TypeVersion, versionDesc),
					testutil.DeclNote(note.TypeData, `{"an_int":1,"an_int":2,"some_strings":[]}`+"\x00"),
				)
			},
			wantErr: decl.ErrPayload,
		},
		{
			name: "data note with null element",
			contents: func(t *testing.T) []byte {
				return testutil.DeclELF(t,
					testutil.DeclNote(note.TypeVersion, versionDesc),
					testutil.DeclNote(note.TypeData, `{"an_int":1,"some_strings":["a",null]}`+"\x00"),
				)
			},
			wantErr: decl.ErrPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := decl.Extract(tt.contents(t))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, data)
		})
	}
}

func TestExtract_MissingSection(t *testing.T) {
	contents := testutil.BuildELF(t, elf.ELFCLASS64, binary.LittleEndian, testutil.TextSection())

	_, err := decl.Extract(contents)
	require.ErrorIs(t, err, decl.ErrMissingSection)
	for _, other := range []error{
		decl.ErrUnsupportedFileKind, decl.ErrMalformedContainer, decl.ErrInvalidSectionType,
		decl.ErrMissingNote, decl.ErrInvalidText, decl.ErrPayload, decl.ErrUnsupportedVersion,
	} {
		assert.NotErrorIs(t, err, other)
	}
	assert.Equal(t, "missing ELF section: `.note.decl`", err.Error())
}

func TestExtract_UnsupportedFileKind(t *testing.T) {
	_, err := decl.Extract([]byte("!<arch>\n"))

	var kindErr *decl.UnsupportedFileKindError
	require.ErrorAs(t, err, &kindErr)
	assert.Equal(t, elfobj.KindArchive.String(), kindErr.Kind)
}

func TestExtract_InvalidSectionType(t *testing.T) {
	s := testutil.NoteSection(binary.LittleEndian)
	s.Type = elf.SHT_PROGBITS
	contents := testutil.BuildELF(t, elf.ELFCLASS64, binary.LittleEndian, s)

	_, err := decl.Extract(contents)

	var typeErr *decl.InvalidSectionTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, elf.SHT_PROGBITS, typeErr.Type)
	assert.Equal(t, note.SectionName, typeErr.Section)
}

func TestExtract_MissingHalf(t *testing.T) {
	t.Run("only data", func(t *testing.T) {
		contents := testutil.DeclELF(t, testutil.DeclNote(note.TypeData, dataDesc))

		_, err := decl.Extract(contents)

		var missing *decl.MissingNoteError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, note.TypeVersion, missing.Type)
		assert.ErrorIs(t, err, decl.ErrMissingNote)
	})

	t.Run("only version", func(t *testing.T) {
		contents := testutil.DeclELF(t, testutil.DeclNote(note.TypeVersion, versionDesc))

		_, err := decl.Extract(contents)

		var missing *decl.MissingNoteError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, note.TypeData, missing.Type)
	})

	t.Run("empty section", func(t *testing.T) {
		_, err := decl.Extract(testutil.DeclELF(t))

		var missing *decl.MissingNoteError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, note.TypeVersion, missing.Type)
	})
}

func TestExtract_UnsupportedVersion(t *testing.T) {
	contents := testutil.DeclELF(t,
		testutil.DeclNote(note.TypeVersion, "9.9.9\x00"),
		testutil.DeclNote(note.TypeData, "not json\x00"),
	)

	_, err := decl.Extract(contents)

	var versionErr *decl.UnsupportedVersionError
	require.ErrorAs(t, err, &versionErr)
	assert.Equal(t, "9.9.9", versionErr.Version)
	assert.NotErrorIs(t, err, decl.ErrPayload)
}

func TestExtract_UnsupportedVersionSkipsDecoder(t *testing.T) {
	calls := 0
	schemas, err := decl.NewSchemas(decl.Schema{
		Version: "0.1.0",
		Decode: func(body []byte) (*model.Data, error) {
			calls++
			return &model.Data{}, nil
		},
	})
	require.NoError(t, err)

	contents := testutil.DeclELF(t,
		testutil.DeclNote(note.TypeVersion, "9.9.9\x00"),
		testutil.DeclNote(note.TypeData, dataDesc),
	)
	_, err = decl.Extract(contents, decl.WithSchemas(schemas))
	require.ErrorIs(t, err, decl.ErrUnsupportedVersion)
	assert.Zero(t, calls, "the Data note must not be decoded")

	// A missing Data note is not even looked up.
	contents = testutil.DeclELF(t, testutil.DeclNote(note.TypeVersion, "9.9.9\x00"))
	_, err = decl.Extract(contents, decl.WithSchemas(schemas))
	assert.ErrorIs(t, err, decl.ErrUnsupportedVersion)
}

func TestExtract_NameIsolation(t *testing.T) {
	contents := testutil.DeclELF(t,
		testutil.Note{Name: "other\x00", Type: note.TypeData, Desc: []byte(`{"an_int":7,"some_strings":["foreign"]}` + "\x00")},
		testutil.Note{Name: "other\x00", Type: note.TypeVersion, Desc: []byte("9.9.9\x00")},
		testutil.DeclNote(note.TypeVersion, versionDesc),
		testutil.Note{Name: "GNU\x00", Type: 3, Desc: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}},
		testutil.DeclNote(note.TypeData, dataDesc),
	)

	data, err := decl.Extract(contents)
	require.NoError(t, err)
	assert.Equal(t, &model.Data{AnInt: 42, SomeStrings: []string{"a", "b"}}, data)
}

func TestExtract_UnknownTypesSkipped(t *testing.T) {
	contents := testutil.DeclELF(t,
		testutil.DeclNote(note.Type(2), "ignored"),
		testutil.DeclNote(note.TypeVersion, versionDesc),
		testutil.DeclNote(note.Type(0x1234), ""),
		testutil.DeclNote(note.TypeData, dataDesc),
	)

	data, err := decl.Extract(contents)
	require.NoError(t, err)
	assert.Equal(t, int32(42), data.AnInt)
}

func TestExtract_FirstNoteWins(t *testing.T) {
	contents := testutil.DeclELF(t,
		testutil.DeclNote(note.TypeData, `{"an_int":1,"some_strings":["first"]}`+"\x00"),
		testutil.DeclNote(note.TypeVersion, versionDesc),
		testutil.DeclNote(note.TypeVersion, "9.9.9\x00"),
		testutil.DeclNote(note.TypeData, `{"an_int":2,"some_strings":["second"]}`+"\x00"),
	)

	data, err := decl.Extract(contents)
	require.NoError(t, err)
	assert.Equal(t, &model.Data{AnInt: 1, SomeStrings: []string{"first"}}, data)
}

func TestExtract_LegacyName(t *testing.T) {
	contents := testutil.DeclELF(t,
		testutil.Note{Name: "decl", Type: note.TypeVersion, Desc: []byte(versionDesc)},
		testutil.Note{Name: "decl", Type: note.TypeData, Desc: []byte(dataDesc)},
	)

	data, err := decl.Extract(contents)
	require.NoError(t, err)
	assert.Equal(t, int32(42), data.AnInt)
}

func TestExtract_MalformedPayload(t *testing.T) {
	contents := testutil.DeclELF(t,
		testutil.DeclNote(note.TypeVersion, versionDesc),
		testutil.DeclNote(note.TypeData, "{not json}\x00"),
	)

	data, err := decl.Extract(contents)
	assert.Nil(t, data)

	var payloadErr *decl.PayloadError
	require.ErrorAs(t, err, &payloadErr)
	assert.Equal(t, "0.1.0", payloadErr.Version)
	assert.Error(t, errors.Unwrap(payloadErr))
}

func TestExtractFrom(t *testing.T) {
	f, err := elfobj.Open(testutil.DeclELF(t,
		testutil.DeclNote(note.TypeVersion, versionDesc),
		testutil.DeclNote(note.TypeData, dataDesc),
	))
	require.NoError(t, err)

	data, err := decl.ExtractFrom(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, data.SomeStrings)
}

func TestExtractFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact")
	require.NoError(t, os.WriteFile(path, testutil.DeclELF(t,
		testutil.DeclNote(note.TypeVersion, versionDesc),
		testutil.DeclNote(note.TypeData, dataDesc),
	), 0o755))

	data, err := decl.ExtractFile(path)
	require.NoError(t, err)
	assert.Equal(t, int32(42), data.AnInt)

	_, err = decl.ExtractFile(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
