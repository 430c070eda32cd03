package embed

import (
	"debug/elf"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/decl/internal/constants"
	"github.com/coral-mesh/decl/internal/elfobj"
	"github.com/coral-mesh/decl/internal/safe"
	"github.com/coral-mesh/decl/pkg/decl"
	"github.com/coral-mesh/decl/pkg/decl/model"
	"github.com/coral-mesh/decl/pkg/decl/note"
)

// ErrAlreadyEmbedded is returned when the artifact already has a
// .note.decl section. Existing notes are never rewritten.
var ErrAlreadyEmbedded = errors.New("artifact already has decl notes")

// Patch returns a copy of the ELF file in contents with a .note.decl
// section holding the notes for data. The notes are encoded in the byte
// order of the file.
func Patch(contents []byte, data model.Data) ([]byte, error) {
	kind := elfobj.Classify(contents)
	if !kind.IsELF() {
		return nil, &decl.UnsupportedFileKindError{Kind: kind.String()}
	}

	f, err := elfobj.Open(contents)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", decl.ErrMalformedContainer, err)
	}

	out, err := elfobj.AppendSection(contents, elfobj.SectionSpec{
		Name:      note.SectionName,
		Type:      elf.SHT_NOTE,
		Addralign: note.Alignment,
		Data:      Records(f.ByteOrder(), data),
	})
	if errors.Is(err, elfobj.ErrSectionExists) {
		return nil, fmt.Errorf("%w: %w", ErrAlreadyEmbedded, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add %s section: %w", note.SectionName, err)
	}

	return out, nil
}

// PatchFile embeds data into the artifact at src and writes the result to
// dst, which may equal src. The output keeps the permissions of src.
func PatchFile(src, dst string, data model.Data, logger zerolog.Logger) error {
	contents, err := safe.ReadFile(src, &safe.ReadFileOptions{
		MaxSize:       constants.MaxArtifactSize,
		AllowSymlinks: true,
	})
	if err != nil {
		return fmt.Errorf("failed to read artifact %s: %w", src, err)
	}

	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat artifact %s: %w", src, err)
	}

	out, err := Patch(contents, data)
	if err != nil {
		return err
	}

	if err := safe.WriteFileAtomic(dst, out, info.Mode().Perm(), logger); err != nil {
		return err
	}

	logger.Info().
		Str("artifact", dst).
		Str("section", note.SectionName).
		Int("bytes_added", len(out)-len(contents)).
		Str("fingerprint", note.Fingerprint(DataDesc(data))).
		Msg("Embedded decl notes")

	return nil
}
