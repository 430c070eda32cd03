package errors

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeferClose(t *testing.T) {
	openTemp := func(t *testing.T) *os.File {
		f, err := os.Create(filepath.Join(t.TempDir(), "artifact.tmp"))
		require.NoError(t, err)
		return f
	}

	t.Run("nil closer", func(t *testing.T) {
		var buf bytes.Buffer
		DeferClose(zerolog.New(&buf), nil, "close temp file")
		assert.Zero(t, buf.Len())
	})

	t.Run("close succeeds", func(t *testing.T) {
		var buf bytes.Buffer
		f := openTemp(t)

		DeferClose(zerolog.New(&buf), f, "close temp file")
		assert.Zero(t, buf.Len())
		assert.ErrorIs(t, f.Close(), os.ErrClosed)
	})

	t.Run("close fails", func(t *testing.T) {
		var buf bytes.Buffer
		f := openTemp(t)
		require.NoError(t, f.Close())

		DeferClose(zerolog.New(&buf), f, "close temp file")
		assert.Contains(t, buf.String(), `"level":"warn"`)
		assert.Contains(t, buf.String(), `"message":"close temp file"`)
	})
}

func TestMust(t *testing.T) {
	assert.NotPanics(t, func() { Must(nil, "encode payload") })
	assert.PanicsWithValue(t, "encode payload: boom", func() {
		Must(errors.New("boom"), "encode payload")
	})
}
