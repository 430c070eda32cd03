// Package testutil builds ELF fixtures and loggers for decl tests.
package testutil

import (
	"io"
	"testing"

	"github.com/rs/zerolog"
)

// NewTestLogger returns a logger that drops everything, for tests that
// only need to satisfy a logger parameter.
func NewTestLogger(tb testing.TB) zerolog.Logger {
	tb.Helper()
	return zerolog.New(io.Discard)
}

// NewTestLoggerWithOutput returns a debug-level logger whose lines go to
// tb.Log, so extraction traces show up with -v or on failure.
func NewTestLoggerWithOutput(tb testing.TB) zerolog.Logger {
	return zerolog.New(tbWriter{tb}).Level(zerolog.DebugLevel)
}

type tbWriter struct {
	tb testing.TB
}

func (w tbWriter) Write(p []byte) (int, error) {
	w.tb.Log(string(p))
	return len(p), nil
}
