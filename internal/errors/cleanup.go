// Package errors holds small helpers for failures decl cannot return.
package errors

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// DeferClose closes c and logs a failure at warn level. It is meant for
// cleanup paths where an earlier error is already being returned.
func DeferClose(logger zerolog.Logger, c io.Closer, msg string) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}

// Must panics with msg when err is set. Callers use it for encodings that
// cannot fail for well-typed input.
func Must(err error, msg string) {
	if err != nil {
		panic(fmt.Sprintf("%s: %v", msg, err))
	}
}
