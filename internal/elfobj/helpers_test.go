package elfobj_test

import (
	"bytes"
	"io"
)

func bytesReader(b []byte) io.ReaderAt {
	return bytes.NewReader(b)
}
