package parser

import (
	"bytes"
	"io"
	"unicode/utf8"
)

// extractPlain passes text and source code through verbatim after
// checking the bytes really are text. A NUL byte or invalid UTF-8 in
// the first chunk marks the file binary.
func extractPlain(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	probe := data
	if len(probe) > 8192 {
		probe = probe[:8192]
	}
	if bytes.IndexByte(probe, 0) >= 0 {
		return "", ErrBinary
	}
	if !utf8.Valid(data) {
		return "", ErrBinary
	}
	return string(data), nil
}
