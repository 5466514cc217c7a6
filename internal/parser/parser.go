package parser

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// ErrBinary is returned when a file's bytes are not usable as text.
var ErrBinary = errors.New("binary content")

// ExtractText converts a repository file into plain text suitable for
// embedding. The extension selects the extractor; anything unrecognized
// is treated as plain text, which covers source code.
func ExtractText(r io.Reader, filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return extractMarkdown(r)
	case ".html", ".htm":
		return extractHTML(r)
	case ".pdf":
		return extractPDF(r)
	case ".docx":
		return extractDOCX(r)
	case ".csv":
		return extractCSV(r)
	default:
		return extractPlain(r)
	}
}

// binaryExtensions are never worth opening.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".bmp": true, ".webp": true, ".svg": false,
	".zip": true, ".gz": true, ".tar": true, ".bz2": true, ".xz": true,
	".7z": true, ".jar": true, ".class": true, ".wasm": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".a": true,
	".o": true, ".bin": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true, ".otf": true,
	".mp3": true, ".mp4": true, ".mov": true, ".avi": true, ".webm": true,
}

// IsExtractable reports whether a file is worth running through
// ExtractText at all, judged by extension alone.
func IsExtractable(filename string) bool {
	return !binaryExtensions[strings.ToLower(filepath.Ext(filename))]
}
