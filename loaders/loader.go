// Package loaders turns files on disk into core documents. Supported
// formats are resolved by extension from a closed set; there is no
// runtime registration.
package loaders

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/poiesic/ragfence/core"
)

// Loader reads one file format into a core.Document. Each loaded
// document receives a fresh UUID; the file path is recorded as the
// document source.
type Loader interface {
	Load(ctx context.Context, path string) (*core.Document, error)
}

// ForPath returns the loader for the file's extension.
// Returns ErrUnsupportedFormat for extensions outside the supported set
// (.pdf, .txt, .md).
func ForPath(path string) (Loader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return PDFLoader{}, nil
	case ".txt", ".md":
		return TextLoader{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// SupportedPath reports whether a loader exists for the file's extension.
func SupportedPath(path string) bool {
	_, err := ForPath(path)
	return err == nil
}
