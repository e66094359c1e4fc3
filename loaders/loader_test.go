package loaders

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForPath(t *testing.T) {
	tests := []struct {
		path    string
		want    any
		wantErr bool
	}{
		{"docs/report.pdf", PDFLoader{}, false},
		{"docs/REPORT.PDF", PDFLoader{}, false},
		{"notes.txt", TextLoader{}, false},
		{"README.md", TextLoader{}, false},
		{"image.png", nil, true},
		{"no-extension", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			loader, err := ForPath(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				assert.False(t, SupportedPath(tt.path))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, loader)
			assert.True(t, SupportedPath(tt.path))
		})
	}
}

func TestTextLoaderLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("First line.\nSecond line.\n"), 0o644))

	doc, err := TextLoader{}.Load(context.Background(), path)
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Id)
	assert.Equal(t, path, doc.Source)
	assert.Contains(t, doc.Contents, "First line.")
	assert.Contains(t, doc.Contents, "Second line.")
}

func TestTextLoaderUniqueIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("contents"), 0o644))

	first, err := TextLoader{}.Load(context.Background(), path)
	require.NoError(t, err)
	second, err := TextLoader{}.Load(context.Background(), path)
	require.NoError(t, err)
	assert.NotEqual(t, first.Id, second.Id)
}

func TestTextLoaderEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	_, err := TextLoader{}.Load(context.Background(), path)
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestTextLoaderMissingFile(t *testing.T) {
	_, err := TextLoader{}.Load(context.Background(), filepath.Join(t.TempDir(), "absent.txt"))
	assert.Error(t, err)
}
