package loaders

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/poiesic/ragfence/core"
	"github.com/tmc/langchaingo/documentloaders"
)

// TextLoader loads plain text and markdown files.
type TextLoader struct{}

var _ Loader = TextLoader{}

// Load reads the file into a single document.
func (TextLoader) Load(ctx context.Context, path string) (*core.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	docs, err := documentloaders.NewText(f).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading text file %s: %w", path, err)
	}

	var parts []string
	for _, doc := range docs {
		if doc.PageContent != "" {
			parts = append(parts, doc.PageContent)
		}
	}
	contents := strings.TrimSpace(strings.Join(parts, "\n\n"))
	if contents == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, path)
	}

	return &core.Document{
		Id:       uuid.NewString(),
		Source:   path,
		Contents: contents,
	}, nil
}
