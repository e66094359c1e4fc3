package loaders

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/poiesic/ragfence/core"
	"github.com/tmc/langchaingo/documentloaders"
)

// PDFLoader loads PDF files, concatenating page text in order.
type PDFLoader struct{}

var _ Loader = PDFLoader{}

// Load extracts the text of every page into a single document. The page
// count is recorded in the document metadata.
func (PDFLoader) Load(ctx context.Context, path string) (*core.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	docs, err := documentloaders.NewPDF(f, info.Size()).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading pdf %s: %w", path, err)
	}

	var parts []string
	for _, doc := range docs {
		text := strings.TrimSpace(doc.PageContent)
		if text != "" {
			parts = append(parts, text)
		}
	}
	contents := strings.Join(parts, "\n\n")
	if contents == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, path)
	}

	return &core.Document{
		Id:       uuid.NewString(),
		Source:   path,
		Contents: contents,
		Metadata: map[string]string{
			"pages": strconv.Itoa(len(docs)),
		},
	}, nil
}
