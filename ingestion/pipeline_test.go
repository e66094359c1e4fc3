package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/ragfence/ai/mock"
	"github.com/poiesic/ragfence/core"
	"github.com/poiesic/ragfence/loaders"
	"github.com/poiesic/ragfence/storage"
	"github.com/poiesic/ragfence/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, opts ...Option) (*Pipeline, storage.ChunkRepository) {
	t.Helper()
	repo, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	pipeline, err := NewPipeline(repo, mock.NewMockEmbedder(), opts...)
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)
	return pipeline, repo
}

func TestNewPipelineValidation(t *testing.T) {
	repo, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	defer repo.Close()

	_, err = NewPipeline(nil, mock.NewMockEmbedder())
	assert.ErrorIs(t, err, ErrRepositoryRequired)

	_, err = NewPipeline(repo, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}

func TestPipelineOptionValidation(t *testing.T) {
	repo, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	defer repo.Close()

	_, err = NewPipeline(repo, mock.NewMockEmbedder(), WithChunkSize(0))
	assert.Error(t, err)

	_, err = NewPipeline(repo, mock.NewMockEmbedder(), WithChunkOverlap(-1))
	assert.Error(t, err)

	_, err = NewPipeline(repo, mock.NewMockEmbedder(), WithBatchSize(0))
	assert.Error(t, err)
}

func TestIngestDocument(t *testing.T) {
	pipeline, repo := newTestPipeline(t, WithChunkSize(100), WithChunkOverlap(10))
	ctx := context.Background()

	doc := &core.Document{
		Id:       "doc-1",
		Source:   "handbook.txt",
		Contents: strings.Repeat("All employees must follow the travel policy. ", 20),
	}

	chunks, err := pipeline.IngestDocument(ctx, doc, &IngestOptions{
		AccessTags:   []string{"HR", "Internal"},
		RequiredRole: "HR_Manager",
	})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Greater(t, len(chunks), 1, "long document should split into multiple chunks")

	for i, chunk := range chunks {
		assert.Equal(t, "doc-1", chunk.DocumentId)
		assert.Equal(t, "handbook.txt", chunk.Source)
		assert.Equal(t, i, chunk.Seq)
		assert.NotEmpty(t, chunk.Vector, "chunk %d should be embedded", i)
		assert.Equal(t, []string{"HR", "Internal"}, chunk.AccessTags)
		assert.Equal(t, "HR_Manager", chunk.RequiredRole)
		assert.NotZero(t, chunk.Id)
	}

	stored, err := repo.GetChunksByDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, stored, len(chunks))
}

func TestIngestDocumentPublicByDefault(t *testing.T) {
	pipeline, _ := newTestPipeline(t)

	chunks, err := pipeline.IngestDocument(context.Background(), &core.Document{
		Id:       "doc-pub",
		Source:   "readme.md",
		Contents: "Anyone can read this.",
	}, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Empty(t, chunks[0].AccessTags)
	assert.Empty(t, chunks[0].RequiredRole)
	assert.True(t, chunks[0].IsPublic())
}

func TestIngestDocumentMergesMetadata(t *testing.T) {
	pipeline, _ := newTestPipeline(t)

	chunks, err := pipeline.IngestDocument(context.Background(), &core.Document{
		Id:       "doc-meta",
		Source:   "report.pdf",
		Contents: "Quarterly figures.",
		Metadata: map[string]string{"pages": "3", "lang": "en"},
	}, &IngestOptions{
		Metadata: map[string]string{"lang": "de", "team": "finance"},
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, map[string]string{"pages": "3", "lang": "de", "team": "finance"}, chunks[0].Metadata)
}

func TestIngestDocumentMetadataNotShared(t *testing.T) {
	pipeline, _ := newTestPipeline(t, WithChunkSize(50), WithChunkOverlap(0))

	chunks, err := pipeline.IngestDocument(context.Background(), &core.Document{
		Id:       "doc-shared",
		Source:   "report.pdf",
		Contents: strings.Repeat("Each sentence lands in its own chunk. ", 10),
		Metadata: map[string]string{"lang": "en"},
	}, nil)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	chunks[0].Metadata["page"] = "1"
	assert.NotContains(t, chunks[1].Metadata, "page")
	assert.Equal(t, "en", chunks[1].Metadata["lang"])
}

func TestIngestDocumentEmbedderFailure(t *testing.T) {
	repo, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	defer repo.Close()

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("embedder down")
	}

	pipeline, err := NewPipeline(repo, embedder)
	require.NoError(t, err)
	defer pipeline.Release()

	_, err = pipeline.IngestDocument(context.Background(), &core.Document{
		Id:       "doc-fail",
		Contents: "some text",
	}, nil)
	require.Error(t, err)

	// Nothing should be stored when embedding fails
	stored, err := repo.GetChunksByDocument(context.Background(), "doc-fail")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestIngestFile(t *testing.T) {
	pipeline, repo := newTestPipeline(t)

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("The onboarding checklist lives on the wiki."), 0o644))

	chunks, err := pipeline.IngestFile(context.Background(), path, &IngestOptions{AccessTags: []string{"Internal"}})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, path, chunks[0].Source)
	assert.Equal(t, []string{"Internal"}, chunks[0].AccessTags)

	stored, err := repo.GetChunksByDocument(context.Background(), chunks[0].DocumentId)
	require.NoError(t, err)
	assert.Len(t, stored, len(chunks))
}

func TestIngestFileUnsupported(t *testing.T) {
	pipeline, _ := newTestPipeline(t)

	path := filepath.Join(t.TempDir(), "image.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 0x50}, 0o644))

	_, err := pipeline.IngestFile(context.Background(), path, nil)
	assert.ErrorIs(t, err, loaders.ErrUnsupportedFormat)
}

func TestIngestPathDirectory(t *testing.T) {
	pipeline, _ := newTestPipeline(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("second file"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("first file"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.bin"), []byte{0x00}, 0o644))

	chunks, err := pipeline.IngestPath(context.Background(), dir, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, filepath.Join(dir, "a.md"), chunks[0].Source)
	assert.Equal(t, filepath.Join(dir, "b.txt"), chunks[1].Source)
}

func TestIngestPathEmptyDirectory(t *testing.T) {
	pipeline, _ := newTestPipeline(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.bin"), []byte{0x00}, 0o644))

	_, err := pipeline.IngestPath(context.Background(), dir, nil)
	assert.ErrorIs(t, err, ErrNothingToIngest)
}

func TestIngestPathSingleFile(t *testing.T) {
	pipeline, _ := newTestPipeline(t)

	path := filepath.Join(t.TempDir(), "single.txt")
	require.NoError(t, os.WriteFile(path, []byte("one file"), 0o644))

	chunks, err := pipeline.IngestPath(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestIngestDocumentSmallBatches(t *testing.T) {
	pipeline, _ := newTestPipeline(t, WithChunkSize(50), WithChunkOverlap(0), WithBatchSize(1), WithPoolSize(2))

	doc := &core.Document{
		Id:       "doc-batch",
		Contents: strings.Repeat("Short sentences split into many chunks here. ", 10),
	}
	chunks, err := pipeline.IngestDocument(context.Background(), doc, nil)
	require.NoError(t, err)
	assert.Greater(t, len(chunks), 2)
	for _, chunk := range chunks {
		assert.NotEmpty(t, chunk.Vector)
	}
}
