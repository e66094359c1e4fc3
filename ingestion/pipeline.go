// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ragfence/access"
	"github.com/poiesic/ragfence/ai"
	"github.com/poiesic/ragfence/core"
	"github.com/poiesic/ragfence/loaders"
	"github.com/poiesic/ragfence/storage"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
	defaultBatchSize    = 16
)

// Pipeline orchestrates the ingestion of documents into chunk storage.
// Embedding batches run concurrently on a worker pool; ingestion itself
// is synchronous, so a nil error means the chunks are stored with their
// vectors and access metadata.
type Pipeline struct {
	repository   storage.ChunkRepository
	embedder     ai.Embedder
	pool         *ants.Pool
	splitter     textsplitter.RecursiveCharacter
	chunkSize    int
	chunkOverlap int
	batchSize    int
	logger       *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithChunkSize sets the maximum chunk size in characters.
// Default is 1000.
func WithChunkSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("chunk size must be positive, got %d", size)
		}
		p.chunkSize = size
		return nil
	}
}

// WithChunkOverlap sets the overlap between adjacent chunks in characters.
// Default is 200.
func WithChunkOverlap(overlap int) Option {
	return func(p *Pipeline) error {
		if overlap < 0 {
			return fmt.Errorf("chunk overlap must not be negative, got %d", overlap)
		}
		p.chunkOverlap = overlap
		return nil
	}
}

// WithBatchSize sets how many chunks are embedded per batch request.
// Default is 16.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("batch size must be positive, got %d", size)
		}
		p.batchSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(repository storage.ChunkRepository, embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		repository:   repository,
		embedder:     embedder,
		pool:         pool,
		chunkSize:    defaultChunkSize,
		chunkOverlap: defaultChunkOverlap,
		batchSize:    defaultBatchSize,
		logger:       slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	// Create the splitter after options are applied so it gets final config
	p.splitter = textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(p.chunkSize),
		textsplitter.WithChunkOverlap(p.chunkOverlap),
	)

	return p, nil
}

// IngestOptions holds the access metadata and extra metadata applied to
// every chunk of the ingested document.
type IngestOptions struct {
	// AccessTags restrict the document to users holding at least one of
	// the tags. Empty means public.
	AccessTags []string

	// RequiredRole restricts the document to users whose role matches
	// exactly. Empty means no role gate.
	RequiredRole string

	// Metadata is attached to every chunk in addition to the document's
	// own metadata.
	Metadata map[string]string
}

// IngestDocument splits a document, stamps access metadata on every
// chunk, embeds the chunks, and stores them. Returns the stored chunks.
func (p *Pipeline) IngestDocument(ctx context.Context, doc *core.Document, opts *IngestOptions) ([]*core.Chunk, error) {
	if opts == nil {
		opts = &IngestOptions{}
	}

	parts, err := p.splitter.SplitText(doc.Contents)
	if err != nil {
		return nil, fmt.Errorf("splitting document %s: %w", doc.Id, err)
	}
	if len(parts) == 0 {
		return nil, nil
	}

	chunks := make([]*core.Chunk, len(parts))
	for i, part := range parts {
		chunks[i] = &core.Chunk{
			DocumentId: doc.Id,
			Source:     doc.Source,
			Seq:        i,
			Contents:   part,
			// Each chunk gets its own map so mutating one chunk's
			// metadata cannot bleed into its siblings.
			Metadata: mergeMetadata(doc.Metadata, opts.Metadata),
		}
	}

	// Every chunk of the document carries the same access metadata
	access.NewTagger(opts.AccessTags, opts.RequiredRole).TagAll(chunks)

	if err := p.embedChunks(ctx, chunks); err != nil {
		return nil, err
	}

	p.logger.Info("ingesting document",
		"document", doc.Id,
		"source", doc.Source,
		"chunks", len(chunks),
		"tags", len(opts.AccessTags),
		"required_role", opts.RequiredRole)

	return p.repository.AddChunks(ctx, chunks...)
}

// IngestFile loads a single file and ingests it as one document.
func (p *Pipeline) IngestFile(ctx context.Context, path string, opts *IngestOptions) ([]*core.Chunk, error) {
	loader, err := loaders.ForPath(path)
	if err != nil {
		return nil, err
	}
	doc, err := loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return p.IngestDocument(ctx, doc, opts)
}

// IngestPath ingests a file, or every supported file directly inside a
// directory (non-recursive, in name order). Unsupported files in a
// directory are skipped with a warning; an unsupported single file is
// an error.
func (p *Pipeline) IngestPath(ctx context.Context, path string, opts *IngestOptions) ([]*core.Chunk, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return p.IngestFile(ctx, path, opts)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		full := filepath.Join(path, entry.Name())
		if !loaders.SupportedPath(full) {
			p.logger.Warn("skipping unsupported file", "path", full)
			continue
		}
		files = append(files, full)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNothingToIngest, path)
	}
	sort.Strings(files)

	var all []*core.Chunk
	for _, file := range files {
		chunks, err := p.IngestFile(ctx, file, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, chunks...)
	}
	return all, nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// embedChunks generates embeddings for all chunks, batched across the
// worker pool. Vectors are written back in place.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []*core.Chunk) error {
	batches := make([][]*core.Chunk, 0, (len(chunks)+p.batchSize-1)/p.batchSize)
	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, chunks[start:end])
	}

	var wg sync.WaitGroup
	errs := make([]error, len(batches))
	for i, batch := range batches {
		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			errs[i] = p.embedBatch(ctx, batch)
		})
		if submitErr != nil {
			wg.Done()
			errs[i] = submitErr
		}
	}
	wg.Wait()

	return errors.Join(errs...)
}

func (p *Pipeline) embedBatch(ctx context.Context, batch []*core.Chunk) error {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Contents
	}

	embeddings, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	if len(embeddings) != len(batch) {
		return fmt.Errorf("embedding result mismatch. expected %d, received %d", len(batch), len(embeddings))
	}
	for i := range embeddings {
		batch[i].Vector = embeddings[i]
	}
	return nil
}

func mergeMetadata(base, extra map[string]string) map[string]string {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}
