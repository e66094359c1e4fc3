package storage

import (
	"context"

	"github.com/poiesic/ragfence/core"
)

// ChunkRepository provides storage and similarity search for document chunks.
// Implementations must be thread-safe and support concurrent access.
type ChunkRepository interface {
	// AddChunks adds one or more chunks to storage.
	// For chunks with ID=0, derives the content-based ID.
	// Sets InsertedAt/UpdatedAt timestamps if not already set.
	// Returns the chunks with IDs and timestamps populated.
	AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// GetChunk retrieves a single chunk by ID.
	// Returns ErrNotFound if the chunk doesn't exist.
	GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error)

	// GetChunksByDocument retrieves all chunks of a document,
	// ordered by sequence number.
	GetChunksByDocument(ctx context.Context, documentId string) ([]*core.Chunk, error)

	// DeleteDocument removes all chunks belonging to a document.
	// Deleting a document with no stored chunks is not an error.
	DeleteDocument(ctx context.Context, documentId string) error

	// Search finds chunks similar to the given vector, restricted to
	// chunks the filter admits. A nil filter searches all chunks.
	// Results are ordered by similarity score (highest first), up to
	// limit results. A non-nil filter the backend cannot express fails
	// with ErrUnsupportedFilter; the search is never silently relaxed.
	Search(ctx context.Context, vector []float32, limit int, filter *core.AccessFilter) ([]*core.SearchResult, error)

	// Close closes the storage backend and releases resources.
	Close() error
}
