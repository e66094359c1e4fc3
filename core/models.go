package core

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for stored chunks.
// It is generated using content-based hashing so that re-ingesting the
// same content produces the same ID.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ChunkID generates the ID for a chunk from its document, position and content.
// Two chunks of the same document at the same position with the same text
// collide on purpose: ingestion is idempotent per document.
func ChunkID(documentId string, seq int, contents string) ID {
	return IDFromContent(documentId + "\x00" + strconv.Itoa(seq) + "\x00" + contents)
}

// Document represents a single source file staged for ingestion.
// It is transient: only its chunks are persisted.
type Document struct {
	Id       string // assigned at load time, shared by all chunks of the document
	Source   string // path or name of the original file
	Contents string
	Metadata map[string]string // loader-specific details (e.g. page count)
}

// Chunk is a unit of document text stored in the vector database,
// together with its embedding and access-control metadata.
type Chunk struct {
	Id           ID
	DocumentId   string
	Source       string
	Seq          int // position of the chunk within its document
	Contents     string
	Vector       []float32         // embedding vector (populated by the ingestion pipeline)
	AccessTags   []string          // empty means public with respect to tags
	RequiredRole string            // empty means no strict-role gate
	Metadata     map[string]string // free-form metadata propagated from the document
	InsertedAt   time.Time
	UpdatedAt    time.Time
}

// IsPublic reports whether the chunk carries no access restrictions.
// Public chunks are visible to every query, filtered or not.
func (c *Chunk) IsPublic() bool {
	return len(c.AccessTags) == 0 && c.RequiredRole == ""
}

// SearchResult represents a search result with the full chunk and similarity score.
type SearchResult struct {
	Chunk *Chunk
	Score float32
}
