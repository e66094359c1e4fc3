package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/ragfence/core"
)

// Key prefixes for different data types
const (
	chunkRecordPrefix   = "chkrec"
	chunkDocumentPrefix = "chkdoc"
)

// makeChunkKey generates a key for a chunk by ID.
func makeChunkKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", chunkRecordPrefix, id))
}

// makeChunkDocumentKey generates a composite key for the document index.
// Format: prefix:documentId\x00seq
// The document ID is terminated with a NUL byte so one document ID is
// never a key prefix of another, and the sequence number is written in
// BigEndian order so lexicographic iteration yields chunks in order.
func makeChunkDocumentKey(documentId string, seq int) []byte {
	prefix := chunkDocumentPrefix + ":"
	totalSize := len(prefix) + len(documentId) + 1 + 8
	buf := make([]byte, totalSize)
	offset := copy(buf, prefix)
	offset += copy(buf[offset:], documentId)
	buf[offset] = 0
	offset++
	binary.BigEndian.PutUint64(buf[offset:], uint64(seq))
	return buf
}

// makePartialChunkDocumentKey generates a partial key for iterating all
// index entries of one document.
func makePartialChunkDocumentKey(documentId string) []byte {
	prefix := chunkDocumentPrefix + ":"
	totalSize := len(prefix) + len(documentId) + 1
	buf := make([]byte, totalSize)
	offset := copy(buf, prefix)
	offset += copy(buf[offset:], documentId)
	buf[offset] = 0
	return buf
}
