// Package ingestion provides pipeline orchestration for turning
// documents into stored, searchable chunks.
//
// The Pipeline type manages the ingestion workflow for documents:
//   - Splitting document text into overlapping chunks
//   - Stamping every chunk with the document's access metadata
//   - Generating embeddings concurrently using a worker pool
//   - Adding the chunks to storage
//
// Access metadata is applied uniformly: every chunk of a document
// carries the same access tags and required role, so no chunk of a
// restricted document leaks through the filter layer.
package ingestion
