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


// Package sqlite implements storage.ChunkRepository on a SQLite file.
// Vectors are stored as little-endian float32 blobs; similarity is
// computed in-process over the rows the access clause admits.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/poiesic/ragfence/core"
	"github.com/poiesic/ragfence/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id            INTEGER PRIMARY KEY,
	document_id   TEXT NOT NULL,
	source        TEXT NOT NULL DEFAULT '',
	seq           INTEGER NOT NULL,
	contents      TEXT NOT NULL,
	vector        BLOB,
	access_tags   TEXT NOT NULL DEFAULT '[]',
	required_role TEXT NOT NULL DEFAULT '',
	metadata      TEXT NOT NULL DEFAULT '{}',
	inserted_at   TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id, seq);
`

// Store implements storage.ChunkRepository on a SQLite database.
type Store struct {
	db *sql.DB
}

var _ storage.ChunkRepository = (*Store)(nil)

// NewStore opens (or creates) a SQLite database at the given file path
// with WAL mode for better concurrency.
func NewStore(dbPath string) (storage.ChunkRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return newStore(db)
}

// NewMemoryStore opens an in-memory SQLite database for testing.
func NewMemoryStore() (storage.ChunkRepository, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// In-memory databases exist per connection
	db.SetMaxOpenConns(1)
	return newStore(db)
}

func newStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddChunks upserts chunks keyed by their content-based ID.
func (s *Store) AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return nil, err
		}
		if chunk.Id == 0 {
			chunk.Id = core.ChunkID(chunk.DocumentId, chunk.Seq, chunk.Contents)
		}
		now := time.Now().UTC()
		if chunk.InsertedAt.IsZero() {
			chunk.InsertedAt = now
		}
		chunk.UpdatedAt = now

		tagsJSON, err := json.Marshal(tagsOrEmpty(chunk.AccessTags))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", storage.ErrSerializationFailed, err)
		}
		metaJSON, err := json.Marshal(metaOrEmpty(chunk.Metadata))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", storage.ErrSerializationFailed, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO chunks (id, document_id, source, seq, contents, vector,
				access_tags, required_role, metadata, inserted_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				document_id = excluded.document_id,
				source = excluded.source,
				seq = excluded.seq,
				contents = excluded.contents,
				vector = excluded.vector,
				access_tags = excluded.access_tags,
				required_role = excluded.required_role,
				metadata = excluded.metadata,
				updated_at = excluded.updated_at
		`, int64(chunk.Id), chunk.DocumentId, chunk.Source, chunk.Seq, chunk.Contents,
			float32SliceToBytes(chunk.Vector), string(tagsJSON), chunk.RequiredRole,
			string(metaJSON), chunk.InsertedAt.Format(time.RFC3339Nano),
			chunk.UpdatedAt.Format(time.RFC3339Nano))
		if err != nil {
			return nil, fmt.Errorf("inserting chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return chunks, nil
}

const chunkColumns = `id, document_id, source, seq, contents, vector,
	access_tags, required_role, metadata, inserted_at, updated_at`

// GetChunk retrieves a single chunk by ID.
func (s *Store) GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE id = ?", int64(id))
	chunk, err := scanChunk(row.Scan)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	return chunk, err
}

// GetChunksByDocument retrieves all chunks of a document, ordered by
// sequence number.
func (s *Store) GetChunksByDocument(ctx context.Context, documentId string) ([]*core.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE document_id = ? ORDER BY seq", documentId)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*core.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// DeleteDocument removes all chunks belonging to a document.
func (s *Store) DeleteDocument(ctx context.Context, documentId string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentId)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// Search finds chunks similar to the given vector, restricted to chunks
// the access clause admits. Similarity is cosine over normalized
// vectors, computed in-process.
func (s *Store) Search(ctx context.Context, vector []float32, limit int, filter *core.AccessFilter) ([]*core.SearchResult, error) {
	if len(vector) == 0 || limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	clause, args, err := buildAccessClause(filter)
	if err != nil {
		return nil, err
	}

	query := "SELECT " + chunkColumns + " FROM chunks WHERE vector IS NOT NULL"
	if clause != "" {
		query += " AND " + clause
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var results []*core.SearchResult
	for rows.Next() {
		chunk, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		if len(chunk.Vector) == 0 {
			continue
		}
		results = append(results, &core.SearchResult{
			Chunk: chunk,
			Score: dotProduct(vector, chunk.Vector),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// scanChunk scans one chunk row through the given scan function.
func scanChunk(scan func(dest ...any) error) (*core.Chunk, error) {
	var (
		id                    int64
		chunk                 core.Chunk
		vectorBlob            []byte
		tagsJSON, metaJSON    string
		insertedAt, updatedAt string
	)
	err := scan(&id, &chunk.DocumentId, &chunk.Source, &chunk.Seq, &chunk.Contents,
		&vectorBlob, &tagsJSON, &chunk.RequiredRole, &metaJSON, &insertedAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Id = core.ID(uint64(id))
	chunk.Vector = bytesToFloat32Slice(vectorBlob)

	var tags []string
	if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
		return nil, fmt.Errorf("%w: bad access_tags: %v", storage.ErrSerializationFailed, err)
	}
	if len(tags) > 0 {
		chunk.AccessTags = tags
	}

	var meta map[string]string
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return nil, fmt.Errorf("%w: bad metadata: %v", storage.ErrSerializationFailed, err)
	}
	if len(meta) > 0 {
		chunk.Metadata = meta
	}

	if chunk.InsertedAt, err = parseTimestamp(insertedAt); err != nil {
		return nil, err
	}
	if chunk.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	return &chunk, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp: %v", storage.ErrSerializationFailed, err)
	}
	return t.UTC(), nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func metaOrEmpty(meta map[string]string) map[string]string {
	if meta == nil {
		return map[string]string{}
	}
	return meta
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
