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


// Package qdrant implements storage.ChunkRepository against a remote
// Qdrant collection over its REST API. Access filters are translated to
// Qdrant's native filter language; filters without a translation fail
// with storage.ErrUnsupportedFilter.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/poiesic/ragfence/core"
	"github.com/poiesic/ragfence/storage"
)

const scrollPageSize = 256

// Config holds connection settings for a Qdrant collection.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	// Dimension of stored vectors; used when creating the collection.
	Dimension int
	Timeout   time.Duration
}

// Store is a minimal REST client to Qdrant implementing
// storage.ChunkRepository. It assumes cosine distance and creates the
// collection if missing.
type Store struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
	logger     *slog.Logger
}

var _ storage.ChunkRepository = (*Store)(nil)

// NewStore creates a Store and ensures the collection exists.
func NewStore(ctx context.Context, cfg Config) (storage.ChunkRepository, error) {
	if cfg.URL == "" || cfg.Collection == "" {
		return nil, fmt.Errorf("%w: qdrant url and collection are required", storage.ErrInvalidQuery)
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: qdrant vector dimension is required", storage.ErrInvalidQuery)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	s := &Store{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
		logger:     slog.Default().With("component", "qdrant"),
	}
	if err := s.ensureCollection(ctx, cfg.Dimension); err != nil {
		return nil, err
	}
	return s, nil
}

// ensureCollection creates the collection if it does not exist. Qdrant
// returns 200 when the collection already exists with the same schema.
func (s *Store) ensureCollection(ctx context.Context, dimension int) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.doJSON(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body, nil)
}

// Close releases the idle connections held by the HTTP client.
func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// AddChunks upserts chunks as Qdrant points. Access keys are omitted
// from the payload when empty so is_empty conditions identify public
// chunks.
func (s *Store) AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	if len(chunks) == 0 {
		return chunks, nil
	}

	points := make([]map[string]any, len(chunks))
	for i, chunk := range chunks {
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

		payload := map[string]any{
			"document_id": chunk.DocumentId,
			"source":      chunk.Source,
			"seq":         chunk.Seq,
			"contents":    chunk.Contents,
			"inserted_at": chunk.InsertedAt.Format(time.RFC3339Nano),
			"updated_at":  chunk.UpdatedAt.Format(time.RFC3339Nano),
		}
		if len(chunk.AccessTags) > 0 {
			payload["access_tags"] = chunk.AccessTags
		}
		if chunk.RequiredRole != "" {
			payload["required_role_strict"] = chunk.RequiredRole
		}
		if len(chunk.Metadata) > 0 {
			payload["metadata"] = chunk.Metadata
		}

		points[i] = map[string]any{
			"id":      uint64(chunk.Id),
			"vector":  chunk.Vector,
			"payload": payload,
		}
	}

	body := map[string]any{"points": points}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection)
	if err := s.doJSON(ctx, http.MethodPut, url, body, nil); err != nil {
		return nil, err
	}
	return chunks, nil
}

// GetChunk retrieves a single chunk by ID.
func (s *Store) GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error) {
	body := map[string]any{
		"ids":          []uint64{uint64(id)},
		"with_payload": true,
		"with_vector":  true,
	}
	var resp struct {
		Result []pointResponse `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points", s.url, s.collection)
	if err := s.doJSON(ctx, http.MethodPost, url, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Result) == 0 {
		return nil, storage.ErrNotFound
	}
	return chunkFromPoint(resp.Result[0])
}

// GetChunksByDocument retrieves all chunks of a document, ordered by
// sequence number. Points are scrolled page by page since Qdrant does
// not order scroll results.
func (s *Store) GetChunksByDocument(ctx context.Context, documentId string) ([]*core.Chunk, error) {
	var chunks []*core.Chunk
	var offset any

	for {
		body := map[string]any{
			"filter":       documentFilter(documentId),
			"limit":        scrollPageSize,
			"with_payload": true,
			"with_vector":  true,
		}
		if offset != nil {
			body["offset"] = offset
		}

		var resp struct {
			Result struct {
				Points         []pointResponse `json:"points"`
				NextPageOffset any             `json:"next_page_offset"`
			} `json:"result"`
		}
		url := fmt.Sprintf("%s/collections/%s/points/scroll", s.url, s.collection)
		if err := s.doJSON(ctx, http.MethodPost, url, body, &resp); err != nil {
			return nil, err
		}

		for _, point := range resp.Result.Points {
			chunk, err := chunkFromPoint(point)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, chunk)
		}

		if resp.Result.NextPageOffset == nil {
			break
		}
		offset = resp.Result.NextPageOffset
	}

	slices.SortFunc(chunks, func(a, b *core.Chunk) int {
		return a.Seq - b.Seq
	})
	return chunks, nil
}

// DeleteDocument removes all points belonging to a document.
func (s *Store) DeleteDocument(ctx context.Context, documentId string) error {
	body := map[string]any{"filter": documentFilter(documentId)}
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", s.url, s.collection)
	return s.doJSON(ctx, http.MethodPost, url, body, nil)
}

// Search finds chunks similar to the given vector, restricted to chunks
// the filter admits.
func (s *Store) Search(ctx context.Context, vector []float32, limit int, filter *core.AccessFilter) ([]*core.SearchResult, error) {
	if len(vector) == 0 || limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	nativeFilter, err := translateFilter(filter)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  true,
	}
	if nativeFilter != nil {
		body["filter"] = nativeFilter
	}

	var resp struct {
		Result []pointResponse `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection)
	if err := s.doJSON(ctx, http.MethodPost, url, body, &resp); err != nil {
		return nil, err
	}

	results := make([]*core.SearchResult, 0, len(resp.Result))
	for _, point := range resp.Result {
		chunk, err := chunkFromPoint(point)
		if err != nil {
			return nil, err
		}
		results = append(results, &core.SearchResult{
			Chunk: chunk,
			Score: point.Score,
		})
	}
	return results, nil
}

type pointResponse struct {
	Id      uint64         `json:"id"`
	Score   float32        `json:"score"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// chunkFromPoint reconstructs a chunk from a Qdrant point.
func chunkFromPoint(point pointResponse) (*core.Chunk, error) {
	chunk := &core.Chunk{
		Id:           core.ID(point.Id),
		DocumentId:   payloadString(point.Payload, "document_id"),
		Source:       payloadString(point.Payload, "source"),
		Contents:     payloadString(point.Payload, "contents"),
		RequiredRole: payloadString(point.Payload, "required_role_strict"),
		Vector:       point.Vector,
	}

	if v, ok := point.Payload["seq"].(float64); ok {
		chunk.Seq = int(v)
	}
	if tags, ok := point.Payload["access_tags"].([]any); ok {
		for _, tag := range tags {
			if s, ok := tag.(string); ok {
				chunk.AccessTags = append(chunk.AccessTags, s)
			}
		}
	}
	if meta, ok := point.Payload["metadata"].(map[string]any); ok {
		chunk.Metadata = make(map[string]string, len(meta))
		for k, v := range meta {
			if s, ok := v.(string); ok {
				chunk.Metadata[k] = s
			}
		}
	}

	var err error
	if chunk.InsertedAt, err = payloadTime(point.Payload, "inserted_at"); err != nil {
		return nil, err
	}
	if chunk.UpdatedAt, err = payloadTime(point.Payload, "updated_at"); err != nil {
		return nil, err
	}
	return chunk, nil
}

func payloadString(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func payloadTime(payload map[string]any, key string) (time.Time, error) {
	v, ok := payload[key].(string)
	if !ok || v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad %s timestamp: %v", storage.ErrSerializationFailed, key, err)
	}
	return t.UTC(), nil
}

// doJSON issues a JSON request and decodes the response into out when
// out is non-nil.
func (s *Store) doJSON(ctx context.Context, method, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrSerializationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: %v", storage.ErrSerializationFailed, err)
		}
	}
	return nil
}
