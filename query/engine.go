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


package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/ragfence/access"
	"github.com/poiesic/ragfence/ai"
	"github.com/poiesic/ragfence/core"
	"github.com/poiesic/ragfence/storage"
)

const (
	defaultTopK            = 5
	defaultMaxContextChars = 12000

	// noAnswer is returned verbatim when retrieval yields nothing.
	noAnswer = "I don't know based on the provided documents."
)

// Engine answers questions over chunk storage with access filtering
// applied inside the vector search.
type Engine struct {
	repository      storage.ChunkRepository
	embedder        ai.Embedder
	generator       ai.Generator
	mapping         core.RoleMapping
	topK            int
	maxContextChars int
	logger          *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine) error

// WithGenerator sets the answer generation service. Retrieve works
// without one; Answer requires it.
func WithGenerator(generator ai.Generator) EngineOption {
	return func(e *Engine) error {
		e.generator = generator
		return nil
	}
}

// WithTopK sets how many chunks are retrieved per question.
// Default is 5.
func WithTopK(k int) EngineOption {
	return func(e *Engine) error {
		if k < 1 {
			return fmt.Errorf("top-k must be positive, got %d", k)
		}
		e.topK = k
		return nil
	}
}

// WithMaxContextChars caps the characters of retrieved context injected
// into the answer prompt. Default is 12000.
func WithMaxContextChars(max int) EngineOption {
	return func(e *Engine) error {
		if max < 1 {
			return fmt.Errorf("max context chars must be positive, got %d", max)
		}
		e.maxContextChars = max
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEngine creates a query engine. The mapping translates user roles
// into authorized access tags; a nil mapping means roles grant no tags.
func NewEngine(repository storage.ChunkRepository, embedder ai.Embedder, mapping core.RoleMapping, opts ...EngineOption) (*Engine, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	e := &Engine{
		repository:      repository,
		embedder:        embedder,
		mapping:         mapping,
		topK:            defaultTopK,
		maxContextChars: defaultMaxContextChars,
		logger:          slog.Default().With("component", "query"),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Retrieve embeds the question and searches storage with the user's
// access filter attached. An empty user context searches unfiltered;
// the bypass is logged.
func (e *Engine) Retrieve(ctx context.Context, question string, user core.UserContext) ([]*core.SearchResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	filter := access.BuildFilter(user, e.mapping)
	if filter == nil {
		e.logger.Warn("no role or tags supplied; access filtering bypassed")
	} else {
		e.logger.Debug("retrieving with access filter",
			"role", filter.Role,
			"authorized_tags", filter.AuthorizedTags)
	}

	vector, err := e.embedder.EmbedText(ctx, question)
	if err != nil {
		return nil, err
	}

	results, err := e.repository.Search(ctx, vector, e.topK, filter)
	if err != nil {
		return nil, err
	}

	e.logger.Info("retrieved chunks", "question_length", len(question), "results", len(results))
	return results, nil
}

// Citation points an answer back at a retrieved context block.
type Citation struct {
	Id     int
	Source string
	Score  float32
}

// Answer is a generated answer with the retrieval behind it. Prompt is
// the full grounded prompt sent to the generator; empty when retrieval
// found nothing.
type Answer struct {
	Text      string
	Prompt    string
	Citations []Citation
	Results   []*core.SearchResult
}

// Answer retrieves context for the question and synthesizes an answer
// from it. When retrieval yields nothing the engine answers that it
// does not know, without calling the generator.
func (e *Engine) Answer(ctx context.Context, question string, user core.UserContext) (*Answer, error) {
	if e.generator == nil {
		return nil, ErrGeneratorRequired
	}

	results, err := e.Retrieve(ctx, question, user)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &Answer{Text: noAnswer}, nil
	}

	prompt, citations := e.buildPrompt(question, results)

	text, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return &Answer{
		Text:      text,
		Prompt:    prompt,
		Citations: citations,
		Results:   results,
	}, nil
}

// buildPrompt renders numbered context blocks and the grounding
// instructions around the question.
func (e *Engine) buildPrompt(question string, results []*core.SearchResult) (string, []Citation) {
	blocks := make([]string, len(results))
	citations := make([]Citation, len(results))
	for i, result := range results {
		id := i + 1
		citations[i] = Citation{
			Id:     id,
			Source: result.Chunk.Source,
			Score:  result.Score,
		}
		blocks[i] = fmt.Sprintf("[%d] SOURCE=%s SCORE=%.4f\n%s",
			id, result.Chunk.Source, result.Score, result.Chunk.Contents)
	}

	contextText := strings.Join(blocks, "\n\n---\n\n")
	if len(contextText) > e.maxContextChars {
		contextText = contextText[:e.maxContextChars] + "\n\n[TRUNCATED]\n"
	}

	prompt := fmt.Sprintf(`You are a document assistant.
Answer the user's question using ONLY the provided context.
If the answer is not in the context, say %q

Rules:
- Be concise and technical when appropriate.
- Include citations like [1], [2] referring to the context blocks.
- Do not invent sources.

Context:
%s

Question:
%s

Answer:`, noAnswer, contextText, question)

	return prompt, citations
}
