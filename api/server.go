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


package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/ragfence/access"
	"github.com/poiesic/ragfence/core"
	"github.com/poiesic/ragfence/query"
)

// defaultModel is echoed in responses when the request names no model.
const defaultModel = "ragfence"

// Request headers carrying the caller's access context. Absent headers
// mean an empty context, which searches unfiltered.
const (
	RoleHeader = "X-Ragfence-Role"
	TagsHeader = "X-Ragfence-Tags"
)

// Server exposes a query engine as an OpenAI-compatible chat
// completions API.
type Server struct {
	engine *query.Engine
	logger *slog.Logger
}

// NewServer creates a Server over the given engine. The engine must
// carry a generator; Answer fails without one.
func NewServer(engine *query.Engine) (*Server, error) {
	if engine == nil {
		return nil, ErrEngineRequired
	}
	return &Server{
		engine: engine,
		logger: slog.Default().With("component", "api"),
	}, nil
}

// Handler returns the HTTP handler serving the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"initialized": true,
	})
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	// The last user message is the question; earlier turns are not
	// carried into retrieval.
	question := ""
	for _, msg := range req.Messages {
		if msg.Role == "user" {
			question = msg.Content
		}
	}
	if question == "" {
		writeError(w, http.StatusBadRequest, "No user message found in request")
		return
	}

	user := core.UserContext{
		Role:       r.Header.Get(RoleHeader),
		DirectTags: access.ParseTags(r.Header.Get(TagsHeader)),
	}

	s.logger.Info("processing chat completion",
		"question_length", len(question),
		"role", user.Role,
		"tags", len(user.DirectTags))

	answer, err := s.engine.Answer(r.Context(), question, user)
	if err != nil {
		if errors.Is(err, query.ErrEmptyQuestion) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("answer failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error: "+err.Error())
		return
	}

	model := req.Model
	if model == "" {
		model = defaultModel
	}

	usage := estimateTokenUsage(answer.Prompt, answer.Text)
	writeJSON(w, http.StatusOK, buildChatResponse(answer.Text, model, usage))
}

// estimateTokenUsage approximates token counts by whitespace words.
func estimateTokenUsage(prompt, answer string) Usage {
	promptTokens := len(strings.Fields(prompt))
	completionTokens := len(strings.Fields(answer))
	return Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

func buildChatResponse(answer, model string, usage Usage) *ChatCompletionResponse {
	id := "chatcmpl-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
	return &ChatCompletionResponse{
		Id:      id,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []ChatCompletionChoice{
			{
				Index:        0,
				Message:      Message{Role: "assistant", Content: answer},
				FinishReason: "stop",
			},
		},
		Usage: usage,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
