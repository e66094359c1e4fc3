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


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/ragfence/access"
	"github.com/poiesic/ragfence/api"
	"github.com/poiesic/ragfence/ai"
	"github.com/poiesic/ragfence/ai/openai"
	"github.com/poiesic/ragfence/config"
	"github.com/poiesic/ragfence/core"
	"github.com/poiesic/ragfence/ingestion"
	"github.com/poiesic/ragfence/query"
	"github.com/poiesic/ragfence/storage"
	"github.com/poiesic/ragfence/storage/badger"
	"github.com/poiesic/ragfence/storage/qdrant"
	"github.com/poiesic/ragfence/storage/sqlite"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ragfence",
		Usage: "Role-aware document retrieval with access-filtered search",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file (default ~/.config/ragfence/config.yaml)",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Override the configured store type (badger, qdrant, sqlite)",
			},
		},
		Before: func(c *cli.Context) error {
			_ = godotenv.Load()
			return setupLogger(c)
		},
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest a document file or directory into chunk storage",
				ArgsUsage: "<path>",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "tags",
						Aliases: []string{"t"},
						Usage:   "Comma-separated access tags stamped on every chunk",
					},
					&cli.StringFlag{
						Name:    "required-role",
						Aliases: []string{"r"},
						Usage:   "Role required to retrieve the ingested chunks",
					},
				},
			},
			{
				Name:      "query",
				Usage:     "Search stored chunks with the caller's access context",
				ArgsUsage: "<question>",
				Action:    queryCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "role",
						Usage: "Role of the querying user",
					},
					&cli.StringFlag{
						Name:    "tags",
						Aliases: []string{"t"},
						Usage:   "Comma-separated access tags held directly by the user",
					},
					&cli.StringFlag{
						Name:  "role-mapping",
						Usage: "Path to the role mapping JSON file (overrides the configured path)",
					},
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of chunks to retrieve (0 uses the configured value)",
					},
					&cli.BoolFlag{
						Name:    "answer",
						Aliases: []string{"a"},
						Usage:   "Synthesize an answer from the retrieved chunks",
					},
				},
			},
			{
				Name:      "rm",
				Usage:     "Delete all chunks belonging to a document",
				ArgsUsage: "<document-id>",
				Action:    removeCommand,
			},
			{
				Name:   "serve",
				Usage:  "Serve an OpenAI-compatible chat completions API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address",
						Value: ":8080",
					},
					&cli.StringFlag{
						Name:  "role-mapping",
						Usage: "Path to the role mapping JSON file (overrides the configured path)",
					},
				},
			},
		},
	}
}

func ingestCommand(c *cli.Context) error {
	ctx := context.Background()

	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("path argument is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open chunk store: %w", err)
	}
	defer repo.Close()

	embedder, err := openai.NewEmbedder(newAIConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	pipeline, err := ingestion.NewPipeline(repo, embedder,
		ingestion.WithChunkSize(cfg.Splitter.ChunkSize),
		ingestion.WithChunkOverlap(cfg.Splitter.ChunkOverlap),
	)
	if err != nil {
		return fmt.Errorf("failed to create ingestion pipeline: %w", err)
	}
	defer pipeline.Release()

	opts := &ingestion.IngestOptions{
		AccessTags:   access.ParseTags(c.String("tags")),
		RequiredRole: c.String("required-role"),
	}

	chunks, err := pipeline.IngestPath(ctx, path, opts)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Ingested %d chunks from %s\n", len(chunks), path)
	if len(opts.AccessTags) > 0 {
		fmt.Fprintf(os.Stderr, "Access tags: %s\n", strings.Join(opts.AccessTags, ", "))
	}
	if opts.RequiredRole != "" {
		fmt.Fprintf(os.Stderr, "Required role: %s\n", opts.RequiredRole)
	}
	return nil
}

func queryCommand(c *cli.Context) error {
	ctx := context.Background()

	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("question argument is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	mapping, err := loadMapping(c, cfg)
	if err != nil {
		return err
	}

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open chunk store: %w", err)
	}
	defer repo.Close()

	provider, err := openai.NewProvider(newAIConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create AI provider: %w", err)
	}
	defer provider.Close()

	topK := cfg.Retrieval.TopK
	if c.Int("top-k") > 0 {
		topK = c.Int("top-k")
	}

	engineOpts := []query.EngineOption{
		query.WithTopK(topK),
		query.WithMaxContextChars(cfg.Retrieval.MaxContextChars),
	}
	if c.Bool("answer") {
		engineOpts = append(engineOpts, query.WithGenerator(provider.Generator()))
	}

	engine, err := query.NewEngine(repo, provider.Embedder(), mapping, engineOpts...)
	if err != nil {
		return fmt.Errorf("failed to create query engine: %w", err)
	}

	user := core.UserContext{
		Role:       c.String("role"),
		DirectTags: access.ParseTags(c.String("tags")),
	}

	if c.Bool("answer") {
		answer, err := engine.Answer(ctx, question, user)
		if err != nil {
			return fmt.Errorf("answer failed: %w", err)
		}
		fmt.Println(answer.Text)
		if len(answer.Citations) > 0 {
			fmt.Println("\nSources:")
			for _, citation := range answer.Citations {
				fmt.Printf("  [%d] %s (score %.4f)\n", citation.Id, citation.Source, citation.Score)
			}
		}
		return nil
	}

	results, err := engine.Retrieve(ctx, question, user)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}
	if len(results) == 0 {
		fmt.Fprintln(os.Stderr, "No matching chunks.")
		return nil
	}
	for i, result := range results {
		fmt.Printf("[%d] %s (score %.4f)\n%s\n\n", i+1, result.Chunk.Source, result.Score, result.Chunk.Contents)
	}
	return nil
}

func removeCommand(c *cli.Context) error {
	ctx := context.Background()

	documentId := c.Args().First()
	if documentId == "" {
		return fmt.Errorf("document-id argument is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open chunk store: %w", err)
	}
	defer repo.Close()

	if err := repo.DeleteDocument(ctx, documentId); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Deleted document %s\n", documentId)
	return nil
}

func serveCommand(c *cli.Context) error {
	ctx := context.Background()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	mapping, err := loadMapping(c, cfg)
	if err != nil {
		return err
	}

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open chunk store: %w", err)
	}
	defer repo.Close()

	provider, err := openai.NewProvider(newAIConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create AI provider: %w", err)
	}
	defer provider.Close()

	engine, err := query.NewEngine(repo, provider.Embedder(), mapping,
		query.WithGenerator(provider.Generator()),
		query.WithTopK(cfg.Retrieval.TopK),
		query.WithMaxContextChars(cfg.Retrieval.MaxContextChars),
	)
	if err != nil {
		return fmt.Errorf("failed to create query engine: %w", err)
	}

	server, err := api.NewServer(engine)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	addr := c.String("addr")
	slog.Info("serving chat completions API", "addr", addr)
	return (&http.Server{Addr: addr, Handler: server.Handler()}).ListenAndServe()
}

func loadMapping(c *cli.Context, cfg *config.AppConfig) (core.RoleMapping, error) {
	path := cfg.Retrieval.RoleMappingPath
	if c.String("role-mapping") != "" {
		path = c.String("role-mapping")
	}
	mapping, err := access.LoadRoleMapping(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load role mapping: %w", err)
	}
	return mapping, nil
}

func loadConfig(c *cli.Context) (*config.AppConfig, error) {
	path := c.String("config")
	if path == "" {
		var err error
		path, err = config.DefaultUserConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path: %w", err)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if store := c.String("store"); store != "" {
		cfg.Store.Type = store
		if err := config.Normalize(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// openRepository resolves the configured store type. The set of backends
// is closed; config validation rejects anything else before this runs.
func openRepository(ctx context.Context, cfg *config.AppConfig) (storage.ChunkRepository, error) {
	switch cfg.Store.Type {
	case config.StoreBadger:
		backend, err := badger.OpenBackend(cfg.Store.Badger.Path, false)
		if err != nil {
			return nil, err
		}
		return badger.NewChunkRepository(backend)
	case config.StoreQdrant:
		q := cfg.Store.Qdrant
		return qdrant.NewStore(ctx, qdrant.Config{
			URL:        q.URL,
			APIKey:     q.APIKey,
			Collection: q.Collection,
			Dimension:  q.Dimension,
			Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
		})
	case config.StoreSQLite:
		return sqlite.NewStore(cfg.Store.SQLite.Path)
	default:
		return nil, fmt.Errorf("unsupported store type %q", cfg.Store.Type)
	}
}

func newAIConfig(cfg *config.AppConfig) *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(cfg.AI.EmbeddingHost),
		ai.WithEmbeddingModel(cfg.AI.EmbeddingModel),
		ai.WithGeneratorHost(cfg.AI.GeneratorHost),
		ai.WithGeneratorModel(cfg.AI.GeneratorModel),
	)
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
