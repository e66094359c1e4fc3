package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/ragfence/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestIngestCommandFlags(t *testing.T) {
	app := newApp()
	var ingest *cli.Command
	for _, cmd := range app.Commands {
		if cmd.Name == "ingest" {
			ingest = cmd
			break
		}
	}
	require.NotNil(t, ingest)

	t.Run("tags flag has alias -t and no default", func(t *testing.T) {
		var tagsFlag *cli.StringFlag
		for _, flag := range ingest.Flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "tags" {
				tagsFlag = f
				break
			}
		}
		require.NotNil(t, tagsFlag)
		assert.Contains(t, tagsFlag.Aliases, "t")
		assert.Empty(t, tagsFlag.Value)
	})

	t.Run("required-role flag is optional", func(t *testing.T) {
		var roleFlag *cli.StringFlag
		for _, flag := range ingest.Flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "required-role" {
				roleFlag = f
				break
			}
		}
		require.NotNil(t, roleFlag)
		assert.False(t, roleFlag.Required)
		assert.Empty(t, roleFlag.Value)
	})

	t.Run("missing path argument fails", func(t *testing.T) {
		err := app.Run([]string{"ragfence", "ingest"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "path")
	})
}

func TestQueryCommandFlags(t *testing.T) {
	app := newApp()
	var queryCmd *cli.Command
	for _, cmd := range app.Commands {
		if cmd.Name == "query" {
			queryCmd = cmd
			break
		}
	}
	require.NotNil(t, queryCmd)

	t.Run("top-k flag has alias -k", func(t *testing.T) {
		var topKFlag *cli.IntFlag
		for _, flag := range queryCmd.Flags {
			if f, ok := flag.(*cli.IntFlag); ok && f.Name == "top-k" {
				topKFlag = f
				break
			}
		}
		require.NotNil(t, topKFlag)
		assert.Contains(t, topKFlag.Aliases, "k")
		assert.Zero(t, topKFlag.Value)
	})

	t.Run("answer flag defaults to false", func(t *testing.T) {
		var answerFlag *cli.BoolFlag
		for _, flag := range queryCmd.Flags {
			if f, ok := flag.(*cli.BoolFlag); ok && f.Name == "answer" {
				answerFlag = f
				break
			}
		}
		require.NotNil(t, answerFlag)
		assert.False(t, answerFlag.Value)
	})

	t.Run("role-mapping flag has no default", func(t *testing.T) {
		var mappingFlag *cli.StringFlag
		for _, flag := range queryCmd.Flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "role-mapping" {
				mappingFlag = f
				break
			}
		}
		require.NotNil(t, mappingFlag)
		assert.Empty(t, mappingFlag.Value)
	})

	t.Run("missing question argument fails", func(t *testing.T) {
		err := app.Run([]string{"ragfence", "query"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "question")
	})

	t.Run("blank question fails", func(t *testing.T) {
		err := app.Run([]string{"ragfence", "query", "   "})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "question")
	})
}

func TestServeCommandFlags(t *testing.T) {
	app := newApp()
	var serve *cli.Command
	for _, cmd := range app.Commands {
		if cmd.Name == "serve" {
			serve = cmd
			break
		}
	}
	require.NotNil(t, serve)

	var addrFlag *cli.StringFlag
	for _, flag := range serve.Flags {
		if f, ok := flag.(*cli.StringFlag); ok && f.Name == "addr" {
			addrFlag = f
			break
		}
	}
	require.NotNil(t, addrFlag)
	assert.Equal(t, ":8080", addrFlag.Value)
}

func TestRemoveCommandRequiresDocumentId(t *testing.T) {
	err := newApp().Run([]string{"ragfence", "rm"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document-id")
}

func TestOpenRepositoryBadger(t *testing.T) {
	cfg := &config.AppConfig{
		Store: config.StoreConfig{
			Type:   config.StoreBadger,
			Badger: &config.BadgerConfig{Path: filepath.Join(t.TempDir(), "data")},
		},
	}

	repo, err := openRepository(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, repo)
	assert.NoError(t, repo.Close())
}

func TestOpenRepositorySQLite(t *testing.T) {
	cfg := &config.AppConfig{
		Store: config.StoreConfig{
			Type:   config.StoreSQLite,
			SQLite: &config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "chunks.db")},
		},
	}

	repo, err := openRepository(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, repo)
	assert.NoError(t, repo.Close())
}

func TestOpenRepositoryUnknownType(t *testing.T) {
	cfg := &config.AppConfig{Store: config.StoreConfig{Type: "chroma"}}

	_, err := openRepository(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store type")
}

func TestNewAIConfigFromAppConfig(t *testing.T) {
	cfg := &config.AppConfig{
		AI: config.AIConfig{
			EmbeddingHost:  "http://embed:11434/v1",
			EmbeddingModel: "embed-model",
			GeneratorHost:  "http://gen:11434/v1",
			GeneratorModel: "gen-model",
		},
	}

	aiCfg := newAIConfig(cfg)
	assert.Equal(t, "http://embed:11434/v1", aiCfg.EmbeddingHost)
	assert.Equal(t, "embed-model", aiCfg.EmbeddingModel)
	assert.Equal(t, "http://gen:11434/v1", aiCfg.GeneratorHost)
	assert.Equal(t, "gen-model", aiCfg.GeneratorModel)
}

func TestSetupLogger(t *testing.T) {
	runWithLevel := func(level string) error {
		app := &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "log-level",
					Value: "info",
				},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error {
				return nil
			},
		}
		return app.Run([]string{"test", "--log-level", level})
	}

	t.Run("valid log levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error"} {
			t.Run(level, func(t *testing.T) {
				require.NoError(t, runWithLevel(level))
			})
		}
	})

	t.Run("case insensitive log levels", func(t *testing.T) {
		for _, level := range []string{"DEBUG", "Info", "WaRn", "ERROR"} {
			t.Run(level, func(t *testing.T) {
				require.NoError(t, runWithLevel(level))
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		err := runWithLevel("invalid")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("log-level flag has alias -l", func(t *testing.T) {
		app := newApp()
		var levelFlag *cli.StringFlag
		for _, flag := range app.Flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "log-level" {
				levelFlag = f
				break
			}
		}
		require.NotNil(t, levelFlag)
		assert.Contains(t, levelFlag.Aliases, "l")
		assert.Equal(t, "info", levelFlag.Value)
	})
}

func TestMain(m *testing.M) {
	code := m.Run()
	os.Exit(code)
}
