package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, StoreBadger, cfg.Store.Type)
	require.NotNil(t, cfg.Store.Badger)
	assert.NotEmpty(t, cfg.Store.Badger.Path)
	assert.Equal(t, "http://localhost:11434/v1", cfg.AI.EmbeddingHost)
	assert.Equal(t, 1000, cfg.Splitter.ChunkSize)
	assert.Equal(t, 200, cfg.Splitter.ChunkOverlap)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 12000, cfg.Retrieval.MaxContextChars)
	assert.Equal(t, "role_mapping.json", cfg.Retrieval.RoleMappingPath)
}

func TestLoadQdrantStore(t *testing.T) {
	path := writeConfig(t, `
store:
  type: qdrant
  qdrant:
    url: http://localhost:6333
ai:
  embedding_host: http://embed:11434
retrieval:
  top_k: 8
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, StoreQdrant, cfg.Store.Type)
	require.NotNil(t, cfg.Store.Qdrant)
	assert.Equal(t, "http://localhost:6333", cfg.Store.Qdrant.URL)
	assert.Equal(t, "ragfence", cfg.Store.Qdrant.Collection)
	assert.Equal(t, 384, cfg.Store.Qdrant.Dimension)
	assert.Equal(t, 15, cfg.Store.Qdrant.TimeoutSecs)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	// Generator host defaults to the embedding host
	assert.Equal(t, "http://embed:11434", cfg.AI.GeneratorHost)
}

func TestLoadSQLiteStore(t *testing.T) {
	path := writeConfig(t, `
store:
  type: sqlite
  sqlite:
    path: /tmp/chunks.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StoreSQLite, cfg.Store.Type)
	assert.Equal(t, "/tmp/chunks.db", cfg.Store.SQLite.Path)
}

func TestLoadUnknownStoreType(t *testing.T) {
	path := writeConfig(t, `
store:
  type: chroma
`)

	_, err := Load(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store type")
}

func TestLoadMissingQdrantURL(t *testing.T) {
	path := writeConfig(t, `
store:
  type: qdrant
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "store: [")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestNormalizeAfterOverride(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	// Switching to a store with no settings fails validation
	cfg.Store.Type = StoreQdrant
	assert.Error(t, Normalize(cfg))

	// Switching back to badger fills the default path again
	cfg.Store.Type = StoreBadger
	require.NoError(t, Normalize(cfg))
	assert.NotEmpty(t, cfg.Store.Badger.Path)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	cfg.Retrieval.TopK = 9

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, loaded.Retrieval.TopK)
	assert.Equal(t, cfg.Store.Type, loaded.Store.Type)
}
