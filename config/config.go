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


// Package config loads the application configuration from YAML. The
// store type is a closed set resolved at startup; there is no runtime
// backend registration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Store backend types.
const (
	StoreBadger = "badger"
	StoreQdrant = "qdrant"
	StoreSQLite = "sqlite"
)

// BadgerConfig contains settings for the embedded badger store.
type BadgerConfig struct {
	Path string `yaml:"path"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	Dimension   int    `yaml:"dimension"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// SQLiteConfig contains settings for the SQLite store.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// StoreConfig selects and configures the chunk store implementation.
type StoreConfig struct {
	Type   string        `yaml:"type"`
	Badger *BadgerConfig `yaml:"badger,omitempty"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
	SQLite *SQLiteConfig `yaml:"sqlite,omitempty"`
}

// AIConfig configures the OpenAI-compatible embedding and generation
// services.
type AIConfig struct {
	EmbeddingHost  string `yaml:"embedding_host"`
	EmbeddingModel string `yaml:"embedding_model"`
	GeneratorHost  string `yaml:"generator_host"`
	GeneratorModel string `yaml:"generator_model"`
}

// SplitterConfig configures how documents are split into chunks.
type SplitterConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// RetrievalConfig configures query-time retrieval.
type RetrievalConfig struct {
	TopK            int    `yaml:"top_k"`
	MaxContextChars int    `yaml:"max_context_chars"`
	RoleMappingPath string `yaml:"role_mapping_path"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Store     StoreConfig     `yaml:"store"`
	AI        AIConfig        `yaml:"ai"`
	Splitter  SplitterConfig  `yaml:"splitter"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// Load reads a config from a specified path. If the file does not exist,
// returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize applies defaults and validates the config. Load calls it;
// callers that mutate a loaded config afterwards (CLI overrides) should
// call it again.
func Normalize(cfg *AppConfig) error {
	applyConfigDefaults(cfg)
	return validate(cfg)
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// DefaultUserConfigPath returns ~/.config/ragfence/config.yaml.
func DefaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragfence", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Store: StoreConfig{
			Type:   StoreBadger,
			Badger: &BadgerConfig{Path: defaultBadgerPath()},
		},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func defaultBadgerPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ragfence/data"
	}
	return filepath.Join(home, ".ragfence", "data")
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Store.Type == "" {
		cfg.Store.Type = StoreBadger
	}
	if cfg.Store.Type == StoreBadger {
		if cfg.Store.Badger == nil {
			cfg.Store.Badger = &BadgerConfig{}
		}
		if cfg.Store.Badger.Path == "" {
			cfg.Store.Badger.Path = defaultBadgerPath()
		}
	}
	if cfg.Store.Type == StoreQdrant && cfg.Store.Qdrant != nil {
		if cfg.Store.Qdrant.Collection == "" {
			cfg.Store.Qdrant.Collection = "ragfence"
		}
		if cfg.Store.Qdrant.Dimension == 0 {
			cfg.Store.Qdrant.Dimension = 384
		}
		if cfg.Store.Qdrant.TimeoutSecs == 0 {
			cfg.Store.Qdrant.TimeoutSecs = 15
		}
	}
	if cfg.AI.EmbeddingHost == "" {
		cfg.AI.EmbeddingHost = "http://localhost:11434/v1"
	}
	if cfg.AI.EmbeddingModel == "" {
		cfg.AI.EmbeddingModel = "embeddinggemma"
	}
	if cfg.AI.GeneratorHost == "" {
		cfg.AI.GeneratorHost = cfg.AI.EmbeddingHost
	}
	if cfg.AI.GeneratorModel == "" {
		cfg.AI.GeneratorModel = "qwen2.5:3b"
	}
	if cfg.Splitter.ChunkSize == 0 {
		cfg.Splitter.ChunkSize = 1000
	}
	if cfg.Splitter.ChunkOverlap == 0 {
		cfg.Splitter.ChunkOverlap = 200
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.MaxContextChars == 0 {
		cfg.Retrieval.MaxContextChars = 12000
	}
	if cfg.Retrieval.RoleMappingPath == "" {
		cfg.Retrieval.RoleMappingPath = "role_mapping.json"
	}
}

func validate(cfg *AppConfig) error {
	switch cfg.Store.Type {
	case StoreBadger:
		if cfg.Store.Badger == nil || cfg.Store.Badger.Path == "" {
			return errors.New("config: store.badger.path is required")
		}
	case StoreQdrant:
		if cfg.Store.Qdrant == nil || cfg.Store.Qdrant.URL == "" {
			return errors.New("config: store.qdrant.url is required")
		}
	case StoreSQLite:
		if cfg.Store.SQLite == nil || cfg.Store.SQLite.Path == "" {
			return errors.New("config: store.sqlite.path is required")
		}
	default:
		return fmt.Errorf("config: unknown store type %q", cfg.Store.Type)
	}
	return nil
}
