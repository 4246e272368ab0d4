//go:build cgo

package qoyllur

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/qoyllur/intent"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "hashing", cfg.Embedding.Provider)
	assert.Equal(t, 10, cfg.Search.TopK)
	assert.Equal(t, 0.6, cfg.Search.Alpha)
	assert.Equal(t, 5, cfg.Search.RerankWindow)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no graph", func(c *Config) { c.GraphPath = " " }},
		{"no provider", func(c *Config) { c.Embedding.Provider = "" }},
		{"negative batch", func(c *Config) { c.Embedding.BatchSize = -1 }},
		{"bad mode", func(c *Config) { c.Search.Mode = "psychic" }},
		{"zero top_k", func(c *Config) { c.Search.TopK = 0 }},
		{"alpha above one", func(c *Config) { c.Search.Alpha = 1.5 }},
		{"alpha below zero", func(c *Config) { c.Search.Alpha = -0.1 }},
		{"negative window", func(c *Config) { c.Search.RerankWindow = -1 }},
		{"day without entity", func(c *Config) { c.Days = []intent.Day{{Number: 1}} }},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestValidateReportsAllFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Search.TopK = 0
	cfg.Search.Alpha = 3
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "top_k")
	assert.Contains(t, err.Error(), "alpha")
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qoyllur.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
graph_path: data/fiesta.ttl
language: en
embedding:
  provider: ollama
  model: nomic-embed-text
  base_url: http://localhost:11434
search:
  mode: lexical
  top_k: 7
cache:
  path: cache/embeddings.db
  write: true
intents:
  location: [where]
days:
  - number: 1
    entity_id: Dia1
    variants: [saturday]
log_level: debug
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "data/fiesta.ttl", cfg.GraphPath)
	assert.Equal(t, "en", cfg.vocabulary().Language)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.Equal(t, 32, cfg.Embedding.BatchSize, "unset fields keep defaults")
	assert.Equal(t, "lexical", cfg.Search.Mode)
	assert.Equal(t, 7, cfg.Search.TopK)
	assert.Equal(t, 0.6, cfg.Search.Alpha)
	assert.Equal(t, "cache/embeddings.db", cfg.Cache.Path)
	assert.True(t, cfg.Cache.Write)
	assert.Equal(t, []string{"where"}, cfg.Intents.Location, "configured list replaces the default")
	assert.Equal(t, intent.DefaultRules().Time, cfg.Intents.Time, "missing lists fall back to defaults")
	assert.Equal(t, []intent.Day{{Number: 1, EntityID: "Dia1", Variants: []string{"saturday"}}}, cfg.Days)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "tieneFecha", cfg.Vocabulary.Date)
}

func TestLoadConfigJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qoyllur.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"graph_path": "g.nt", "search": {"alpha": 0.25}}`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "g.nt", cfg.GraphPath)
	assert.Equal(t, 0.25, cfg.Search.Alpha)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("QOYLLUR_GRAPH_PATH", "/srv/graph.ttl")
	t.Setenv("QOYLLUR_SEARCH_TOP_K", "3")
	t.Setenv("QOYLLUR_SEARCH_ALPHA", "0.9")
	t.Setenv("QOYLLUR_EMBEDDING_API_KEY", "secret")
	t.Setenv("QOYLLUR_CACHE_WRITE", "true")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "/srv/graph.ttl", cfg.GraphPath)
	assert.Equal(t, 3, cfg.Search.TopK)
	assert.Equal(t, 0.9, cfg.Search.Alpha)
	assert.Equal(t, "secret", cfg.Embedding.APIKey)
	assert.True(t, cfg.Cache.Write)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search:\n  top_k: -4\n"), 0644))
	_, err = LoadConfig(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLogLevel("loud")
	assert.Error(t, err)
}
