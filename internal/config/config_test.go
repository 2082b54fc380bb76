package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Chunker.ChunkSize)
	assert.Equal(t, 200, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, EmbedderOllama, cfg.Embedder.Provider)
	assert.Equal(t, "all-minilm", cfg.Embedder.Model)
	assert.Equal(t, GeneratorGemini, cfg.Generator.Provider)
	assert.Equal(t, "gemini-2.5-pro", cfg.Generator.Model)
	assert.Equal(t, "GEMINI_API_KEY", cfg.Generator.APIKeyEnv)
	assert.Equal(t, BackendChromem, cfg.Index.Backend)
	assert.Equal(t, 60*time.Second, cfg.Generator.Timeout())
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := writeConfig(t, `
chunker:
  chunk_size: 300
  chunk_overlap: 50
retrieval:
  top_k: 5
embedder:
  provider: lexical
generator:
  provider: openai
  base_url: http://localhost:8080/v1
index:
  backend: postgres
  database:
    dsn: postgres://rag@localhost:5432/rag
    driver: pq
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 300, cfg.Chunker.ChunkSize)
	assert.Equal(t, 50, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 512, cfg.Embedder.Dimensions)
	assert.Equal(t, "gpt-4o-mini", cfg.Generator.Model)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Generator.APIKeyEnv)
	assert.Equal(t, "http://localhost:8080/v1", cfg.Generator.BaseURL)
	assert.Equal(t, DriverPQ, cfg.Index.Database.Driver)
	assert.Equal(t, "document_chunks", cfg.Index.Database.Table)
}

func TestLoadConfigProviderDefaults(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		embedderModel string
		embedderURL   string
		embedderKey   string
		generatorName string
		generatorKey  string
		generatorURL  string
	}{
		{
			name:          "openai everywhere",
			body:          "embedder:\n  provider: openai\ngenerator:\n  provider: openai\n",
			embedderModel: "text-embedding-3-small",
			embedderURL:   "https://api.openai.com/v1",
			embedderKey:   "OPENAI_API_KEY",
			generatorName: "gpt-4o-mini",
			generatorKey:  "OPENAI_API_KEY",
		},
		{
			name:          "gemini embedder and local generator",
			body:          "embedder:\n  provider: gemini\ngenerator:\n  provider: ollama\n",
			embedderModel: "text-embedding-004",
			embedderKey:   "GEMINI_API_KEY",
			generatorName: "llama3.2",
			generatorURL:  "http://localhost:11434",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, tt.body))
			require.NoError(t, err)

			assert.Equal(t, tt.embedderModel, cfg.Embedder.Model)
			assert.Equal(t, tt.embedderURL, cfg.Embedder.BaseURL)
			assert.Equal(t, tt.embedderKey, cfg.Embedder.APIKeyEnv)
			assert.Equal(t, tt.generatorName, cfg.Generator.Model)
			assert.Equal(t, tt.generatorKey, cfg.Generator.APIKeyEnv)
			assert.Equal(t, tt.generatorURL, cfg.Generator.BaseURL)
		})
	}
}

func TestLoadConfigChunkOverlap(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		size    int
		overlap int
	}{
		{name: "size only", body: "chunker:\n  chunk_size: 100\n", size: 100, overlap: 20},
		{name: "large size caps overlap", body: "chunker:\n  chunk_size: 5000\n", size: 5000, overlap: 200},
		{name: "explicit zero overlap", body: "chunker:\n  chunk_size: 100\n  chunk_overlap: 0\n", size: 100, overlap: 0},
		{name: "no chunker block", body: "log_level: warn\n", size: 1000, overlap: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.size, cfg.Chunker.ChunkSize)
			assert.Equal(t, tt.overlap, cfg.Chunker.ChunkOverlap)
		})
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("DOCCHAT_LOG_LEVEL", "debug")
	t.Setenv("GEMINI_API_KEY", "secret")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "secret", cfg.Generator.APIKey())
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "overlap too large", body: "chunker:\n  chunk_size: 10\n  chunk_overlap: 10\n", field: "chunker.chunk_overlap"},
		{name: "negative size", body: "chunker:\n  chunk_size: -5\n", field: "chunker.chunk_size"},
		{name: "negative top k", body: "retrieval:\n  top_k: -1\n", field: "retrieval.top_k"},
		{name: "unknown embedder", body: "embedder:\n  provider: word2vec\n", field: "embedder.provider"},
		{name: "unknown generator", body: "generator:\n  provider: markov\n", field: "generator.provider"},
		{name: "postgres without dsn", body: "index:\n  backend: postgres\n", field: "index.database.dsn"},
		{name: "unknown backend", body: "index:\n  backend: qdrant\n", field: "index.backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DOCCHAT_DATABASE_DSN", "")
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)

			var cfgErr *models.ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "chunker: [unclosed"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Retrieval.TopK = 7
	require.NoError(t, Save(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Retrieval.TopK)
}
