package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"docchat/internal/models"
)

const (
	EmbedderOllama  = "ollama"
	EmbedderOpenAI  = "openai"
	EmbedderGemini  = "gemini"
	EmbedderLexical = "lexical"

	GeneratorGemini = "gemini"
	GeneratorOpenAI = "openai"
	GeneratorOllama = "ollama"

	BackendChromem  = "chromem"
	BackendPostgres = "postgres"

	DriverPgdriver = "pgdriver"
	DriverPQ       = "pq"
)

type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// EmbedderConfig selects the embedding provider. The key is read from the
// environment variable named by APIKeyEnv.
type EmbedderConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Dimensions  int    `yaml:"dimensions"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

func (c EmbedderConfig) APIKey() string { return os.Getenv(c.APIKeyEnv) }
func (c EmbedderConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSecs) * time.Second }

// GeneratorConfig selects the language model used to answer questions.
type GeneratorConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

func (c GeneratorConfig) APIKey() string { return os.Getenv(c.APIKeyEnv) }
func (c GeneratorConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSecs) * time.Second }

// NeedsKey reports whether the provider refuses to run without a credential.
func (c GeneratorConfig) NeedsKey() bool {
	return c.Provider != GeneratorOllama
}

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Driver   string `yaml:"driver"`
	Table    string `yaml:"table"`
	Debug    bool   `yaml:"debug"`
}

type IndexConfig struct {
	Backend       string         `yaml:"backend"`
	SnapshotDir   string         `yaml:"snapshot_dir"`
	Compress      bool           `yaml:"compress"`
	EncryptionKey string         `yaml:"encryption_key"`
	Database      DatabaseConfig `yaml:"database"`
}

type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Generator GeneratorConfig `yaml:"generator"`
	Index     IndexConfig     `yaml:"index"`
}

// LoadConfig reads the YAML file at path. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := unset()
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyDefaults(cfg)
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func Default() *Config {
	cfg := unset()
	applyDefaults(cfg)
	return cfg
}

// overlapUnset marks a chunk_overlap the YAML did not mention, so an explicit
// 0 still means no overlap.
const overlapUnset = -1

func unset() *Config {
	return &Config{Chunker: ChunkerConfig{ChunkOverlap: overlapUnset}}
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	if cfg.Chunker.ChunkOverlap == overlapUnset {
		// a fifth of the chunk, capped at the usual 200
		cfg.Chunker.ChunkOverlap = min(200, max(cfg.Chunker.ChunkSize, 0)/5)
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}

	if cfg.Embedder.Provider == "" {
		cfg.Embedder.Provider = EmbedderOllama
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = 30
	}
	switch cfg.Embedder.Provider {
	case EmbedderOllama:
		setDefault(&cfg.Embedder.Model, "all-minilm")
		setDefault(&cfg.Embedder.BaseURL, "http://localhost:11434")
	case EmbedderOpenAI:
		setDefault(&cfg.Embedder.Model, "text-embedding-3-small")
		setDefault(&cfg.Embedder.BaseURL, "https://api.openai.com/v1")
		setDefault(&cfg.Embedder.APIKeyEnv, "OPENAI_API_KEY")
	case EmbedderGemini:
		setDefault(&cfg.Embedder.Model, "text-embedding-004")
		setDefault(&cfg.Embedder.APIKeyEnv, "GEMINI_API_KEY")
	case EmbedderLexical:
		if cfg.Embedder.Dimensions == 0 {
			cfg.Embedder.Dimensions = 512
		}
	}

	if cfg.Generator.Provider == "" {
		cfg.Generator.Provider = GeneratorGemini
	}
	if cfg.Generator.TimeoutSecs == 0 {
		cfg.Generator.TimeoutSecs = 60
	}
	switch cfg.Generator.Provider {
	case GeneratorGemini:
		setDefault(&cfg.Generator.Model, "gemini-2.5-pro")
		setDefault(&cfg.Generator.APIKeyEnv, "GEMINI_API_KEY")
	case GeneratorOpenAI:
		setDefault(&cfg.Generator.Model, "gpt-4o-mini")
		setDefault(&cfg.Generator.APIKeyEnv, "OPENAI_API_KEY")
	case GeneratorOllama:
		setDefault(&cfg.Generator.Model, "llama3.2")
		setDefault(&cfg.Generator.BaseURL, "http://localhost:11434")
	}

	if cfg.Index.Backend == "" {
		cfg.Index.Backend = BackendChromem
	}
	setDefault(&cfg.Index.Database.Driver, DriverPgdriver)
	setDefault(&cfg.Index.Database.Table, "document_chunks")
}

func applyEnv(cfg *Config) {
	if level := os.Getenv("DOCCHAT_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if dsn := os.Getenv("DOCCHAT_DATABASE_DSN"); dsn != "" {
		cfg.Index.Database.DSN = dsn
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// Validate checks the settings that would otherwise fail deep inside a session.
func (c *Config) Validate() error {
	if c.Chunker.ChunkSize <= 0 {
		return &models.ConfigurationError{Field: "chunker.chunk_size", Reason: "must be positive"}
	}
	if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return &models.ConfigurationError{Field: "chunker.chunk_overlap", Reason: "must be at least 0 and below chunk_size"}
	}
	if c.Retrieval.TopK < 1 {
		return &models.ConfigurationError{Field: "retrieval.top_k", Reason: "must be at least 1"}
	}
	if c.Embedder.TimeoutSecs < 0 || c.Generator.TimeoutSecs < 0 {
		return &models.ConfigurationError{Field: "timeout_secs", Reason: "must not be negative"}
	}
	if !oneOf(c.Embedder.Provider, EmbedderOllama, EmbedderOpenAI, EmbedderGemini, EmbedderLexical) {
		return &models.ConfigurationError{Field: "embedder.provider", Reason: fmt.Sprintf("unknown provider %q", c.Embedder.Provider)}
	}
	if c.Embedder.Provider == EmbedderLexical && c.Embedder.Dimensions < 2 {
		return &models.ConfigurationError{Field: "embedder.dimensions", Reason: "lexical embedder needs at least 2 dimensions"}
	}
	if !oneOf(c.Generator.Provider, GeneratorGemini, GeneratorOpenAI, GeneratorOllama) {
		return &models.ConfigurationError{Field: "generator.provider", Reason: fmt.Sprintf("unknown provider %q", c.Generator.Provider)}
	}
	switch c.Index.Backend {
	case BackendChromem:
	case BackendPostgres:
		if c.Index.Database.DSN == "" {
			return &models.ConfigurationError{Field: "index.database.dsn", Reason: "required for the postgres backend"}
		}
		if !oneOf(c.Index.Database.Driver, DriverPgdriver, DriverPQ) {
			return &models.ConfigurationError{Field: "index.database.driver", Reason: fmt.Sprintf("unknown driver %q", c.Index.Database.Driver)}
		}
	default:
		return &models.ConfigurationError{Field: "index.backend", Reason: fmt.Sprintf("unknown backend %q", c.Index.Backend)}
	}
	return nil
}

func oneOf(value string, options ...string) bool {
	for _, o := range options {
		if value == o {
			return true
		}
	}
	return false
}
