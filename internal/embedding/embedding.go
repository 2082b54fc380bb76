package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"docchat/internal/config"
	"docchat/internal/models"
)

// Embedder maps text to a fixed length vector. Its Embed method satisfies
// chromem.EmbeddingFunc.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Name() string
}

// New builds the embedder selected by cfg.Provider.
func New(ctx context.Context, cfg config.EmbedderConfig) (Embedder, error) {
	log.Debug().Interface("config", map[string]string{
		"provider": cfg.Provider,
		"base_url": cfg.BaseURL,
		"model":    cfg.Model,
	}).Msg("Creating embedder")

	switch cfg.Provider {
	case config.EmbedderOllama:
		return NewOllamaEmbedder(cfg)
	case config.EmbedderOpenAI:
		return NewOpenAIEmbedder(cfg)
	case config.EmbedderGemini:
		e, err := NewGeminiEmbedder(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return e, nil
	case config.EmbedderLexical:
		return NewLexical(cfg.Dimensions), nil
	default:
		return nil, &models.ConfigurationError{Field: "embedder.provider", Reason: fmt.Sprintf("unknown provider %q", cfg.Provider)}
	}
}

// langchainEmbedder adapts a langchaingo embedder to Embedder.
type langchainEmbedder struct {
	name     string
	embedder *embeddings.EmbedderImpl
	timeout  time.Duration
}

// NewOllamaEmbedder talks to a local ollama server.
func NewOllamaEmbedder(cfg config.EmbedderConfig) (Embedder, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create ollama embedder: %w", err)
	}
	return &langchainEmbedder{name: "ollama/" + cfg.Model, embedder: embedder, timeout: cfg.Timeout()}, nil
}

// NewOpenAIEmbedder works with OpenAI or any compatible endpoint.
func NewOpenAIEmbedder(cfg config.EmbedderConfig) (Embedder, error) {
	key := cfg.APIKey()
	if key == "" {
		return nil, &models.ConfigurationError{Field: "embedder.api_key_env", Reason: fmt.Sprintf("environment variable %q is empty", cfg.APIKeyEnv)}
	}
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(key, "Bearer ")),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create openai embedder: %w", err)
	}
	return &langchainEmbedder{name: "openai/" + cfg.Model, embedder: embedder, timeout: cfg.Timeout()}, nil
}

func (e *langchainEmbedder) Name() string { return e.name }

func (e *langchainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()
	return e.embedder.EmbedQuery(ctx, text)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// ErrZeroVector marks an embedding without direction, which cosine similarity cannot rank.
var ErrZeroVector = errors.New("embedding has zero magnitude")

// EmbedChunks embeds chunks in order and stops at the first failure, which is
// returned as *models.EmbeddingError. All vectors share one dimension.
func EmbedChunks(ctx context.Context, e Embedder, chunks []models.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for _, c := range chunks {
		vec, err := e.Embed(ctx, c.Text)
		if err != nil {
			return nil, &models.EmbeddingError{ChunkID: c.ID, Err: err}
		}
		if Magnitude(vec) == 0 {
			return nil, &models.EmbeddingError{ChunkID: c.ID, Err: ErrZeroVector}
		}
		if len(vectors) > 0 && len(vec) != len(vectors[0]) {
			return nil, &models.EmbeddingError{ChunkID: c.ID, Err: fmt.Errorf("dimension %d differs from %d", len(vec), len(vectors[0]))}
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

func Magnitude(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
