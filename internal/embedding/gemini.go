package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"docchat/internal/config"
	"docchat/internal/models"
)

type GeminiEmbedder struct {
	client  *genai.Client
	model   *genai.EmbeddingModel
	name    string
	timeout time.Duration
}

func NewGeminiEmbedder(ctx context.Context, cfg config.EmbedderConfig) (*GeminiEmbedder, error) {
	key := cfg.APIKey()
	if key == "" {
		return nil, &models.ConfigurationError{Field: "embedder.api_key_env", Reason: fmt.Sprintf("environment variable %q is empty", cfg.APIKeyEnv)}
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiEmbedder{
		client:  client,
		model:   client.EmbeddingModel(cfg.Model),
		name:    "gemini/" + cfg.Model,
		timeout: cfg.Timeout(),
	}, nil
}

func (e *GeminiEmbedder) Name() string { return e.name }

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	res, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if res == nil || res.Embedding == nil {
		return nil, errors.New("gemini returned no embedding")
	}
	return res.Embedding.Values, nil
}

func (e *GeminiEmbedder) Close() error {
	return e.client.Close()
}
