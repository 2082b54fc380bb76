package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"docchat/internal/config"
	"docchat/internal/models"
)

// Generator completes a single prompt with a language model.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Factory builds a Generator authenticated with credential.
type Factory func(ctx context.Context, credential string) (Generator, error)

// NewFactory returns a Factory for the provider selected in cfg.
func NewFactory(cfg config.GeneratorConfig) Factory {
	return func(ctx context.Context, credential string) (Generator, error) {
		return New(ctx, cfg, credential)
	}
}

func New(ctx context.Context, cfg config.GeneratorConfig, credential string) (Generator, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" && cfg.NeedsKey() {
		return nil, &models.ConfigurationError{Field: "generator.api_key", Reason: "credential is empty"}
	}
	log.Debug().Str("provider", cfg.Provider).Str("model", cfg.Model).Str("base_url", cfg.BaseURL).Msg("Creating generator")

	switch cfg.Provider {
	case config.GeneratorGemini:
		g, err := NewGeminiGenerator(ctx, cfg.Model, credential)
		if err != nil {
			return nil, err
		}
		return g, nil
	case config.GeneratorOpenAI:
		return NewOpenAIGenerator(cfg.BaseURL, cfg.Model, credential), nil
	case config.GeneratorOllama:
		g, err := NewOllamaGenerator(cfg.BaseURL, cfg.Model)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, &models.ConfigurationError{Field: "generator.provider", Reason: fmt.Sprintf("unknown provider %q", cfg.Provider)}
	}
}
