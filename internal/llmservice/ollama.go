package llmservice

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

type OllamaGenerator struct {
	llm  *ollama.LLM
	name string
}

func NewOllamaGenerator(serverURL, model string) (*OllamaGenerator, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	return &OllamaGenerator{llm: llm, name: "ollama/" + model}, nil
}

func (g *OllamaGenerator) Name() string { return g.name }

func (g *OllamaGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, g.llm, prompt)
}
