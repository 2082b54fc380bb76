package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"docchat/internal/llmservice"
	"docchat/internal/models"
)

var errEmptyResponse = errors.New("model returned an empty response")

// BuildPrompt fills the answer template; both inputs are embedded verbatim.
func BuildPrompt(contextText, query string) string {
	return fmt.Sprintf(models.AnswerPromptTemplate, contextText, query)
}

// AnswerGenerator asks a language model to answer from retrieved context only.
type AnswerGenerator struct {
	generator llmservice.Generator
	timeout   time.Duration
}

func NewAnswerGenerator(generator llmservice.Generator, timeout time.Duration) *AnswerGenerator {
	return &AnswerGenerator{generator: generator, timeout: timeout}
}

// Answer makes a single call bounded by the configured timeout. Failures are
// returned as *models.GenerationError.
func (a *AnswerGenerator) Answer(ctx context.Context, contextText, query string) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	started := time.Now()
	answer, err := a.generator.Complete(ctx, BuildPrompt(contextText, query))
	if err != nil {
		timedOut := errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
		return "", &models.GenerationError{Timeout: timedOut, Err: err}
	}
	if strings.TrimSpace(answer) == "" {
		return "", &models.GenerationError{Err: errEmptyResponse}
	}

	log.Debug().Str("generator", a.generator.Name()).Dur("elapsed", time.Since(started)).Int("chars", len(answer)).Msg("Generated answer")
	return answer, nil
}
