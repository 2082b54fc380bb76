package rag

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"docchat/internal/models"
)

const DefaultTopK = 3

// VectorIndex stores the chunks of one document and answers similarity queries.
type VectorIndex interface {
	// InsertAll replaces every entry with chunks, all or nothing.
	InsertAll(ctx context.Context, chunks []models.Chunk) error
	// Search returns at most k entries by descending cosine similarity.
	Search(ctx context.Context, query string, k int) ([]models.SearchResult, error)
	Count() int
}

// Context is the text handed to the language model along with the question.
type Context struct {
	Passages []models.SearchResult
}

func (c Context) Found() bool { return len(c.Passages) > 0 }

// String joins the passages, most similar first, or returns the
// no-information sentinel when nothing matched.
func (c Context) String() string {
	if !c.Found() {
		return models.NoRelevantInformation
	}
	texts := make([]string, len(c.Passages))
	for i, p := range c.Passages {
		texts[i] = p.Chunk.Text
	}
	return strings.Join(texts, models.ContextSeparator)
}

type Retriever struct {
	index VectorIndex
}

func NewRetriever(index VectorIndex) *Retriever {
	return &Retriever{index: index}
}

func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (Context, error) {
	results, err := r.index.Search(ctx, query, k)
	if err != nil {
		return Context{}, err
	}

	event := log.Debug().Int("k", k).Int("hits", len(results))
	if len(results) > 0 {
		event = event.Float64("best_score", results[0].Score)
	}
	event.Msg("Retrieved context")

	return Context{Passages: results}, nil
}
