package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/chromemdb"
	"docchat/internal/chunker"
	"docchat/internal/embedding"
	"docchat/internal/llmservice"
	"docchat/internal/models"
)

type fakeGenerator struct {
	prompts []string
	reply   string
	err     error
}

func (g *fakeGenerator) Name() string { return "fake" }

func (g *fakeGenerator) Complete(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func factoryFor(g llmservice.Generator) llmservice.Factory {
	return func(context.Context, string) (llmservice.Generator, error) { return g, nil }
}

type failingEmbedder struct{}

func (failingEmbedder) Name() string { return "failing" }

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("connection refused")
}

type emptyIndex struct{}

func (emptyIndex) InsertAll(context.Context, []models.Chunk) error { return nil }

func (emptyIndex) Search(context.Context, string, int) ([]models.SearchResult, error) {
	return []models.SearchResult{}, nil
}

func (emptyIndex) Count() int { return 0 }

func newSession(t *testing.T, gen llmservice.Generator) *Session {
	t.Helper()
	c, err := chunker.New(chunker.Options{ChunkSize: 20, ChunkOverlap: 5})
	require.NoError(t, err)

	s, err := New(chromemdb.NewIndex(embedding.NewLexical(512), chromemdb.Options{}), factoryFor(gen), Options{Chunker: c})
	require.NoError(t, err)
	return s
}

func TestAskOnEmptySession(t *testing.T) {
	s := newSession(t, &fakeGenerator{reply: "unused"})

	for _, q := range []string{"What color is the sky?", ""} {
		reply := s.Ask(context.Background(), q)
		assert.Equal(t, models.GuidanceNoDocument, reply.Text)
		assert.Equal(t, ReplyNoDocument, reply.Kind)
		assert.NoError(t, reply.Err)
	}
	assert.Empty(t, s.CurrentHistory())
	assert.Equal(t, Empty, s.State())
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{reply: "The sky is blue."}
	s := newSession(t, gen)

	require.NoError(t, s.Configure(ctx, "api-key"))
	count, err := s.ProcessDocument(ctx, "colors.txt", []byte("The sky is blue. Grass is green."))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, Ready, s.State())

	doc, ok := s.Document()
	require.True(t, ok)
	assert.Equal(t, "colors.txt", doc.Name)
	assert.Equal(t, 2, doc.Chunks)

	reply := s.Ask(ctx, "What color is the sky?")
	require.True(t, reply.OK(), reply.Text)
	assert.Equal(t, "The sky is blue.", reply.Text)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Context:\nThe sky is blue. \n")
	assert.Contains(t, gen.prompts[0], "User Question: What color is the sky?")
	assert.Equal(t, "The sky is blue. ", reply.Context.Passages[0].Chunk.Text)

	history := s.CurrentHistory()
	require.Len(t, history, 2)
	assert.Equal(t, models.RoleUser, history[0].Role)
	assert.Equal(t, "What color is the sky?", history[0].Content)
	assert.Equal(t, models.RoleAssistant, history[1].Role)
	assert.Equal(t, "The sky is blue.", history[1].Content)
}

func TestAskWithoutGenerator(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, &fakeGenerator{})
	_, err := s.ProcessDocument(ctx, "colors.txt", []byte("The sky is blue. Grass is green."))
	require.NoError(t, err)

	reply := s.Ask(ctx, "What color is the sky?")
	assert.Equal(t, ReplyNotConfigured, reply.Kind)
	assert.Equal(t, models.GuidanceNotConfigured, reply.Text)
	assert.True(t, reply.Context.Found())
	assert.Len(t, s.CurrentHistory(), 2)
}

func TestAskBlankQuery(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, &fakeGenerator{reply: "x"})
	require.NoError(t, s.Configure(ctx, "api-key"))
	_, err := s.ProcessDocument(ctx, "colors.txt", []byte("The sky is blue."))
	require.NoError(t, err)

	reply := s.Ask(ctx, "  \t")
	assert.Equal(t, ReplyRejected, reply.Kind)
	assert.Empty(t, s.CurrentHistory())
}

func TestAskGenerationFailure(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, &fakeGenerator{err: errors.New("quota exceeded")})
	require.NoError(t, s.Configure(ctx, "api-key"))
	_, err := s.ProcessDocument(ctx, "colors.txt", []byte("The sky is blue."))
	require.NoError(t, err)

	reply := s.Ask(ctx, "sky?")
	assert.Equal(t, ReplyFailed, reply.Kind)
	assert.False(t, reply.OK())
	assert.True(t, strings.HasPrefix(reply.Text, models.GenerationFailedPrefix))

	var genErr *models.GenerationError
	assert.True(t, errors.As(reply.Err, &genErr))

	history := s.CurrentHistory()
	require.Len(t, history, 2)
	assert.Equal(t, reply.Text, history[1].Content)
}

func TestAskNoRelevantContext(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{reply: "x"}
	s, err := New(emptyIndex{}, factoryFor(gen), Options{})
	require.NoError(t, err)
	require.NoError(t, s.Configure(ctx, "api-key"))
	_, err = s.ProcessDocument(ctx, "doc.txt", []byte("some text"))
	require.NoError(t, err)

	reply := s.Ask(ctx, "anything")
	assert.Equal(t, ReplyNoContext, reply.Kind)
	assert.Equal(t, models.NoRelevantInformation, reply.Text)
	assert.Empty(t, gen.prompts)
}

func TestAskWithoutGeneratorReportsMissingContextFirst(t *testing.T) {
	ctx := context.Background()
	s, err := New(emptyIndex{}, factoryFor(&fakeGenerator{}), Options{})
	require.NoError(t, err)
	_, err = s.ProcessDocument(ctx, "doc.txt", []byte("some text"))
	require.NoError(t, err)

	reply := s.Ask(ctx, "anything")
	assert.Equal(t, ReplyNoContext, reply.Kind)
	assert.Equal(t, models.NoRelevantInformation, reply.Text)
	assert.Len(t, s.CurrentHistory(), 2)
}

func TestConfigure(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, &fakeGenerator{})

	err := s.Configure(ctx, "   ")
	var cfgErr *models.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.False(t, s.Configured())

	failing, err := New(emptyIndex{}, func(context.Context, string) (llmservice.Generator, error) {
		return nil, errors.New("bad key format")
	}, Options{})
	require.NoError(t, err)
	err = failing.Configure(ctx, "key")
	require.True(t, errors.As(err, &cfgErr))
	assert.False(t, failing.Configured())

	require.NoError(t, s.Configure(ctx, "api-key"))
	assert.True(t, s.Configured())
	require.Error(t, s.Configure(ctx, ""))
	assert.True(t, s.Configured())
}

func TestProcessFailureFromEmpty(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, &fakeGenerator{})

	_, err := s.ProcessDocument(ctx, "picture.png", []byte{0x89, 0x50})
	var extractionErr *models.ExtractionError
	require.True(t, errors.As(err, &extractionErr))
	assert.Equal(t, Empty, s.State())

	reply := s.Ask(ctx, "anything")
	assert.Equal(t, ReplyNoDocument, reply.Kind)
}

func TestProcessEmptyText(t *testing.T) {
	s, err := New(chromemdb.NewIndex(embedding.NewLexical(64), chromemdb.Options{}), nil, Options{
		Extract: func(string, []byte) (string, error) { return " \n ", nil },
	})
	require.NoError(t, err)

	_, err = s.ProcessDocument(context.Background(), "blank.txt", nil)
	assert.ErrorIs(t, err, models.ErrEmptyInput)
	assert.Equal(t, Empty, s.State())
}

func TestProcessEmbeddingFailure(t *testing.T) {
	s, err := New(chromemdb.NewIndex(failingEmbedder{}, chromemdb.Options{}), nil, Options{})
	require.NoError(t, err)

	_, err = s.ProcessDocument(context.Background(), "doc.txt", []byte("text"))
	var embErr *models.EmbeddingError
	assert.True(t, errors.As(err, &embErr))
	assert.Equal(t, Empty, s.State())
}

func TestProcessFailureKeepsPreviousDocument(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, &fakeGenerator{reply: "blue"})
	require.NoError(t, s.Configure(ctx, "api-key"))
	_, err := s.ProcessDocument(ctx, "colors.txt", []byte("The sky is blue. Grass is green."))
	require.NoError(t, err)
	s.Ask(ctx, "What color is the sky?")

	_, err = s.ProcessDocument(ctx, "empty.txt", []byte("   "))
	require.Error(t, err)

	assert.Equal(t, Ready, s.State())
	assert.Len(t, s.CurrentHistory(), 2)
	doc, ok := s.Document()
	require.True(t, ok)
	assert.Equal(t, "colors.txt", doc.Name)

	reply := s.Ask(ctx, "What color is the sky?")
	assert.True(t, reply.OK())
	assert.Equal(t, "The sky is blue. ", reply.Context.Passages[0].Chunk.Text)
}

func TestNewDocumentReplacesIndexAndHistory(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, &fakeGenerator{reply: "ok"})
	require.NoError(t, s.Configure(ctx, "api-key"))

	_, err := s.ProcessDocument(ctx, "fruit.txt", []byte("Apples grow on trees in orchards."))
	require.NoError(t, err)
	s.Ask(ctx, "Where do apples grow?")
	require.Len(t, s.CurrentHistory(), 2)

	_, err = s.ProcessDocument(ctx, "sea.txt", []byte("Submarines explore deep ocean trenches."))
	require.NoError(t, err)
	assert.Empty(t, s.CurrentHistory())

	reply := s.Ask(ctx, "Where do apples grow in orchards?")
	for _, p := range reply.Context.Passages {
		assert.NotContains(t, p.Chunk.Text, "Apples")
		assert.NotContains(t, p.Chunk.Text, "orchards")
	}
}

func TestCurrentHistoryIsACopy(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, &fakeGenerator{reply: "blue"})
	require.NoError(t, s.Configure(ctx, "api-key"))
	_, err := s.ProcessDocument(ctx, "colors.txt", []byte("The sky is blue."))
	require.NoError(t, err)
	s.Ask(ctx, "sky?")

	history := s.CurrentHistory()
	history[0].Content = "changed"
	assert.Equal(t, "sky?", s.CurrentHistory()[0].Content)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "empty", Empty.String())
	assert.Equal(t, "processing", Processing.String())
	assert.Equal(t, "ready", Ready.String())
}
