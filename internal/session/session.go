package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"docchat/internal/chunker"
	"docchat/internal/helper"
	"docchat/internal/llmservice"
	"docchat/internal/models"
	"docchat/internal/parser"
	"docchat/internal/rag"
)

type State int32

const (
	Empty State = iota
	Processing
	Ready
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Processing:
		return "processing"
	case Ready:
		return "ready"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Extractor turns an uploaded file into plain text.
type Extractor func(name string, data []byte) (string, error)

type Options struct {
	Chunker           *chunker.Chunker
	TopK              int
	GenerationTimeout time.Duration
	// Extract defaults to parser.ExtractText.
	Extract Extractor
}

// Session holds one document, its index and the chat about it. Operations
// run one at a time; State may be read at any point.
type Session struct {
	mu    sync.Mutex
	state atomic.Int32

	index     rag.VectorIndex
	retriever *rag.Retriever
	chunker   *chunker.Chunker
	extract   Extractor
	factory   llmservice.Factory
	topK      int
	timeout   time.Duration

	generator llmservice.Generator
	answerer  *rag.AnswerGenerator
	document  *models.Document
	history   []models.ChatMessage
}

func New(index rag.VectorIndex, factory llmservice.Factory, opts Options) (*Session, error) {
	if index == nil {
		return nil, errors.New("session needs a vector index")
	}
	if opts.Chunker == nil {
		c, err := chunker.New(chunker.Options{ChunkSize: chunker.DefaultChunkSize, ChunkOverlap: chunker.DefaultChunkOverlap})
		if err != nil {
			return nil, err
		}
		opts.Chunker = c
	}
	if opts.TopK == 0 {
		opts.TopK = rag.DefaultTopK
	}
	if opts.TopK < 1 {
		return nil, fmt.Errorf("%w: %d", models.ErrInvalidTopK, opts.TopK)
	}
	if opts.Extract == nil {
		opts.Extract = parser.ExtractText
	}

	return &Session{
		index:     index,
		retriever: rag.NewRetriever(index),
		chunker:   opts.Chunker,
		extract:   opts.Extract,
		factory:   factory,
		topK:      opts.TopK,
		timeout:   opts.GenerationTimeout,
	}, nil
}

func (s *Session) State() State { return State(s.state.Load()) }

// Document returns the active document, if any.
func (s *Session) Document() (models.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.document == nil {
		return models.Document{}, false
	}
	return *s.document, true
}

func (s *Session) Configured() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answerer != nil
}

// ProcessFile reads path and hands it to ProcessDocument.
func (s *Session) ProcessFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, &models.ExtractionError{Name: path, Err: err}
	}
	return s.ProcessDocument(ctx, filepath.Base(path), data)
}

// ProcessDocument extracts, splits and indexes a document, replacing the
// current one and clearing the chat history. On failure the session is left
// exactly as it was.
func (s *Session) ProcessDocument(ctx context.Context, name string, data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.State()
	s.state.Store(int32(Processing))
	started := time.Now()

	count, err := s.process(ctx, name, data)
	if err != nil {
		s.state.Store(int32(previous))
		log.Error().Err(err).Str("name", name).Msg("Error processing document")
		return 0, err
	}

	id, err := helper.GenerateUUID()
	if err != nil {
		id = name
	}
	s.document = &models.Document{ID: id, Name: name, Chunks: count, ProcessedAt: time.Now()}
	s.history = nil
	s.state.Store(int32(Ready))

	log.Info().Str("doc_id", id).Str("name", name).Int("chunks", count).Dur("elapsed", time.Since(started)).Msg("Document ready")
	return count, nil
}

func (s *Session) process(ctx context.Context, name string, data []byte) (int, error) {
	text, err := s.extract(name, data)
	if err != nil {
		return 0, err
	}
	chunks, err := s.chunker.Split(text)
	if err != nil {
		return 0, err
	}
	if err := s.index.InsertAll(ctx, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// Configure installs a generator built from credential. A blank credential
// is rejected and the current generator, if any, is kept.
func (s *Session) Configure(ctx context.Context, credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(credential) == "" {
		return &models.ConfigurationError{Field: "credential", Reason: "must not be empty"}
	}
	if s.factory == nil {
		return &models.ConfigurationError{Field: "generator", Reason: "no provider available"}
	}
	generator, err := s.factory(ctx, credential)
	if err != nil {
		var cfgErr *models.ConfigurationError
		if errors.As(err, &cfgErr) {
			return err
		}
		return &models.ConfigurationError{Field: "generator", Reason: err.Error()}
	}

	s.closeGenerator()
	s.generator = generator
	s.answerer = rag.NewAnswerGenerator(generator, s.timeout)
	log.Info().Str("generator", generator.Name()).Msg("Generator configured")
	return nil
}

// CurrentHistory returns a copy of the chat so far, oldest first.
func (s *Session) CurrentHistory() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatMessage, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeGenerator()
}

func (s *Session) closeGenerator() error {
	if c, ok := s.generator.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
