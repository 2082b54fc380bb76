package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"docchat/internal/models"
)

const (
	DefaultChunkSize    = 1000 // runes
	DefaultChunkOverlap = 200  // runes
)

var ErrInvalidOptions = errors.New("invalid chunker options")

type Options struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

func (o Options) Validate() error {
	if o.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidOptions, o.ChunkSize)
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		return fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrInvalidOptions, o.ChunkSize, o.ChunkOverlap)
	}
	return nil
}

// Chunker splits text with a fixed size and overlap.
type Chunker struct {
	opts Options
}

func New(opts Options) (*Chunker, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{opts: opts}, nil
}

func (c *Chunker) Options() Options { return c.opts }

func (c *Chunker) Split(text string) ([]models.Chunk, error) {
	return Split(text, c.opts.ChunkSize, c.opts.ChunkOverlap)
}

// Split cuts text into chunks of at most maxSize runes where each chunk after
// the first starts overlap runes before the end of the previous one. Cuts
// prefer a paragraph break, then a sentence end or line break, then any
// whitespace, and fall back to a hard cut at maxSize. Chunks are exact
// substrings of text, so dropping the first overlap runes of every chunk but
// the first and concatenating gives back the input.
func Split(text string, maxSize, overlap int) ([]models.Chunk, error) {
	if err := (Options{ChunkSize: maxSize, ChunkOverlap: overlap}).Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, models.ErrEmptyInput
	}

	runes := []rune(text)
	n := len(runes)

	var chunks []models.Chunk
	start := 0
	for {
		if n-start <= maxSize {
			chunks = append(chunks, newChunk(runes, len(chunks), start, n))
			break
		}
		// end > start+overlap keeps the next start moving forward
		end := breakPoint(runes, start, start+overlap+1, start+maxSize)
		chunks = append(chunks, newChunk(runes, len(chunks), start, end))
		start = end - overlap
	}
	return chunks, nil
}

func newChunk(runes []rune, index, start, end int) models.Chunk {
	return models.Chunk{
		ID:    models.ChunkID(index),
		Index: index,
		Text:  string(runes[start:end]),
		Start: start,
		End:   end,
	}
}

// boundary reports whether a chunk starting at start may end right before runes[end].
type boundary func(runes []rune, start, end int) bool

var boundaries = []boundary{
	isParagraphEnd,
	isSentenceEnd,
	isWordEnd,
}

// breakPoint returns the largest end in [lo, hi] accepted by the highest
// priority boundary, or hi when none matches.
func breakPoint(runes []rune, start, lo, hi int) int {
	for _, accept := range boundaries {
		for end := hi; end >= lo; end-- {
			if accept(runes, start, end) {
				return end
			}
		}
	}
	return hi
}

func isParagraphEnd(runes []rune, start, end int) bool {
	return end-2 >= start && runes[end-1] == '\n' && runes[end-2] == '\n'
}

func isSentenceEnd(runes []rune, start, end int) bool {
	if runes[end-1] == '\n' {
		return true
	}
	if end-2 < start || !unicode.IsSpace(runes[end-1]) {
		return false
	}
	switch runes[end-2] {
	case '.', '!', '?':
		return true
	}
	return false
}

func isWordEnd(runes []rune, _, end int) bool {
	return unicode.IsSpace(runes[end-1])
}
