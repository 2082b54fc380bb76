package models

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when there is no text to split.
	ErrEmptyInput = errors.New("input text is empty")
	// ErrEmptyCollection is returned when an index is asked to store zero chunks.
	ErrEmptyCollection = errors.New("no chunks to index")
	// ErrIndexNotReady is returned by searches issued before any successful insert.
	ErrIndexNotReady = errors.New("vector index has no document")
	// ErrInvalidTopK is returned when fewer than one result is requested.
	ErrInvalidTopK = errors.New("top k must be at least 1")
)

// ExtractionError reports a document that could not be turned into text.
type ExtractionError struct {
	Name string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract text from %q: %v", e.Name, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// EmbeddingError reports a failed embedding call or an unusable vector.
type EmbeddingError struct {
	ChunkID string
	Err     error
}

func (e *EmbeddingError) Error() string {
	if e.ChunkID == "" {
		return fmt.Sprintf("embed query: %v", e.Err)
	}
	return fmt.Sprintf("embed %s: %v", e.ChunkID, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// GenerationError reports a failed language model call. Timeout is set when
// the call ran past its deadline.
type GenerationError struct {
	Timeout bool
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("generation timed out: %v", e.Err)
	}
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ConfigurationError reports missing or invalid settings for a provider.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration for %s: %s", e.Field, e.Reason)
}
