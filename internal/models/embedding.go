package models

import (
	"fmt"
	"time"
)

// Chunk is a contiguous piece of the source text. Start and End are rune
// offsets, so Text equals the runes of the source in [Start, End).
type Chunk struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

func ChunkID(index int) string {
	return fmt.Sprintf("chunk_%d", index)
}

// SearchResult is an indexed chunk scored against a query by cosine similarity.
type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Document describes the text currently loaded into a session.
type Document struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Chunks      int       `json:"chunks"`
	ProcessedAt time.Time `json:"processed_at"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ChatMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
