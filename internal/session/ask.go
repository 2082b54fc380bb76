package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"docchat/internal/models"
	"docchat/internal/rag"
)

type ReplyKind int

const (
	// ReplyAnswer carries a model answer grounded in retrieved context.
	ReplyAnswer ReplyKind = iota
	// ReplyNoDocument is the guidance given before any document is processed.
	ReplyNoDocument
	// ReplyNoContext means retrieval found nothing to answer from.
	ReplyNoContext
	// ReplyNotConfigured means no generator has been configured yet.
	ReplyNotConfigured
	// ReplyFailed wraps a retrieval or generation error in Err.
	ReplyFailed
	// ReplyRejected is returned for a blank question.
	ReplyRejected
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyAnswer:
		return "answer"
	case ReplyNoDocument:
		return "no_document"
	case ReplyNoContext:
		return "no_context"
	case ReplyNotConfigured:
		return "not_configured"
	case ReplyFailed:
		return "failed"
	case ReplyRejected:
		return "rejected"
	}
	return "unknown"
}

// Reply is the outcome of Ask. Text is always fit for display; Kind and Err
// tell a real answer apart from guidance or a failure.
type Reply struct {
	Text    string
	Kind    ReplyKind
	Err     error
	Context rag.Context
}

func (r Reply) OK() bool { return r.Kind == ReplyAnswer }

// Ask answers query from the active document. It never fails outright: every
// problem becomes a Reply. Once a document is ready each call, except for a
// blank query, appends the question and the reply text to the history.
func (s *Session) Ask(ctx context.Context, query string) Reply {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != Ready {
		return Reply{Text: models.GuidanceNoDocument, Kind: ReplyNoDocument}
	}
	if strings.TrimSpace(query) == "" {
		return Reply{Text: models.GuidanceEmptyQuestion, Kind: ReplyRejected}
	}

	reply := s.answer(ctx, query)
	now := time.Now()
	s.history = append(s.history,
		models.ChatMessage{Role: models.RoleUser, Content: query, CreatedAt: now},
		models.ChatMessage{Role: models.RoleAssistant, Content: reply.Text, CreatedAt: now},
	)

	event := log.Info()
	if reply.Err != nil {
		event = log.Warn().Err(reply.Err)
	}
	event.Str("kind", reply.Kind.String()).Int("history", len(s.history)).Msg("Answered question")
	return reply
}

func (s *Session) answer(ctx context.Context, query string) Reply {
	retrieved, err := s.retriever.Retrieve(ctx, query, s.topK)
	if err != nil {
		return Reply{Text: models.ChatFailedPrefix + err.Error(), Kind: ReplyFailed, Err: err}
	}
	if !retrieved.Found() {
		return Reply{Text: retrieved.String(), Kind: ReplyNoContext, Context: retrieved}
	}
	// an empty match wins over a missing generator
	if s.answerer == nil {
		return Reply{Text: models.GuidanceNotConfigured, Kind: ReplyNotConfigured, Context: retrieved}
	}

	text, err := s.answerer.Answer(ctx, retrieved.String(), query)
	if err != nil {
		var genErr *models.GenerationError
		if errors.As(err, &genErr) {
			return Reply{Text: models.GenerationFailedPrefix + err.Error(), Kind: ReplyFailed, Err: err, Context: retrieved}
		}
		return Reply{Text: models.ChatFailedPrefix + err.Error(), Kind: ReplyFailed, Err: err, Context: retrieved}
	}
	return Reply{Text: text, Kind: ReplyAnswer, Context: retrieved}
}
