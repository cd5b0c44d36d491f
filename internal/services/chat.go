package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/plantpal/plantpal/internal/model"
	"github.com/plantpal/plantpal/internal/sentiment"
)

const (
	historyWindow = 5
	maxMessageLen = 2000
)

// FallbackReply is stored when the responder fails.
const FallbackReply = "I'm having trouble connecting right now. Let's try again in a moment! 🌿"

// ChatService runs one chat turn: classify, store, reply, award.
type ChatService struct {
	progress  *ProgressService
	responder Responder
	log       zerolog.Logger
}

// NewChatService wires a chat service. A nil responder answers with
// NotConfiguredReply.
func NewChatService(p *ProgressService, r Responder, log zerolog.Logger) *ChatService {
	if r == nil {
		r = UnconfiguredResponder
	}
	return &ChatService{progress: p, responder: r, log: log}
}

// ChatReply is the outcome of one turn. Reply and Progress are nil for a
// crisis message; Progress is nil when the responder failed.
type ChatReply struct {
	Analysis sentiment.Analysis `json:"analysis"`
	Reply    *model.ChatMessage `json:"reply,omitempty"`
	Progress *Outcome           `json:"progress,omitempty"`
}

// Converse handles a user message.
func (s *ChatService) Converse(ctx context.Context, userID, message string) (*ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, NewValidationError("message", "is required")
	}
	if utf8.RuneCountInString(message) > maxMessageLen {
		return nil, NewValidationError("message", fmt.Sprintf("exceeds %d characters", maxMessageLen))
	}
	g, err := s.progress.gateway(userID)
	if err != nil {
		return nil, err
	}
	retry := s.progress.retry

	history, err := retryValue(ctx, retry, "list_messages", func() ([]*model.ChatMessage, error) { return g.ListMessages(ctx, historyWindow) })
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	analysis := sentiment.Analyze(message)
	userMsg := model.ChatMessage{ID: uuid.New().String(), Role: model.RoleUser, Content: message, Sentiment: analysis.Sentiment}
	if _, err := retryValue(ctx, retry, "append_message", func() (*model.ChatMessage, error) {
		return g.AppendMessage(ctx, userMsg)
	}); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}

	out := &ChatReply{Analysis: analysis}
	if analysis.CrisisRisk {
		s.log.Warn().Str("user_id", userID).Msg("crisis language detected")
		return out, nil
	}

	text, rerr := s.responder.Respond(ctx, history, message)
	replySentiment := model.SentimentPositive
	if rerr != nil {
		s.log.Error().Stack().Err(rerr).Str("user_id", userID).Msg("responder failed")
		text = FallbackReply
		replySentiment = model.SentimentNeutral
	}
	replyMsg := model.ChatMessage{ID: uuid.New().String(), Role: model.RoleAssistant, Content: text, Sentiment: replySentiment}
	reply, err := retryValue(ctx, retry, "append_message", func() (*model.ChatMessage, error) {
		return g.AppendMessage(ctx, replyMsg)
	})
	if err != nil {
		return nil, fmt.Errorf("save reply: %w", err)
	}
	out.Reply = reply
	if rerr != nil {
		return out, nil
	}

	progress, err := s.progress.RecordConversation(ctx, userID)
	if err != nil {
		return nil, err
	}
	out.Progress = progress
	return out, nil
}

// History returns the newest limit messages, oldest first.
func (s *ChatService) History(ctx context.Context, userID string, limit int) ([]*model.ChatMessage, error) {
	g, err := s.progress.gateway(userID)
	if err != nil {
		return nil, err
	}
	return retryValue(ctx, s.progress.retry, "list_messages", func() ([]*model.ChatMessage, error) { return g.ListMessages(ctx, limit) })
}
