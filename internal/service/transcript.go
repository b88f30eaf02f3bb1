package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/emkai/chatrelay/internal/domain"
)

// MessageStore is the slice of the message repository the transcript needs.
type MessageStore interface {
	Insert(ctx context.Context, m *domain.Message) error
	ListByChat(ctx context.Context, chatID string, limit int) ([]domain.Message, error)
}

// ChatReader resolves a chat record for history reads.
type ChatReader interface {
	Get(ctx context.Context, chatID string) (*domain.Chat, error)
}

// TranscriptService persists inbound user turns and outbound assistant
// turns against a chat record, and serves the stored history back. The
// writes are best-effort from the pipeline's point of view: callers log
// and discard the returned error rather than failing the turn.
type TranscriptService struct {
	messages MessageStore
	chats    ChatReader
}

func NewTranscriptService(messages MessageStore, chats ChatReader) *TranscriptService {
	return &TranscriptService{messages: messages, chats: chats}
}

// ChatHistory is one chat record with its stored messages in creation
// order.
type ChatHistory struct {
	Chat     *domain.Chat     `json:"chat"`
	Messages []domain.Message `json:"messages"`
}

// History returns the chat and its transcript, oldest first. Returns
// ErrChatNotFound for an unknown chat id.
func (s *TranscriptService) History(ctx context.Context, chatID string, limit int) (*ChatHistory, error) {
	chat, err := s.chats.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.messages.ListByChat(ctx, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat history: %w", err)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}

	return &ChatHistory{Chat: chat, Messages: msgs}, nil
}

// RecordUserTurn appends the user's message. The relay calls this before
// the upstream request so the turn is durable even when the call fails.
func (s *TranscriptService) RecordUserTurn(ctx context.Context, chatID, content string, attachments []domain.Attachment, groupID string) error {
	msg := &domain.Message{
		ID:             newMessageID(),
		ChatID:         chatID,
		Role:           domain.RoleUser,
		Content:        content,
		Attachments:    attachments,
		MessageGroupID: groupID,
	}
	if err := s.messages.Insert(ctx, msg); err != nil {
		return fmt.Errorf("record user turn: %w", err)
	}
	return nil
}

// RecordAssistantTurn appends the assistant's reply with the upstream's
// usage accounting. The message id is generated locally.
func (s *TranscriptService) RecordAssistantTurn(ctx context.Context, chatID string, res *ChatResult, groupID string) error {
	msg := &domain.Message{
		ID:               newMessageID(),
		ChatID:           chatID,
		Role:             domain.RoleAssistant,
		Content:          res.Answer,
		MessageGroupID:   groupID,
		PromptTokens:     res.PromptTokens,
		CompletionTokens: res.CompletionTokens,
		TotalPrice:       res.TotalPrice,
		Currency:         res.Currency,
	}
	if err := s.messages.Insert(ctx, msg); err != nil {
		return fmt.Errorf("record assistant turn: %w", err)
	}
	return nil
}

func newMessageID() string {
	return "msg-" + uuid.NewString()
}
