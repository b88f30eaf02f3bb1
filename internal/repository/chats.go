package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emkai/chatrelay/internal/domain"
)

type Chats struct {
	pool *pgxpool.Pool
}

func NewChats(pool *pgxpool.Pool) *Chats {
	return &Chats{pool: pool}
}

func (r *Chats) Create(ctx context.Context, chatID, userID, title string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chats (id, user_id, title)
		VALUES ($1::uuid, $2::uuid, $3)
		ON CONFLICT (id) DO NOTHING
	`, chatID, userID, title)
	if err != nil {
		return fmt.Errorf("create chat: %w", err)
	}
	return nil
}

func (r *Chats) Get(ctx context.Context, chatID string) (*domain.Chat, error) {
	var c domain.Chat
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, user_id::text, conversation_id, title, created_at
		FROM chats
		WHERE id = $1::uuid
	`, chatID).Scan(&c.ID, &c.UserID, &c.ConversationID, &c.Title, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChatNotFound
		}
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return &c, nil
}

func (r *Chats) ConversationID(ctx context.Context, chatID string) (*string, error) {
	var conversationID *string
	err := r.pool.QueryRow(ctx, `
		SELECT conversation_id FROM chats WHERE id = $1::uuid
	`, chatID).Scan(&conversationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChatNotFound
		}
		return nil, fmt.Errorf("get conversation id: %w", err)
	}
	return conversationID, nil
}

// BindConversation stores the continuity token, first writer wins. The
// predicate makes the write a no-op once a token is already bound, so two
// racing first turns cannot overwrite each other. Returns whether this
// call was the winning writer.
func (r *Chats) BindConversation(ctx context.Context, chatID, conversationID string) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE chats
		SET conversation_id = $2
		WHERE id = $1::uuid AND conversation_id IS NULL
	`, chatID, conversationID)
	if err != nil {
		return false, fmt.Errorf("bind conversation: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}
