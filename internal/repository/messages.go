package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/emkai/chatrelay/internal/domain"
)

type Messages struct {
	pool *pgxpool.Pool
}

func NewMessages(pool *pgxpool.Pool) *Messages {
	return &Messages{pool: pool}
}

func (r *Messages) Insert(ctx context.Context, m *domain.Message) error {
	attachments := m.Attachments
	if attachments == nil {
		attachments = []domain.Attachment{}
	}
	attJSON, err := json.Marshal(attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}

	var groupID *string
	if m.MessageGroupID != "" {
		groupID = &m.MessageGroupID
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO messages (
			id, chat_id, role, content, attachments, message_group_id,
			prompt_tokens, completion_tokens, total_price, currency
		) VALUES ($1, $2::uuid, $3, $4, $5::jsonb, $6, $7, $8, $9, $10)
	`, m.ID, m.ChatID, m.Role, m.Content, attJSON, groupID,
		m.PromptTokens, m.CompletionTokens, m.TotalPrice, m.Currency)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// SpendSince sums the upstream price of the user's assistant messages
// created at or after the given instant.
func (r *Messages) SpendSince(ctx context.Context, userID string, since time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(m.total_price), 0)
		FROM messages m
		JOIN chats c ON c.id = m.chat_id
		WHERE c.user_id = $1::uuid AND m.role = $2 AND m.created_at >= $3
	`, userID, domain.RoleAssistant, since).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum spend: %w", err)
	}
	return total, nil
}

func (r *Messages) ListByChat(ctx context.Context, chatID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, chat_id::text, role, content, attachments, COALESCE(message_group_id, ''),
		       prompt_tokens, completion_tokens, total_price, currency, created_at
		FROM messages
		WHERE chat_id = $1::uuid
		ORDER BY created_at
		LIMIT $2
	`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var (
			m       domain.Message
			attJSON []byte
		)
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &attJSON, &m.MessageGroupID,
			&m.PromptTokens, &m.CompletionTokens, &m.TotalPrice, &m.Currency, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if len(attJSON) > 0 {
			if err := json.Unmarshal(attJSON, &m.Attachments); err != nil {
				return nil, fmt.Errorf("unmarshal attachments: %w", err)
			}
		}
		msgs = append(msgs, m)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("list messages: %w", rows.Err())
	}
	return msgs, nil
}
