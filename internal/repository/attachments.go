package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emkai/chatrelay/internal/domain"
)

type Attachments struct {
	pool *pgxpool.Pool
}

func NewAttachments(pool *pgxpool.Pool) *Attachments {
	return &Attachments{pool: pool}
}

func (r *Attachments) Insert(ctx context.Context, chatID, userID string, att domain.Attachment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat_attachments (chat_id, user_id, file_url, file_name, file_type, file_size, bucket, path)
		VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7, $8)
	`, chatID, userID, att.URL, att.Name, att.ContentType, att.Size, att.Bucket, att.Path)
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

// CountSince returns how many attachment records the user created at or
// after the given instant. Used as the daily upload quota counter with
// since = start of the current UTC day.
func (r *Attachments) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM chat_attachments
		WHERE user_id = $1::uuid AND created_at >= $2
	`, userID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attachments: %w", err)
	}
	return count, nil
}
