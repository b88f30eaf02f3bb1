package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emkai/chatrelay/internal/domain"
)

type Users struct {
	pool *pgxpool.Pool
}

func NewUsers(pool *pgxpool.Pool) *Users {
	return &Users{pool: pool}
}

func (r *Users) Get(ctx context.Context, userID string) (*domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, message_count, daily_message_count, daily_reset, premium, last_active_at, created_at
		FROM users
		WHERE id = $1::uuid
	`, userID).Scan(&u.ID, &u.MessageCount, &u.DailyMessageCount, &u.DailyReset, &u.Premium, &u.LastActiveAt, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// ResetDaily zeroes the daily counter and stamps the reset time. The write
// is unconditional: two racing resets on the day boundary are idempotent.
func (r *Users) ResetDaily(ctx context.Context, userID string, now time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users
		SET daily_message_count = 0, daily_reset = $2
		WHERE id = $1::uuid
	`, userID, now)
	if err != nil {
		return fmt.Errorf("reset daily count: %w", err)
	}
	return nil
}

// IncrementUsage bumps both lifetime and daily counters in one atomic
// UPDATE so concurrent turns from the same user cannot lose updates.
func (r *Users) IncrementUsage(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users
		SET message_count = message_count + 1,
		    daily_message_count = daily_message_count + 1,
		    last_active_at = now()
		WHERE id = $1::uuid
	`, userID)
	if err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	return nil
}
