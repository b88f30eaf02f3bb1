package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/emkai/chatrelay/internal/domain"
)

// UserStore is the slice of the user repository the ledger needs.
type UserStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	ResetDaily(ctx context.Context, userID string, now time.Time) error
	IncrementUsage(ctx context.Context, userID string) error
}

// SpendStore reports accumulated upstream cost for a user.
type SpendStore interface {
	SpendSince(ctx context.Context, userID string, since time.Time) (decimal.Decimal, error)
}

// UsageService tracks and enforces the per-user daily message quota with
// UTC-day rollover.
type UsageService struct {
	users        UserStore
	spend        SpendStore
	dailyLimit   int
	premiumLimit int
}

func NewUsageService(users UserStore, spend SpendStore, dailyLimit, premiumLimit int) *UsageService {
	return &UsageService{
		users:        users,
		spend:        spend,
		dailyLimit:   dailyLimit,
		premiumLimit: premiumLimit,
	}
}

// CheckAndReset fetches the user's counters, zeroing the daily count first
// when the stored reset stamp is from a prior UTC calendar day. The
// returned count is always valid for the current day; callers must not
// reuse a pre-reset value.
func (s *UsageService) CheckAndReset(ctx context.Context, userID string) (count, limit int, err error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return 0, 0, err
	}

	limit = s.dailyLimit
	if user.Premium {
		limit = s.premiumLimit
	}

	now := time.Now().UTC()
	if isNewDay(user.DailyReset, now) {
		if err := s.users.ResetDaily(ctx, userID, now); err != nil {
			return 0, 0, fmt.Errorf("reset daily usage: %w", err)
		}
		return 0, limit, nil
	}

	return user.DailyMessageCount, limit, nil
}

// Increment bumps the lifetime and daily counters and stamps last-active.
func (s *UsageService) Increment(ctx context.Context, userID string) error {
	return s.users.IncrementUsage(ctx, userID)
}

type UsageInfo struct {
	DailyCount int             `json:"daily_count"`
	DailyLimit int             `json:"daily_limit"`
	Remaining  int             `json:"remaining"`
	DailySpend decimal.Decimal `json:"daily_spend"`
}

// Usage reports the user's current-day counters and accumulated upstream
// spend for introspection endpoints.
func (s *UsageService) Usage(ctx context.Context, userID string) (*UsageInfo, error) {
	count, limit, err := s.CheckAndReset(ctx, userID)
	if err != nil {
		return nil, err
	}

	spend := decimal.Zero
	if s.spend != nil {
		spend, err = s.spend.SpendSince(ctx, userID, StartOfUTCDay(time.Now()))
		if err != nil {
			return nil, fmt.Errorf("daily spend: %w", err)
		}
	}

	return &UsageInfo{
		DailyCount: count,
		DailyLimit: limit,
		Remaining:  limit - count,
		DailySpend: spend,
	}, nil
}

// isNewDay compares calendar date components in UTC, not elapsed time.
// A missing reset stamp counts as a new day.
func isNewDay(lastReset *time.Time, now time.Time) bool {
	if lastReset == nil {
		return true
	}
	last := lastReset.UTC()
	return now.Year() != last.Year() || now.Month() != last.Month() || now.Day() != last.Day()
}

// StartOfUTCDay truncates an instant to the preceding UTC midnight.
func StartOfUTCDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
