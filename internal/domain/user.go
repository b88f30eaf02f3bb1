package domain

import "time"

type User struct {
	ID                string
	MessageCount      int64
	DailyMessageCount int
	DailyReset        *time.Time
	Premium           bool
	LastActiveAt      time.Time
	CreatedAt         time.Time
}
