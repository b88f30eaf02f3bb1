package domain

import "time"

// Chat is one conversation record. ConversationID is the upstream
// continuity token: nil until the first successful upstream reply,
// never rewritten after that.
type Chat struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ConversationID *string   `json:"conversation_id"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"created_at"`
}
