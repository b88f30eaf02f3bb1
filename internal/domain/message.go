package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TurnRequest is the inbound unit of work for one chat turn.
type TurnRequest struct {
	Messages       []TurnMessage `json:"messages"`
	ChatID         string        `json:"chatId"`
	UserID         string        `json:"userId"`
	MessageGroupID string        `json:"message_group_id,omitempty"`
}

// TurnMessage mirrors the client message shape. Content is either a plain
// string or an array of typed parts, so it stays raw until extraction.
type TurnMessage struct {
	Role        string          `json:"role"`
	Content     json.RawMessage `json:"content"`
	Attachments []Attachment    `json:"experimental_attachments,omitempty"`
}

// LastUserMessage returns the turn being processed: the trailing message
// when its role is "user", nil otherwise.
func (r *TurnRequest) LastUserMessage() *TurnMessage {
	if len(r.Messages) == 0 {
		return nil
	}
	last := &r.Messages[len(r.Messages)-1]
	if last.Role != RoleUser {
		return nil
	}
	return last
}

// Text extracts the plain text of a message. Multi-part content keeps only
// text parts, joined with a blank line; non-text parts are ignored.
func (m *TurnMessage) Text() string {
	if m == nil || len(m.Content) == 0 {
		return ""
	}

	var plain string
	if err := json.Unmarshal(m.Content, &plain); err == nil {
		return plain
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(m.Content, &parts); err != nil {
		return ""
	}

	out := ""
	for _, p := range parts {
		if p.Type != "text" || p.Text == "" {
			continue
		}
		if out != "" {
			out += "\n\n"
		}
		out += p.Text
	}
	return out
}

type Message struct {
	ID               string          `json:"id"`
	ChatID           string          `json:"chat_id"`
	Role             string          `json:"role"`
	Content          string          `json:"content"`
	Attachments      []Attachment    `json:"attachments,omitempty"`
	MessageGroupID   string          `json:"message_group_id,omitempty"`
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	Currency         string          `json:"currency"`
	CreatedAt        time.Time       `json:"created_at"`
}
