package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emkai/chatrelay/internal/domain"
)

func TestHistoryReturnsChatAndMessagesInOrder(t *testing.T) {
	chats := newFakeChats()
	messages := &fakeMessages{}
	transcript := NewTranscriptService(messages, chats)

	ctx := context.Background()
	require.NoError(t, chats.Create(ctx, "chat-1", "u1", "first question"))
	require.NoError(t, chats.Create(ctx, "chat-2", "u1", "other chat"))

	require.NoError(t, transcript.RecordUserTurn(ctx, "chat-1", "first question", nil, ""))
	require.NoError(t, transcript.RecordAssistantTurn(ctx, "chat-1", &ChatResult{Answer: "first answer"}, ""))
	require.NoError(t, transcript.RecordUserTurn(ctx, "chat-2", "unrelated", nil, ""))

	history, err := transcript.History(ctx, "chat-1", 0)
	require.NoError(t, err)

	assert.Equal(t, "chat-1", history.Chat.ID)
	assert.Equal(t, "first question", history.Chat.Title)

	require.Len(t, history.Messages, 2)
	assert.Equal(t, domain.RoleUser, history.Messages[0].Role)
	assert.Equal(t, "first question", history.Messages[0].Content)
	assert.Equal(t, domain.RoleAssistant, history.Messages[1].Role)
	assert.Equal(t, "first answer", history.Messages[1].Content)
}

func TestHistoryUnknownChat(t *testing.T) {
	transcript := NewTranscriptService(&fakeMessages{}, newFakeChats())

	_, err := transcript.History(context.Background(), "ghost", 0)
	assert.ErrorIs(t, err, domain.ErrChatNotFound)
}

func TestHistoryEmptyChatReturnsEmptySlice(t *testing.T) {
	chats := newFakeChats("chat-1")
	transcript := NewTranscriptService(&fakeMessages{}, chats)

	history, err := transcript.History(context.Background(), "chat-1", 0)
	require.NoError(t, err)
	assert.NotNil(t, history.Messages)
	assert.Empty(t, history.Messages)
}

func TestHistoryRespectsLimit(t *testing.T) {
	chats := newFakeChats("chat-1")
	messages := &fakeMessages{}
	transcript := NewTranscriptService(messages, chats)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, transcript.RecordUserTurn(ctx, "chat-1", "q", nil, ""))
	}

	history, err := transcript.History(ctx, "chat-1", 3)
	require.NoError(t, err)
	assert.Len(t, history.Messages, 3)
}
