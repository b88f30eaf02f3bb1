package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/emkai/chatrelay/internal/domain"
)

type fakeUsers struct {
	mu         sync.Mutex
	users      map[string]*domain.User
	increments int
	resets     int
}

func newFakeUsers(users ...*domain.User) *fakeUsers {
	f := &fakeUsers{users: map[string]*domain.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Get(_ context.Context, userID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUsers) ResetDaily(_ context.Context, userID string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.DailyMessageCount = 0
	u.DailyReset = &now
	f.resets++
	return nil
}

func (f *fakeUsers) IncrementUsage(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.MessageCount++
	u.DailyMessageCount++
	u.LastActiveAt = time.Now()
	f.increments++
	return nil
}

type fakeSpend struct {
	total decimal.Decimal
}

func (f *fakeSpend) SpendSince(context.Context, string, time.Time) (decimal.Decimal, error) {
	return f.total, nil
}

type fakeIndex struct {
	mu        sync.Mutex
	inserted  []domain.Attachment
	count     int
	insertErr error
}

func (f *fakeIndex) Insert(_ context.Context, _, _ string, att domain.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, att)
	f.count++
	return nil
}

func (f *fakeIndex) CountSince(context.Context, string, time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, nil
}

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}}
}

func (f *fakeObjectStore) Put(_ context.Context, bucket, path string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[bucket+"/"+path] = data
	return nil
}

func (f *fakeObjectStore) SignedURL(_ context.Context, bucket, path string, _ time.Duration) (string, error) {
	return "https://store.local/" + bucket + "/" + path + "?signature=abc", nil
}

func (f *fakeObjectStore) PublicURL(bucket, path string) string {
	return "https://store.local/" + bucket + "/" + path
}

type fakeMessages struct {
	mu        sync.Mutex
	msgs      []domain.Message
	insertErr error
}

func (f *fakeMessages) Insert(_ context.Context, m *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.msgs = append(f.msgs, *m)
	return nil
}

func (f *fakeMessages) ListByChat(_ context.Context, chatID string, limit int) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	var out []domain.Message
	for _, m := range f.msgs {
		if m.ChatID != chatID {
			continue
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeMessages) byRole(role string) []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Message
	for _, m := range f.msgs {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

type fakeChats struct {
	mu        sync.Mutex
	chats     map[string]*domain.Chat
	lookupErr error
}

func newFakeChats(chatIDs ...string) *fakeChats {
	f := &fakeChats{chats: map[string]*domain.Chat{}}
	for _, id := range chatIDs {
		f.chats[id] = &domain.Chat{ID: id}
	}
	return f
}

func (f *fakeChats) Create(_ context.Context, chatID, userID, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.chats[chatID]; !ok {
		f.chats[chatID] = &domain.Chat{ID: chatID, UserID: userID, Title: title}
	}
	return nil
}

func (f *fakeChats) Get(_ context.Context, chatID string) (*domain.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chats[chatID]
	if !ok {
		return nil, domain.ErrChatNotFound
	}
	copied := *c
	return &copied, nil
}

func (f *fakeChats) ConversationID(_ context.Context, chatID string) (*string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	c, ok := f.chats[chatID]
	if !ok {
		return nil, domain.ErrChatNotFound
	}
	return c.ConversationID, nil
}

func (f *fakeChats) BindConversation(_ context.Context, chatID, conversationID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chats[chatID]
	if !ok {
		return false, domain.ErrChatNotFound
	}
	if c.ConversationID != nil {
		return false, nil
	}
	c.ConversationID = &conversationID
	return true, nil
}

func (f *fakeChats) token(chatID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.chats[chatID]; ok && c.ConversationID != nil {
		return *c.ConversationID
	}
	return ""
}

func (f *fakeChats) has(chatID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.chats[chatID]
	return ok
}

type chatCall struct {
	query          string
	user           string
	conversationID string
	files          []FilePayload
}

type fakeUpstream struct {
	mu         sync.Mutex
	uploads    []string
	uploadFunc func(filename string) (string, error)
	chatCalls  []chatCall
	chatFunc   func(call int) (*ChatResult, error)
}

func (f *fakeUpstream) UploadFromURL(_ context.Context, _, filename, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadFunc != nil {
		id, err := f.uploadFunc(filename)
		if err != nil {
			return "", err
		}
		f.uploads = append(f.uploads, id)
		return id, nil
	}
	id := fmt.Sprintf("upload-%d", len(f.uploads)+1)
	f.uploads = append(f.uploads, id)
	return id, nil
}

func (f *fakeUpstream) SendChatMessage(_ context.Context, query, user, conversationID string, files []FilePayload) (*ChatResult, error) {
	f.mu.Lock()
	call := len(f.chatCalls)
	f.chatCalls = append(f.chatCalls, chatCall{query: query, user: user, conversationID: conversationID, files: files})
	f.mu.Unlock()

	if f.chatFunc != nil {
		return f.chatFunc(call)
	}
	return &ChatResult{Answer: "hello"}, nil
}

func (f *fakeUpstream) calls() []chatCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]chatCall, len(f.chatCalls))
	copy(out, f.chatCalls)
	return out
}
