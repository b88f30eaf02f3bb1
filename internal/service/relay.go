package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/emkai/chatrelay/internal/config"
	"github.com/emkai/chatrelay/internal/domain"
)

// Upstream is the conversation API contract the relay depends on.
type Upstream interface {
	UploadFromURL(ctx context.Context, fileURL, filename, mime string) (string, error)
	SendChatMessage(ctx context.Context, query, user, conversationID string, files []FilePayload) (*ChatResult, error)
}

// ChatStore is the slice of the chat repository the relay needs for
// conversation-identity continuity.
type ChatStore interface {
	Create(ctx context.Context, chatID, userID, title string) error
	ConversationID(ctx context.Context, chatID string) (*string, error)
	BindConversation(ctx context.Context, chatID, conversationID string) (bool, error)
}

// RelayService runs one chat turn end to end: quota gate, attachment
// fan-out, upstream call, continuity bind and transcript writes.
type RelayService struct {
	usage       *UsageService
	attachments *AttachmentService
	upstream    Upstream
	transcript  *TranscriptService
	chats       ChatStore
	httpClient  *http.Client
}

func NewRelayService(usage *UsageService, attachments *AttachmentService, upstream Upstream, transcript *TranscriptService, chats ChatStore) *RelayService {
	return &RelayService{
		usage:       usage,
		attachments: attachments,
		upstream:    upstream,
		transcript:  transcript,
		chats:       chats,
		httpClient:  &http.Client{Timeout: config.UpstreamTimeout},
	}
}

// ProcessTurn relays one user turn to the upstream conversation service
// and returns the plain answer text.
//
// Durable side effects are deliberately not transactional: the usage
// increment and the user transcript entry survive a failed or timed-out
// upstream call, and persistence failures after a successful answer are
// logged and swallowed so they never turn a good reply into an error.
func (s *RelayService) ProcessTurn(ctx context.Context, req *domain.TurnRequest) (string, error) {
	count, limit, err := s.usage.CheckAndReset(ctx, req.UserID)
	if err != nil {
		return "", err
	}
	if count >= limit {
		return "", domain.ErrDailyLimitReached
	}
	if err := s.usage.Increment(ctx, req.UserID); err != nil {
		slog.Error("increment usage", "error", err, "user_id", req.UserID)
	}

	userMsg := req.LastUserMessage()
	query := userMsg.Text()
	var rawAtts []domain.Attachment
	if userMsg != nil {
		rawAtts = userMsg.Attachments
	}

	conversationID, err := s.chats.ConversationID(ctx, req.ChatID)
	if err != nil {
		if !errors.Is(err, domain.ErrChatNotFound) {
			return "", err
		}
		if err := s.chats.Create(ctx, req.ChatID, req.UserID, chatTitle(query)); err != nil {
			return "", err
		}
	}
	token := ""
	if conversationID != nil {
		token = *conversationID
	}

	stored, files := s.processAttachments(ctx, req, rawAtts)

	// The user's turn must be durable before the upstream call is
	// attempted; a write failure is logged, not fatal.
	if userMsg != nil {
		if err := s.transcript.RecordUserTurn(ctx, req.ChatID, query, stored, req.MessageGroupID); err != nil {
			slog.Error("persist user turn", "error", err, "chat_id", req.ChatID)
		}
	}

	res, err := s.upstream.SendChatMessage(ctx, query, req.UserID, token, files)
	if err != nil {
		return "", err
	}

	// Bind the continuity token exactly once per chat: the conditional
	// update makes the first writer win and later attempts no-ops.
	if token == "" && res.ConversationID != "" {
		won, err := s.chats.BindConversation(ctx, req.ChatID, res.ConversationID)
		if err != nil {
			slog.Error("bind conversation", "error", err, "chat_id", req.ChatID)
		} else if !won {
			slog.Info("conversation already bound by concurrent turn", "chat_id", req.ChatID)
		}
	}

	if err := s.transcript.RecordAssistantTurn(ctx, req.ChatID, res, req.MessageGroupID); err != nil {
		slog.Error("persist assistant turn", "error", err, "chat_id", req.ChatID)
	}

	return res.Answer, nil
}

// processAttachments runs the validate-store-upload pipeline once per
// attachment with bounded parallelism. Each attachment is a best-effort
// enrichment: any single failure is logged and the file dropped, never
// aborting the turn. Input order is preserved in both outputs.
func (s *RelayService) processAttachments(ctx context.Context, req *domain.TurnRequest, atts []domain.Attachment) ([]domain.Attachment, []FilePayload) {
	if len(atts) == 0 {
		return nil, nil
	}

	storedByIdx := make([]*domain.Attachment, len(atts))
	filesByIdx := make([]*FilePayload, len(atts))

	var g errgroup.Group
	g.SetLimit(config.AttachmentParallelism)
	for i, att := range atts {
		i, att := i, att // per-iteration copies: go directive predates Go 1.22 loopvar scoping
		if att.URL == "" || strings.HasPrefix(att.URL, "blob:") {
			continue
		}
		g.Go(func() error {
			stored, file, err := s.processOne(ctx, req, att)
			if err != nil {
				slog.Warn("skip attachment", "error", err, "name", att.Name, "type", att.ContentType)
				return nil
			}
			storedByIdx[i] = stored
			filesByIdx[i] = file
			return nil
		})
	}
	g.Wait()

	var stored []domain.Attachment
	var files []FilePayload
	for i := range atts {
		if storedByIdx[i] != nil {
			stored = append(stored, *storedByIdx[i])
		}
		if filesByIdx[i] != nil {
			files = append(files, *filesByIdx[i])
		}
	}
	return stored, files
}

// processOne is the strictly sequential three-step pipeline for a single
// attachment: quota-gated ingest into durable storage, then re-upload to
// the upstream file endpoint.
func (s *RelayService) processOne(ctx context.Context, req *domain.TurnRequest, att domain.Attachment) (*domain.Attachment, *FilePayload, error) {
	if _, err := s.attachments.CheckUploadQuota(ctx, req.UserID); err != nil {
		return nil, nil, err
	}

	data, err := s.fetchSource(ctx, att.URL)
	if err != nil {
		return nil, nil, err
	}

	name := att.Name
	if name == "" {
		name = "file"
	}
	stored, err := s.attachments.Ingest(ctx, req.ChatID, req.UserID, name, att.ContentType, data)
	if err != nil {
		return nil, nil, err
	}

	uploadID, err := s.upstream.UploadFromURL(ctx, stored.URL, stored.Name, stored.ContentType)
	if err != nil {
		return nil, nil, err
	}

	return stored, &FilePayload{
		Type:           domain.CategoryForMIME(stored.ContentType),
		TransferMethod: "local_file",
		UploadFileID:   uploadID,
	}, nil
}

// fetchSource downloads the transient source locator. Reads are capped
// just past the size ceiling so validation can reject oversized files
// without buffering them whole.
func (s *RelayService) fetchSource(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("create source request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch source %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, fmt.Errorf("fetch source %s: status %d: %s", url, resp.StatusCode, body)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, config.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read source %s: %w", url, err)
	}
	return data, nil
}

// chatTitle derives a short chat title from the first query. Truncation
// counts runes, not bytes, so a multi-byte character is never split.
func chatTitle(query string) string {
	const maxRunes = 80
	title := strings.TrimSpace(query)
	runes := []rune(title)
	if len(runes) > maxRunes {
		title = string(runes[:maxRunes])
	}
	return title
}
