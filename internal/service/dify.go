package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/emkai/chatrelay/internal/config"
	"github.com/emkai/chatrelay/internal/domain"
)

// DifyService talks to the upstream conversation API: file uploads and
// blocking chat completions. It authenticates with the service credential,
// never the end user's identity.
type DifyService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewDifyService(baseURL, apiKey string) *DifyService {
	return &DifyService{
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: config.UpstreamTimeout},
	}
}

// FilePayload references one uploaded file in the chat request.
type FilePayload struct {
	Type           domain.FileCategory `json:"type"`
	TransferMethod string              `json:"transfer_method"`
	UploadFileID   string              `json:"upload_file_id"`
}

// UploadFromURL re-downloads the stored attachment through its display URL
// and forwards the bytes to the upstream file endpoint. The re-fetch is a
// deliberate decoupling point: the original transient source may already
// be gone by now.
func (s *DifyService) UploadFromURL(ctx context.Context, fileURL, filename, mime string) (string, error) {
	data, err := s.fetch(ctx, fileURL)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if mime != "" {
		header.Set("Content-Type", mime)
	}
	part, err := form.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write form part: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/v1/files/upload", &buf)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload file: status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	// The id arrives at the top level or under data depending on the
	// upstream version.
	var parsed struct {
		ID   string `json:"id"`
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse upload response: %w", err)
	}
	id := parsed.ID
	if id == "" {
		id = parsed.Data.ID
	}
	if id == "" {
		return "", fmt.Errorf("upload file: missing id in response: %s", truncate(body, 200))
	}
	return id, nil
}

// ChatResult is the canonical, normalized shape of one blocking reply.
type ChatResult struct {
	Answer           string
	ConversationID   string
	PromptTokens     int
	CompletionTokens int
	TotalPrice       decimal.Decimal
	Currency         string
}

type chatUsage struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalPrice       string `json:"total_price"`
	Currency         string `json:"currency"`
}

type chatEnvelope struct {
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id"`
	Metadata       struct {
		Usage chatUsage `json:"usage"`
	} `json:"metadata"`
	Data *struct {
		Answer         string `json:"answer"`
		ConversationID string `json:"conversation_id"`
		Metadata       struct {
			Usage chatUsage `json:"usage"`
		} `json:"metadata"`
	} `json:"data"`
}

func (e *chatEnvelope) normalize() *ChatResult {
	answer := e.Answer
	conversationID := e.ConversationID
	usage := e.Metadata.Usage
	if e.Data != nil {
		if answer == "" {
			answer = e.Data.Answer
		}
		if conversationID == "" {
			conversationID = e.Data.ConversationID
		}
		if usage == (chatUsage{}) {
			usage = e.Data.Metadata.Usage
		}
	}

	price, err := decimal.NewFromString(usage.TotalPrice)
	if err != nil {
		price = decimal.Zero
	}

	return &ChatResult{
		Answer:           answer,
		ConversationID:   conversationID,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalPrice:       price,
		Currency:         usage.Currency,
	}
}

// SendChatMessage posts one blocking chat turn. An empty conversationID
// asks the upstream to open a new conversation; the returned token (if
// any) is surfaced in the result for the caller to bind. A missing answer
// field is not an error: the result just carries an empty string.
func (s *DifyService) SendChatMessage(ctx context.Context, query, user, conversationID string, files []FilePayload) (*ChatResult, error) {
	if files == nil {
		files = []FilePayload{}
	}
	payload := map[string]any{
		"inputs":        map[string]any{"uploaded_files": files},
		"query":         query,
		"response_mode": "blocking",
		"user":          user,
	}
	if conversationID != "" {
		payload["conversation_id"] = conversationID
	}
	if len(files) > 0 {
		payload["files"] = files
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/v1/chat-messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.UpstreamError{
			Status:  resp.StatusCode,
			Message: extractErrorMessage(respBody),
		}
	}

	var envelope chatEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("parse chat response: %w", err)
	}
	return envelope.normalize(), nil
}

// extractErrorMessage pulls the structured message out of an upstream
// error body when one is present.
func extractErrorMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if parsed.Message != "" {
		return parsed.Message
	}
	return parsed.Error
}

func (s *DifyService) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("create fetch request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: status %d: %s", url, resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
