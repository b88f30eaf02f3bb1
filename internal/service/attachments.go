package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/emkai/chatrelay/internal/config"
	"github.com/emkai/chatrelay/internal/domain"
	"github.com/emkai/chatrelay/internal/storage"
)

// AttachmentIndex is the slice of the attachment repository the ingestor
// needs: the durable metadata index plus the derived upload counter.
type AttachmentIndex interface {
	Insert(ctx context.Context, chatID, userID string, att domain.Attachment) error
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// AttachmentService validates, stores and indexes user-supplied files and
// enforces the daily upload-count quota.
type AttachmentService struct {
	store        storage.ObjectStore
	index        AttachmentIndex
	bucket       string
	publicBucket bool
	dailyLimit   int
}

func NewAttachmentService(store storage.ObjectStore, index AttachmentIndex, bucket string, publicBucket bool, dailyLimit int) *AttachmentService {
	return &AttachmentService{
		store:        store,
		index:        index,
		bucket:       bucket,
		publicBucket: publicBucket,
		dailyLimit:   dailyLimit,
	}
}

type Validation struct {
	MIME string
	Ext  string
}

// Validate enforces the size ceiling, then sniffs the leading bytes for a
// magic signature. The file is accepted when either the sniffed or the
// declared MIME type is allow-listed; declared types are a deliberate
// fallback because transports do not always set a reliable one.
func (s *AttachmentService) Validate(name, declaredMIME string, size int64, head []byte) (*Validation, error) {
	if size > config.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes over %d", domain.ErrFileTooLarge, size, config.MaxFileSize)
	}
	if len(head) > config.SniffLen {
		head = head[:config.SniffLen]
	}

	mt := mimetype.Detect(head)

	sniffedAllowed := ""
	for _, allowed := range config.AllowedFileTypes {
		if mt.Is(allowed) {
			sniffedAllowed = allowed
			break
		}
	}

	declared := stripParams(declaredMIME)
	declaredAllowed := false
	for _, allowed := range config.AllowedFileTypes {
		if declared == allowed {
			declaredAllowed = true
			break
		}
	}

	if sniffedAllowed == "" && !declaredAllowed {
		return nil, fmt.Errorf("%w: sniffed %q, declared %q", domain.ErrFileTypeNotAllowed, stripParams(mt.String()), declared)
	}

	mime := sniffedAllowed
	if mime == "" {
		mime = declared
	}

	ext := strings.TrimPrefix(mt.Extension(), ".")
	if sniffedAllowed == "" || ext == "" {
		if i := strings.LastIndex(name, "."); i >= 0 && i < len(name)-1 {
			ext = strings.ToLower(name[i+1:])
		}
	}
	if ext == "" {
		ext = "bin"
	}

	return &Validation{MIME: mime, Ext: ext}, nil
}

// CheckUploadQuota counts the user's attachment records since the start of
// the current UTC day and rejects the next upload once the daily limit is
// reached.
func (s *AttachmentService) CheckUploadQuota(ctx context.Context, userID string) (int, error) {
	count, err := s.index.CountSince(ctx, userID, StartOfUTCDay(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("count uploads: %w", err)
	}
	if count >= s.dailyLimit {
		return count, domain.ErrUploadLimitReached
	}
	return count, nil
}

// Store writes the bytes under a fresh random object name, derives the
// display URL and records the attachment in the durable index. Re-storing
// the same bytes always produces a new location; there is no deduplication.
func (s *AttachmentService) Store(ctx context.Context, chatID, userID, name string, data []byte, v *Validation) (*domain.Attachment, error) {
	path := fmt.Sprintf("%s/%s.%s", config.UploadPrefix, uuid.NewString(), v.Ext)

	if err := s.store.Put(ctx, s.bucket, path, data, v.MIME); err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	// A signed URL's TTL has to outlive the rest of the turn pipeline:
	// the upstream uploader re-fetches the bytes through it.
	var url string
	var err error
	if s.publicBucket {
		url = s.store.PublicURL(s.bucket, path)
	} else {
		url, err = s.store.SignedURL(ctx, s.bucket, path, config.SignedURLTTL)
		if err != nil {
			return nil, fmt.Errorf("sign display url: %w", err)
		}
	}

	att := domain.Attachment{
		Name:        name,
		ContentType: v.MIME,
		URL:         url,
		Bucket:      s.bucket,
		Path:        path,
		Size:        int64(len(data)),
	}

	if err := s.index.Insert(ctx, chatID, userID, att); err != nil {
		return nil, fmt.Errorf("index attachment: %w", err)
	}

	return &att, nil
}

// Ingest runs the full validate-then-store pipeline for one file.
func (s *AttachmentService) Ingest(ctx context.Context, chatID, userID, name, declaredMIME string, data []byte) (*domain.Attachment, error) {
	v, err := s.Validate(name, declaredMIME, int64(len(data)), data)
	if err != nil {
		return nil, err
	}
	return s.Store(ctx, chatID, userID, name, data, v)
}

func stripParams(mime string) string {
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	return strings.TrimSpace(mime)
}
