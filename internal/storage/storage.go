package storage

import (
	"context"
	"time"
)

// ObjectStore is the narrow contract the attachment pipeline needs from a
// bucket/path content store.
type ObjectStore interface {
	Put(ctx context.Context, bucket, path string, data []byte, contentType string) error
	SignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error)
	PublicURL(bucket, path string) string
}
