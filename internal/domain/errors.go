package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrChatNotFound       = errors.New("chat not found")
	ErrDailyLimitReached  = errors.New("daily message limit reached")
	ErrUploadLimitReached = errors.New("daily file upload limit reached")
	ErrFileTooLarge       = errors.New("file size exceeds limit")
	ErrFileTypeNotAllowed = errors.New("file type not supported")
)

// UpstreamError is a non-success reply from the upstream conversation API.
// Status is propagated to the caller unchanged.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("upstream error %d", e.Status)
}
