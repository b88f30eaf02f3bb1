package config

import "time"

const (
	// Attachment limits
	MaxFileSize = 10 * 1024 * 1024
	SniffLen    = 4100

	// Logical prefix for stored attachment objects
	UploadPrefix = "uploads"

	// Signed display URLs must outlive the whole turn pipeline,
	// including the upstream re-fetch.
	SignedURLTTL = 1 * time.Hour

	// Wall-clock budget for one chat turn
	TurnTimeout = 60 * time.Second

	// Timeout for a single upstream HTTP call
	UpstreamTimeout = 90 * time.Second

	// Concurrent attachment pipelines per turn
	AttachmentParallelism = 3
)

// AllowedFileTypes is the attachment MIME allow-list. A file is accepted
// when either its sniffed or its declared type is listed.
var AllowedFileTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/svg+xml",
	"application/pdf",
	"text/plain",
	"text/markdown",
	"application/json",
	"text/csv",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}
