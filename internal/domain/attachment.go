package domain

import "strings"

// Attachment references one user-supplied file. URL starts out as a
// transient source locator and becomes the durable display URL once the
// file is validated and stored; Bucket and Path identify the stored bytes.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	URL         string `json:"url"`
	Bucket      string `json:"bucket,omitempty"`
	Path        string `json:"path,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// FileCategory is the coarse content tag the upstream API applies
// per-category handling to.
type FileCategory string

const (
	FileImage    FileCategory = "image"
	FileDocument FileCategory = "document"
	FileAudio    FileCategory = "audio"
	FileVideo    FileCategory = "video"
	FileCustom   FileCategory = "custom"
)

var documentTypes = map[string]struct{}{
	"application/pdf":    {},
	"text/plain":         {},
	"text/markdown":      {},
	"text/csv":           {},
	"application/json":   {},
	"application/msword": {},
	"application/vnd.ms-excel":      {},
	"application/vnd.ms-powerpoint": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   {},
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": {},
	"application/epub+zip": {},
	"application/xml":      {},
	"text/xml":             {},
	"text/html":            {},
}

// CategoryForMIME classifies a MIME type into an upstream file category.
// Unknown or empty types fall back to "custom".
func CategoryForMIME(mime string) FileCategory {
	switch {
	case mime == "":
		return FileCustom
	case strings.HasPrefix(mime, "image/"):
		return FileImage
	case strings.HasPrefix(mime, "audio/"):
		return FileAudio
	case strings.HasPrefix(mime, "video/"):
		return FileVideo
	}
	if _, ok := documentTypes[mime]; ok {
		return FileDocument
	}
	return FileCustom
}
