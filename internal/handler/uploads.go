package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/emkai/chatrelay/internal/config"
	"github.com/emkai/chatrelay/internal/domain"
)

type uploadResult struct {
	Name       string             `json:"name"`
	Attachment *domain.Attachment `json:"attachment,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// handleUploads ingests multipart files into durable attachment storage
// ahead of a chat turn. Individual file failures are reported per file;
// the upload quota is the only hard stop.
func (h *Handler) handleUploads(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(config.MaxFileSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	chatID := r.FormValue("chat_id")
	userID := r.FormValue("user_id")
	if chatID == "" || userID == "" {
		respondError(w, http.StatusBadRequest, "missing information")
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "no files supplied")
		return
	}

	if _, err := h.attachments.CheckUploadQuota(r.Context(), userID); err != nil {
		if errors.Is(err, domain.ErrUploadLimitReached) {
			respondError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		slog.Error("check upload quota", "error", err, "user_id", userID)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	results := make([]uploadResult, 0, len(files))
	for _, fh := range files {
		// The quota counter moves with every stored file, so re-check
		// before each upload attempt.
		if _, err := h.attachments.CheckUploadQuota(r.Context(), userID); err != nil {
			results = append(results, uploadResult{Name: fh.Filename, Error: err.Error()})
			continue
		}

		f, err := fh.Open()
		if err != nil {
			results = append(results, uploadResult{Name: fh.Filename, Error: "unreadable file"})
			continue
		}
		data, err := io.ReadAll(io.LimitReader(f, config.MaxFileSize+1))
		f.Close()
		if err != nil {
			results = append(results, uploadResult{Name: fh.Filename, Error: "unreadable file"})
			continue
		}

		att, err := h.attachments.Ingest(r.Context(), chatID, userID, fh.Filename, fh.Header.Get("Content-Type"), data)
		if err != nil {
			slog.Warn("file ingest failed", "error", err, "name", fh.Filename)
			results = append(results, uploadResult{Name: fh.Filename, Error: err.Error()})
			continue
		}
		results = append(results, uploadResult{Name: fh.Filename, Attachment: att})
	}

	respondJSON(w, http.StatusOK, map[string]any{"attachments": results})
}
