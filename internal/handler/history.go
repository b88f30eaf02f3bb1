package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/emkai/chatrelay/internal/domain"
)

// handleHistory returns a chat record with its stored messages, oldest
// first.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	if chatID == "" {
		respondError(w, http.StatusBadRequest, "chat id is required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	history, err := h.transcript.History(r.Context(), chatID, limit)
	if err != nil {
		if errors.Is(err, domain.ErrChatNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		slog.Error("fetch chat history", "error", err, "chat_id", chatID)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, history)
}
