package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/emkai/chatrelay/internal/config"
	"github.com/emkai/chatrelay/internal/domain"
)

// handleChat relays one chat turn to the upstream conversation service
// and answers with the plain reply text.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req domain.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Messages) == 0 || req.ChatID == "" || req.UserID == "" {
		respondError(w, http.StatusBadRequest, "missing information")
		return
	}
	if h.cfg.UpstreamKey() == "" {
		respondError(w, http.StatusInternalServerError, "upstream API key is not configured")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.TurnTimeout)
	defer cancel()

	answer, err := h.relay.ProcessTurn(ctx, &req)
	if err != nil {
		h.respondChatError(w, r, &req, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(answer))
}

func (h *Handler) respondChatError(w http.ResponseWriter, r *http.Request, req *domain.TurnRequest, err error) {
	var upstream *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDailyLimitReached):
		respondError(w, http.StatusTooManyRequests, err.Error())
	case errors.As(err, &upstream):
		respondError(w, upstream.Status, upstream.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "upstream request timed out")
	default:
		slog.Error("chat turn failed", "error", err, "chat_id", req.ChatID, "user_id", req.UserID)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
