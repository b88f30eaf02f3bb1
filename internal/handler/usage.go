package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/emkai/chatrelay/internal/domain"
)

// handleUsage reports the user's current-day counters and spend.
func (h *Handler) handleUsage(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	info, err := h.usage.Usage(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		slog.Error("fetch usage", "error", err, "user_id", userID)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, info)
}
