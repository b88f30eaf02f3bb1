package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/emkai/chatrelay/internal/config"
	"github.com/emkai/chatrelay/internal/service"
)

// Pinger reports backing-store liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	cfg         *config.Config
	relay       *service.RelayService
	attachments *service.AttachmentService
	usage       *service.UsageService
	transcript  *service.TranscriptService
	db          Pinger
}

type Deps struct {
	Cfg         *config.Config
	Relay       *service.RelayService
	Attachments *service.AttachmentService
	Usage       *service.UsageService
	Transcript  *service.TranscriptService
	DB          Pinger
}

func New(deps Deps) *Handler {
	return &Handler{
		cfg:         deps.Cfg,
		relay:       deps.Relay,
		attachments: deps.Attachments,
		usage:       deps.Usage,
		transcript:  deps.Transcript,
		db:          deps.DB,
	}
}

// Register wires all routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Post("/uploads", h.handleUploads)
	r.Get("/chats/{chatID}/messages", h.handleHistory)
	r.Get("/usage", h.handleUsage)
	r.Get("/healthz", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
