package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	chatrelay "github.com/emkai/chatrelay"
	"github.com/emkai/chatrelay/internal/config"
	"github.com/emkai/chatrelay/internal/handler"
	"github.com/emkai/chatrelay/internal/middleware"
	"github.com/emkai/chatrelay/internal/repository"
	"github.com/emkai/chatrelay/internal/service"
	"github.com/emkai/chatrelay/internal/storage"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file, using system environment")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.UpstreamKey() == "" {
		slog.Warn("upstream API key is not configured, /chat will refuse requests")
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Run migrations
	migrationsFS, err := fs.Sub(chatrelay.MigrationsFS, "migrations")
	if err != nil {
		slog.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}
	if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Object store
	objectStore, err := storage.NewMinioStore(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3UseSSL)
	if err != nil {
		slog.Error("failed to create object store client", "error", err)
		os.Exit(1)
	}

	// Repositories
	users := repository.NewUsers(pool)
	chats := repository.NewChats(pool)
	messages := repository.NewMessages(pool)
	attachments := repository.NewAttachments(pool)

	// Services
	usageService := service.NewUsageService(users, messages, cfg.DailyMessageLimit, cfg.PremiumDailyMessageLimit)
	attachmentService := service.NewAttachmentService(
		objectStore, attachments,
		cfg.AttachmentBucket, cfg.IsPublicBucket(cfg.AttachmentBucket),
		cfg.DailyFileUploadLimit,
	)
	dify := service.NewDifyService(cfg.ServiceURL, cfg.UpstreamKey())
	transcriptService := service.NewTranscriptService(messages, chats)
	relayService := service.NewRelayService(usageService, attachmentService, dify, transcriptService, chats)

	h := handler.New(handler.Deps{
		Cfg:         cfg,
		Relay:       relayService,
		Attachments: attachmentService,
		Usage:       usageService,
		Transcript:  transcriptService,
		DB:          pool,
	})

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recover)
	r.Use(middleware.Logging)
	h.Register(r)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	slog.Info("starting server", "addr", srv.Addr, "upstream", cfg.ServiceURL)
	if err := runServer(ctx, srv); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped gracefully")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
