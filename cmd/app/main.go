package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"qaflow/internal/config"
	"qaflow/internal/notify"
	"qaflow/internal/service"
	"qaflow/internal/storage/gitstore"
	transport "qaflow/internal/transport/http"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Warn(".env file not found", "error", err)
	}

	cfg, err := config.NewConfig()
	if err != nil {
		logger.Error("failed to read config", "error", err)
		os.Exit(1)
	}

	store, err := gitstore.NewClient(gitstore.Config{
		BaseURL: cfg.StoreURL,
		Repo:    cfg.StoreRepo,
		Branch:  cfg.StoreBranch,
		Token:   cfg.StoreToken,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to init document store", "error", err)
		os.Exit(1)
	}

	var notifier service.Notifier
	if cfg.WebhookURL != "" {
		notifier = notify.NewWebhook(cfg.WebhookURL, logger)
	}

	svc := service.NewService(store, notifier, logger)

	router := transport.NewHandler(
		svc, // PullRequestsService
		svc, // AssignmentsService
		svc, // TestCasesService
		svc, // UsersService
		svc, // IssuesService
		svc, // ActivityService
	)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ListenAndServe failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("signal received, shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	} else {
		logger.Info("HTTP server gracefully stopped")
	}
}
