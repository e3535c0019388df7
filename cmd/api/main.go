package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ram-tewari/neo-alexandria-sub020/internal/config"
	"github.com/ram-tewari/neo-alexandria-sub020/internal/domain"
	"github.com/ram-tewari/neo-alexandria-sub020/internal/history"
	httpserver "github.com/ram-tewari/neo-alexandria-sub020/internal/http"
	"github.com/ram-tewari/neo-alexandria-sub020/internal/http/handlers"
	"github.com/ram-tewari/neo-alexandria-sub020/internal/ingest"
	"github.com/ram-tewari/neo-alexandria-sub020/internal/notify"
	"github.com/ram-tewari/neo-alexandria-sub020/internal/scheduler"
)

func main() {
	logger := log.New(os.Stdout, "[na-ingest] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier, notifierCloser := setupNotifier(ctx, cfg, logger)
	defer notifierCloser()

	archive, archiveCloser := setupHistory(ctx, cfg, logger)
	defer archiveCloser()

	ingestClient := ingest.NewClient(ingest.ClientConfig{
		BaseURL: cfg.IngestBaseURL,
		APIKey:  cfg.IngestAPIKey,
		Timeout: time.Duration(cfg.IngestTimeoutMS) * time.Millisecond,
	})

	callbacks := scheduler.Callbacks{}
	if archive != nil {
		callbacks.OnCompleted = func(item domain.Item) {
			if err := archive.RecordTerminal(context.Background(), item); err != nil {
				logger.Printf("failed to archive completed item %s: %v", item.ID, err)
			}
		}
		callbacks.OnFailed = func(item domain.Item, _ string) {
			if err := archive.RecordTerminal(context.Background(), item); err != nil {
				logger.Printf("failed to archive failed item %s: %v", item.ID, err)
			}
		}
	}

	sched := scheduler.New(
		ingestClient,
		notifier,
		scheduler.Config{
			MaxConcurrent: cfg.MaxConcurrent,
			PollInterval:  time.Duration(cfg.PollIntervalMS) * time.Millisecond,
			PollTimeout:   time.Duration(cfg.PollTimeoutMS) * time.Millisecond,
		},
		callbacks,
		logger,
	)
	defer sched.Close()

	api := handlers.NewAPI(sched, cfg.UploadDir)
	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		AuthToken:      cfg.AuthToken,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Printf("api listening on :%s", cfg.Port)
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func setupNotifier(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (notify.Notifier, func()) {
	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not configured, using log notifier fallback")
		return notify.NewLogNotifier(logger), func() {}
	}

	streams, err := notify.NewStreamsNotifier(ctx, notify.StreamsConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Stream:   cfg.NotifyStream,
	})
	if err != nil {
		logger.Printf("failed to initialize redis streams notifier, fallback to log: %v", err)
		return notify.NewLogNotifier(logger), func() {}
	}
	logger.Printf("redis streams notifier initialized")
	return streams, func() {
		_ = streams.Close()
	}
}

func setupHistory(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (*history.PostgresHistory, func()) {
	if cfg.DatabaseURL == "" {
		logger.Printf("DATABASE_URL not configured, terminal history archive disabled")
		return nil, func() {}
	}

	archive, err := history.NewPostgresHistory(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Printf("failed to initialize postgres history archive, disabling: %v", err)
		return nil, func() {}
	}
	logger.Printf("postgres history archive initialized")
	return archive, func() {
		archive.Close()
	}
}
