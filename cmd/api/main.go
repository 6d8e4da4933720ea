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

	"github.com/iago/ai-webhook-back/internal/ai"
	"github.com/iago/ai-webhook-back/internal/broadcast"
	"github.com/iago/ai-webhook-back/internal/cache"
	"github.com/iago/ai-webhook-back/internal/config"
	"github.com/iago/ai-webhook-back/internal/domain"
	httpserver "github.com/iago/ai-webhook-back/internal/http"
	"github.com/iago/ai-webhook-back/internal/http/handlers"
	"github.com/iago/ai-webhook-back/internal/repository"
	"github.com/iago/ai-webhook-back/internal/service"
)

func main() {
	logger := log.New(os.Stdout, "[ai-webhook] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()

	if cfg.GeminiAPIKey == "" {
		logger.Printf("GEMINI_API_KEY not configured, summarization calls will fail until it is set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configsRepo, repoCloser := setupConfigsRepository(ctx, cfg, logger)
	defer repoCloser()
	seedDefaultWebhook(ctx, cfg, configsRepo, logger)

	aiClient := ai.NewGeminiClient(ai.GeminiClientConfig{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		Timeout:    time.Duration(cfg.GeminiTimeoutMS) * time.Millisecond,
		MaxRetries: cfg.GeminiMaxRetries,
	})
	summaryCache := cache.NewSummaryCache(cache.Config{
		TTL:        time.Duration(cfg.SummaryCacheTTLSeconds) * time.Second,
		MaxEntries: cfg.SummaryCacheMaxEntries,
	})
	executor := service.NewSummarizeService(service.SummarizeDependencies{
		Client:       aiClient,
		Cache:        summaryCache,
		DefaultModel: cfg.GeminiModelDefault,
		Logger:       logger,
	})

	broadcaster := broadcast.New(broadcast.Config{
		HistoryCap: cfg.EventHistoryCap,
		Logger:     logger,
	})

	api := handlers.NewAPI(handlers.APIDependencies{
		Configs:           configsRepo,
		Executor:          executor,
		Broadcaster:       broadcaster,
		Logger:            logger,
		MaxFileBytes:      cfg.MaxFileUploadBytes,
		KeepaliveInterval: time.Duration(cfg.StreamKeepaliveSeconds) * time.Second,
	})

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
		// WriteTimeout stays zero: /api/events connections are held open
		// indefinitely.
		IdleTimeout: 60 * time.Second,
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

func setupConfigsRepository(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (repository.ConfigsRepository, func()) {
	if cfg.DatabaseURL != "" {
		pgRepo, err := repository.NewPostgresConfigsRepository(ctx, cfg.DatabaseURL)
		if err == nil {
			logger.Printf("postgres configs repository initialized")
			return pgRepo, func() { pgRepo.Close() }
		}
		logger.Printf("failed to initialize postgres configs repository: %v", err)
	}

	if cfg.RedisAddr != "" {
		redisRepo, err := repository.NewRedisConfigsRepository(ctx, repository.RedisConfigsConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err == nil {
			logger.Printf("redis configs repository initialized")
			return redisRepo, func() { _ = redisRepo.Close() }
		}
		logger.Printf("failed to initialize redis configs repository: %v", err)
	}

	logger.Printf("using in-memory configs repository")
	return repository.NewMemoryConfigsRepository(), func() {}
}

// seedDefaultWebhook provisions the default configuration so a fresh
// install has a working trigger target, like the dashboard ships with.
func seedDefaultWebhook(
	ctx context.Context,
	cfg config.Config,
	repo repository.ConfigsRepository,
	logger *log.Logger,
) {
	if !cfg.SeedDefaultWebhook {
		return
	}
	configs, err := repo.List(ctx)
	if err != nil {
		logger.Printf("failed to inspect webhook configs for seeding: %v", err)
		return
	}
	if len(configs) > 0 {
		return
	}
	err = repo.Create(ctx, &domain.WebhookConfig{
		ID:        "wh_default_123",
		Name:      "Default Webhook",
		AIModel:   cfg.GeminiModelDefault,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		logger.Printf("failed to seed default webhook: %v", err)
		return
	}
	logger.Printf("seeded default webhook config id=wh_default_123")
}
