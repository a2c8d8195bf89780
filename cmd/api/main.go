package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hthomas22/size-agent/cmd/mainconfig"
	"github.com/hthomas22/size-agent/internal/api/router"
	appconfig "github.com/hthomas22/size-agent/internal/config"
	"github.com/hthomas22/size-agent/internal/conversation"
	"github.com/hthomas22/size-agent/internal/messaging"
	"github.com/hthomas22/size-agent/internal/nlu"
	"github.com/hthomas22/size-agent/internal/observability/metrics"
	"github.com/hthomas22/size-agent/internal/shopify"
	"github.com/hthomas22/size-agent/internal/store"
	"github.com/hthomas22/size-agent/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting size-agent API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	// Storage: postgres when configured, in-memory otherwise.
	var st store.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create postgres pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			logger.Error("failed to ping postgres", "error", err)
			os.Exit(1)
		}
		st = store.NewPostgresStore(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		st = store.NewMemoryStore()
	}

	// Per-order locking: redis when configured, in-process otherwise.
	var locks conversation.Locker
	if cfg.RedisAddr != "" {
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient := redis.NewClient(opts)
		defer func() { _ = redisClient.Close() }()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("failed to ping redis", "error", err)
			os.Exit(1)
		}
		locks = conversation.NewRedisLocker(redisClient, cfg.OrderLockTTL)
	} else {
		logger.Warn("REDIS_ADDR not set, using in-process locks")
		locks = conversation.NewMemoryLocker()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	convMetrics := metrics.NewConversationMetrics(registry)

	llm, modelID := buildLLMClient(ctx, cfg, logger)
	classifier := nlu.NewClassifier(llm, modelID, logger)
	generator := nlu.NewGenerator(llm, modelID, logger)

	messenger := messaging.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppNumber, logger)
	commerce := shopify.NewClient(cfg.ShopifyStoreURL, cfg.ShopifyAccessToken, cfg.ShopifyAPIVersion, logger)

	engine := conversation.NewEngine(st, classifier, generator, messenger, commerce, locks, convMetrics, logger)

	dispatcher := buildDispatcher(ctx, cfg, engine, logger)

	shopifyHandler := shopify.NewHandler(cfg.ShopifyWebhookSecret, st, dispatcher, convMetrics, cfg.DegradedMode, logger)
	messagingHandler := messaging.NewHandler(cfg.TwilioAuthToken, dispatcher, convMetrics, logger,
		messaging.WithProcessTimeout(cfg.ReplyTimeout),
		messaging.WithPublicBaseURL(cfg.PublicBaseURL))

	r := router.New(&router.Config{
		Logger:           logger,
		ShopifyHandler:   shopifyHandler,
		MessagingHandler: messagingHandler,
		MetricsHandler:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("dispatcher shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}

// buildLLMClient picks the completion backend from config. Gemini is the
// default; Bedrock is selected explicitly and shares the AWS config with the
// SQS queue.
func buildLLMClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (nlu.LLMClient, string) {
	switch cfg.LLMProvider {
	case "bedrock":
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config for bedrock", "error", err)
			os.Exit(1)
		}
		return nlu.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg)), cfg.BedrockModelID
	default:
		client, err := nlu.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to create gemini client", "error", err)
			os.Exit(1)
		}
		return client, cfg.GeminiModelID
	}
}

func buildDispatcher(ctx context.Context, cfg *appconfig.Config, engine conversation.Service, logger *logging.Logger) conversation.Dispatcher {
	if cfg.UseMemoryQueue {
		return conversation.NewQueueDispatcher(engine, conversation.NewMemoryQueue(64), logger,
			conversation.WithWorkerCount(cfg.WorkerCount))
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config for sqs", "error", err)
		os.Exit(1)
	}
	queue := conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ConversationQueueURL)
	return conversation.NewQueueDispatcher(engine, queue, logger,
		conversation.WithWorkerCount(cfg.WorkerCount))
}
