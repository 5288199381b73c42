package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sungminna/marketer/internal/adapter/repo"
	"github.com/sungminna/marketer/internal/infra"
	"github.com/sungminna/marketer/internal/providers"
	"github.com/sungminna/marketer/internal/service"
	"github.com/sungminna/marketer/internal/storage"
	"github.com/sungminna/marketer/internal/task"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if cfg.AMQPURL == "" {
		logger.Fatal().Msg("worker: AMQP_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer dbpool.Close()

	jobs := repo.NewJobRepository(dbpool)
	batches := repo.NewBatchRepository(dbpool)
	quotas := repo.NewQuotaRepository(dbpool)
	usage := repo.NewUsageRepository(dbpool)
	webhooks := repo.NewWebhookRepository(dbpool)
	creds := repo.NewCredentialRepository(dbpool)

	var store storage.ObjectStore
	switch cfg.StorageBackend {
	case "minio":
		client, err := infra.NewMinioClient(cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: minio connection failed")
		}
		store, err = storage.NewMinioStore(client, cfg.MinioBucket, cfg.StorageBaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: minio bucket setup failed")
		}
	default:
		store, err = storage.NewFileStore(cfg.StorageBase, cfg.StorageBaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: file store setup failed")
		}
	}

	registry := providers.NewRegistry(providers.Options{
		GeminiBaseURL: cfg.GeminiBaseURL,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		VertexBaseURL: cfg.VertexBaseURL,
	}, logger)

	webhookSvc := service.NewWebhookService(webhooks, nil, logger)
	quotaSvc := service.NewQuotaService(quotas, logger)
	imageSvc := service.NewImageService(jobs, usage, quotaSvc, store, registry, webhookSvc, logger)

	var remover service.BackgroundRemover
	if cfg.BgRemovalEndpoint != "" {
		remover = service.NewHTTPBackgroundRemover(cfg.BgRemovalEndpoint, cfg.BgRemovalAPIKey, nil, logger)
	}
	videoSvc := service.NewVideoService(jobs, usage, quotaSvc, store, registry, webhookSvc, remover, nil, logger)
	batchSvc := service.NewBatchService(batches, jobs, creds, imageSvc, videoSvc, webhookSvc, logger)

	processor := service.NewProcessor(jobs, creds, imageSvc, videoSvc, batchSvc, logger)

	conn, err := task.DialAMQP(ctx, cfg.AMQPURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: rabbitmq connection failed")
	}
	defer conn.Close()

	// Failed webhook deliveries are swept on an interval alongside the
	// consumer, so retries happen even when no new tasks arrive.
	go func() {
		ticker := time.NewTicker(cfg.WebhookRetryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				retried, err := webhookSvc.RetryFailed(ctx)
				if err != nil {
					logger.Error().Err(err).Msg("worker: webhook retry sweep failed")
					continue
				}
				if retried > 0 {
					logger.Info().Int("retried", retried).Msg("worker: webhook deliveries retried")
				}
			}
		}
	}()

	consumer := task.NewConsumer(conn, processor.Handle, cfg.WorkerCount, logger)
	logger.Info().Int("workers", cfg.WorkerCount).Msg("worker: consuming tasks")
	if err := consumer.Consume(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal().Err(err).Msg("worker: consumer stopped")
	}
	logger.Info().Msg("worker stopped")
}
