package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sungminna/marketer/internal/adapter/repo"
	"github.com/sungminna/marketer/internal/http/handlers"
	httpapi "github.com/sungminna/marketer/internal/http/httpapi"
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

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	// Repositories
	jobs := repo.NewJobRepository(dbpool)
	batches := repo.NewBatchRepository(dbpool)
	quotas := repo.NewQuotaRepository(dbpool)
	usage := repo.NewUsageRepository(dbpool)
	webhooks := repo.NewWebhookRepository(dbpool)
	creds := repo.NewCredentialRepository(dbpool)

	// Object storage
	var store storage.ObjectStore
	switch cfg.StorageBackend {
	case "minio":
		client, err := infra.NewMinioClient(cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect minio")
		}
		store, err = storage.NewMinioStore(client, cfg.MinioBucket, cfg.StorageBaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare minio bucket")
		}
	default:
		store, err = storage.NewFileStore(cfg.StorageBase, cfg.StorageBaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare file store")
		}
	}

	registry := providers.NewRegistry(providers.Options{
		GeminiBaseURL: cfg.GeminiBaseURL,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		VertexBaseURL: cfg.VertexBaseURL,
	}, logger)

	// Services
	webhookSvc := service.NewWebhookService(webhooks, nil, logger)
	quotaSvc := service.NewQuotaService(quotas, logger)
	usageSvc := service.NewUsageService(usage)
	imageSvc := service.NewImageService(jobs, usage, quotaSvc, store, registry, webhookSvc, logger)

	var remover service.BackgroundRemover
	if cfg.BgRemovalEndpoint != "" {
		remover = service.NewHTTPBackgroundRemover(cfg.BgRemovalEndpoint, cfg.BgRemovalAPIKey, nil, logger)
	}
	videoSvc := service.NewVideoService(jobs, usage, quotaSvc, store, registry, webhookSvc, remover, nil, logger)
	batchSvc := service.NewBatchService(batches, jobs, creds, imageSvc, videoSvc, webhookSvc, logger)

	processor := service.NewProcessor(jobs, creds, imageSvc, videoSvc, batchSvc, logger)

	// Executor: AMQP when a broker is configured, otherwise in-process.
	var executor task.Executor
	var inProcess *task.InProcessExecutor
	if cfg.AMQPURL != "" {
		conn, err := task.DialAMQP(ctx, cfg.AMQPURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect rabbitmq")
		}
		defer conn.Close()
		executor, err = task.NewAMQPExecutor(conn, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to set up amqp executor")
		}
	} else {
		inProcess = task.NewInProcessExecutor(processor.Handle, logger)
		executor = inProcess
	}

	app := &handlers.App{
		Images:   imageSvc,
		Videos:   videoSvc,
		Batches:  batchSvc,
		Quota:    quotaSvc,
		Usage:    usageSvc,
		Webhooks: webhookSvc,
		Creds:    creds,
		Executor: executor,
		Logger:   logger,
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:       cfg.JWTSecret,
		RateLimitPerMin: cfg.RateLimitPerMin,
		AllowedOrigins:  cfg.AllowedOrigins,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if inProcess != nil {
		inProcess.Wait()
	}
	logger.Info().Msg("server stopped")
}
