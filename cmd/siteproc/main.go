package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/siteproc/siteproc/internal/app"
	"github.com/siteproc/siteproc/internal/auth"
	"github.com/siteproc/siteproc/internal/masterdata"
	"github.com/siteproc/siteproc/internal/observability"
	"github.com/siteproc/siteproc/internal/platform/cache"
	"github.com/siteproc/siteproc/internal/platform/db"
	"github.com/siteproc/siteproc/internal/platform/objstore"
	"github.com/siteproc/siteproc/internal/procure"
	"github.com/siteproc/siteproc/internal/shared"
	"github.com/siteproc/siteproc/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	authManager := auth.NewManager(redisClient, cfg.TokenTTL)

	photoStore, err := objstore.New(objstore.Config{
		Endpoint:     cfg.S3Endpoint,
		Region:       cfg.S3Region,
		Bucket:       cfg.S3Bucket,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		UseSSL:       cfg.S3UseSSL,
		UsePathStyle: cfg.S3UsePathStyle,
		PresignTTL:   cfg.S3PresignTTL,
	}, logger)
	if err != nil {
		logger.Error("configure object storage", slog.Any("error", err))
		os.Exit(1)
	}
	if err := photoStore.EnsureBucket(ctx); err != nil {
		logger.Warn("ensure photo bucket", slog.Any("error", err))
	}

	auditLogger := shared.NewAuditLogger(dbpool)

	procureRepo := procure.NewRepository(dbpool)
	procureService := procure.NewService(procureRepo, auditLogger)
	procureHandler := procure.NewHandler(logger, procureService, photoStore, auditLogger)

	masterdataRepo := masterdata.NewRepository(dbpool)
	masterdataService := masterdata.NewService(masterdataRepo)
	masterdataHandler := masterdata.NewHandler(logger, masterdataService,
		cache.NewJSONCache(redisClient, time.Minute))

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AuthManager:       authManager,
		ProcureHandler:    procureHandler,
		MasterDataHandler: masterdataHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
