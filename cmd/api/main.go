package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/abduss/blogapi/internal/auth"
	"github.com/abduss/blogapi/internal/cache"
	"github.com/abduss/blogapi/internal/config"
	"github.com/abduss/blogapi/internal/logger"
	"github.com/abduss/blogapi/internal/media"
	"github.com/abduss/blogapi/internal/metrics"
	"github.com/abduss/blogapi/internal/post"
	"github.com/abduss/blogapi/internal/ratelimit"
	"github.com/abduss/blogapi/internal/server"
	"github.com/abduss/blogapi/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	startedAt := time.Now()

	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zapLogger, err := logger.Init(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	if err := cfg.Validate(); err != nil {
		zapLogger.Fatal("invalid config", zap.Error(err))
	}
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		zapLogger.Fatal("connect postgres", zap.Error(err))
	}
	defer dbPool.Close()

	if err := storage.Migrate(dbPool, zapLogger); err != nil {
		zapLogger.Fatal("migrate database", zap.Error(err))
	}

	minioClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		zapLogger.Fatal("connect minio", zap.Error(err))
	}
	if err := storage.EnsureBucket(ctx, minioClient, cfg.MinIO.Bucket, cfg.MinIO.Region); err != nil {
		zapLogger.Fatal("ensure bucket", zap.Error(err))
	}

	authService, err := auth.NewService(auth.NewRepository(dbPool), cfg.Auth)
	if err != nil {
		zapLogger.Fatal("init auth", zap.Error(err))
	}

	responses := cache.New(cfg.Cache.Size, cfg.Cache.TTL)
	scheduler, err := cache.NewScheduler(responses, cfg.Cache.ClearSchedule, cfg.Cache.Timezone, zapLogger)
	if err != nil {
		zapLogger.Fatal("init cache scheduler", zap.Error(err))
	}
	scheduler.Start()

	objects := media.NewMinIOStore(minioClient, cfg.MinIO.Bucket)
	postService := post.NewService(post.NewRepository(dbPool),
		post.WithObjectRemover(objects),
		post.WithInvalidator(responses),
	)
	mediaService := media.NewService(objects, postService, cfg.Media.MaxUploadBytes, cfg.Media.PresignTTL,
		media.WithLogger(zapLogger),
	)

	router := server.NewRouter(server.Dependencies{
		Config:    cfg,
		Logger:    zapLogger,
		StartedAt: startedAt,
		Checks: []server.ReadinessCheck{
			{Name: "postgres", Check: func(ctx context.Context) error { return storage.Ping(ctx, dbPool) }},
			{Name: "minio", Check: func(ctx context.Context) error {
				return storage.PingObjectStore(ctx, minioClient, cfg.MinIO.Bucket)
			}},
		},
		AuthService:  authService,
		PostService:  postService,
		MediaService: mediaService,
		Cache:        responses,
		RateLimiter:  ratelimit.New(cfg.RateLimit),
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		zapLogger.Info("blog api listening",
			zap.String("addr", cfg.Server.Address()),
			zap.String("env", cfg.App.Env),
			zap.Time("next_cache_clear", scheduler.Next()),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	zapLogger.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("shutdown", zap.Error(err))
	}
	scheduler.Stop(shutdownCtx)
}
