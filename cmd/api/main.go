package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"cvBuilder/internal/api"
	"cvBuilder/internal/config"
	"cvBuilder/internal/database"
	"cvBuilder/internal/draft"
	"cvBuilder/internal/editor"
	"cvBuilder/internal/storage"
	"cvBuilder/internal/tasks"
	"cvBuilder/internal/templates"
)

// maxPreviewBytes 为随保存请求提交的缩略图上限。
const maxPreviewBytes = 5 << 20

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	log.Printf("api bootstrapped with db host=%s port=%d db=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}
	log.Printf("database migrated")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	log.Printf("storage client ready, bucket=%s", cfg.MinIO.Bucket)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
	defer asynqClient.Close()

	repo := templates.NewRepository(db, storageClient,
		templates.WithSnapshotQueue(tasks.NewSnapshotQueue(asynqClient)),
		templates.WithLogger(logger),
	)
	sessions := editor.NewRegistry(repo, draft.NewRedisStore(redisClient, cfg.Draft.TTL), logger)

	router := api.NewRouter(logger)
	api.RegisterRoutes(router, api.Dependencies{
		Templates:            repo,
		Sessions:             sessions,
		Storage:              storageClient,
		Scanner:              api.NewClamdScanner(cfg.Clamd.Addr),
		Redis:                redisClient,
		MaxPreviewBytes:      maxPreviewBytes,
		MaxAvatarBytes:       cfg.API.MaxAvatarBytes,
		UploadLimitPerMinute: cfg.API.UploadLimitPerMinute,
		AllowedOrigins:       cfg.API.AllowedOrigins,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("api listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server stopped", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", slog.Any("error", err))
	}
}
