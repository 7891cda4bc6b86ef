package main

import (
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/soaringjerry/FormPulse/internal/api"
	"github.com/soaringjerry/FormPulse/internal/config"
	"github.com/soaringjerry/FormPulse/internal/db"
	"github.com/soaringjerry/FormPulse/internal/services"
)

func openStore(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (api.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		store, err := db.OpenSQLite(ctx, cfg.SQLitePath, cfg.MigrationsDir, log)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	case "postgres":
		store, err := db.OpenPostgres(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	default:
		log.Warn("using in-memory store; data is lost on restart")
		return api.NewMemoryStore(), nil
	}
}

// openReportCache connects to Redis when configured. The server keeps
// running without a cache when Redis is unreachable at start.
func openReportCache(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) (*services.RedisReportCache, func(), error) {
	if !cfg.Enabled() {
		return nil, func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable, analytics cache disabled", zap.String("addr", cfg.Addr), zap.Error(err))
		_ = rdb.Close()
		return nil, func() {}, nil
	}
	log.Info("analytics cache enabled", zap.String("addr", cfg.Addr), zap.Duration("ttl", cfg.ReportTTL))
	return services.NewRedisReportCache(rdb, cfg.ReportTTL), func() { _ = rdb.Close() }, nil
}

// openObjectStorage returns nil when MinIO is not configured.
func openObjectStorage(ctx context.Context, cfg config.MinIOConfig, log *zap.Logger) (*services.MinioStorage, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	storage := services.NewMinioStorage(client, cfg.Bucket)
	if err := storage.EnsureBucket(ctx); err != nil {
		log.Warn("export archive bucket unavailable", zap.String("bucket", cfg.Bucket), zap.Error(err))
		return nil, nil
	}
	log.Info("export archiving enabled", zap.String("endpoint", cfg.Endpoint), zap.String("bucket", cfg.Bucket))
	return storage, nil
}
