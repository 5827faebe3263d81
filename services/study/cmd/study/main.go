package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/FS-PART-2/8-StudyForest-team2-BE/internal/ratelimit"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/internal/security"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/internal/util"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/storage"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/store"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/services/study/internal/app"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/services/study/internal/config"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/services/study/internal/server"
)

const defaultShutdownGrace = 10 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	shutdownGrace, _ := config.ParseDuration("shutdownGrace", cfg.ShutdownGrace)
	if shutdownGrace == 0 {
		shutdownGrace = defaultShutdownGrace
	}
	presignExpiry, _ := config.ParseDuration("presignExpiry", cfg.PresignExpiry)

	logger := util.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = store.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to reach redis: %v", err)
		}
	}

	var alerter *security.AuditAlerter
	if redisClient != nil {
		alerter = security.NewAuditAlerter(redisClient, "sf:alert")
	}
	passwordLimiter := newLimiter(redisClient, "sf:ratelimit:password", cfg.PasswordRateLimitPerMinute)
	writeLimiter := newLimiter(redisClient, "sf:ratelimit:write", cfg.WriteRateLimitPerMinute)

	var objects storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		minioStore, err := storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("failed to init object storage: %v", err)
		}
		objects = minioStore
	} else {
		logger.Warn("object storage disabled; image uploads will be rejected")
	}

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("invalid trusted proxies: %v", err)
	}

	appCore, err := app.New(app.Config{
		Store:         db,
		Objects:       objects,
		Alerter:       alerter,
		PresignExpiry: presignExpiry,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer := server.New(server.Config{
		App:             appCore,
		AllowedOrigins:  cfg.AllowedOrigins,
		TrustedProxies:  trusted,
		PasswordLimiter: passwordLimiter,
		WriteLimiter:    writeLimiter,
		Alerter:         alerter,
		MaxImageBytes:   storage.MaxImageBytes,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpServer.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("study server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
		}
		return
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
	logger.Info("study server stopped")
}

func newLimiter(client *redis.Client, prefix string, perMinute int) *ratelimit.FixedWindowLimiter {
	if client == nil || perMinute <= 0 {
		return nil
	}
	limiter, err := ratelimit.NewFixedWindowLimiter(client, prefix, perMinute, time.Minute)
	if err != nil {
		log.Fatalf("failed to init rate limiter %s: %v", prefix, err)
	}
	return limiter
}
