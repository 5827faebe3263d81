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
	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/store"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/services/auth/internal/app"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/services/auth/internal/config"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/services/auth/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// Durations were validated by Load.
	accessTTL, _ := config.ParseDuration("accessTTL", cfg.AccessTTL)
	refreshTTL, _ := config.ParseDuration("refreshTTL", cfg.RefreshTTL)
	leeway, _ := config.ParseDuration("jwtLeeway", cfg.JWTLeeway)
	shutdownGrace, _ := config.ParseDuration("shutdownGrace", cfg.ShutdownGrace)
	if shutdownGrace == 0 {
		shutdownGrace = 10 * time.Second
	}
	verifyKeys, _ := config.ParseVerifyPublicKeys(cfg.JWTVerifyPublicKeys)

	logger := util.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	users, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer users.Close()

	redisClient := store.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to reach redis: %v", err)
	}

	signingKey, err := store.LoadRSAPrivateKey(cfg.JWTPrivateKeyPath)
	if err != nil {
		log.Fatalf("failed to load jwt signing key: %v", err)
	}
	tokens, err := store.NewAccessTokens(signingKey, store.NewRedisTokenRevoker(redisClient), store.AccessTokenOptions{
		KeyID:    cfg.JWTKeyID,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      accessTTL,
		Leeway:   leeway,
	})
	if err != nil {
		log.Fatalf("failed to init access tokens: %v", err)
	}
	for kid, path := range verifyKeys {
		pub, err := store.LoadRSAPublicKey(path)
		if err != nil {
			log.Fatalf("failed to load jwt verify key %s: %v", kid, err)
		}
		tokens.AddVerifier(kid, pub)
	}

	alerter := security.NewAuditAlerter(redisClient, "sf:alert")
	appCore, err := app.New(app.Config{
		Users:         users,
		Tokens:        tokens,
		RefreshTokens: store.NewRedisRefreshTokenStore(redisClient),
		RefreshTTL:    refreshTTL,
		Alerter:       alerter,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("invalid trusted proxies: %v", err)
	}
	httpServer := server.New(server.Config{
		App:             appCore,
		AllowedOrigins:  cfg.AllowedOrigins,
		TrustedProxies:  trusted,
		RegisterLimiter: newLimiter(redisClient, "sf:ratelimit:register", cfg.RegisterRateLimitPerMinute),
		LoginLimiter:    newLimiter(redisClient, "sf:ratelimit:login", cfg.LoginRateLimitPerMinute),
		RefreshLimiter:  newLimiter(redisClient, "sf:ratelimit:refresh", cfg.RefreshRateLimitPerMinute),
		Alerter:         alerter,
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
		slog.Info("auth server listening", "addr", addr)
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
	logger.Info("auth server stopped")
}

func newLimiter(client *redis.Client, prefix string, perMinute int) *ratelimit.FixedWindowLimiter {
	if perMinute <= 0 {
		return nil
	}
	limiter, err := ratelimit.NewFixedWindowLimiter(client, prefix, perMinute, time.Minute)
	if err != nil {
		log.Fatalf("failed to init rate limiter %s: %v", prefix, err)
	}
	return limiter
}
