package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/pg-life/internal/account"
	"github.com/yourusername/pg-life/internal/apierr"
	"github.com/yourusername/pg-life/internal/auth"
	"github.com/yourusername/pg-life/internal/config"
	"github.com/yourusername/pg-life/internal/jobs"
	"github.com/yourusername/pg-life/internal/logging"
	"github.com/yourusername/pg-life/internal/observability"
	"github.com/yourusername/pg-life/internal/property"
	"github.com/yourusername/pg-life/internal/storage"
)

// app はサーバーが使う依存関係をまとめたものです。
type app struct {
	cfg        *config.Config
	logger     logging.Logger
	rdb        *redis.Client
	accounts   *account.Store
	properties *property.Store
	auth       *auth.Manager
	jobs       *jobs.Manager
	registry   *prometheus.Registry
	metrics    *observability.Metrics
}

func newLogger(cfg *config.Config) logging.Logger {
	return logging.New(os.Stdout, cfg.LogLevel, cfg.GinMode == gin.ReleaseMode)
}

// newApp は設定から依存関係を組み立てます。
// ストアに接続できなくてもエラーにはせず、ログに残して起動を続けます。
func newApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*app, error) {
	rdb, err := storage.Open(cfg.StoreRedisURL)
	if err != nil {
		return nil, err
	}
	if err := storage.Ping(ctx, rdb); err != nil {
		apierr.LogError(ctx, logger, "document store is unreachable; requests will fail until it recovers", err)
	} else {
		logger.Info(ctx, "connected to document store", "addr", rdb.Options().Addr)
	}

	registry := observability.NewRegistry()
	metrics := observability.NewMetrics(registry)

	a := &app{
		cfg:        cfg,
		logger:     logger,
		rdb:        rdb,
		accounts:   account.NewStore(rdb),
		properties: property.NewStore(rdb),
		registry:   registry,
		metrics:    metrics,
	}

	tickets := jobs.NewTicketStore(rdb, cfg.VerificationTTL)
	opts := auth.Options{
		Accounts: a.accounts,
		Hasher:   auth.NewBcryptHasher(auth.DefaultBcryptCost),
		Tokens:   auth.NewTokenCodec([]byte(cfg.JWTSecret), cfg.JWTExpiration),
		Cookie: auth.CookieOptions{
			Name:   auth.DefaultCookieName,
			MaxAge: cfg.CookieMaxAge,
			Secure: cfg.CookieSecure,
		},
		Tickets: tickets,
		CSRF:    cfg.CSRFProtection,
		Logger:  logger,
		Metrics: metrics,
	}
	if cfg.TokenRevocation {
		opts.DenyList = auth.NewRedisDenyList(rdb)
	}

	if cfg.QueueRedisURL != "" {
		manager, err := setupJobs(cfg, a.accounts, tickets, logger, metrics)
		if err != nil {
			_ = rdb.Close()
			return nil, err
		}
		a.jobs = manager
		opts.Verification = manager
	}

	a.auth, err = auth.NewManager(opts)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	if a.jobs != nil {
		if err := a.jobs.Shutdown(); err != nil {
			a.logger.Warn(context.Background(), "failed to shut down job workers", "error", err)
		}
	}
	if err := a.rdb.Close(); err != nil {
		a.logger.Warn(context.Background(), "failed to close document store", "error", err)
	}
}
