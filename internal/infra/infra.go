// Package infra opens the optional Postgres and Redis connections.
package infra

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/onebills/onebills/internal/config"
)

// Connections are the external stores in use. Either may be nil in
// development, where in-memory stand-ins take over.
type Connections struct {
	DB    *pgxpool.Pool
	Cache *redis.Client
}

// Connect opens whatever cfg configures. Outside development both stores are
// required, which config.Load already enforces.
func Connect(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Connections, error) {
	conns := &Connections{}
	if cfg.DatabaseURL != "" {
		db, err := NewPostgresPool(ctx, cfg.DatabaseURL, cfg.AppName)
		if err != nil {
			return nil, err
		}
		conns.DB = db
	}
	if cfg.RedisURL != "" {
		cache, err := NewRedisClient(ctx, cfg.RedisURL, cfg.AppName)
		if err != nil {
			conns.Close(logger)
			return nil, err
		}
		conns.Cache = cache
	}
	logger.Info("infra.connected", slog.Bool("postgres", conns.DB != nil), slog.Bool("redis", conns.Cache != nil))
	return conns, nil
}

// Close releases every open connection.
func (c *Connections) Close(logger *slog.Logger) {
	var errs []error
	if c.Cache != nil {
		errs = append(errs, c.Cache.Close())
	}
	if c.DB != nil {
		c.DB.Close()
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn("infra.close", slog.Any("error", err))
	}
}
