package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ms-storefront/internal/config"
	"ms-storefront/internal/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

const maxConnectAttempts = 5

func retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 10 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(b, maxConnectAttempts-1), ctx)
}

// Connect opens the Postgres pool and pings it until it answers or the
// retry budget runs out.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN not set")
	}

	sqldb, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	attempt := 0
	ping := func() error {
		attempt++
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", attempt, maxConnectAttempts))
		return sqldb.PingContext(ctx)
	}
	notify := func(err error, wait time.Duration) {
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v (retrying in %s)", err, wait))
	}
	if err := backoff.RetryNotify(ping, retryPolicy(ctx), notify); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("connect postgres after %d attempts: %w", attempt, err)
	}

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func ConnectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ping := func() error { return client.Ping(ctx).Err() }
	notify := func(err error, wait time.Duration) {
		log.Error("REDIS", fmt.Sprintf("Redis ping failed: %v (retrying in %s)", err, wait))
	}
	if err := backoff.RetryNotify(ping, retryPolicy(ctx), notify); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s (DB: %d)", cfg.Addr, cfg.DB))
	return client, nil
}
