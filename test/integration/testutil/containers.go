//go:build integration

package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pyladiescon/confops/internal/infra"
	"github.com/redis/go-redis/v9"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

var (
	pgOnce sync.Once
	pgPool *pgxpool.Pool
	pgErr  error

	redisOnce   sync.Once
	redisClient *redis.Client
	redisErr    error
)

// Postgres returns a pool to a shared Postgres container with migrations applied.
// Ryuk removes the container when the test binary exits.
func Postgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	pgOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
			tcpostgres.WithDatabase("confops_test"),
			tcpostgres.WithUsername("confops"),
			tcpostgres.WithPassword("confops"),
			tcpostgres.BasicWaitStrategies(),
		)
		if err != nil {
			pgErr = fmt.Errorf("start postgres container: %w", err)
			return
		}

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			pgErr = fmt.Errorf("postgres connection string: %w", err)
			return
		}

		if err := infra.RunMigrations(dsn, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
			pgErr = fmt.Errorf("run migrations: %w", err)
			return
		}

		pgPool, pgErr = infra.NewPostgresPool(ctx, &infra.Config{DatabaseURL: dsn})
	})

	if pgErr != nil {
		t.Fatalf("failed to initialize postgres: %v", pgErr)
	}
	return pgPool
}

// Redis returns a client to a shared Redis container.
func Redis(t *testing.T) *redis.Client {
	t.Helper()
	redisOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		container, err := tcredis.Run(ctx, "redis:7-alpine")
		if err != nil {
			redisErr = fmt.Errorf("start redis container: %w", err)
			return
		}

		url, err := container.ConnectionString(ctx)
		if err != nil {
			redisErr = fmt.Errorf("redis connection string: %w", err)
			return
		}

		redisClient, redisErr = infra.NewRedisClient(ctx, &infra.Config{RedisURL: url})
	})

	if redisErr != nil {
		t.Fatalf("failed to initialize redis: %v", redisErr)
	}
	return redisClient
}
