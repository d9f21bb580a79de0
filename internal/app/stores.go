package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pyladiescon/confops/internal/handler"
	"github.com/pyladiescon/confops/internal/infra"
	"github.com/pyladiescon/confops/internal/ledger"
	"github.com/pyladiescon/confops/internal/repository"
	"github.com/redis/go-redis/v9"
)

// Stores owns the connections behind the configured ledger backend.
type Stores struct {
	backend string
	prefix  string
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	files   []*ledger.FileLedger
	logger  *slog.Logger
}

// OpenStores connects to the ledger backend named by cfg.LedgerBackend. The postgres
// backend applies pending migrations before returning.
func OpenStores(ctx context.Context, cfg *infra.Config, logger *slog.Logger) (*Stores, error) {
	s := &Stores{backend: cfg.LedgerBackend, prefix: cfg.RedisKeyPrefix, logger: logger}

	switch cfg.LedgerBackend {
	case infra.LedgerPostgres:
		if err := infra.RunMigrations(cfg.DSN(), logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		pool, err := infra.NewPostgresPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.Pool = pool
		logger.Info("connected to postgres")
	case infra.LedgerRedis:
		client, err := infra.NewRedisClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.Redis = client
		logger.Info("connected to redis")
	}
	return s, nil
}

// Ledger opens the named ledger on the configured backend. path is only used by the
// file backend.
func (s *Stores) Ledger(name, path string) (ledger.Ledger, error) {
	switch s.backend {
	case infra.LedgerPostgres:
		return ledger.NewPostgres(s.Pool, repository.NewLedgerEntryRepository(), name), nil
	case infra.LedgerRedis:
		return ledger.NewRedis(s.Redis, s.prefix, name), nil
	default:
		f, err := ledger.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("open %s ledger: %w", name, err)
		}
		s.files = append(s.files, f)
		s.logger.Info("ledger loaded", "ledger", name, "path", path, "entries", f.Len())
		return f, nil
	}
}

// HealthChecks returns a health check for each network store in use.
func (s *Stores) HealthChecks() map[string]handler.HealthCheck {
	return StoresHealth(s.Pool, s.Redis)
}

// StoresHealth builds health checks for the non-nil stores.
func StoresHealth(pool *pgxpool.Pool, client *redis.Client) map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{}
	if pool != nil {
		checks["postgres"] = func(ctx context.Context) error { return infra.HealthCheck(ctx, pool) }
	}
	if client != nil {
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	return checks
}

// Close releases every connection and open ledger file.
func (s *Stores) Close() {
	for _, f := range s.files {
		if err := f.Close(); err != nil {
			s.logger.Error("close ledger file", "error", err)
		}
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			s.logger.Error("close redis", "error", err)
		}
	}
}
