package store

import (
	"context"
	"fmt"
	"time"

	chx "vocabot/internal/platform/store/ch"
	"vocabot/internal/platform/store/pg"
	"vocabot/internal/platform/store/rds"
	"vocabot/internal/platform/store/sqlite"

	"github.com/redis/go-redis/v9"
)

// openSQL opens the configured relational backend and wraps it with an adapter
func openSQL(ctx context.Context, cfg SQLConfig, s *Store) (TxRunner, error) {
	var tracer QueryTracer
	if cfg.LogSQL {
		tracer = Tracer(s.Log)
	}
	switch cfg.Driver {
	case DriverSQLite:
		db, err := sqlite.Open(ctx, sqlite.Config{DSN: cfg.DSN, MaxConns: int(cfg.MaxConns)})
		if err != nil {
			return nil, err
		}
		return newSQLiteAdapter(db, tracer, cfg.SlowQueryMs), nil
	case DriverPG:
		return openPG(ctx, cfg, tracer)
	default:
		return nil, fmt.Errorf("store: unknown sql driver %q", cfg.Driver)
	}
}

// openPG opens a pool and only publishes the adapter once a ping succeeds.
// Pings retry with capped exponential backoff so the bot can start alongside
// its database container.
func openPG(ctx context.Context, cfg SQLConfig, tracer QueryTracer) (TxRunner, error) {
	p, err := pg.Open(ctx, pg.Config{URL: cfg.DSN, MaxConns: cfg.MaxConns}, nil)
	if err != nil {
		return nil, err
	}

	attempts := cfg.ConnectRetries
	if attempts <= 0 {
		attempts = 20
	}
	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 3 * time.Second
	}
	const (
		backoffStart   = 150 * time.Millisecond
		backoffCeiling = 2 * time.Second
	)

	var lastErr error
	backoff := backoffStart
	for i := 0; i < attempts; i++ {
		toCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		lastErr = p.Pool.Ping(toCtx)
		cancel()
		if lastErr == nil {
			return newPGAdapter(p, tracer, cfg.SlowQueryMs), nil
		}
		select {
		case <-ctx.Done():
			p.Close()
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, backoffCeiling)
	}

	p.Close()
	return nil, fmt.Errorf("postgres ping failed after %d attempts: %w", attempts, lastErr)
}

func openCH(ctx context.Context, cfg Config) (Clickhouse, error) {
	c, err := chx.Open(ctx, chx.Config{DSN: cfg.CH.DSN, Role: cfg.CH.Role, AppName: cfg.AppName})
	if err != nil {
		return nil, err
	}
	return newCHAdapter(c), nil
}

func openRedis(ctx context.Context, cfg RedisConfig) (redis.UniversalClient, error) {
	return rds.Open(ctx, rds.Config{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
}
