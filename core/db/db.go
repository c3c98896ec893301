package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxConns = 10
	defaultMinConns = 2
)

// DB owns the pgx pool shared by the message stores.
type DB struct {
	pool *pgxpool.Pool
}

type Config struct {
	DSN string

	// Behind the Supabase pooler this can stay low.
	MaxConns int32
	MinConns int32

	// SimpleProtocol disables prepared statements, which transaction-mode
	// poolers (PgBouncer, Supabase on :6543) do not support.
	SimpleProtocol bool

	// MaxConnIdleTime closes pooled connections idle this long; zero keeps pgx's default.
	MaxConnIdleTime time.Duration

	// AutoMigrate applies embedded migrations on startup.
	AutoMigrate bool
}

// PoolConfig turns cfg into a pgx pool config without connecting.
func PoolConfig(cfg Config) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	poolCfg.MaxConns = defaultMaxConns
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MinConns = defaultMinConns
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if poolCfg.MinConns > poolCfg.MaxConns {
		poolCfg.MinConns = poolCfg.MaxConns
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.SimpleProtocol {
		poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}
	return poolCfg, nil
}

// New opens the pool and pings it once.
func New(ctx context.Context, cfg Config) (*DB, error) {
	poolCfg, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

// Pool exposes the underlying pool to the stores.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}
