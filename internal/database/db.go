package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// DB is the shared pool used by the account queries. Set by ConnectDB.
var DB *pgxpool.Pool

// Connect opens a pool for dsn and pings it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return pool, nil
}

// ConnectDB connects, applies the schema and stores the pool in DB.
func ConnectDB(ctx context.Context, dsn string, logger logrus.FieldLogger) error {
	pool, err := Connect(ctx, dsn)
	if err != nil {
		return err
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return err
	}
	DB = pool
	cfg := pool.Config().ConnConfig
	logger.WithFields(logrus.Fields{
		"host":     cfg.Host,
		"database": cfg.Database,
	}).Info("connected to database")
	return nil
}
