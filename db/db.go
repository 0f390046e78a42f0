// Package db owns the persisted state of inboxd: the emails table and the
// services table. No other package mutates either outside this one.
package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inboxd/inboxd/config"
	"github.com/inboxd/inboxd/logger"
)

//go:embed schema.sql
var schema string

type Database struct {
	Pool *pgxpool.Pool
}

// queryTracer logs every statement when database.log_queries is enabled.
type queryTracer struct{}

func (t *queryTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	logger.Debug("DB: query start", "sql", data.SQL, "args", data.Args)
	return ctx
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	if data.Err != nil {
		logger.Debug("DB: query end", "command", data.CommandTag.String(), "error", data.Err)
	}
}

// NewDatabase opens a connection pool from configuration, verifies
// connectivity and applies the embedded schema.
func NewDatabase(ctx context.Context, dbConfig *config.DatabaseConfig) (*Database, error) {
	port, err := dbConfig.GetPort()
	if err != nil {
		return nil, err
	}

	sslMode := "disable"
	if dbConfig.TLSMode {
		sslMode = "require"
	}

	connString := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbConfig.User, dbConfig.Password, dbConfig.Host, port, dbConfig.Name, sslMode)

	logger.Info("DB: connecting to database",
		"host", dbConfig.Host, "port", port, "name", dbConfig.Name, "sslmode", sslMode)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	if dbConfig.LogQueries {
		poolConfig.ConnConfig.Tracer = &queryTracer{}
	}
	if dbConfig.MaxConns > 0 {
		poolConfig.MaxConns = int32(dbConfig.MaxConns)
	}
	if dbConfig.MinConns > 0 {
		poolConfig.MinConns = int32(dbConfig.MinConns)
	}
	if lifetime, err := dbConfig.GetMaxConnLifetime(); err == nil {
		poolConfig.MaxConnLifetime = lifetime
	}
	if idle, err := dbConfig.GetMaxConnIdleTime(); err == nil {
		poolConfig.MaxConnIdleTime = idle
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}

	db := &Database{Pool: pool}

	if err := db.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return db, nil
}

func (db *Database) migrate(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, schema)
	return err
}

func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Ping verifies database connectivity with a bounded timeout.
func (db *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.Pool.Ping(ctx)
}
