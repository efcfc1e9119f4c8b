/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent - Query Executors
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package database runs generated read-only statements against
// PostgreSQL or SQL Server.
package database

import (
	"context"
	"fmt"
	"time"
)

// Dialects understood by Open
const (
	DialectPostgres = "postgres"
	DialectTSQL     = "tsql"
)

// Executor runs read-only statements and returns a results.Table
type Executor interface {
	Execute(ctx context.Context, sql string) (any, error)
	Ping(ctx context.Context) error
	Dialect() string
	Close() error
}

// Pool sizing shared by both executors
type Pool struct {
	MaxConns          int
	MinConns          int
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// DefaultPool matches the service defaults: 5 to 15 connections recycled
// hourly and health-checked every minute
func DefaultPool() Pool {
	return Pool{
		MaxConns:          15,
		MinConns:          5,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,
	}
}

// Config selects and configures an executor
type Config struct {
	Dialect      string
	Postgres     PostgresConfig
	SQLServerDSN string
	Pool         Pool
}

// Open connects the executor for cfg.Dialect
func Open(ctx context.Context, cfg Config) (Executor, error) {
	switch cfg.Dialect {
	case DialectPostgres, "":
		return NewPostgresExecutor(ctx, cfg.Postgres, cfg.Pool)
	case DialectTSQL:
		return OpenSQLServer(ctx, cfg.SQLServerDSN, cfg.Pool)
	default:
		return nil, fmt.Errorf("unsupported database dialect: %s", cfg.Dialect)
	}
}
