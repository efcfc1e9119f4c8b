/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	mssql "github.com/microsoft/go-mssqldb"

	"pgedge-nla/internal/results"
)

// SQLExecutor runs statements through database/sql. It serves SQL Server
// via go-mssqldb; the driver is chosen by whoever opened db.
type SQLExecutor struct {
	db      *sql.DB
	dsn     string
	dialect string
}

// OpenSQLServer opens a SQL Server pool for dsn and checks connectivity
func OpenSQLServer(ctx context.Context, dsn string, pool Pool) (*SQLExecutor, error) {
	startTime := time.Now()
	if dsn == "" {
		return nil, fmt.Errorf("no SQL Server DSN configured")
	}

	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		LogConnection(dsn, time.Since(startTime), err)
		return nil, fmt.Errorf("unable to open SQL Server connection: %w", err)
	}
	applyPool(db, pool)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		LogConnection(dsn, time.Since(startTime), err)
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	LogConnection(dsn, time.Since(startTime), nil)
	return &SQLExecutor{db: db, dsn: dsn, dialect: DialectTSQL}, nil
}

// NewSQLExecutor wraps an open *sql.DB
func NewSQLExecutor(db *sql.DB, dialect string) *SQLExecutor {
	return &SQLExecutor{db: db, dialect: dialect}
}

func applyPool(db *sql.DB, pool Pool) {
	if pool.MaxConns > 0 {
		db.SetMaxOpenConns(pool.MaxConns)
	}
	if pool.MinConns > 0 {
		db.SetMaxIdleConns(pool.MinConns)
	}
	if pool.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(pool.MaxConnLifetime)
	}
	if pool.MaxConnIdleTime > 0 {
		db.SetConnMaxIdleTime(pool.MaxConnIdleTime)
	}
}

// Execute runs sql and returns the column names and row values as a
// results.Table
func (e *SQLExecutor) Execute(ctx context.Context, query string) (any, error) {
	startTime := time.Now()
	LogQueryTrace(query)

	table, err := e.query(ctx, query)
	rowCount := 0
	if table != nil {
		rowCount = len(table.Tuples)
	}
	LogQuery(query, time.Since(startTime), rowCount, err)
	if err != nil {
		return nil, err
	}
	return table, nil
}

func (e *SQLExecutor) query(ctx context.Context, query string) (*results.Table, error) {
	// go-mssqldb has no read-only transactions; rolling back undoes
	// anything the statement managed to change.
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // nothing to keep

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("error reading columns: %w", err)
	}

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("error reading column types: %w", err)
	}

	table := &results.Table{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("error reading row: %w", err)
		}
		for i, ct := range types {
			if ct.DatabaseTypeName() == "UNIQUEIDENTIFIER" {
				values[i] = uniqueIdentifier(values[i])
			}
		}
		table.Tuples = append(table.Tuples, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return table, nil
}

// uniqueIdentifier renders a UNIQUEIDENTIFIER value, which go-mssqldb
// returns in SQL Server's mixed-endian byte order.
func uniqueIdentifier(v any) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	var id mssql.UniqueIdentifier
	if err := id.Scan(b); err != nil {
		return v
	}
	return id.String()
}

// Ping checks connectivity
func (e *SQLExecutor) Ping(ctx context.Context) error {
	if err := e.db.PingContext(ctx); err != nil {
		return fmt.Errorf("unable to ping database: %w", err)
	}
	return nil
}

// Dialect returns the dialect the executor was opened for
func (e *SQLExecutor) Dialect() string {
	return e.dialect
}

// Close closes the pool
func (e *SQLExecutor) Close() error {
	return e.db.Close()
}
