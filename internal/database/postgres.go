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
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pgedge-nla/internal/results"
)

// ApplicationName is reported to PostgreSQL in pg_stat_activity
const ApplicationName = "pgEdge Natural Language Agent"

// PostgresConfig locates a PostgreSQL database. URL wins over the
// individual fields.
type PostgresConfig struct {
	URL      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

// ConnString returns a postgres:// URL for the configuration
func (c PostgresConfig) ConnString() (string, error) {
	if c.URL != "" {
		return c.URL, nil
	}
	if c.Host == "" {
		return "", fmt.Errorf("no PostgreSQL URL or host configured")
	}

	port := c.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(port)),
		Path:   "/" + c.Database,
	}
	if c.User != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.User, c.Password)
		} else {
			u.User = url.User(c.User)
		}
	}
	if c.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", c.SSLMode)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// PostgresExecutor runs statements on a pgx pool whose sessions are
// read-only
type PostgresExecutor struct {
	pool    *pgxpool.Pool
	connStr string
}

// NewPostgresExecutor creates the pool and checks connectivity
func NewPostgresExecutor(ctx context.Context, cfg PostgresConfig, pool Pool) (*PostgresExecutor, error) {
	startTime := time.Now()

	connStr, err := cfg.ConnString()
	if err != nil {
		return nil, err
	}

	poolConfig, err := PoolConfig(connStr, pool)
	if err != nil {
		return nil, err
	}

	p, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		LogConnection(connStr, time.Since(startTime), err)
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := p.Ping(ctx); err != nil {
		p.Close()
		LogConnection(connStr, time.Since(startTime), err)
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	LogConnection(connStr, time.Since(startTime), nil)
	return &PostgresExecutor{pool: p, connStr: connStr}, nil
}

// PoolConfig parses connStr and applies pool sizing, the application
// name and read-only sessions
func PoolConfig(connStr string, pool Pool) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	if pool.MaxConns > 0 {
		poolConfig.MaxConns = int32(pool.MaxConns)
	}
	if pool.MinConns > 0 {
		poolConfig.MinConns = int32(pool.MinConns)
	}
	if poolConfig.MinConns > poolConfig.MaxConns {
		poolConfig.MinConns = poolConfig.MaxConns
	}
	if pool.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = pool.MaxConnLifetime
	}
	if pool.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = pool.MaxConnIdleTime
	}
	if pool.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = pool.HealthCheckPeriod
	}

	params := poolConfig.ConnConfig.RuntimeParams
	if params == nil {
		params = make(map[string]string)
		poolConfig.ConnConfig.RuntimeParams = params
	}
	if _, ok := params["application_name"]; !ok {
		params["application_name"] = ApplicationName
	}
	params["default_transaction_read_only"] = "on"

	if GetLogLevel() >= LogLevelDebug {
		LogConnectionDetails(connStr, map[string]interface{}{
			"max_conns":           poolConfig.MaxConns,
			"min_conns":           poolConfig.MinConns,
			"max_conn_lifetime":   poolConfig.MaxConnLifetime,
			"max_conn_idle_time":  poolConfig.MaxConnIdleTime,
			"health_check_period": poolConfig.HealthCheckPeriod,
		})
	}
	return poolConfig, nil
}

// Execute runs sql inside a read-only transaction and returns the
// column names and row values as a results.Table
func (e *PostgresExecutor) Execute(ctx context.Context, sql string) (any, error) {
	startTime := time.Now()
	LogQueryTrace(sql)

	table, err := e.query(ctx, sql)
	rowCount := 0
	if table != nil {
		rowCount = len(table.Tuples)
	}
	LogQuery(sql, time.Since(startTime), rowCount, err)
	if err != nil {
		return nil, err
	}
	return table, nil
}

func (e *PostgresExecutor) query(ctx context.Context, sql string) (*results.Table, error) {
	tx, err := e.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read-only transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only, nothing to keep

	rows, err := tx.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescriptions := rows.FieldDescriptions()
	table := &results.Table{Columns: make([]string, len(fieldDescriptions))}
	for i, fd := range fieldDescriptions {
		table.Columns[i] = fd.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("error reading row: %w", err)
		}
		table.Tuples = append(table.Tuples, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return table, nil
}

// Ping checks connectivity and logs pool statistics
func (e *PostgresExecutor) Ping(ctx context.Context) error {
	if err := e.pool.Ping(ctx); err != nil {
		return fmt.Errorf("unable to ping database: %w", err)
	}
	stat := e.pool.Stat()
	LogPoolStats(e.connStr, stat.AcquiredConns(), stat.IdleConns(), stat.MaxConns())
	return nil
}

// Dialect returns DialectPostgres
func (e *PostgresExecutor) Dialect() string {
	return DialectPostgres
}

// Close closes the pool
func (e *PostgresExecutor) Close() error {
	e.pool.Close()
	return nil
}
