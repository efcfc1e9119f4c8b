/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent - Database Logging
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package database

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

// LogLevel represents the logging verbosity level for database operations
type LogLevel int32

const (
	// LogLevelNone disables all database logging
	LogLevelNone LogLevel = iota
	// LogLevelInfo logs connections, queries and errors
	LogLevelInfo
	// LogLevelDebug adds pool configuration and statistics
	LogLevelDebug
	// LogLevelTrace adds full query text
	LogLevelTrace
)

// EnvLogLevel names the environment variable that sets the level
const EnvLogLevel = "PGEDGE_NLA_DB_LOG_LEVEL"

var (
	currentLevel atomic.Int32
	dbLogger     atomic.Pointer[log.Logger]
)

func init() {
	currentLevel.Store(int32(ParseLogLevel(os.Getenv(EnvLogLevel))))
	dbLogger.Store(log.New(os.Stderr, "[DATABASE] ", log.LstdFlags))
}

// ParseLogLevel converts none/info/debug/trace to a LogLevel. Unknown
// values disable logging.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return LogLevelInfo
	case "debug":
		return LogLevelDebug
	case "trace":
		return LogLevelTrace
	default:
		return LogLevelNone
	}
}

// SetLogLevel sets the global database log level
func SetLogLevel(level LogLevel) {
	currentLevel.Store(int32(level))
}

// GetLogLevel returns the current log level
func GetLogLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// SetLogOutput redirects database logging
func SetLogOutput(w io.Writer) {
	dbLogger.Store(log.New(w, "[DATABASE] ", log.LstdFlags))
}

func logf(level LogLevel, tag, format string, args ...interface{}) {
	if GetLogLevel() >= level {
		dbLogger.Load().Printf("["+tag+"] "+format, args...)
	}
}

// LogConnection logs a connection attempt with the password hidden
func LogConnection(connStr string, duration time.Duration, err error) {
	sanitized := sanitizeConnStr(connStr)
	if err != nil {
		logf(LogLevelInfo, "INFO", "Connection failed: connection=%s, duration=%s, error=%v",
			sanitized, duration, err)
	} else {
		logf(LogLevelInfo, "INFO", "Connection succeeded: connection=%s, duration=%s",
			sanitized, duration)
	}
}

// LogConnectionDetails logs pool configuration
func LogConnectionDetails(connStr string, poolConfig map[string]interface{}) {
	keys := make([]string, 0, len(poolConfig))
	for k := range poolConfig {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, poolConfig[k]))
	}
	logf(LogLevelDebug, "DEBUG", "Connection details: connection=%s, pool_config=%s",
		sanitizeConnStr(connStr), strings.Join(parts, " "))
}

// LogQuery logs a query execution
func LogQuery(query string, duration time.Duration, rowCount int, err error) {
	queryPreview := truncate(strings.TrimSpace(query), 100)
	if err != nil {
		logf(LogLevelInfo, "INFO", "Query failed: query=%s, duration=%s, error=%v",
			queryPreview, duration, err)
	} else {
		logf(LogLevelInfo, "INFO", "Query succeeded: query=%s, row_count=%d, duration=%s",
			queryPreview, rowCount, duration)
	}
}

// LogQueryTrace logs the full query text
func LogQueryTrace(query string) {
	logf(LogLevelTrace, "TRACE", "Query trace: query=%s", strings.TrimSpace(query))
}

// LogPoolStats logs connection pool statistics
func LogPoolStats(connStr string, acquiredConns, idleConns, maxConns int32) {
	logf(LogLevelDebug, "DEBUG", "Pool stats: connection=%s, acquired=%d, idle=%d, max=%d",
		sanitizeConnStr(connStr), acquiredConns, idleConns, maxConns)
}

// sanitizeConnStr hides the password in URL and SQL Server style
// connection strings
func sanitizeConnStr(connStr string) string {
	schemeIdx := strings.Index(connStr, "://")
	if schemeIdx == -1 {
		return sanitizeKeyValues(connStr)
	}

	scheme := connStr[:schemeIdx+3]
	rest := connStr[schemeIdx+3:]

	// The last @ before the host separates credentials, so passwords
	// containing @ survive
	end := len(rest)
	if i := strings.IndexAny(rest, "/?"); i != -1 {
		end = i
	}
	hostSepIdx := strings.LastIndex(rest[:end], "@")
	if hostSepIdx == -1 {
		return scheme + sanitizeQuery(rest)
	}

	credentials := rest[:hostSepIdx]
	hostAndRest := sanitizeQuery(rest[hostSepIdx+1:])

	colonIdx := strings.Index(credentials, ":")
	if colonIdx == -1 {
		return scheme + credentials + "@" + hostAndRest
	}
	return scheme + credentials[:colonIdx] + ":***@" + hostAndRest
}

// sanitizeQuery masks password=... URL parameters
func sanitizeQuery(s string) string {
	q := strings.Index(s, "?")
	if q == -1 {
		return s
	}
	params := strings.Split(s[q+1:], "&")
	for i, p := range params {
		if k, _, ok := strings.Cut(p, "="); ok && isPasswordKey(k) {
			params[i] = k + "=***"
		}
	}
	return s[:q+1] + strings.Join(params, "&")
}

// sanitizeKeyValues masks password entries in key=value;key=value or
// key=value key=value strings
func sanitizeKeyValues(s string) string {
	sep := " "
	if strings.Contains(s, ";") {
		sep = ";"
	}
	parts := strings.Split(s, sep)
	for i, p := range parts {
		if k, _, ok := strings.Cut(p, "="); ok && isPasswordKey(k) {
			parts[i] = k + "=***"
		}
	}
	return strings.Join(parts, sep)
}

func isPasswordKey(k string) bool {
	switch strings.ToLower(strings.TrimSpace(k)) {
	case "password", "pwd":
		return true
	}
	return false
}

// truncate truncates a string to maxLen characters, adding "..." if truncated
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
