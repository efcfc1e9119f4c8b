/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pgedge-nla/internal/logging"
)

// Dialect names accepted in database.dialect
const (
	DialectPostgres = "postgres"
	DialectTSQL     = "tsql"
)

// ErrNoDatabase is returned when neither a PostgreSQL nor a SQL Server
// connection has been configured.
var ErrNoDatabase = errors.New("no database configured: set DATABASE_URL (PostgreSQL) or SQLSERVER_DSN (SQL Server)")

// Config represents the complete agent configuration
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	LLM         LLMConfig         `yaml:"llm"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	SchemaIndex SchemaIndexConfig `yaml:"schema_index"`
	History     HistoryConfig     `yaml:"history"`

	// Log level for the structured logger (debug, info, warn, error)
	LogLevel string `yaml:"log_level"`
}

// HTTPConfig contains HTTP/HTTPS server settings
type HTTPConfig struct {
	Address        string     `yaml:"address"`
	CORSOrigins    []string   `yaml:"cors_origins"`
	RequestTimeout string     `yaml:"request_timeout"`
	TLS            TLSConfig  `yaml:"tls"`
	Auth           AuthConfig `yaml:"auth"`
}

// TLSConfig contains TLS/HTTPS settings
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// AuthConfig contains bearer token settings. Tokens are stored as bcrypt
// hashes, either inline or in a token file that is watched for changes.
type AuthConfig struct {
	Enabled     bool     `yaml:"enabled"`
	TokenHashes []string `yaml:"token_hashes"`
	TokenFile   string   `yaml:"token_file"`
}

// DatabaseConfig contains the connection settings for the queried database
type DatabaseConfig struct {
	Dialect string `yaml:"dialect"` // postgres or tsql; empty means resolve from what is set

	// PostgreSQL
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`

	// SQL Server
	SQLServerDSN string `yaml:"sqlserver_dsn"`

	// Pool settings
	PoolMaxConns          int    `yaml:"pool_max_conns"`
	PoolMinConns          int    `yaml:"pool_min_conns"`
	PoolMaxConnLifetime   string `yaml:"pool_max_conn_lifetime"`
	PoolMaxConnIdleTime   string `yaml:"pool_max_conn_idle_time"`
	PoolHealthCheckPeriod string `yaml:"pool_health_check_period"`
}

// LLMConfig contains language model settings
type LLMConfig struct {
	Provider string `yaml:"provider"` // anthropic, openai or ollama
	Model    string `yaml:"model"`

	AnthropicAPIKey     string `yaml:"anthropic_api_key"`
	AnthropicAPIKeyFile string `yaml:"anthropic_api_key_file"`
	OpenAIAPIKey        string `yaml:"openai_api_key"`
	OpenAIAPIKeyFile    string `yaml:"openai_api_key_file"`
	OllamaURL           string `yaml:"ollama_url"`

	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"`
}

// EmbeddingConfig contains embedding provider settings for the schema index
type EmbeddingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider"` // ollama, openai or voyage
	Model    string `yaml:"model"`

	VoyageAPIKey     string `yaml:"voyage_api_key"`
	VoyageAPIKeyFile string `yaml:"voyage_api_key_file"`
	OpenAIAPIKey     string `yaml:"openai_api_key"`
	OpenAIAPIKeyFile string `yaml:"openai_api_key_file"`
	OllamaURL        string `yaml:"ollama_url"`
}

// SchemaIndexConfig contains schema retrieval settings
type SchemaIndexConfig struct {
	Path     string `yaml:"path"`      // SQLite file holding the index
	DocsPath string `yaml:"docs_path"` // file or directory of schema docs; empty uses the built-in snippets
	TopK     int    `yaml:"top_k"`
	Watch    bool   `yaml:"watch"`
}

// HistoryConfig contains conversation history settings
type HistoryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"` // data directory for conversations.db
	MaxMessages int    `yaml:"max_messages"`
}

// CLIFlags represents command line flag values; the *Set fields record
// whether a flag was given so that it overrides file and environment values.
type CLIFlags struct {
	ConfigFileSet bool
	ConfigFile    string

	HTTPAddr    string
	HTTPAddrSet bool

	TLSEnabled    bool
	TLSEnabledSet bool
	TLSCertFile   string
	TLSCertSet    bool
	TLSKeyFile    string
	TLSKeySet     bool

	AuthEnabled    bool
	AuthEnabledSet bool
	AuthTokenFile  string
	AuthTokenSet   bool

	DBDialect    string
	DBDialectSet bool
	DBURL        string
	DBURLSet     bool
	SQLServerDSN string
	SQLServerSet bool

	LLMProvider    string
	LLMProviderSet bool
	LLMModel       string
	LLMModelSet    bool

	DocsPath    string
	DocsPathSet bool

	LogLevel    string
	LogLevelSet bool
}

// LoadConfig loads configuration with proper priority:
// command line flags > environment variables > config file > defaults
func LoadConfig(configPath string, cliFlags CLIFlags) (*Config, error) {
	cfg := defaultConfig()

	if configPath != "" {
		if err := loadConfigFile(configPath, cfg); err != nil {
			// An explicitly named file must exist; the default one is optional
			if cliFlags.ConfigFileSet || !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		}
	}

	applyEnvironmentVariables(cfg)
	applyCLIFlags(cfg, cliFlags)

	if err := loadKeyFiles(cfg); err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:        ":8080",
			CORSOrigins:    []string{"http://localhost:5173", "http://localhost:3000"},
			RequestTimeout: "120s",
		},
		Database: DatabaseConfig{
			Port:                  5432,
			SSLMode:               "prefer",
			PoolMaxConns:          15,
			PoolMinConns:          5,
			PoolMaxConnLifetime:   "1h",
			PoolMaxConnIdleTime:   "30m",
			PoolHealthCheckPeriod: "1m",
		},
		LLM: LLMConfig{
			Provider:    "anthropic",
			MaxTokens:   1024,
			Temperature: 0,
			Timeout:     "60s",
		},
		Embedding: EmbeddingConfig{
			Provider: "ollama",
		},
		SchemaIndex: SchemaIndexConfig{
			Path: "schema-index.db",
			TopK: 4,
		},
		History: HistoryConfig{
			Path:        ".",
			MaxMessages: 6,
		},
		LogLevel: "info",
	}
}

// loadConfigFile decodes the YAML file over cfg; keys absent from the file
// keep their current values.
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// setStringFromEnv sets a string config value from an environment variable if it exists
func setStringFromEnv(dest *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dest = val
	}
}

// setStringFromEnvWithFallback tries each key in order and uses the first non-empty value
func setStringFromEnvWithFallback(dest *string, keys ...string) {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			*dest = val
			return
		}
	}
}

func setBoolFromEnv(dest *bool, key string) {
	if val := os.Getenv(key); val != "" {
		*dest = val == "true" || val == "1" || val == "yes"
	}
}

func setIntFromEnv(dest *int, keys ...string) {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			if n, err := strconv.Atoi(val); err == nil {
				*dest = n
				return
			}
		}
	}
}

func setFloatFromEnv(dest *float64, key string) {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dest = f
		}
	}
}

func setListFromEnv(dest *[]string, key string) {
	val := os.Getenv(key)
	if val == "" {
		return
	}
	var items []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*dest = items
}

func applyEnvironmentVariables(cfg *Config) {
	// HTTP
	setStringFromEnv(&cfg.HTTP.Address, "PGEDGE_NLA_HTTP_ADDRESS")
	setListFromEnv(&cfg.HTTP.CORSOrigins, "PGEDGE_NLA_CORS_ORIGINS")
	setStringFromEnv(&cfg.HTTP.RequestTimeout, "PGEDGE_NLA_REQUEST_TIMEOUT")
	setBoolFromEnv(&cfg.HTTP.TLS.Enabled, "PGEDGE_NLA_TLS_ENABLED")
	setStringFromEnv(&cfg.HTTP.TLS.CertFile, "PGEDGE_NLA_TLS_CERT_FILE")
	setStringFromEnv(&cfg.HTTP.TLS.KeyFile, "PGEDGE_NLA_TLS_KEY_FILE")
	setBoolFromEnv(&cfg.HTTP.Auth.Enabled, "PGEDGE_NLA_AUTH_ENABLED")
	setListFromEnv(&cfg.HTTP.Auth.TokenHashes, "PGEDGE_NLA_AUTH_TOKEN_HASHES")
	setStringFromEnv(&cfg.HTTP.Auth.TokenFile, "PGEDGE_NLA_AUTH_TOKEN_FILE")

	// Database
	setStringFromEnv(&cfg.Database.Dialect, "PGEDGE_NLA_DB_DIALECT")
	setStringFromEnvWithFallback(&cfg.Database.URL, "PGEDGE_NLA_DATABASE_URL", "DATABASE_URL")
	setStringFromEnvWithFallback(&cfg.Database.Host, "PGEDGE_NLA_DB_HOST", "PGHOST")
	setIntFromEnv(&cfg.Database.Port, "PGEDGE_NLA_DB_PORT", "PGPORT")
	setStringFromEnvWithFallback(&cfg.Database.Database, "PGEDGE_NLA_DB_NAME", "PGDATABASE")
	setStringFromEnvWithFallback(&cfg.Database.User, "PGEDGE_NLA_DB_USER", "PGUSER")
	setStringFromEnvWithFallback(&cfg.Database.Password, "PGEDGE_NLA_DB_PASSWORD", "PGPASSWORD")
	setStringFromEnvWithFallback(&cfg.Database.SSLMode, "PGEDGE_NLA_DB_SSLMODE", "PGSSLMODE")
	setStringFromEnvWithFallback(&cfg.Database.SQLServerDSN, "PGEDGE_NLA_SQLSERVER_DSN", "SQLSERVER_DSN")
	if cfg.Database.SQLServerDSN == "" {
		if odbc := os.Getenv("ODBC_STR"); odbc != "" {
			cfg.Database.SQLServerDSN = ODBCToDSN(odbc)
		}
	}
	setIntFromEnv(&cfg.Database.PoolMaxConns, "PGEDGE_NLA_DB_POOL_MAX_CONNS")
	setIntFromEnv(&cfg.Database.PoolMinConns, "PGEDGE_NLA_DB_POOL_MIN_CONNS")
	setStringFromEnv(&cfg.Database.PoolMaxConnLifetime, "PGEDGE_NLA_DB_POOL_MAX_CONN_LIFETIME")
	setStringFromEnv(&cfg.Database.PoolMaxConnIdleTime, "PGEDGE_NLA_DB_POOL_MAX_CONN_IDLE_TIME")
	setStringFromEnv(&cfg.Database.PoolHealthCheckPeriod, "PGEDGE_NLA_DB_POOL_HEALTH_CHECK_PERIOD")

	// LLM
	setStringFromEnv(&cfg.LLM.Provider, "PGEDGE_NLA_LLM_PROVIDER")
	setStringFromEnv(&cfg.LLM.Model, "PGEDGE_NLA_LLM_MODEL")
	setStringFromEnvWithFallback(&cfg.LLM.AnthropicAPIKey, "PGEDGE_NLA_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	setStringFromEnvWithFallback(&cfg.LLM.OpenAIAPIKey, "PGEDGE_NLA_OPENAI_API_KEY", "OPENAI_API_KEY")
	setStringFromEnvWithFallback(&cfg.LLM.OllamaURL, "PGEDGE_NLA_OLLAMA_URL", "OLLAMA_BASE_URL")
	setIntFromEnv(&cfg.LLM.MaxTokens, "PGEDGE_NLA_LLM_MAX_TOKENS")
	setFloatFromEnv(&cfg.LLM.Temperature, "PGEDGE_NLA_LLM_TEMPERATURE")
	setStringFromEnv(&cfg.LLM.Timeout, "PGEDGE_NLA_LLM_TIMEOUT")

	// Embedding
	setBoolFromEnv(&cfg.Embedding.Enabled, "PGEDGE_NLA_EMBEDDING_ENABLED")
	setStringFromEnv(&cfg.Embedding.Provider, "PGEDGE_NLA_EMBEDDING_PROVIDER")
	setStringFromEnv(&cfg.Embedding.Model, "PGEDGE_NLA_EMBEDDING_MODEL")
	setStringFromEnvWithFallback(&cfg.Embedding.VoyageAPIKey, "PGEDGE_NLA_VOYAGE_API_KEY", "VOYAGE_API_KEY")
	setStringFromEnvWithFallback(&cfg.Embedding.OpenAIAPIKey, "PGEDGE_NLA_OPENAI_API_KEY", "OPENAI_API_KEY")
	setStringFromEnvWithFallback(&cfg.Embedding.OllamaURL, "PGEDGE_NLA_OLLAMA_URL", "OLLAMA_BASE_URL")

	// Schema index
	setStringFromEnv(&cfg.SchemaIndex.Path, "PGEDGE_NLA_INDEX_PATH")
	setStringFromEnv(&cfg.SchemaIndex.DocsPath, "PGEDGE_NLA_DOCS_PATH")
	setIntFromEnv(&cfg.SchemaIndex.TopK, "PGEDGE_NLA_INDEX_TOP_K")
	setBoolFromEnv(&cfg.SchemaIndex.Watch, "PGEDGE_NLA_INDEX_WATCH")

	// History
	setBoolFromEnv(&cfg.History.Enabled, "PGEDGE_NLA_HISTORY_ENABLED")
	setStringFromEnv(&cfg.History.Path, "PGEDGE_NLA_HISTORY_PATH")
	setIntFromEnv(&cfg.History.MaxMessages, "PGEDGE_NLA_HISTORY_MAX_MESSAGES")

	setStringFromEnv(&cfg.LogLevel, "PGEDGE_NLA_LOG_LEVEL")
}

func applyCLIFlags(cfg *Config, flags CLIFlags) {
	if flags.HTTPAddrSet {
		cfg.HTTP.Address = flags.HTTPAddr
	}

	// TLS
	if flags.TLSEnabledSet {
		cfg.HTTP.TLS.Enabled = flags.TLSEnabled
	}
	if flags.TLSCertSet {
		cfg.HTTP.TLS.CertFile = flags.TLSCertFile
	}
	if flags.TLSKeySet {
		cfg.HTTP.TLS.KeyFile = flags.TLSKeyFile
	}

	// Auth
	if flags.AuthEnabledSet {
		cfg.HTTP.Auth.Enabled = flags.AuthEnabled
	}
	if flags.AuthTokenSet {
		cfg.HTTP.Auth.TokenFile = flags.AuthTokenFile
	}

	// Database
	if flags.DBDialectSet {
		cfg.Database.Dialect = flags.DBDialect
	}
	if flags.DBURLSet {
		cfg.Database.URL = flags.DBURL
	}
	if flags.SQLServerSet {
		cfg.Database.SQLServerDSN = flags.SQLServerDSN
	}

	// LLM
	if flags.LLMProviderSet {
		cfg.LLM.Provider = flags.LLMProvider
	}
	if flags.LLMModelSet {
		cfg.LLM.Model = flags.LLMModel
	}

	if flags.DocsPathSet {
		cfg.SchemaIndex.DocsPath = flags.DocsPath
	}
	if flags.LogLevelSet {
		cfg.LogLevel = flags.LogLevel
	}
}

// loadKeyFiles fills API keys that were not given directly from their key files
func loadKeyFiles(cfg *Config) error {
	pairs := []struct {
		dest *string
		file string
	}{
		{&cfg.LLM.AnthropicAPIKey, cfg.LLM.AnthropicAPIKeyFile},
		{&cfg.LLM.OpenAIAPIKey, cfg.LLM.OpenAIAPIKeyFile},
		{&cfg.Embedding.VoyageAPIKey, cfg.Embedding.VoyageAPIKeyFile},
		{&cfg.Embedding.OpenAIAPIKey, cfg.Embedding.OpenAIAPIKeyFile},
	}
	for _, p := range pairs {
		if *p.dest != "" || p.file == "" {
			continue
		}
		key, err := readAPIKeyFromFile(p.file)
		if err != nil {
			return err
		}
		*p.dest = key
	}
	return nil
}

// validateConfig checks the merged configuration. The database section is
// not checked here; commands that need it call ResolveDialect.
func validateConfig(cfg *Config) error {
	if cfg.HTTP.TLS.Enabled {
		if cfg.HTTP.TLS.CertFile == "" {
			return fmt.Errorf("TLS cert file is required when HTTPS is enabled")
		}
		if cfg.HTTP.TLS.KeyFile == "" {
			return fmt.Errorf("TLS key file is required when HTTPS is enabled")
		}
	}

	if cfg.HTTP.Auth.Enabled && len(cfg.HTTP.Auth.TokenHashes) == 0 && cfg.HTTP.Auth.TokenFile == "" {
		return fmt.Errorf("authentication is enabled but no token hashes or token file are configured")
	}

	switch cfg.LLM.Provider {
	case "anthropic":
		if cfg.LLM.AnthropicAPIKey == "" {
			return fmt.Errorf("llm.anthropic_api_key is required for the anthropic provider (set ANTHROPIC_API_KEY)")
		}
	case "openai":
		if cfg.LLM.OpenAIAPIKey == "" {
			return fmt.Errorf("llm.openai_api_key is required for the openai provider (set OPENAI_API_KEY)")
		}
	case "ollama":
	default:
		return fmt.Errorf("invalid llm provider %q (must be anthropic, openai or ollama)", cfg.LLM.Provider)
	}
	if cfg.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive")
	}

	if cfg.Embedding.Enabled {
		switch cfg.Embedding.Provider {
		case "voyage":
			if cfg.Embedding.VoyageAPIKey == "" {
				return fmt.Errorf("embedding.voyage_api_key is required for the voyage provider (set VOYAGE_API_KEY)")
			}
		case "openai":
			if cfg.Embedding.OpenAIAPIKey == "" {
				return fmt.Errorf("embedding.openai_api_key is required for the openai provider (set OPENAI_API_KEY)")
			}
		case "ollama":
		default:
			return fmt.Errorf("invalid embedding provider %q (must be ollama, openai or voyage)", cfg.Embedding.Provider)
		}
	}

	if cfg.Database.Dialect != "" && cfg.Database.Dialect != DialectPostgres && cfg.Database.Dialect != DialectTSQL {
		return fmt.Errorf("invalid database dialect %q (must be postgres or tsql)", cfg.Database.Dialect)
	}
	if cfg.Database.PoolMaxConns <= 0 {
		return fmt.Errorf("database.pool_max_conns must be positive")
	}

	if cfg.SchemaIndex.TopK <= 0 {
		return fmt.Errorf("schema_index.top_k must be positive")
	}
	if cfg.History.MaxMessages <= 0 {
		return fmt.Errorf("history.max_messages must be positive")
	}

	durations := map[string]string{
		"http.request_timeout":              cfg.HTTP.RequestTimeout,
		"llm.timeout":                       cfg.LLM.Timeout,
		"database.pool_max_conn_lifetime":   cfg.Database.PoolMaxConnLifetime,
		"database.pool_max_conn_idle_time":  cfg.Database.PoolMaxConnIdleTime,
		"database.pool_health_check_period": cfg.Database.PoolHealthCheckPeriod,
	}
	for name, value := range durations {
		if _, err := parseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if cfg.LogLevel != "" {
		if _, ok := logging.ParseLevel(cfg.LogLevel); !ok {
			return fmt.Errorf("invalid log_level %q (must be debug, info, warn or error)", cfg.LogLevel)
		}
	}

	return nil
}

// ResolveDialect reports which database the agent talks to. An explicit
// dialect must have its connection settings present; otherwise PostgreSQL
// wins when a URL or host is set, then SQL Server when a DSN is set.
func (cfg *DatabaseConfig) ResolveDialect() (string, error) {
	hasPostgres := cfg.URL != "" || cfg.Host != ""
	hasSQLServer := cfg.SQLServerDSN != ""

	switch cfg.Dialect {
	case DialectPostgres:
		if !hasPostgres {
			return "", fmt.Errorf("%w: dialect postgres needs database.url or database.host", ErrNoDatabase)
		}
		return DialectPostgres, nil
	case DialectTSQL:
		if !hasSQLServer {
			return "", fmt.Errorf("%w: dialect tsql needs database.sqlserver_dsn", ErrNoDatabase)
		}
		return DialectTSQL, nil
	}

	if hasPostgres {
		return DialectPostgres, nil
	}
	if hasSQLServer {
		return DialectTSQL, nil
	}
	return "", ErrNoDatabase
}

// MaxConnLifetime returns the parsed pool_max_conn_lifetime
func (cfg *DatabaseConfig) MaxConnLifetime() time.Duration {
	d, _ := parseDuration(cfg.PoolMaxConnLifetime)
	return d
}

// MaxConnIdleTime returns the parsed pool_max_conn_idle_time
func (cfg *DatabaseConfig) MaxConnIdleTime() time.Duration {
	d, _ := parseDuration(cfg.PoolMaxConnIdleTime)
	return d
}

// HealthCheckPeriod returns the parsed pool_health_check_period
func (cfg *DatabaseConfig) HealthCheckPeriod() time.Duration {
	d, _ := parseDuration(cfg.PoolHealthCheckPeriod)
	return d
}

// TimeoutDuration returns the parsed llm.timeout
func (cfg *LLMConfig) TimeoutDuration() time.Duration {
	d, _ := parseDuration(cfg.Timeout)
	return d
}

// RequestTimeoutDuration returns the parsed http.request_timeout
func (cfg *HTTPConfig) RequestTimeoutDuration() time.Duration {
	d, _ := parseDuration(cfg.RequestTimeout)
	return d
}

// parseDuration accepts Go duration strings; empty means zero
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid duration %q: must not be negative", s)
	}
	return d, nil
}

// ODBCToDSN converts an ODBC connection string (DRIVER=...;SERVER=...;UID=...)
// into the go-mssqldb ODBC form by dropping the DRIVER key and adding the
// odbc: prefix. Strings already in URL or odbc: form are returned unchanged.
func ODBCToDSN(odbc string) string {
	odbc = strings.TrimSpace(odbc)
	lower := strings.ToLower(odbc)
	if strings.HasPrefix(lower, "sqlserver://") || strings.HasPrefix(lower, "odbc:") {
		return odbc
	}

	var parts []string
	for _, part := range strings.Split(odbc, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, _, _ := strings.Cut(part, "=")
		if strings.EqualFold(strings.TrimSpace(key), "driver") {
			continue
		}
		parts = append(parts, part)
	}
	return "odbc:" + strings.Join(parts, ";")
}

// readAPIKeyFromFile reads an API key from a file, expanding a leading ~.
// A missing file yields an empty key.
func readAPIKeyFromFile(filePath string) (string, error) {
	if filePath == "" {
		return "", nil
	}

	if filePath[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(homeDir, filePath[1:])
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return "", nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read API key file %s: %w", filePath, err)
	}

	return strings.TrimSpace(string(data)), nil
}

// GetDefaultConfigPath returns the default config file path, preferring the
// system-wide location and otherwise the directory of the binary.
func GetDefaultConfigPath(binaryPath string) string {
	systemPath := "/etc/pgedge/nla/pgedge-nla.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}

	dir := filepath.Dir(binaryPath)
	return filepath.Join(dir, "pgedge-nla.yaml")
}

// ConfigFileExists checks if a config file exists at the given path
func ConfigFileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
