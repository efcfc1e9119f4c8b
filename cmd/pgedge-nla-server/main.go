/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pgedge-nla/internal/api"
	"pgedge-nla/internal/auth"
	"pgedge-nla/internal/config"
	"pgedge-nla/internal/conversations"
	"pgedge-nla/internal/logging"
	"pgedge-nla/internal/services"
)

var version = "1.0.0-alpha1"

func main() {
	execPath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	defaultConfigPath := config.GetDefaultConfigPath(execPath)

	// Command line flags
	configFile := flag.String("config", defaultConfigPath, "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	httpAddr := flag.String("addr", "", "HTTP server address")
	tlsMode := flag.Bool("tls", false, "Enable TLS/HTTPS")
	certFile := flag.String("cert", "", "Path to TLS certificate file")
	keyFile := flag.String("key", "", "Path to TLS key file")
	authMode := flag.Bool("auth", false, "Require API bearer tokens")
	tokenFilePath := flag.String("token-file", "", "Path to API token file")
	dialect := flag.String("dialect", "", "Database dialect: postgres or tsql (default: from configured connection)")
	dbURL := flag.String("db-url", "", "PostgreSQL connection URL")
	sqlServerDSN := flag.String("sqlserver-dsn", "", "SQL Server connection string")
	llmProvider := flag.String("llm-provider", "", "LLM provider: anthropic, openai or ollama")
	llmModel := flag.String("llm-model", "", "LLM model to use")
	docsPath := flag.String("docs", "", "Schema documentation file or directory")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn or error")

	// Token management commands
	addTokenCmd := flag.Bool("add-token", false, "Add a new API token")
	removeTokenCmd := flag.String("remove-token", "", "Remove an API token by ID")
	listTokensCmd := flag.Bool("list-tokens", false, "List all API tokens")
	tokenNote := flag.String("token-note", "", "Annotation for the new token (used with -add-token)")
	tokenExpiry := flag.String("token-expiry", "never", "Token expiry: '30d', '1y', '2w', '12h' or 'never' (used with -add-token)")

	flag.Parse()

	if *showVersion {
		fmt.Printf("pgEdge Natural Language Agent server v%s\n", version)
		return
	}

	// Handle token management commands
	if *addTokenCmd || *removeTokenCmd != "" || *listTokensCmd {
		tokenFile := *tokenFilePath
		if tokenFile == "" {
			tokenFile = defaultTokenPath(execPath)
		}

		var err error
		switch {
		case *addTokenCmd:
			err = addTokenCommand(tokenFile, *tokenNote, *tokenExpiry)
		case *removeTokenCmd != "":
			err = removeTokenCommand(tokenFile, *removeTokenCmd)
		default:
			err = listTokensCommand(tokenFile)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Track which flags were explicitly set
	cliFlags := config.CLIFlags{}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config":
			cliFlags.ConfigFileSet = true
			cliFlags.ConfigFile = *configFile
		case "addr":
			cliFlags.HTTPAddrSet = true
			cliFlags.HTTPAddr = *httpAddr
		case "tls":
			cliFlags.TLSEnabledSet = true
			cliFlags.TLSEnabled = *tlsMode
		case "cert":
			cliFlags.TLSCertSet = true
			cliFlags.TLSCertFile = *certFile
		case "key":
			cliFlags.TLSKeySet = true
			cliFlags.TLSKeyFile = *keyFile
		case "auth":
			cliFlags.AuthEnabledSet = true
			cliFlags.AuthEnabled = *authMode
		case "token-file":
			cliFlags.AuthTokenSet = true
			cliFlags.AuthTokenFile = *tokenFilePath
		case "dialect":
			cliFlags.DBDialectSet = true
			cliFlags.DBDialect = *dialect
		case "db-url":
			cliFlags.DBURLSet = true
			cliFlags.DBURL = *dbURL
		case "sqlserver-dsn":
			cliFlags.SQLServerSet = true
			cliFlags.SQLServerDSN = *sqlServerDSN
		case "llm-provider":
			cliFlags.LLMProviderSet = true
			cliFlags.LLMProvider = *llmProvider
		case "llm-model":
			cliFlags.LLMModelSet = true
			cliFlags.LLMModel = *llmModel
		case "docs":
			cliFlags.DocsPathSet = true
			cliFlags.DocsPath = *docsPath
		case "log-level":
			cliFlags.LogLevelSet = true
			cliFlags.LogLevel = *logLevel
		}
	})

	configPath := *configFile
	if !cliFlags.ConfigFileSet && !config.ConfigFileExists(configPath) {
		configPath = ""
	}

	cfg, err := config.LoadConfig(configPath, cliFlags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	applyLogLevel(cfg.LogLevel)

	if err := run(cfg, configPath, cliFlags); err != nil {
		logging.Error("server_failed", "error", err)
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, configPath string, cliFlags config.CLIFlags) error {
	if cfg.HTTP.TLS.Enabled {
		for _, f := range []string{cfg.HTTP.TLS.CertFile, cfg.HTTP.TLS.KeyFile} {
			if _, err := os.Stat(f); err != nil {
				return fmt.Errorf("TLS file not found: %s", f)
			}
		}
	}

	tokens, err := loadTokens(cfg)
	if err != nil {
		return err
	}
	defer tokens.StopWatching()

	container := services.New(cfg)
	defer container.Close()

	nla, err := container.Agent()
	if err != nil {
		return err
	}

	var store *conversations.Store
	if cfg.History.Enabled {
		store, err = conversations.NewStore(cfg.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		logging.Info("conversation_history_enabled", "path", store.Path())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Seed the schema index before the first question arrives
	go func() {
		if _, err := container.Index(ctx); err != nil {
			logging.Warn("schema_index_warmup_failed", "error", err)
		}
	}()

	if configPath != "" {
		watchReload(ctx, config.NewReloadableConfig(cfg, configPath, cliFlags), tokens)
	}

	timeout := cfg.HTTP.RequestTimeoutDuration()
	router := api.NewRouter(api.RouterConfig{
		Agent:          nla,
		Conversations:  store,
		Tokens:         tokens,
		AuthEnabled:    cfg.HTTP.Auth.Enabled,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		RequestTimeout: timeout,
	})

	writeTimeout := time.Duration(0)
	if timeout > 0 {
		writeTimeout = timeout + 10*time.Second
	}
	server := api.NewServer(cfg.HTTP.Address, router, api.TLSConfig{
		Enabled:  cfg.HTTP.TLS.Enabled,
		CertFile: cfg.HTTP.TLS.CertFile,
		KeyFile:  cfg.HTTP.TLS.KeyFile,
	}, writeTimeout)

	logging.Info("server_configured",
		"version", version,
		"llm_provider", cfg.LLM.Provider,
		"auth", cfg.HTTP.Auth.Enabled,
		"history", cfg.History.Enabled,
		"embeddings", cfg.Embedding.Enabled,
	)
	return server.Serve(ctx)
}

// loadTokens builds the token store from inline hashes and the token file
func loadTokens(cfg *config.Config) (*auth.TokenStore, error) {
	tokens := auth.NewTokenStore(cfg.HTTP.Auth.TokenHashes)
	if !cfg.HTTP.Auth.Enabled {
		return tokens, nil
	}

	if file := cfg.HTTP.Auth.TokenFile; file != "" {
		if _, err := os.Stat(file); os.IsNotExist(err) {
			if len(cfg.HTTP.Auth.TokenHashes) == 0 {
				return nil, fmt.Errorf("token file not found: %s (create tokens with: %s -add-token -token-file %s)",
					file, os.Args[0], file)
			}
			logging.Warn("token_file_missing", "path", file)
			return tokens, nil
		}
		if err := tokens.LoadFile(file); err != nil {
			return nil, fmt.Errorf("failed to load token file: %w", err)
		}
		if err := tokens.StartWatching(); err != nil {
			logging.Warn("token_file_watch_failed", "path", file, "error", err)
		}
	}

	logging.Info("api_tokens_loaded", "count", tokens.Count())
	return tokens, nil
}

// watchReload reloads the configuration on SIGHUP, applying the log level
// and inline token hashes
func watchReload(ctx context.Context, rc *config.ReloadableConfig, tokens *auth.TokenStore) {
	rc.OnReload(func(cfg *config.Config) {
		applyLogLevel(cfg.LogLevel)
		tokens.SetHashes(cfg.HTTP.Auth.TokenHashes)
	})

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := rc.Reload(); err != nil {
					logging.Error("config_reload_failed", "error", err)
				}
			}
		}
	}()
}

func applyLogLevel(name string) {
	if level, ok := logging.ParseLevel(name); ok {
		logging.SetLevel(level)
	}
}
