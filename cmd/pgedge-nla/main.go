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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pgedge-nla/internal/config"
	"pgedge-nla/internal/logging"
)

var version = "1.0.0-alpha1"

var (
	configFile   string
	dialect      string
	dbURL        string
	sqlServerDSN string
	llmProvider  string
	llmModel     string
	docsPath     string
	logLevel     string
	noColor      bool
)

var rootCmd = &cobra.Command{
	Use:   "pgedge-nla",
	Short: "pgEdge Natural Language Agent - ask questions of your database in plain English",
	Long: `pgedge-nla answers natural-language questions about a PostgreSQL or SQL Server
database. It retrieves relevant schema documentation, asks a language model to
write a read-only query, checks the query, runs it and summarizes the result.

The same configuration file as the HTTP server is used.`,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Path to configuration file")
	flags.StringVar(&dialect, "dialect", "", "Database dialect: postgres or tsql")
	flags.StringVar(&dbURL, "db-url", "", "PostgreSQL connection URL")
	flags.StringVar(&sqlServerDSN, "sqlserver-dsn", "", "SQL Server connection string")
	flags.StringVar(&llmProvider, "llm-provider", "", "LLM provider: anthropic, openai or ollama")
	flags.StringVar(&llmModel, "llm-model", "", "LLM model to use")
	flags.StringVar(&docsPath, "docs", "", "Schema documentation file or directory")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(askCmd, chatCmd, indexCmd, checkCmd, hashTokenCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pgEdge Natural Language Agent v%s\n", version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig layers the persistent flags over the configuration file
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	// Usage is only useful for flag errors, which are reported before this
	cmd.SilenceUsage = true

	flags := config.CLIFlags{}
	set := cmd.Flags().Changed

	path := configFile
	if set("config") {
		flags.ConfigFile, flags.ConfigFileSet = configFile, true
	} else {
		execPath, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to get executable path: %w", err)
		}
		path = config.GetDefaultConfigPath(execPath)
		if !config.ConfigFileExists(path) {
			path = ""
		}
	}

	if set("dialect") {
		flags.DBDialect, flags.DBDialectSet = dialect, true
	}
	if set("db-url") {
		flags.DBURL, flags.DBURLSet = dbURL, true
	}
	if set("sqlserver-dsn") {
		flags.SQLServerDSN, flags.SQLServerSet = sqlServerDSN, true
	}
	if set("llm-provider") {
		flags.LLMProvider, flags.LLMProviderSet = llmProvider, true
	}
	if set("llm-model") {
		flags.LLMModel, flags.LLMModelSet = llmModel, true
	}
	if set("docs") {
		flags.DocsPath, flags.DocsPathSet = docsPath, true
	}
	if set("log-level") {
		flags.LogLevel, flags.LogLevelSet = logLevel, true
	}

	cfg, err := config.LoadConfig(path, flags)
	if err != nil {
		return nil, err
	}

	// Keep the terminal quiet unless a level was asked for explicitly
	if set("log-level") {
		if level, ok := logging.ParseLevel(cfg.LogLevel); ok {
			logging.SetLevel(level)
		}
	}
	return cfg, nil
}
