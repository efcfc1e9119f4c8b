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
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pgedge-nla/internal/auth"
	"pgedge-nla/internal/services"
	"pgedge-nla/internal/sqlguard"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the schema index from the documentation",
	Long: `index re-reads the schema documentation (the configured docs path, or the
built-in Customers and Orders documents) and rebuilds the retrieval index,
embedding each chunk when an embedding provider is enabled.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

var checkCmd = &cobra.Command{
	Use:   "check [sql]",
	Short: "Check whether a statement would be allowed to run",
	Long: `check runs the read-only safety check on a statement given as arguments or
on standard input. It exits with status 1 when the statement is rejected.`,
	RunE: runCheck,
}

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token [token]",
	Short: "Print the bcrypt hash of an API token for http.auth.token_hashes",
	Long: `hash-token hashes a token for the server configuration. Without an argument a
new random token is generated and printed along with its hash.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHashToken,
}

// errRejected reports a statement refused by check
var errRejected = errors.New("statement rejected")

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	index, err := services.OpenIndex(cfg)
	if err != nil {
		return err
	}
	defer index.Close()

	stop := spin("Indexing schema documentation...")
	n, err := index.Reindex(cmd.Context())
	stop()
	if err != nil {
		return fmt.Errorf("failed to rebuild schema index: %w", err)
	}

	stats, err := index.Stats(cmd.Context())
	if err != nil {
		return err
	}
	pterm.Success.Printfln("Indexed %d chunks from %d documents (%d embedded) into %s",
		n, stats.Sources, stats.Embedded, cfg.SchemaIndex.Path)
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	sql := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read statement: %w", err)
		}
		sql = string(data)
	}

	out := cmd.OutOrStdout()
	verdict := sqlguard.Check(sql)
	if verdict.Safe {
		fmt.Fprintln(out, "OK: read-only statement")
		return nil
	}
	if verdict.Token != "" {
		fmt.Fprintf(out, "REJECTED: %s %q\n", verdict.Reason, verdict.Token)
	} else {
		fmt.Fprintf(out, "REJECTED: %s\n", verdict.Reason)
	}
	return errRejected
}

func runHashToken(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	out := cmd.OutOrStdout()

	var token string
	switch {
	case len(args) == 1:
		token = args[0]
	case !term.IsTerminal(int(os.Stdin.Fd())):
		// Piped input: hash the first line
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read token: %w", err)
		}
		token = strings.TrimSpace(line)
	}

	generated := token == ""
	if generated {
		var err error
		if token, err = auth.GenerateToken(); err != nil {
			return err
		}
	}

	hash, err := auth.HashToken(token)
	if err != nil {
		return err
	}

	if generated {
		fmt.Fprintf(out, "Token: %s\n", token)
	}
	fmt.Fprintf(out, "Hash:  %s\n", hash)
	return nil
}
