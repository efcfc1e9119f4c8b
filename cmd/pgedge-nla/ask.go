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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pgedge-nla/internal/config"
	"pgedge-nla/internal/services"
)

var (
	askJSON    bool
	askNoSQL   bool
	askMaxRows int
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a single question",
	Example: `  pgedge-nla ask "How many customers do we have?"
  pgedge-nla ask --json "Show monthly order totals for 2024"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the response as JSON")
	askCmd.Flags().BoolVar(&askNoSQL, "no-sql", false, "Do not print the generated SQL")
	askCmd.Flags().IntVar(&askMaxRows, "max-rows", 0, "Maximum rows to print (default from preferences)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	container := services.New(cfg)
	defer container.Close()

	nla, err := container.Agent()
	if err != nil {
		return err
	}

	question := strings.Join(args, " ")
	stop := func() {}
	if !askJSON {
		stop = spin("Thinking...")
	}
	resp := nla.Answer(cmd.Context(), question, nil)
	stop()

	if askJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	prefs, err := config.LoadPreferences(config.GetDefaultPreferencesPath())
	if err != nil {
		return err
	}
	if askNoSQL {
		prefs.ShowSQL = false
	}
	if askMaxRows > 0 {
		prefs.MaxRows = askMaxRows
	}

	newRenderer(cmd.OutOrStdout(), prefs, noColor).Response(resp)
	if !resp.Success {
		return fmt.Errorf("question was not answered")
	}
	return nil
}
