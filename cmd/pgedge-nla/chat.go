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
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"pgedge-nla/internal/agent"
	"pgedge-nla/internal/config"
	"pgedge-nla/internal/services"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions interactively, keeping the conversation as context",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

type answerer interface {
	Answer(ctx context.Context, question string, history []agent.Message) agent.Response
}

// session is the state of one interactive chat
type session struct {
	answerer  answerer
	render    *renderer
	prefs     *config.Preferences
	prefsPath string
	history   []agent.Message
}

func runChat(cmd *cobra.Command, args []string) error {
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

	prefsPath := config.GetDefaultPreferencesPath()
	prefs, err := config.LoadPreferences(prefsPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := &session{
		answerer:  nla,
		render:    newRenderer(cmd.OutOrStdout(), prefs, noColor),
		prefs:     prefs,
		prefsPath: prefsPath,
	}
	return s.loop(ctx)
}

func (s *session) prompt() string {
	if noColor {
		return "You: "
	}
	return pterm.NewStyle(pterm.FgGreen, pterm.Bold).Sprint("You: ")
}

func (s *session) loop(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            s.prompt(),
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	fmt.Fprintln(s.render.out, "pgEdge Natural Language Agent. Type /help for commands, /quit to leave.")

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) || ctx.Err() != nil {
				fmt.Fprintln(s.render.out, "\nGoodbye!")
				return nil
			}
			return fmt.Errorf("readline error: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			if quit := s.command(input); quit {
				fmt.Fprintln(s.render.out, "Goodbye!")
				return nil
			}
			continue
		}

		stop := spin("Thinking...")
		resp := s.answerer.Answer(ctx, input, s.history)
		stop()

		fmt.Fprintln(s.render.out)
		s.render.Response(resp)
		s.render.rule()

		s.remember(input, resp)
	}
}

// remember appends the exchange to the in-memory history
func (s *session) remember(question string, resp agent.Response) {
	s.history = append(s.history,
		agent.Message{Role: agent.RoleUser, Content: question},
		agent.Message{Role: agent.RoleAssistant, Content: resp.Summary},
	)
}

// command handles a slash command and reports whether to quit
func (s *session) command(input string) bool {
	fields := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(fields) == 0 {
		return false
	}
	out := s.render.out

	switch fields[0] {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprintln(out, `Commands:
  /clear             forget the conversation so far
  /sql on|off        show or hide the generated SQL
  /markdown on|off   render summaries as markdown
  /rows <n>          maximum rows to print
  /history           show the conversation so far
  /quit              leave`)
	case "clear":
		s.history = nil
		fmt.Fprintln(out, "Conversation cleared.")
	case "history":
		if len(s.history) == 0 {
			fmt.Fprintln(out, "No conversation yet.")
		}
		for _, m := range s.history {
			fmt.Fprintf(out, "%s: %s\n", m.Role, m.Content)
		}
	case "sql", "markdown":
		on, ok := parseSwitch(fields)
		if !ok {
			fmt.Fprintf(out, "Usage: /%s on|off\n", fields[0])
			return false
		}
		if fields[0] == "sql" {
			s.prefs.ShowSQL = on
		} else {
			s.prefs.RenderMarkdown = on
		}
		s.savePreferences()
	case "rows":
		if len(fields) != 2 {
			fmt.Fprintln(out, "Usage: /rows <n>")
			return false
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n <= 0 {
			fmt.Fprintln(out, "Row limit must be a positive number.")
			return false
		}
		s.prefs.MaxRows = n
		s.savePreferences()
	default:
		fmt.Fprintf(out, "Unknown command: /%s (type /help for available commands)\n", fields[0])
	}
	return false
}

func (s *session) savePreferences() {
	if s.prefsPath == "" {
		return
	}
	if err := config.SavePreferences(s.prefsPath, s.prefs); err != nil {
		fmt.Fprintf(s.render.out, "Warning: %v\n", err)
	}
}

func parseSwitch(fields []string) (bool, bool) {
	if len(fields) != 2 {
		return false, false
	}
	switch strings.ToLower(fields[1]) {
	case "on", "true", "yes":
		return true, true
	case "off", "false", "no":
		return false, true
	}
	return false, false
}
