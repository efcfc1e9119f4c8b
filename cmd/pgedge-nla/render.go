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
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pterm/pterm"
	"golang.org/x/term"

	"pgedge-nla/internal/agent"
	"pgedge-nla/internal/config"
	"pgedge-nla/internal/presentation"
	"pgedge-nla/internal/results"
)

// maxRenderWidth caps markdown wrapping on wide terminals
const maxRenderWidth = 120

// renderer prints agent responses to a terminal
type renderer struct {
	out     io.Writer
	prefs   *config.Preferences
	noColor bool
	width   int
}

func newRenderer(out io.Writer, prefs *config.Preferences, noColor bool) *renderer {
	return &renderer{out: out, prefs: prefs, noColor: noColor, width: terminalWidth()}
}

// terminalWidth returns the stdout width less a small margin, or 80
func terminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 2 {
		return width - 2
	}
	return 80
}

// isTerminal reports whether stdout is attached to a terminal
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Response prints the summary, the rows, the chart hint and the SQL
func (r *renderer) Response(resp agent.Response) {
	r.Summary(resp.Summary)

	if len(resp.Data) > 0 {
		fmt.Fprintln(r.out)
		fmt.Fprint(r.out, r.Table(resp.Data))
	}
	if resp.Chart != nil {
		fmt.Fprintf(r.out, "\n%s\n", r.style(pterm.FgMagenta, chartHint(resp.Chart)))
	}
	if r.prefs.ShowSQL && resp.SQL != "" {
		fmt.Fprintf(r.out, "\n%s\n%s\n", r.style(pterm.FgGray, "SQL:"), resp.SQL)
	}
	if !resp.Success && resp.Error != "" && resp.Error != resp.Summary {
		fmt.Fprintf(r.out, "\n%s %s\n", r.style(pterm.FgRed, "Error:"), resp.Error)
	}
}

// Summary prints the summary, rendered as markdown when enabled
func (r *renderer) Summary(text string) {
	if r.prefs.RenderMarkdown {
		if rendered, err := r.markdown(text); err == nil {
			fmt.Fprint(r.out, rendered)
			return
		}
	}
	fmt.Fprintln(r.out, text)
}

func (r *renderer) markdown(text string) (string, error) {
	style := "dark"
	if r.noColor {
		style = "notty"
	}
	width := r.width
	if width > maxRenderWidth {
		width = maxRenderWidth
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return md.Render(text)
}

// Table renders rows with the first row's field order, cut at MaxRows
func (r *renderer) Table(rows []results.Row) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)

	keys := rows[0].Keys()
	header := make(table.Row, len(keys))
	for i, k := range keys {
		header[i] = k
	}
	t.AppendHeader(header)

	shown := rows
	if limit := r.prefs.MaxRows; limit > 0 && len(rows) > limit {
		shown = rows[:limit]
	}
	for _, row := range shown {
		line := make(table.Row, len(keys))
		for i, k := range keys {
			v, _ := row.Get(k)
			line[i] = results.FormatValue(v)
		}
		t.AppendRow(line)
	}
	if hidden := len(rows) - len(shown); hidden > 0 {
		t.AppendFooter(table.Row{fmt.Sprintf("... %d more rows", hidden)})
	}
	return t.Render() + "\n"
}

func chartHint(c *presentation.ChartConfig) string {
	return fmt.Sprintf("Chart: %s %q (x: %s, y: %s)", c.Type, c.Title, c.XKey, c.YKey)
}

func (r *renderer) style(color pterm.Color, text string) string {
	if r.noColor {
		return text
	}
	return color.Sprint(text)
}

// spin shows a spinner on a terminal until the returned stop is called
func spin(text string) (stop func()) {
	if !isTerminal() {
		return func() {}
	}
	spinner, err := pterm.DefaultSpinner.WithRemoveWhenDone(true).Start(text)
	if err != nil {
		return func() {}
	}
	return func() { _ = spinner.Stop() }
}

// rule prints a separator across the terminal
func (r *renderer) rule() {
	width := r.width
	if width > maxRenderWidth {
		width = maxRenderWidth
	}
	fmt.Fprintln(r.out, r.style(pterm.FgGray, strings.Repeat("─", width)))
}
