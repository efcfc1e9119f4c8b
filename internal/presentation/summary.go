/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent - Result Summaries
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package presentation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"pgedge-nla/internal/logging"
	"pgedge-nla/internal/results"
)

// Completer is a language model that answers a system + user prompt pair.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// MaxSummaryRows caps how many rows are shown to the model.
const MaxSummaryRows = 20

const (
	noResultsSummary = "No results found for your query."

	summarySystemPrompt = "You are a helpful SQL assistant. " +
		"Provide a brief, clear summary of the query results in 1-2 sentences. " +
		"Focus on the key insights. Do not include SQL or raw data in your response."
)

// SummaryDegradation is the degradation kind logged when the model
// summary falls back to a row count.
const SummaryDegradation = "summary"

var countCues = []string{"how many", "number of", "count of"}

// countNouns is checked in order; the first noun found in the question is
// used.
var countNouns = []string{"order", "customer", "table", "result"}

// Summarize describes rows in one or two sentences. Empty results and
// single-value counts use fixed templates; everything else is delegated to
// model. Model failures fall back to a row count, so Summarize always
// returns text.
func Summarize(ctx context.Context, question string, rows []results.Row, model Completer) string {
	if len(rows) == 0 {
		return noResultsSummary
	}

	if s, ok := CountSummary(question, rows); ok {
		return s
	}

	if model == nil {
		return fallbackSummary(len(rows))
	}

	system, user, err := SummaryPrompt(question, rows)
	if err != nil {
		logging.Warn("summary_degraded", "kind", SummaryDegradation, "error", err.Error())
		return fallbackSummary(len(rows))
	}

	summary, err := model.Complete(ctx, system, user)
	if err != nil {
		logging.Warn("summary_degraded", "kind", SummaryDegradation, "error", err.Error())
		return fallbackSummary(len(rows))
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		logging.Warn("summary_degraded", "kind", SummaryDegradation, "error", "empty model reply")
		return fallbackSummary(len(rows))
	}
	return summary
}

// CountSummary renders "There are N nouns." for a single-value result when
// the question asks for a count.
func CountSummary(question string, rows []results.Row) (string, bool) {
	if len(rows) != 1 || len(rows[0]) != 1 {
		return "", false
	}
	q := strings.ToLower(question)
	if !containsAny(q, countCues) {
		return "", false
	}

	n, ok := results.AsInt(rows[0].Value(0))
	if !ok {
		return "", false
	}

	noun := "item"
	for _, candidate := range countNouns {
		if strings.Contains(q, candidate) {
			noun = candidate
			break
		}
	}

	if n == 1 {
		return fmt.Sprintf("There is %d %s.", n, noun), true
	}
	return fmt.Sprintf("There are %d %ss.", n, noun), true
}

// SummaryPrompt builds the system and user prompts for a model summary,
// including at most MaxSummaryRows rows.
func SummaryPrompt(question string, rows []results.Row) (string, string, error) {
	sample := rows
	if len(sample) > MaxSummaryRows {
		sample = sample[:MaxSummaryRows]
	}
	data, err := json.Marshal(sample)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode sample rows: %w", err)
	}

	user := fmt.Sprintf("Question: %s\n\nTotal results: %d\nSample data (first %d): %s",
		question, len(rows), len(sample), data)
	return summarySystemPrompt, user, nil
}

func fallbackSummary(n int) string {
	return fmt.Sprintf("Found %d result(s) for your query.", n)
}
