/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent - Query Orchestration
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package agent answers natural language questions by generating,
// checking and running read-only SQL.
package agent

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"pgedge-nla/internal/logging"
	"pgedge-nla/internal/presentation"
	"pgedge-nla/internal/results"
	"pgedge-nla/internal/schemadocs"
	"pgedge-nla/internal/sqlguard"
)

const (
	// DefaultTopK is how many schema documents are retrieved per question.
	DefaultTopK = 4
	// DefaultHistoryWindow is how many past messages (three exchanges)
	// are shown to the SQL generator.
	DefaultHistoryWindow = 6
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LanguageModel answers a system + user prompt pair.
type LanguageModel interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Retriever returns up to k schema documents relevant to question.
type Retriever interface {
	Retrieve(ctx context.Context, question string, k int) ([]string, error)
}

// Executor runs a read-only statement and returns its raw result in any
// form results.Normalize accepts.
type Executor interface {
	Execute(ctx context.Context, sql string) (any, error)
}

// Response is the answer to one question.
type Response struct {
	Success bool                      `json:"success"`
	Summary string                    `json:"summary"`
	SQL     string                    `json:"sql,omitempty"`
	Data    []results.Row             `json:"data"`
	Chart   *presentation.ChartConfig `json:"chart,omitempty"`
	Error   string                    `json:"error,omitempty"`

	// Failure classifies an unsuccessful response.
	Failure FailureKind `json:"-"`
}

// Config wires an Agent to its collaborators.
type Config struct {
	Model     LanguageModel
	Retriever Retriever
	Executor  Executor
	Dialect   Dialect

	// TopK defaults to DefaultTopK.
	TopK int
	// HistoryWindow defaults to DefaultHistoryWindow.
	HistoryWindow int
	// FallbackSchema is used when retrieval yields nothing; defaults to
	// the built-in schema documents.
	FallbackSchema []string
}

// Agent sequences classification, retrieval, generation, checking,
// execution and presentation for one question at a time. It holds no
// per-request state and is safe for concurrent use.
type Agent struct {
	model          LanguageModel
	retriever      Retriever
	executor       Executor
	dialect        Dialect
	topK           int
	historyWindow  int
	fallbackSchema []string
}

// New creates an Agent.
func New(cfg Config) (*Agent, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("agent requires a language model")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("agent requires an executor")
	}
	if cfg.Dialect == "" {
		cfg.Dialect = DialectPostgres
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	if len(cfg.FallbackSchema) == 0 {
		cfg.FallbackSchema = schemadocs.DefaultSnippets()
	}
	return &Agent{
		model:          cfg.Model,
		retriever:      cfg.Retriever,
		executor:       cfg.Executor,
		dialect:        cfg.Dialect,
		topK:           cfg.TopK,
		historyWindow:  cfg.HistoryWindow,
		fallbackSchema: cfg.FallbackSchema,
	}, nil
}

// Answer runs the full pipeline for question. It never returns an error
// or panics: every failure is reported in the Response.
func (a *Agent) Answer(ctx context.Context, question string, history []Message) (resp Response) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logging.Error("answer_panic", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			resp = failure(FailureInternal, fmt.Sprintf("An error occurred: %v", r), fmt.Sprint(r), "")
		}
		logging.Info("answer_completed",
			"success", resp.Success,
			"failure", string(resp.Failure),
			"rows", len(resp.Data),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}()

	question = strings.TrimSpace(question)
	if question == "" {
		return failure(FailureValidation, "Question cannot be empty", "Question cannot be empty", "")
	}
	logging.Info("answer_started", "question", truncate(question, 100))

	if !a.isRelevant(ctx, question) {
		return Response{Success: true, Summary: OutOfDomainSummary}
	}

	schema := a.schemaContext(ctx, question)

	sql, err := a.generateSQL(ctx, schema, question, history)
	if err != nil {
		logging.Error("sql_generation_failed", "error", err)
		return failure(FailureInternal, fmt.Sprintf("An error occurred: %v", err), err.Error(), "")
	}
	if sql == "" {
		logging.Warn("sql_generation_empty")
		return failure(FailureValidation,
			"Failed to generate SQL query from question",
			"Failed to generate SQL query from question", "")
	}
	logging.Info("sql_generated", "sql", truncate(sql, 100))

	if verdict := sqlguard.Check(sql); !verdict.Safe {
		logging.Warn("unsafe_sql_rejected", "sql", sql, "reason", string(verdict.Reason), "token", verdict.Token)
		return failure(FailureSafety,
			"The generated query contains potentially dangerous operations and was rejected.",
			"Unsafe SQL rejected: "+verdict.Describe(), sql)
	}

	raw, err := a.executor.Execute(ctx, sql)
	if err != nil {
		logging.Error("query_execution_failed", "sql", sql, "error", err)
		return failure(FailureExecution, fmt.Sprintf("Database query failed: %v", err), err.Error(), sql)
	}

	normalized := results.Normalize(raw, sql)
	if normalized.Warning != "" {
		logging.Warn("result_parse_degraded", "kind", string(DegradationParse), "warning", normalized.Warning)
	}
	rows := normalized.Rows

	return Response{
		Success: true,
		Summary: presentation.Summarize(ctx, question, rows, a.model),
		SQL:     sql,
		Data:    rows,
		Chart:   presentation.ChartFor(question, rows),
	}
}

// isRelevant asks the model whether question concerns the database. A
// classifier failure counts as relevant.
func (a *Agent) isRelevant(ctx context.Context, question string) bool {
	reply, err := a.model.Complete(ctx, relevancePrompt, question)
	if err != nil {
		logging.Warn("classification_degraded", "kind", string(DegradationClassification), "error", err)
		return true
	}
	relevant := strings.HasPrefix(strings.ToUpper(strings.TrimSpace(reply)), "YES")
	if !relevant {
		logging.Info("question_out_of_domain", "question", truncate(question, 100))
	}
	return relevant
}

// schemaContext retrieves schema documents for question, falling back to
// the configured defaults when retrieval fails or finds nothing.
func (a *Agent) schemaContext(ctx context.Context, question string) string {
	if a.retriever != nil {
		docs, err := a.retriever.Retrieve(ctx, question, a.topK)
		switch {
		case err != nil:
			logging.Warn("schema_retrieval_failed", "error", err)
		case len(docs) > 0:
			logging.Debug("schema_retrieved", "documents", len(docs))
			return strings.Join(docs, "\n\n")
		}
	}
	fallback := a.fallbackSchema
	if len(fallback) > a.topK {
		fallback = fallback[:a.topK]
	}
	return strings.Join(fallback, "\n\n")
}

func (a *Agent) generateSQL(ctx context.Context, schema, question string, history []Message) (string, error) {
	rendered := RenderHistory(history, a.historyWindow)
	reply, err := a.model.Complete(ctx, a.dialect.SystemPrompt(), generationPrompt(schema, rendered, question))
	if err != nil {
		return "", fmt.Errorf("failed to generate SQL: %w", err)
	}
	return sqlguard.Extract(reply), nil
}

func failure(kind FailureKind, summary, errText, sql string) Response {
	return Response{
		Success: false,
		Summary: summary,
		SQL:     sql,
		Error:   errText,
		Failure: kind,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
