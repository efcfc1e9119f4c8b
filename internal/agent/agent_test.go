/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"pgedge-nla/internal/presentation"
	"pgedge-nla/internal/results"
)

// scriptedModel answers by prompt type and records the prompts it saw.
type scriptedModel struct {
	mu sync.Mutex

	relevance    string
	relevanceErr error
	sql          string
	sqlErr       error
	summary      string
	summaryErr   error

	relevanceCalls int
	sqlCalls       int
	summaryCalls   int
	sqlSystem      string
	sqlUser        string
}

func (m *scriptedModel) Complete(_ context.Context, system, user string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case system == relevancePrompt:
		m.relevanceCalls++
		return m.relevance, m.relevanceErr
	case system == postgresPrompt || system == tsqlPrompt:
		m.sqlCalls++
		m.sqlSystem, m.sqlUser = system, user
		return m.sql, m.sqlErr
	default:
		m.summaryCalls++
		return m.summary, m.summaryErr
	}
}

type staticRetriever struct {
	docs []string
	err  error
	k    int
}

func (r *staticRetriever) Retrieve(_ context.Context, _ string, k int) ([]string, error) {
	r.k = k
	return r.docs, r.err
}

type recordingExecutor struct {
	raw   any
	err   error
	calls []string
}

func (e *recordingExecutor) Execute(_ context.Context, sql string) (any, error) {
	e.calls = append(e.calls, sql)
	return e.raw, e.err
}

func newTestAgent(t *testing.T, model *scriptedModel, retriever Retriever, exec *recordingExecutor) *Agent {
	t.Helper()
	a, err := New(Config{Model: model, Retriever: retriever, Executor: exec})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Config{Executor: &recordingExecutor{}}); err == nil {
		t.Error("New() without model succeeded")
	}
	if _, err := New(Config{Model: &scriptedModel{}}); err == nil {
		t.Error("New() without executor succeeded")
	}
}

func TestAnswerCountQuestion(t *testing.T) {
	model := &scriptedModel{relevance: "YES", sql: "SELECT COUNT(*) AS total FROM customers"}
	exec := &recordingExecutor{raw: "[(42,)]"}
	a := newTestAgent(t, model, nil, exec)

	resp := a.Answer(context.Background(), "How many customers do we have?", nil)

	if !resp.Success {
		t.Fatalf("Success = false: %+v", resp)
	}
	if resp.Summary != "There are 42 customers." {
		t.Errorf("Summary = %q", resp.Summary)
	}
	if resp.SQL != "SELECT COUNT(*) AS total FROM customers" {
		t.Errorf("SQL = %q", resp.SQL)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("len(Data) = %d, want 1", len(resp.Data))
	}
	if v, _ := resp.Data[0].Get("total"); v != int64(42) {
		t.Errorf("total = %#v", v)
	}
	if resp.Chart != nil {
		t.Errorf("Chart = %+v, want nil", resp.Chart)
	}
	if model.summaryCalls != 0 {
		t.Errorf("summary model called %d times, want 0", model.summaryCalls)
	}
}

func TestAnswerStructuredResultWithChart(t *testing.T) {
	model := &scriptedModel{
		relevance: "yes, this is about orders",
		sql:       "```sql\nSELECT TO_CHAR(OrderDate, 'YYYY-MM') AS month, SUM(Amount) AS revenue FROM Orders GROUP BY 1\n```",
		summary:   "Revenue grew from January to February.",
	}
	exec := &recordingExecutor{raw: results.Table{
		Columns: []string{"month", "revenue"},
		Tuples:  [][]any{{"2024-01", 100.0}, {"2024-02", 150.0}},
	}}
	a := newTestAgent(t, model, nil, exec)

	resp := a.Answer(context.Background(), "show revenue trend by month", nil)

	if !resp.Success || resp.Error != "" {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Summary != "Revenue grew from January to February." {
		t.Errorf("Summary = %q", resp.Summary)
	}
	if strings.Contains(resp.SQL, "```") {
		t.Errorf("SQL still fenced: %q", resp.SQL)
	}
	if resp.Chart == nil || resp.Chart.Type != presentation.KindLine || resp.Chart.XKey != "month" || resp.Chart.YKey != "revenue" {
		t.Errorf("Chart = %+v", resp.Chart)
	}
}

func TestAnswerRejectsUnsafeSQL(t *testing.T) {
	model := &scriptedModel{relevance: "YES", sql: "DROP TABLE customers"}
	exec := &recordingExecutor{}
	a := newTestAgent(t, model, nil, exec)

	resp := a.Answer(context.Background(), "remove all customers", nil)

	if resp.Success {
		t.Fatal("Success = true, want false")
	}
	if resp.SQL != "DROP TABLE customers" {
		t.Errorf("SQL = %q, want rejected statement kept", resp.SQL)
	}
	if resp.Error != "Unsafe SQL rejected: statement is not SELECT or WITH" || resp.Failure != FailureSafety {
		t.Errorf("Error = %q, Failure = %q", resp.Error, resp.Failure)
	}
	if resp.Summary != "The generated query contains potentially dangerous operations and was rejected." {
		t.Errorf("Summary = %q", resp.Summary)
	}
	if len(exec.calls) != 0 {
		t.Errorf("executor called with %v, want no calls", exec.calls)
	}
}

func TestAnswerReportsRejectedToken(t *testing.T) {
	model := &scriptedModel{relevance: "YES", sql: "SELECT * FROM t WHERE x = xp_cmdshell('dir')"}
	exec := &recordingExecutor{}
	a := newTestAgent(t, model, nil, exec)

	resp := a.Answer(context.Background(), "list the files", nil)

	if want := `Unsafe SQL rejected: stored procedure reference "xp_cmdshell"`; resp.Error != want {
		t.Errorf("Error = %q, want %q", resp.Error, want)
	}
	body, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "xp_cmdshell") || !strings.Contains(string(body), "stored procedure reference") {
		t.Errorf("JSON body lacks the rejection reason: %s", body)
	}
	if len(exec.calls) != 0 {
		t.Errorf("executor called with %v", exec.calls)
	}
}

func TestAnswerEmptyQuestion(t *testing.T) {
	model := &scriptedModel{}
	exec := &recordingExecutor{}
	a := newTestAgent(t, model, nil, exec)

	for _, q := range []string{"", "   \n"} {
		resp := a.Answer(context.Background(), q, nil)
		if resp.Success || resp.Summary != "Question cannot be empty" || resp.Error != "Question cannot be empty" {
			t.Errorf("Answer(%q) = %+v", q, resp)
		}
		if resp.Failure != FailureValidation {
			t.Errorf("Failure = %q", resp.Failure)
		}
	}
	if model.relevanceCalls != 0 || len(exec.calls) != 0 {
		t.Error("collaborators called for an empty question")
	}
}

func TestAnswerOutOfDomain(t *testing.T) {
	model := &scriptedModel{relevance: "NO"}
	exec := &recordingExecutor{}
	a := newTestAgent(t, model, nil, exec)

	resp := a.Answer(context.Background(), "What's the weather in Paris?", nil)

	if !resp.Success || resp.Summary != OutOfDomainSummary {
		t.Errorf("resp = %+v", resp)
	}
	if resp.SQL != "" || resp.Data != nil || resp.Chart != nil || resp.Error != "" {
		t.Errorf("out of domain response carries payload: %+v", resp)
	}
	if model.sqlCalls != 0 || len(exec.calls) != 0 {
		t.Error("pipeline continued past the classifier")
	}
}

// The classifier fails open: an unavailable classifier must not block
// questions. Changing this to fail closed should be a deliberate decision.
func TestAnswerClassifierFailsOpen(t *testing.T) {
	model := &scriptedModel{
		relevanceErr: errors.New("classifier unavailable"),
		sql:          "SELECT COUNT(*) AS total FROM orders",
	}
	exec := &recordingExecutor{raw: [][]any{{int64(3)}}}
	a := newTestAgent(t, model, nil, exec)

	resp := a.Answer(context.Background(), "How many orders are there?", nil)

	if !resp.Success || resp.Summary != "There are 3 orders." {
		t.Errorf("resp = %+v", resp)
	}
	if len(exec.calls) != 1 {
		t.Errorf("executor calls = %d, want 1", len(exec.calls))
	}
}

func TestAnswerEmptyGeneratedSQL(t *testing.T) {
	model := &scriptedModel{relevance: "YES", sql: "```sql\n```"}
	exec := &recordingExecutor{}
	a := newTestAgent(t, model, nil, exec)

	resp := a.Answer(context.Background(), "total revenue", nil)

	if resp.Success || resp.Summary != "Failed to generate SQL query from question" || resp.Failure != FailureValidation {
		t.Errorf("resp = %+v", resp)
	}
	if len(exec.calls) != 0 {
		t.Error("executor called for empty SQL")
	}
}

func TestAnswerExecutionErrorNotRetried(t *testing.T) {
	model := &scriptedModel{relevance: "YES", sql: "SELECT missing FROM orders"}
	exec := &recordingExecutor{err: errors.New(`column "missing" does not exist`)}
	a := newTestAgent(t, model, nil, exec)

	resp := a.Answer(context.Background(), "show missing", nil)

	if resp.Success || resp.Failure != FailureExecution {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Summary != `Database query failed: column "missing" does not exist` {
		t.Errorf("Summary = %q", resp.Summary)
	}
	if resp.SQL != "SELECT missing FROM orders" || resp.Error != `column "missing" does not exist` {
		t.Errorf("SQL = %q, Error = %q", resp.SQL, resp.Error)
	}
	if len(exec.calls) != 1 {
		t.Errorf("executor calls = %d, want exactly 1", len(exec.calls))
	}
}

func TestAnswerGenerationError(t *testing.T) {
	model := &scriptedModel{relevance: "YES", sqlErr: errors.New("quota exceeded")}
	a := newTestAgent(t, model, nil, &recordingExecutor{})

	resp := a.Answer(context.Background(), "total revenue", nil)

	if resp.Success || resp.Failure != FailureInternal {
		t.Fatalf("resp = %+v", resp)
	}
	if !strings.HasPrefix(resp.Summary, "An error occurred: ") || !strings.Contains(resp.Summary, "quota exceeded") {
		t.Errorf("Summary = %q", resp.Summary)
	}
}

type panickingExecutor struct{}

func (panickingExecutor) Execute(context.Context, string) (any, error) {
	panic("driver exploded")
}

func TestAnswerRecoversPanics(t *testing.T) {
	model := &scriptedModel{relevance: "YES", sql: "SELECT 1 AS one FROM t"}
	a, err := New(Config{Model: model, Executor: panickingExecutor{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	resp := a.Answer(context.Background(), "anything", nil)

	if resp.Success || resp.Summary != "An error occurred: driver exploded" || resp.Failure != FailureInternal {
		t.Errorf("resp = %+v", resp)
	}
}

func TestAnswerParseDegradation(t *testing.T) {
	model := &scriptedModel{relevance: "YES", sql: "SELECT a, b FROM t", summary: "unused"}
	exec := &recordingExecutor{raw: "[(datetime.date(2024, 1, 1), 3)]"}
	a := newTestAgent(t, model, nil, exec)

	resp := a.Answer(context.Background(), "show a and b", nil)

	if !resp.Success {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Data == nil || len(resp.Data) != 0 {
		t.Errorf("Data = %#v, want empty slice", resp.Data)
	}
	if resp.Summary != "No results found for your query." {
		t.Errorf("Summary = %q", resp.Summary)
	}
}

func TestAnswerSummaryDegradation(t *testing.T) {
	model := &scriptedModel{relevance: "YES", sql: "SELECT country, total FROM t", summaryErr: errors.New("timeout")}
	exec := &recordingExecutor{raw: [][]any{{"US", 1}, {"CA", 2}}}
	a := newTestAgent(t, model, nil, exec)

	resp := a.Answer(context.Background(), "totals by country", nil)

	if !resp.Success || resp.Summary != "Found 2 result(s) for your query." {
		t.Errorf("resp = %+v", resp)
	}
}

func TestSchemaContext(t *testing.T) {
	t.Run("retrieved documents", func(t *testing.T) {
		model := &scriptedModel{relevance: "YES", sql: "SELECT 1 AS x FROM t"}
		retriever := &staticRetriever{docs: []string{"Table: A", "Table: B"}}
		a := newTestAgent(t, model, retriever, &recordingExecutor{raw: [][]any{}})

		a.Answer(context.Background(), "q", nil)

		if retriever.k != DefaultTopK {
			t.Errorf("k = %d, want %d", retriever.k, DefaultTopK)
		}
		if !strings.HasPrefix(model.sqlUser, "Schema:\nTable: A\n\nTable: B\n\nQuestion: q") {
			t.Errorf("generation prompt = %q", model.sqlUser)
		}
	})

	t.Run("fallback on empty retrieval", func(t *testing.T) {
		model := &scriptedModel{relevance: "YES", sql: "SELECT 1 AS x FROM t"}
		a := newTestAgent(t, model, &staticRetriever{}, &recordingExecutor{raw: [][]any{}})

		a.Answer(context.Background(), "q", nil)

		if !strings.Contains(model.sqlUser, "Table: Customers") || !strings.Contains(model.sqlUser, "Table: Orders") {
			t.Errorf("generation prompt lacks fallback schema: %q", model.sqlUser)
		}
	})

	t.Run("fallback on retrieval error", func(t *testing.T) {
		model := &scriptedModel{relevance: "YES", sql: "SELECT 1 AS x FROM t"}
		a := newTestAgent(t, model, &staticRetriever{err: errors.New("index offline")}, &recordingExecutor{raw: [][]any{}})

		resp := a.Answer(context.Background(), "q", nil)

		if !resp.Success {
			t.Errorf("resp = %+v", resp)
		}
		if !strings.Contains(model.sqlUser, "Table: Customers") {
			t.Errorf("generation prompt lacks fallback schema: %q", model.sqlUser)
		}
	})
}

func TestAnswerUsesHistoryAndDialect(t *testing.T) {
	model := &scriptedModel{relevance: "YES", sql: "SELECT TOP 5 Name FROM Customers"}
	a, err := New(Config{Model: model, Executor: &recordingExecutor{raw: [][]any{}}, Dialect: DialectTSQL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	history := []Message{
		{Role: RoleUser, Content: "q1"}, {Role: RoleAssistant, Content: "a1"},
		{Role: RoleUser, Content: "q2"}, {Role: RoleAssistant, Content: "a2"},
		{Role: RoleUser, Content: "q3"}, {Role: RoleAssistant, Content: "a3"},
		{Role: RoleUser, Content: "q4"}, {Role: RoleAssistant, Content: "a4"},
	}
	a.Answer(context.Background(), "and their emails?", history)

	if model.sqlSystem != tsqlPrompt {
		t.Errorf("system prompt is not the T-SQL prompt")
	}
	wantHistory := "Previous conversation:\nUser: q2\nAssistant: a2\nUser: q3\nAssistant: a3\nUser: q4\nAssistant: a4\n\nCurrent question: and their emails?"
	if !strings.HasSuffix(model.sqlUser, wantHistory) {
		t.Errorf("generation prompt = %q", model.sqlUser)
	}
}

func TestResponseJSON(t *testing.T) {
	resp := Response{
		Success: true,
		Summary: "ok",
		SQL:     "SELECT 1",
		Data:    []results.Row{{{Name: "b", Value: 1}, {Name: "a", Value: 2}}},
		Failure: FailureInternal,
	}
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"success":true,"summary":"ok","sql":"SELECT 1","data":[{"b":1,"a":2}]}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}
