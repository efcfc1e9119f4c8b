/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pgedge-nla/internal/config"
	"pgedge-nla/internal/database"
	"pgedge-nla/internal/results"
)

type fakeIndex struct {
	closed atomic.Bool
}

func (f *fakeIndex) Retrieve(ctx context.Context, question string, k int) ([]string, error) {
	return []string{"Table: customers (id, name)"}, nil
}
func (f *fakeIndex) EnsureSeeded(ctx context.Context) error { return nil }
func (f *fakeIndex) Close() error                           { f.closed.Store(true); return nil }

type fakeExecutor struct {
	closed atomic.Bool
}

func (f *fakeExecutor) Execute(ctx context.Context, sql string) (any, error) {
	return &results.Table{Columns: []string{"total"}, Tuples: [][]any{{int64(42)}}}, nil
}
func (f *fakeExecutor) Ping(ctx context.Context) error { return nil }
func (f *fakeExecutor) Dialect() string                { return database.DialectPostgres }
func (f *fakeExecutor) Close() error                   { f.closed.Store(true); return nil }

// scriptedModel accepts every question and always generates a count
type scriptedModel struct{}

func (scriptedModel) Complete(ctx context.Context, system, user string) (string, error) {
	if strings.Contains(system, "classifier") {
		return "YES", nil
	}
	return "SELECT COUNT(*) AS total FROM customers", nil
}

func testConfig() *config.Config {
	return &config.Config{
		Database:    config.DatabaseConfig{URL: "postgres://localhost/test"},
		LLM:         config.LLMConfig{Provider: "ollama"},
		SchemaIndex: config.SchemaIndexConfig{TopK: 4},
		History:     config.HistoryConfig{MaxMessages: 6},
	}
}

func TestConcurrentFirstUseCreatesOnce(t *testing.T) {
	var indexCalls, execCalls atomic.Int32
	c := New(testConfig(),
		WithIndexFactory(func(ctx context.Context) (Index, error) {
			indexCalls.Add(1)
			time.Sleep(10 * time.Millisecond)
			return &fakeIndex{}, nil
		}),
		WithExecutorFactory(func(ctx context.Context) (database.Executor, error) {
			execCalls.Add(1)
			time.Sleep(10 * time.Millisecond)
			return &fakeExecutor{}, nil
		}),
	)
	defer c.Close()

	var wg sync.WaitGroup
	indexes := make([]Index, 32)
	execs := make([]database.Executor, 32)
	for i := range indexes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ix, err := c.Index(context.Background())
			if err != nil {
				t.Errorf("Index: %v", err)
			}
			ex, err := c.Executor(context.Background())
			if err != nil {
				t.Errorf("Executor: %v", err)
			}
			indexes[i], execs[i] = ix, ex
		}(i)
	}
	wg.Wait()

	if n := indexCalls.Load(); n != 1 {
		t.Errorf("index factory called %d times, want 1", n)
	}
	if n := execCalls.Load(); n != 1 {
		t.Errorf("executor factory called %d times, want 1", n)
	}
	for i := range indexes {
		if indexes[i] != indexes[0] || execs[i] != execs[0] {
			t.Fatal("callers received different instances")
		}
	}
}

func TestFailedCreationIsRetried(t *testing.T) {
	var calls atomic.Int32
	c := New(testConfig(), WithExecutorFactory(func(ctx context.Context) (database.Executor, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("connection refused")
		}
		return &fakeExecutor{}, nil
	}))
	defer c.Close()

	if _, err := c.Executor(context.Background()); err == nil {
		t.Fatal("expected first connection to fail")
	}
	if _, err := c.Executor(context.Background()); err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if _, err := c.Executor(context.Background()); err != nil {
		t.Fatalf("cached executor: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("factory called %d times, want 2", n)
	}
}

func TestCloseReleasesCollaborators(t *testing.T) {
	ix := &fakeIndex{}
	ex := &fakeExecutor{}
	c := New(testConfig(),
		WithIndexFactory(func(ctx context.Context) (Index, error) { return ix, nil }),
		WithExecutorFactory(func(ctx context.Context) (database.Executor, error) { return ex, nil }),
	)

	if _, err := c.Index(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Executor(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !ix.closed.Load() || !ex.closed.Load() {
		t.Error("collaborators were not closed")
	}
	if _, err := c.Executor(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("after Close err = %v, want ErrClosed", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestAgentResolvesLazily(t *testing.T) {
	var execCalls atomic.Int32
	c := New(testConfig(),
		WithModel(scriptedModel{}),
		WithIndexFactory(func(ctx context.Context) (Index, error) { return &fakeIndex{}, nil }),
		WithExecutorFactory(func(ctx context.Context) (database.Executor, error) {
			execCalls.Add(1)
			return &fakeExecutor{}, nil
		}),
	)
	defer c.Close()

	a, err := c.Agent()
	if err != nil {
		t.Fatalf("Agent: %v", err)
	}
	if n := execCalls.Load(); n != 0 {
		t.Fatalf("executor connected before first question (%d)", n)
	}

	resp := a.Answer(context.Background(), "How many customers do we have?", nil)
	if !resp.Success {
		t.Fatalf("answer failed: %+v", resp)
	}
	if resp.Summary != "There are 42 customers." {
		t.Errorf("summary = %q", resp.Summary)
	}
	if n := execCalls.Load(); n != 1 {
		t.Errorf("executor factory called %d times, want 1", n)
	}
}

func TestAgentRequiresDatabase(t *testing.T) {
	cfg := testConfig()
	cfg.Database = config.DatabaseConfig{}
	c := New(cfg, WithModel(scriptedModel{}))
	defer c.Close()

	if _, err := c.Agent(); !errors.Is(err, config.ErrNoDatabase) {
		t.Fatalf("err = %v, want ErrNoDatabase", err)
	}
}

func TestConfigMapping(t *testing.T) {
	cfg := testConfig()
	cfg.Database.PoolMaxConns = 15
	cfg.Database.PoolMinConns = 5
	cfg.Database.PoolMaxConnLifetime = "1h"
	cfg.LLM = config.LLMConfig{Provider: "anthropic", AnthropicAPIKey: "k", OpenAIAPIKey: "other", Timeout: "30s"}

	db, err := DatabaseConfig(cfg)
	if err != nil {
		t.Fatalf("DatabaseConfig: %v", err)
	}
	if db.Dialect != database.DialectPostgres || db.Pool.MaxConns != 15 || db.Pool.MaxConnLifetime != time.Hour {
		t.Errorf("database config = %+v", db)
	}

	lc := LLMConfig(cfg)
	if lc.APIKey != "k" || lc.Timeout != 30*time.Second {
		t.Errorf("llm config = %+v", lc)
	}
}
