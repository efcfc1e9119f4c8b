/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package services owns the process-wide collaborators of the agent: the
// schema retrieval index and the database executor. Each is created on
// first use, exactly once, no matter how many requests race for it. A
// failed creation is not cached; the next caller tries again.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pgedge-nla/internal/agent"
	"pgedge-nla/internal/config"
	"pgedge-nla/internal/database"
	"pgedge-nla/internal/embedding"
	"pgedge-nla/internal/llm"
	"pgedge-nla/internal/logging"
	"pgedge-nla/internal/schemaindex"
)

// Index is the retrieval side of the schema index
type Index interface {
	Retrieve(ctx context.Context, question string, k int) ([]string, error)
	EnsureSeeded(ctx context.Context) error
	Close() error
}

// IndexFactory creates the retrieval index
type IndexFactory func(ctx context.Context) (Index, error)

// ExecutorFactory connects the database executor
type ExecutorFactory func(ctx context.Context) (database.Executor, error)

// Option customises a Container
type Option func(*Container)

// WithIndexFactory replaces the index factory derived from configuration
func WithIndexFactory(f IndexFactory) Option {
	return func(c *Container) { c.newIndex = f }
}

// WithExecutorFactory replaces the executor factory derived from configuration
func WithExecutorFactory(f ExecutorFactory) Option {
	return func(c *Container) { c.newExecutor = f }
}

// WithModel replaces the language model built from configuration
func WithModel(m agent.LanguageModel) Option {
	return func(c *Container) { c.model = m }
}

// Container holds the shared collaborators. Create one at startup and
// pass it by reference.
type Container struct {
	cfg *config.Config

	newIndex    IndexFactory
	newExecutor ExecutorFactory
	model       agent.LanguageModel

	index    lazy[Index]
	executor lazy[database.Executor]

	watcher *schemaindex.Watcher
	cancel  context.CancelFunc
	bgCtx   context.Context
}

// ErrClosed is returned by accessors after Close
var ErrClosed = errors.New("services closed")

// lazy holds a value created at most once. The mutex is held during
// creation so concurrent first callers wait for the same result.
type lazy[T any] struct {
	mu     sync.Mutex
	val    T
	ready  bool
	closed bool
}

func (l *lazy[T]) get(create func() (T, error)) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var zero T
	if l.closed {
		return zero, ErrClosed
	}
	if l.ready {
		return l.val, nil
	}
	v, err := create()
	if err != nil {
		return zero, err
	}
	l.val, l.ready = v, true
	return v, nil
}

// close marks the holder closed and returns the value if one was created
func (l *lazy[T]) close() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		var zero T
		return zero, false
	}
	l.closed = true
	return l.val, l.ready
}

// New creates a Container for cfg. Nothing is connected until first use.
func New(cfg *config.Config, opts ...Option) *Container {
	bgCtx, cancel := context.WithCancel(context.Background())
	c := &Container{cfg: cfg, bgCtx: bgCtx, cancel: cancel}
	c.newIndex = c.openIndex
	c.newExecutor = c.openExecutor
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the configuration the container was built from
func (c *Container) Config() *config.Config {
	return c.cfg
}

// Index returns the seeded retrieval index, creating it on the first call
func (c *Container) Index(ctx context.Context) (Index, error) {
	return c.index.get(func() (Index, error) {
		ix, err := c.newIndex(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to open schema index: %w", err)
		}
		if err := ix.EnsureSeeded(ctx); err != nil {
			ix.Close()
			return nil, fmt.Errorf("failed to seed schema index: %w", err)
		}
		if sx, ok := ix.(*schemaindex.Index); ok && c.cfg.SchemaIndex.Watch && c.cfg.SchemaIndex.DocsPath != "" {
			w, err := sx.Watch(c.bgCtx)
			if err != nil {
				logging.Warn("schema_watch_failed", "error", err)
			} else {
				c.watcher = w
			}
		}
		logging.Info("schema_index_ready")
		return ix, nil
	})
}

// Executor returns the database executor, connecting on the first call
func (c *Container) Executor(ctx context.Context) (database.Executor, error) {
	return c.executor.get(func() (database.Executor, error) {
		exec, err := c.newExecutor(ctx)
		if err != nil {
			logging.Error("database_connect_failed", "error", err)
			return nil, err
		}
		logging.Info("database_ready", "dialect", exec.Dialect())
		return exec, nil
	})
}

// Agent builds an agent whose retriever and executor resolve through the
// container on first use. The configured language model client is used
// unless one was injected.
func (c *Container) Agent() (*agent.Agent, error) {
	model := c.model
	if model == nil {
		client, err := llm.NewClient(LLMConfig(c.cfg))
		if err != nil {
			return nil, err
		}
		model = client
	}
	dialect, err := c.dialect()
	if err != nil {
		return nil, err
	}
	return agent.New(agent.Config{
		Model:         model,
		Retriever:     lazyRetriever{c},
		Executor:      lazyExecutor{c},
		Dialect:       dialect,
		TopK:          c.cfg.SchemaIndex.TopK,
		HistoryWindow: c.cfg.History.MaxMessages,
	})
}

func (c *Container) dialect() (agent.Dialect, error) {
	name, err := c.cfg.Database.ResolveDialect()
	if err != nil {
		return "", err
	}
	return agent.ParseDialect(name)
}

// Close stops the docs watcher and releases the index and the executor
func (c *Container) Close() error {
	c.cancel()

	var errs []error
	if ix, ok := c.index.close(); ok {
		if c.watcher != nil {
			c.watcher.Stop()
		}
		errs = append(errs, ix.Close())
	}
	if exec, ok := c.executor.close(); ok {
		errs = append(errs, exec.Close())
	}
	return errors.Join(errs...)
}

// openIndex is the default IndexFactory
func (c *Container) openIndex(ctx context.Context) (Index, error) {
	return OpenIndex(c.cfg)
}

// openExecutor is the default ExecutorFactory
func (c *Container) openExecutor(ctx context.Context) (database.Executor, error) {
	dbCfg, err := DatabaseConfig(c.cfg)
	if err != nil {
		return nil, err
	}
	return database.Open(ctx, dbCfg)
}

// OpenIndex opens the schema index described by cfg, with an embedding
// provider when embeddings are enabled
func OpenIndex(cfg *config.Config) (*schemaindex.Index, error) {
	var embedder embedding.Provider
	if cfg.Embedding.Enabled {
		p, err := embedding.NewProvider(EmbeddingConfig(cfg))
		if err != nil {
			return nil, err
		}
		embedder = p
	}
	return schemaindex.Open(schemaindex.Options{
		Path:     cfg.SchemaIndex.Path,
		DocsPath: cfg.SchemaIndex.DocsPath,
		Embedder: embedder,
	})
}

// DatabaseConfig maps the database section onto executor settings
func DatabaseConfig(cfg *config.Config) (database.Config, error) {
	dialect, err := cfg.Database.ResolveDialect()
	if err != nil {
		return database.Config{}, err
	}
	db := cfg.Database
	return database.Config{
		Dialect: dialect,
		Postgres: database.PostgresConfig{
			URL:      db.URL,
			Host:     db.Host,
			Port:     db.Port,
			Database: db.Database,
			User:     db.User,
			Password: db.Password,
			SSLMode:  db.SSLMode,
		},
		SQLServerDSN: db.SQLServerDSN,
		Pool: database.Pool{
			MaxConns:          db.PoolMaxConns,
			MinConns:          db.PoolMinConns,
			MaxConnLifetime:   db.MaxConnLifetime(),
			MaxConnIdleTime:   db.MaxConnIdleTime(),
			HealthCheckPeriod: db.HealthCheckPeriod(),
		},
	}, nil
}

// LLMConfig maps the llm section onto client settings
func LLMConfig(cfg *config.Config) llm.Config {
	out := llm.Config{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.TimeoutDuration(),
	}
	switch cfg.LLM.Provider {
	case llm.ProviderAnthropic:
		out.APIKey = cfg.LLM.AnthropicAPIKey
	case llm.ProviderOpenAI:
		out.APIKey = cfg.LLM.OpenAIAPIKey
	case llm.ProviderOllama:
		out.BaseURL = cfg.LLM.OllamaURL
	}
	return out
}

// EmbeddingConfig maps the embedding section onto provider settings
func EmbeddingConfig(cfg *config.Config) embedding.Config {
	return embedding.Config{
		Provider:     cfg.Embedding.Provider,
		Model:        cfg.Embedding.Model,
		VoyageAPIKey: cfg.Embedding.VoyageAPIKey,
		OpenAIAPIKey: cfg.Embedding.OpenAIAPIKey,
		OllamaURL:    cfg.Embedding.OllamaURL,
	}
}

// lazyRetriever opens the index on the first question
type lazyRetriever struct{ c *Container }

func (r lazyRetriever) Retrieve(ctx context.Context, question string, k int) ([]string, error) {
	ix, err := r.c.Index(ctx)
	if err != nil {
		return nil, err
	}
	return ix.Retrieve(ctx, question, k)
}

// lazyExecutor connects to the database on the first query
type lazyExecutor struct{ c *Container }

func (e lazyExecutor) Execute(ctx context.Context, sql string) (any, error) {
	exec, err := e.c.Executor(ctx)
	if err != nil {
		return nil, err
	}
	return exec.Execute(ctx, sql)
}
