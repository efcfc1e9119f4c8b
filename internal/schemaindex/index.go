/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent - Schema Index
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package schemaindex stores schema documentation and retrieves the
// pieces most relevant to a question.
package schemaindex

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pgedge-nla/internal/embedding"
	"pgedge-nla/internal/logging"
	"pgedge-nla/internal/schemadocs"
	"pgedge-nla/internal/search"
)

// ErrEmptyIndex is returned by Retrieve when nothing has been indexed
var ErrEmptyIndex = errors.New("schema index is empty")

// DefaultEmbedConcurrency bounds parallel embedding requests while seeding
const DefaultEmbedConcurrency = 4

// Options configures an Index
type Options struct {
	// Path of the SQLite database; ":memory:" when empty
	Path string
	// DocsPath is a file or directory of schema documentation. The
	// built-in documents are used when empty.
	DocsPath string
	// Embedder enables vector ranking; BM25 is used when nil
	Embedder embedding.Provider
	// Search tunes chunking and diversity selection
	Search search.Config
	// Concurrency defaults to DefaultEmbedConcurrency
	Concurrency int
	// Debounce for the docs watcher; defaults to DefaultDebounce
	Debounce time.Duration
}

// Index is the retrieval index over schema documentation. It is safe
// for concurrent use.
type Index struct {
	store    *Store
	embedder embedding.Provider
	opts     Options

	mu      sync.RWMutex
	entries []Entry // cache of the store content
}

// Open opens the index store
func Open(opts Options) (*Index, error) {
	if opts.Path == "" {
		opts.Path = ":memory:"
	}
	if opts.Search.ChunkSizeTokens <= 0 {
		opts.Search = search.DefaultConfig()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultEmbedConcurrency
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	store, err := OpenStore(opts.Path)
	if err != nil {
		return nil, err
	}
	return &Index{store: store, embedder: opts.Embedder, opts: opts}, nil
}

// Close closes the underlying store
func (ix *Index) Close() error {
	return ix.store.Close()
}

// Stats returns counts describing the index content
func (ix *Index) Stats(ctx context.Context) (Stats, error) {
	return ix.store.Stats(ctx)
}

// Documents loads the configured documentation, or the built-in
// documents when no docs path is configured
func (ix *Index) Documents() ([]schemadocs.Document, error) {
	if ix.opts.DocsPath == "" {
		return schemadocs.Defaults(), nil
	}
	docs, err := schemadocs.Load(ix.opts.DocsPath)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no schema documents found in %s", ix.opts.DocsPath)
	}
	return docs, nil
}

// EnsureSeeded indexes the configured documents when the store is empty
func (ix *Index) EnsureSeeded(ctx context.Context) error {
	n, err := ix.store.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		logging.Debug("schema_index_loaded", "entries", n)
		return nil
	}
	_, err = ix.Reindex(ctx)
	return err
}

// Reindex rebuilds the index from the configured documents
func (ix *Index) Reindex(ctx context.Context) (int, error) {
	docs, err := ix.Documents()
	if err != nil {
		return 0, err
	}
	return ix.Seed(ctx, docs)
}

// Seed replaces the index content with docs, embedding chunks
// concurrently when an embedder is configured
func (ix *Index) Seed(ctx context.Context, docs []schemadocs.Document) (int, error) {
	var entries []Entry
	for _, doc := range docs {
		for _, chunk := range search.ChunkDocument(doc.Source, doc.Title, doc.Content, ix.opts.Search) {
			entries = append(entries, Entry{
				Source: chunk.Source,
				Title:  chunk.Title,
				Chunk:  chunk.Index,
				Text:   chunk.Text,
			})
		}
	}

	if ix.embedder != nil {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(ix.opts.Concurrency)
		for i := range entries {
			g.Go(func() error {
				vec, err := ix.embedder.Embed(gctx, entries[i].Text)
				if err != nil {
					return fmt.Errorf("failed to embed %s chunk %d: %w", entries[i].Source, entries[i].Chunk, err)
				}
				entries[i].Embedding = toFloat32(vec)
				entries[i].Model = ix.embedder.ModelName()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return 0, err
		}
	}

	if err := ix.store.Replace(ctx, entries); err != nil {
		return 0, err
	}

	ix.mu.Lock()
	ix.entries = nil
	ix.mu.Unlock()

	logging.Info("schema_index_seeded",
		"documents", len(docs),
		"entries", len(entries),
		"embedded", ix.embedder != nil,
	)
	return len(entries), nil
}

// Retrieve returns the text of up to k entries relevant to question,
// ranked by cosine similarity when entries carry embeddings from the
// configured model and by BM25 otherwise
func (ix *Index) Retrieve(ctx context.Context, question string, k int) ([]string, error) {
	entries, err := ix.load(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrEmptyIndex
	}
	if k <= 0 {
		k = 1
	}

	chunks, ranked := ix.rankByVector(ctx, question, entries)
	if !ranked {
		chunks = search.RankChunks(toChunks(entries), question)
	}
	selected := search.NewMMRSelector(ix.opts.Search.Lambda).Select(chunks, k)

	texts := make([]string, len(selected))
	for i, c := range selected {
		texts[i] = c.Text
	}
	logging.Debug("schema_context_retrieved", "candidates", len(entries), "returned", len(texts), "vector", ranked)
	return texts, nil
}

// rankByVector scores entries by cosine similarity. It reports false
// when vector ranking is unavailable so the caller can fall back.
func (ix *Index) rankByVector(ctx context.Context, question string, entries []Entry) ([]search.Chunk, bool) {
	if ix.embedder == nil {
		return nil, false
	}
	model := ix.embedder.ModelName()
	for _, e := range entries {
		if e.Model != model || len(e.Embedding) == 0 {
			return nil, false
		}
	}

	query, err := ix.embedder.Embed(ctx, question)
	if err != nil {
		logging.Warn("query_embedding_failed", "error", err)
		return nil, false
	}

	chunks := toChunks(entries)
	for i, e := range entries {
		chunks[i].Score = search.CosineSimilarity(query, toFloat64(e.Embedding))
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})
	return chunks, true
}

func (ix *Index) load(ctx context.Context) ([]Entry, error) {
	ix.mu.RLock()
	cached := ix.entries
	ix.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	entries, err := ix.store.All(ctx)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []Entry{}
	}

	ix.mu.Lock()
	ix.entries = entries
	ix.mu.Unlock()
	return entries, nil
}

func toChunks(entries []Entry) []search.Chunk {
	chunks := make([]search.Chunk, len(entries))
	for i, e := range entries {
		chunks[i] = search.Chunk{Source: e.Source, Title: e.Title, Index: e.Chunk, Text: e.Text}
	}
	return chunks
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
