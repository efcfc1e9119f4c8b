/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package search

// Chunk is a piece of a schema document with its relevance score
type Chunk struct {
	Source string  // Document source (file path or "default")
	Title  string  // Document title
	Index  int     // Index of the chunk within its document
	Text   string  // Chunk text
	Score  float64 // BM25 or cosine score
}

// Config controls how documents are chunked and selected
type Config struct {
	ChunkSizeTokens int     // Maximum tokens per chunk
	OverlapTokens   int     // Overlap between chunks
	Lambda          float64 // MMR diversity parameter (0=max diversity, 1=max relevance)
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		ChunkSizeTokens: 200,
		OverlapTokens:   40,
		Lambda:          0.7,
	}
}
