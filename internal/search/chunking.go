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

import "strings"

// EstimateTokens approximates token count as words * 0.75, with at least
// one token for non-empty text
func EstimateTokens(text string) int {
	wordCount := len(strings.Fields(text))
	tokenCount := int(float64(wordCount) * 0.75)
	if tokenCount == 0 && wordCount > 0 {
		tokenCount = 1
	}
	return tokenCount
}

// ChunkText splits text into overlapping chunks based on token limits.
// Text that fits in one chunk is returned unchanged, whitespace included.
func ChunkText(text string, maxTokens, overlapTokens int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	maxWords := int(float64(maxTokens) / 0.75)
	overlapWords := int(float64(overlapTokens) / 0.75)
	if maxWords <= 0 {
		maxWords = 100
	}
	if overlapWords < 0 {
		overlapWords = 0
	}
	if overlapWords >= maxWords {
		overlapWords = maxWords / 4
	}

	if len(words) <= maxWords {
		return []string{text}
	}

	stepSize := maxWords - overlapWords
	if stepSize <= 0 {
		stepSize = 1
	}

	var chunks []string
	for i := 0; i < len(words); i += stepSize {
		end := i + maxWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
		if end >= len(words) {
			break
		}
	}
	return chunks
}

// ChunkDocument splits one document into chunks carrying its source and
// title
func ChunkDocument(source, title, content string, cfg Config) []Chunk {
	var chunks []Chunk
	for i, text := range ChunkText(content, cfg.ChunkSizeTokens, cfg.OverlapTokens) {
		chunks = append(chunks, Chunk{
			Source: source,
			Title:  title,
			Index:  i,
			Text:   text,
		})
	}
	return chunks
}
