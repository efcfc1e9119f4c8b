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

import "math"

// MMRSelector implements Maximal Marginal Relevance for diversity filtering
type MMRSelector struct {
	lambda float64 // Balance between relevance (1.0) and diversity (0.0)
}

// NewMMRSelector creates a new MMR selector; lambda is clamped to [0, 1]
func NewMMRSelector(lambda float64) *MMRSelector {
	return &MMRSelector{lambda: math.Max(0, math.Min(1, lambda))}
}

// Select picks up to maxChunks chunks from a list sorted by descending
// score, trading relevance against overlap with chunks already picked.
// Returned chunks keep their original scores.
func (m *MMRSelector) Select(chunks []Chunk, maxChunks int) []Chunk {
	if len(chunks) <= maxChunks {
		return chunks
	}

	maxScore := chunks[0].Score
	if maxScore <= 0 {
		maxScore = 1.0
	}

	remaining := make([]int, len(chunks))
	for i := range remaining {
		remaining[i] = i
	}

	var selected []Chunk
	for len(selected) < maxChunks && len(remaining) > 0 {
		bestPos := -1
		bestScore := -math.MaxFloat64
		for pos, idx := range remaining {
			relevance := chunks[idx].Score / maxScore
			mmrScore := m.lambda*relevance + (1.0-m.lambda)*m.diversity(chunks[idx], selected)
			if mmrScore > bestScore {
				bestScore = mmrScore
				bestPos = pos
			}
		}

		selected = append(selected, chunks[remaining[bestPos]])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}
	return selected
}

// diversity returns 1 minus the highest similarity to any selected chunk
func (m *MMRSelector) diversity(candidate Chunk, selected []Chunk) float64 {
	if len(selected) == 0 {
		return 1.0
	}

	maxSimilarity := 0.0
	for _, s := range selected {
		if sim := similarity(candidate, s); sim > maxSimilarity {
			maxSimilarity = sim
		}
	}
	return 1.0 - maxSimilarity
}

// similarity scores adjacent chunks of one document as near duplicates
// and otherwise falls back to token overlap
func similarity(a, b Chunk) float64 {
	if a.Source == b.Source && a.Title == b.Title {
		if abs(a.Index-b.Index) <= 1 {
			return 0.9
		}
		return 0.6
	}
	return JaccardSimilarity(a.Text, b.Text)
}

// JaccardSimilarity returns |A ∩ B| / |A ∪ B| over the token sets of two
// texts
func JaccardSimilarity(text1, text2 string) float64 {
	tokens1 := Tokenize(text1)
	tokens2 := Tokenize(text2)
	if len(tokens1) == 0 && len(tokens2) == 0 {
		return 1.0
	}
	if len(tokens1) == 0 || len(tokens2) == 0 {
		return 0.0
	}

	set1 := make(map[string]bool, len(tokens1))
	for _, token := range tokens1 {
		set1[token] = true
	}
	set2 := make(map[string]bool, len(tokens2))
	for _, token := range tokens2 {
		set2[token] = true
	}

	intersection := 0
	for token := range set1 {
		if set2[token] {
			intersection++
		}
	}
	union := len(set1) + len(set2) - intersection
	return float64(intersection) / float64(union)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
