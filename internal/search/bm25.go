/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent - BM25 Ranking
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package search

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// BM25Scorer implements the BM25 ranking algorithm
type BM25Scorer struct {
	k1 float64 // Term frequency saturation parameter (typical: 1.2-2.0)
	b  float64 // Length normalization parameter (typical: 0.75)
}

// NewBM25Scorer creates a new BM25 scorer with default parameters
func NewBM25Scorer() *BM25Scorer {
	return &BM25Scorer{k1: 1.5, b: 0.75}
}

// Tokenize converts text to lowercase tokens (words only, no punctuation).
// Single letters are dropped; single digits are kept.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	var filtered []string
	for _, word := range words {
		if len(word) > 1 || unicode.IsNumber(rune(word[0])) {
			filtered = append(filtered, word)
		}
	}
	return filtered
}

// CalculateIDF computes inverse document frequency for all terms in the
// corpus: log((N - df + 0.5) / (df + 0.5) + 1)
func CalculateIDF(documents [][]string) map[string]float64 {
	idf := make(map[string]float64)
	totalDocs := float64(len(documents))
	if totalDocs == 0 {
		return idf
	}

	docFreq := make(map[string]int)
	for _, doc := range documents {
		seen := make(map[string]bool)
		for _, token := range doc {
			if !seen[token] {
				docFreq[token]++
				seen[token] = true
			}
		}
	}

	for term, df := range docFreq {
		idf[term] = math.Log((totalDocs-float64(df)+0.5)/(float64(df)+0.5) + 1.0)
	}
	return idf
}

// Score computes the BM25 score of a document for a query
func (bm *BM25Scorer) Score(queryTokens, docTokens []string, avgDocLength float64, idf map[string]float64) float64 {
	if len(queryTokens) == 0 || len(docTokens) == 0 || avgDocLength == 0 {
		return 0.0
	}

	termFreq := make(map[string]int)
	for _, token := range docTokens {
		termFreq[token]++
	}

	docLength := float64(len(docTokens))
	score := 0.0
	for _, queryToken := range queryTokens {
		tf, exists := termFreq[queryToken]
		if !exists {
			continue
		}
		numerator := float64(tf) * (bm.k1 + 1)
		denominator := float64(tf) + bm.k1*(1-bm.b+bm.b*docLength/avgDocLength)
		score += idf[queryToken] * (numerator / denominator)
	}
	return score
}

// RankChunks scores chunks against the query with BM25 and sorts them by
// descending score. Ties keep their input order.
func RankChunks(chunks []Chunk, queryText string) []Chunk {
	queryTokens := Tokenize(queryText)
	if len(chunks) == 0 || len(queryTokens) == 0 {
		return chunks
	}

	documents := make([][]string, len(chunks))
	totalLength := 0
	for i, chunk := range chunks {
		documents[i] = Tokenize(chunk.Text)
		totalLength += len(documents[i])
	}
	avgDocLength := float64(totalLength) / float64(len(chunks))
	idf := CalculateIDF(documents)

	scorer := NewBM25Scorer()
	for i := range chunks {
		chunks[i].Score = scorer.Score(queryTokens, documents[i], avgDocLength, idf)
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})
	return chunks
}
