/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"pgedge-nla/internal/logging"
)

const (
	// OllamaHTTPTimeout is longer than the hosted providers since Ollama
	// may need to load the model first
	OllamaHTTPTimeout = 60 * time.Second

	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "nomic-embed-text"
)

// OllamaProvider implements embedding generation using Ollama
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

type ollamaEmbeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// Ollama returns one embedding per input text
type ollamaEmbeddingResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

var (
	ollamaModelDimensionsMu sync.RWMutex
	ollamaModelDimensions   = map[string]int{
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
	}
)

// NewOllamaProvider creates a new Ollama embedding provider
func NewOllamaProvider(baseURL, model string) (*OllamaProvider, error) {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if model == "" {
		model = defaultOllamaModel
	}

	logging.Debug("embedding_provider_init", "provider", "ollama", "model", model, "base_url", baseURL)

	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: OllamaHTTPTimeout},
	}, nil
}

// Embed generates an embedding vector for the given text
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	var embResp ollamaEmbeddingResponse
	err := postJSON(ctx, p.client, "ollama", p.model, p.baseURL+"/api/embed", nil,
		ollamaEmbeddingRequest{Model: p.model, Input: text}, &embResp, len(text))
	if err != nil {
		return nil, fmt.Errorf("ollama at %s: %w", p.baseURL, err)
	}

	if len(embResp.Embeddings) == 0 || len(embResp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("received empty embedding from Ollama (model may not be installed: try 'ollama pull %s')", p.model)
	}
	vec := embResp.Embeddings[0]

	// Unknown models learn their size from the first response
	ollamaModelDimensionsMu.Lock()
	if _, ok := ollamaModelDimensions[p.model]; !ok {
		ollamaModelDimensions[p.model] = len(vec)
	}
	ollamaModelDimensionsMu.Unlock()

	return vec, nil
}

// Dimensions returns the number of dimensions for this model
func (p *OllamaProvider) Dimensions() int {
	ollamaModelDimensionsMu.RLock()
	defer ollamaModelDimensionsMu.RUnlock()
	return ollamaModelDimensions[p.model]
}

// ModelName returns the model name
func (p *OllamaProvider) ModelName() string {
	return p.model
}

// ProviderName returns "ollama"
func (p *OllamaProvider) ProviderName() string {
	return "ollama"
}
