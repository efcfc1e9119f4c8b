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
	"time"

	"pgedge-nla/internal/logging"
)

const (
	// VoyageHTTPTimeout is the HTTP client timeout for Voyage AI requests
	VoyageHTTPTimeout = 30 * time.Second

	defaultVoyageURL = "https://api.voyageai.com/v1"
)

// VoyageProvider implements embedding generation using Voyage AI
type VoyageProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

type voyageEmbeddingRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type,omitempty"`
}

type voyageEmbeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

var voyageModelDimensions = map[string]int{
	"voyage-3":        1024,
	"voyage-3-lite":   512,
	"voyage-3-large":  1024,
	"voyage-code-3":   1024,
	"voyage-3.5":      1024,
	"voyage-3.5-lite": 1024,
}

// NewVoyageProvider creates a new Voyage AI embedding provider
func NewVoyageProvider(apiKey, model, baseURL string) (*VoyageProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Voyage AI API key cannot be empty")
	}
	if model == "" {
		model = "voyage-3-lite"
	}
	if _, ok := voyageModelDimensions[model]; !ok {
		return nil, fmt.Errorf("unsupported Voyage AI model: %s", model)
	}
	if baseURL == "" {
		baseURL = defaultVoyageURL
	}

	logging.Debug("embedding_provider_init", "provider", "voyage", "model", model,
		"api_key", maskKey(apiKey), "base_url", baseURL)

	return &VoyageProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: VoyageHTTPTimeout},
	}, nil
}

// Embed generates an embedding vector for the given text
func (p *VoyageProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	var embResp voyageEmbeddingResponse
	err := postJSON(ctx, p.client, "voyage", p.model, p.baseURL+"/embeddings",
		map[string]string{"Authorization": "Bearer " + p.apiKey},
		voyageEmbeddingRequest{Input: []string{text}, Model: p.model}, &embResp, len(text))
	if err != nil {
		return nil, err
	}

	if len(embResp.Data) == 0 || len(embResp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("received empty embedding from API")
	}
	return embResp.Data[0].Embedding, nil
}

// Dimensions returns the number of dimensions for this model
func (p *VoyageProvider) Dimensions() int {
	return voyageModelDimensions[p.model]
}

// ModelName returns the model name
func (p *VoyageProvider) ModelName() string {
	return p.model
}

// ProviderName returns "voyage"
func (p *VoyageProvider) ProviderName() string {
	return "voyage"
}
