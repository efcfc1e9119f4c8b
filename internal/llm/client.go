/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent - Language Model Client
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pgedge-nla/internal/logging"
)

// Supported providers
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

// Default endpoints and models
const (
	DefaultAnthropicURL   = "https://api.anthropic.com/v1"
	DefaultOpenAIURL      = "https://api.openai.com/v1"
	DefaultOllamaURL      = "http://localhost:11434"
	DefaultAnthropicModel = "claude-sonnet-4-5"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultOllamaModel    = "qwen2.5-coder:7b"

	anthropicVersion = "2023-06-01"
)

// Config configures a Client
type Config struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Client sends single-turn completions to Anthropic, OpenAI or Ollama
type Client struct {
	provider    string
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

// NewClient creates a new LLM client, filling in provider defaults
func NewClient(cfg Config) (*Client, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderAnthropic
	}

	baseURL, model := cfg.BaseURL, cfg.Model
	switch provider {
	case ProviderAnthropic:
		baseURL = firstNonEmpty(baseURL, DefaultAnthropicURL)
		model = firstNonEmpty(model, DefaultAnthropicModel)
	case ProviderOpenAI:
		baseURL = firstNonEmpty(baseURL, DefaultOpenAIURL)
		model = firstNonEmpty(model, DefaultOpenAIModel)
	case ProviderOllama:
		baseURL = firstNonEmpty(baseURL, DefaultOllamaURL)
		model = firstNonEmpty(model, DefaultOllamaModel)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		provider:    provider,
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

// Provider returns the provider name
func (c *Client) Provider() string {
	return c.provider
}

// Model returns the model name
func (c *Client) Model() string {
	return c.model
}

// IsConfigured returns whether the client has what its provider needs
func (c *Client) IsConfigured() bool {
	switch c.provider {
	case ProviderAnthropic, ProviderOpenAI:
		return c.apiKey != ""
	case ProviderOllama:
		return c.baseURL != "" && c.model != ""
	default:
		return false
	}
}

// Complete sends a system prompt and a user message and returns the
// model's text reply
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("LLM client not configured")
	}

	start := time.Now()
	var (
		text string
		err  error
	)
	switch c.provider {
	case ProviderAnthropic:
		text, err = c.completeAnthropic(ctx, system, user)
	default:
		text, err = c.completeChat(ctx, system, user)
	}

	logging.Debug("llm_completion",
		"provider", c.provider,
		"model", c.model,
		"prompt_length", len(system)+len(user),
		"duration_ms", time.Since(start).Milliseconds(),
		"success", err == nil,
	)
	return text, err
}

// completeAnthropic uses Anthropic's Messages API
func (c *Client) completeAnthropic(ctx context.Context, system, user string) (string, error) {
	reqBody := claudeRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		System:      system,
		Temperature: c.temperature,
		Messages:    []chatMessage{{Role: "user", Content: user}},
	}

	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicVersion,
	}

	var claudeResp claudeResponse
	if err := c.post(ctx, c.baseURL+"/messages", headers, reqBody, &claudeResp); err != nil {
		return "", err
	}

	var parts []string
	for _, block := range claudeResp.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}
	return strings.TrimSpace(strings.Join(parts, "")), nil
}

// completeChat uses the OpenAI chat completions API, which Ollama also
// serves under /v1
func (c *Client) completeChat(ctx context.Context, system, user string) (string, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Stream:      false,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	url := c.baseURL + "/chat/completions"
	headers := map[string]string{}
	if c.provider == ProviderOllama {
		url = c.baseURL + "/v1/chat/completions"
	} else {
		headers["Authorization"] = "Bearer " + c.apiKey
	}

	var chatResp chatResponse
	if err := c.post(ctx, url, headers, reqBody, &chatResp); err != nil {
		return "", err
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

func (c *Client) post(ctx context.Context, url string, headers map[string]string, payload, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn("llm_body_close_failed", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Internal types for the Anthropic Messages API
type claudeRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type claudeResponse struct {
	ID      string               `json:"id"`
	Type    string               `json:"type"`
	Role    string               `json:"role"`
	Content []claudeContentBlock `json:"content"`
}

type claudeContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Internal types for OpenAI-compatible chat completions
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}
