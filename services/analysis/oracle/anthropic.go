package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"
)

const (
	anthropicAPIVersion = "2023-06-01"
	anthropicBaseURL    = "https://api.anthropic.com/v1/messages"
	defaultClaudeModel  = "claude-3-5-sonnet-20240620"
)

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float32           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// AnthropicOracle backs the analysis oracle with the Anthropic
// messages API over plain HTTP. The API key lives in a locked enclave
// and is materialized only while the request header is written.
type AnthropicOracle struct {
	httpClient *http.Client
	keys       *Keyring
	model      string
	baseURL    string
	limiter    *rate.Limiter
}

// NewAnthropicOracle builds the client from the environment. The key
// comes from ANTHROPIC_API_KEY or the anthropic_api_key container
// secret; the model from ORACLE_MODEL.
func NewAnthropicOracle() (*AnthropicOracle, error) {
	key, err := loadAPIKey("ANTHROPIC_API_KEY", "/run/secrets/anthropic_api_key")
	if err != nil {
		return nil, err
	}
	model := os.Getenv("ORACLE_MODEL")
	if model == "" {
		model = defaultClaudeModel
		slog.Warn("ORACLE_MODEL not set, defaulting", "model", model)
	}
	baseURL := os.Getenv("ANTHROPIC_BASE_URL")
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	slog.Info("Initializing Anthropic oracle", "model", model)
	return &AnthropicOracle{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		keys:       NewKeyring(key),
		model:      model,
		baseURL:    baseURL,
		limiter:    oracleRateLimiter(),
	}, nil
}

// Analyze implements the Oracle interface.
func (a *AnthropicOracle) Analyze(ctx context.Context, req Request) (string, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("oracle rate limiter: %w", err)
	}

	temp := float32(0.2)
	payload, err := json.Marshal(anthropicRequest{
		Model:  a.model,
		System: systemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: BuildPrompt(req)},
		},
		MaxTokens:   2048,
		Temperature: &temp,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)
	httpReq.Header.Set("content-type", "application/json")
	if err := a.keys.WithKey(func(key string) error {
		httpReq.Header.Set("x-api-key", key)
		return nil
	}); err != nil {
		return "", err
	}

	slog.Debug("Requesting analysis from Anthropic", "model", a.model, "file", req.FileName)
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic API returned status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("failed to parse response JSON: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("anthropic API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message)
	}

	var text string
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("received empty content from Anthropic")
	}
	return text, nil
}
