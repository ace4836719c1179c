package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const defaultOpenAIModel = "gpt-4o-mini"

// oracleRateLimit keeps a burst of submissions from hammering the
// backend into throttling us; 2 req/s with a small burst is far below
// any account limit.
func oracleRateLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(2), 4)
}

// OpenAIOracle backs the analysis oracle with the OpenAI chat API.
type OpenAIOracle struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
}

// NewOpenAIOracle builds the client from the environment. The key
// comes from ORACLE_API_KEY or the oracle_api_key container secret;
// the model from ORACLE_MODEL.
func NewOpenAIOracle() (*OpenAIOracle, error) {
	key, err := loadAPIKey("ORACLE_API_KEY", "/run/secrets/oracle_api_key")
	if err != nil {
		return nil, err
	}
	model := os.Getenv("ORACLE_MODEL")
	if model == "" {
		model = defaultOpenAIModel
		slog.Warn("ORACLE_MODEL not set, defaulting", "model", model)
	}
	slog.Info("Initializing OpenAI oracle", "model", model)
	return &OpenAIOracle{
		client:  openai.NewClient(key),
		model:   model,
		limiter: oracleRateLimiter(),
	}, nil
}

// Analyze implements the Oracle interface.
func (o *OpenAIOracle) Analyze(ctx context.Context, req Request) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("oracle rate limiter: %w", err)
	}
	slog.Debug("Requesting analysis from OpenAI", "model", o.model, "file", req.FileName)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(req)},
		},
		Temperature: 0.2,
	})
	if err != nil {
		slog.Error("OpenAI API call failed", "error", err)
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("OpenAI returned no choices")
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// New builds the backend selected by ORACLE_BACKEND: "openai" (the
// default) or "anthropic".
func New() (Oracle, error) {
	backend := strings.ToLower(os.Getenv("ORACLE_BACKEND"))
	switch backend {
	case "", "openai":
		return NewOpenAIOracle()
	case "anthropic":
		return NewAnthropicOracle()
	default:
		return nil, fmt.Errorf("unknown ORACLE_BACKEND %q", backend)
	}
}
