package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/quizrag/internal/domain"
	"github.com/kailas-cloud/quizrag/internal/metrics"
)

// Completer is a chat completion provider using the OpenAI-compatible API.
type Completer struct {
	client   *openai.Client
	model    string
	user     string
	provider string
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// Compile-time checks.
var (
	_ domain.Completer     = (*Completer)(nil)
	_ domain.HealthChecker = (*Completer)(nil)
)

// NewCompleter creates an OpenAI-compatible chat completion provider.
func NewCompleter(cfg *Config) *Completer {
	return &Completer{
		client:   newClient(cfg),
		model:    cfg.Model,
		user:     cfg.User,
		provider: cfg.Provider,
		limiter:  newLimiter(cfg),
		logger:   cfg.Logger,
	}
}

// Model returns the chat model identifier.
func (c *Completer) Model() string { return c.model }

// Complete sends the prompt as a system+user exchange and returns the first choice.
func (c *Completer) Complete(ctx context.Context, p domain.Prompt) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if p.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: p.User})

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
		User:        c.user,
	}
	if p.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		err = parseAPIError("chat completion", err)
		metrics.CompletionRequestsTotal.WithLabelValues(c.provider, c.model, errorType(err)).Inc()
		c.logger.Debug("Chat completion failed",
			zap.String("provider", c.provider),
			zap.String("model", c.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return "", err
	}
	if len(resp.Choices) == 0 {
		metrics.CompletionRequestsTotal.WithLabelValues(c.provider, c.model, "empty").Inc()
		return "", fmt.Errorf("chat completion returned no choices: %w", domain.ErrProviderUnavailable)
	}

	metrics.CompletionRequestsTotal.WithLabelValues(c.provider, c.model, "success").Inc()
	metrics.CompletionRequestDuration.WithLabelValues(c.provider, c.model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.CompletionTokensTotal.WithLabelValues(c.provider, c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.CompletionTokensTotal.WithLabelValues(c.provider, c.model, "completion").Add(float64(resp.Usage.CompletionTokens))
	}

	c.logger.Debug("Chat completion completed",
		zap.String("provider", c.provider),
		zap.String("model", c.model),
		zap.Duration("duration", duration),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
	)

	return resp.Choices[0].Message.Content, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Completer) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return parseAPIError("list models", err)
	}
	return nil
}
