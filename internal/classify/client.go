package classify

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/worldlines/backend/internal/domain"
	"github.com/worldlines/backend/pkg/circuitbreaker"
	"github.com/worldlines/backend/pkg/logger"
	"github.com/worldlines/backend/pkg/retry"
)

// Client calls a chat-completion model to classify items. It satisfies
// Service; every call is wrapped in a per-call timeout, bounded retry,
// and a circuit breaker.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

type Options struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
	MaxRetries  int
}

func NewClient(opts Options) *Client {
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 1024
	}
	if opts.TimeoutSec == 0 {
		opts.TimeoutSec = 60
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}

	cb := circuitbreaker.New("classification", circuitbreaker.Config{
		MaxRequests:      5,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    opts.MaxRetries,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Classification client initialized", zap.String("model", opts.Model))

	return &Client{
		api:         openai.NewClient(opts.APIKey),
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		timeout:     time.Duration(opts.TimeoutSec) * time.Second,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

var _ Service = (*Client)(nil)

// Classify sends the item to the model and returns the validated
// payload. A non-conforming model response maps to
// domain.ErrClassificationUncertain; transport failure after the retry
// budget maps to domain.ErrUpstreamUnavailable.
func (c *Client) Classify(ctx context.Context, item domain.Item) (*Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var content string
	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:       c.model,
				Temperature: c.temperature,
				MaxTokens:   c.maxTokens,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
					{Role: openai.ChatMessageRoleUser, Content: userPrompt(item)},
				},
			})
			if err != nil {
				return CompletionError("classification completion", err)
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("classification completion: empty response")
			}

			logger.Debug("Classification completion generated",
				zap.String("item_id", item.ID),
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			content = resp.Choices[0].Message.Content
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}

	var payload Payload
	if err := ParseResponse(content, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrClassificationUncertain, err)
	}
	if err := validatePayload(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrClassificationUncertain, err)
	}

	return &payload, nil
}

// CompletionError wraps a chat-completion failure for the retry loop.
// Client-side API rejections, 4xx other than rate limits, are marked
// permanent so the attempt budget is not burned on requests that
// cannot succeed.
func CompletionError(op string, err error) error {
	wrapped := fmt.Errorf("%s: %w", op, err)
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) &&
		apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 &&
		apiErr.HTTPStatusCode != 429 {
		return retry.Permanent(wrapped)
	}
	return wrapped
}

// validatePayload applies the same closed-set rules the store enforces,
// so a non-conforming model response is caught at the service boundary.
func validatePayload(p *Payload) error {
	probe := domain.Classification{
		Dimensions:  p.Dimensions,
		ChangeType:  p.ChangeType,
		TimeHorizon: p.TimeHorizon,
		Summary:     p.Summary,
		Importance:  p.Importance,
		KeyEntities: p.KeyEntities,
	}
	return probe.Validate()
}
