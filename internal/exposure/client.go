package exposure

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/worldlines/backend/internal/classify"
	"github.com/worldlines/backend/internal/domain"
	"github.com/worldlines/backend/pkg/circuitbreaker"
	"github.com/worldlines/backend/pkg/logger"
	"github.com/worldlines/backend/pkg/retry"
)

// Client maps classifications to company exposures through a
// chat-completion model. It shares the classification service's
// transport discipline but keeps its own circuit breaker so a failing
// mapper does not trip the classifier.
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

	cb := circuitbreaker.New("exposure-mapping", circuitbreaker.Config{
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

	logger.Info("Exposure mapping client initialized", zap.String("model", opts.Model))

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

// Map asks the model for structural exposures to the classified item.
// A response that violates the exposure taxonomy is a validation
// failure, not an upstream outage.
func (c *Client) Map(ctx context.Context, item domain.Item, cls domain.Classification) (*Result, error) {
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
					{Role: openai.ChatMessageRoleUser, Content: userPrompt(item, cls)},
				},
			})
			if err != nil {
				return classify.CompletionError("exposure completion", err)
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("exposure completion: empty response")
			}

			logger.Debug("Exposure completion generated",
				zap.String("classification_id", cls.ID),
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

	var result Result
	if err := classify.ParseResponse(content, &result); err != nil {
		return nil, fmt.Errorf("exposure response: %w", err)
	}
	if err := domain.ValidateExposures(result.Exposures, result.SkipReason); err != nil {
		return nil, fmt.Errorf("exposure response: %w", err)
	}

	return &result, nil
}
