package linking

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/worldlines/backend/internal/classify"
	"github.com/worldlines/backend/internal/domain"
	"github.com/worldlines/backend/pkg/circuitbreaker"
	"github.com/worldlines/backend/pkg/logger"
	"github.com/worldlines/backend/pkg/retry"
)

const rationaleSystemPrompt = `You write one-sentence rationales for directed links between news items in a structural trend tracking system called Worldlines.

Given a newer item, an older item, the relation between them, and the tickers they share exposure to, explain in one neutral sentence why the newer item relates to the older one.

RULES:
- Maximum 300 characters
- Neutral, factual language
- Describe the structural connection, not a prediction
- No forbidden terms: bullish, bearish, buy, sell, upside, downside, outperform, underperform

Respond in the following JSON format only. Do not include any text outside the JSON.

{"rationale": "..."}`

const rationaleUserTemplate = `Relation: the newer item %s the older item.
Shared tickers: %s

NEWER ITEM:
Title: %s
Source: %s

OLDER ITEM:
Title: %s
Source: %s`

type rationaleResponse struct {
	Rationale string `json:"rationale"`
}

// Client produces link rationales through a chat-completion model.
// Callers fall back to FallbackRationale when it errors, so this
// client uses a tighter retry budget than the classifiers.
type Client struct {
	api         *openai.Client
	model       string
	maxTokens   int
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

type Options struct {
	APIKey     string
	Model      string
	MaxTokens  int
	TimeoutSec int
}

func NewClient(opts Options) *Client {
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 256
	}
	if opts.TimeoutSec == 0 {
		opts.TimeoutSec = 30
	}

	cb := circuitbreaker.New("link-rationale", circuitbreaker.Config{
		MaxRequests:      5,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    2,
		InitialDelay:   250 * time.Millisecond,
		MaxDelay:       2 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	return &Client{
		api:         openai.NewClient(opts.APIKey),
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		timeout:     time.Duration(opts.TimeoutSec) * time.Second,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

var _ RationaleService = (*Client)(nil)

func (c *Client) Rationale(ctx context.Context, newer, older domain.Item, linkType domain.LinkType, sharedTickers []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	user := fmt.Sprintf(rationaleUserTemplate,
		string(linkType),
		strings.Join(sharedTickers, ", "),
		newer.Title, newer.SourceName,
		older.Title, older.SourceName,
	)

	var content string
	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:     c.model,
				MaxTokens: c.maxTokens,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleSystem, Content: rationaleSystemPrompt},
					{Role: openai.ChatMessageRoleUser, Content: user},
				},
			})
			if err != nil {
				return classify.CompletionError("rationale completion", err)
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("rationale completion: empty response")
			}
			content = resp.Choices[0].Message.Content
			return nil
		})
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}

	var parsed rationaleResponse
	if err := classify.ParseResponse(content, &parsed); err != nil {
		return "", fmt.Errorf("rationale response: %w", err)
	}

	rationale := strings.TrimSpace(parsed.Rationale)
	if rationale == "" {
		return "", fmt.Errorf("rationale response: empty rationale")
	}
	if runes := []rune(rationale); len(runes) > domain.MaxRationaleChars {
		rationale = string(runes[:domain.MaxRationaleChars])
	}
	if term := domain.ForbiddenTerm(rationale); term != "" {
		logger.Warn("Rationale contained forbidden term, using fallback",
			zap.String("term", term))
		return FallbackRationale(linkType, sharedTickers), nil
	}

	return rationale, nil
}
