package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const DefaultModel = openai.GPT4oMini

// Client implements Capability against the OpenAI chat completion API.
type Client struct {
	api     *openai.Client
	model   string
	limiter *rate.Limiter
	logger  *logrus.Logger
}

// NewClient builds an OpenAI-backed capability. requestsPerSecond throttles
// outbound calls; retries live with the caller, not here.
func NewClient(apiKey, model string, requestsPerSecond float64, logger *logrus.Logger) *Client {
	if model == "" {
		model = DefaultModel
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		api:     openai.NewClient(apiKey),
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		logger:  logger,
	}
}

func (c *Client) Summarize(ctx context.Context, text, structural string) (string, error) {
	user := buildSummaryPrompt(text, structural)
	return c.complete(ctx, summarySystemPrompt, user)
}

func (c *Client) GenerateDocstring(ctx context.Context, signature, body, existing string) (string, error) {
	user := buildDocstringPrompt(signature, body, existing)
	out, err := c.complete(ctx, docstringSystemPrompt, user)
	if err != nil {
		return "", err
	}
	// Models occasionally wrap the result in quotes despite instructions.
	out = strings.TrimSpace(out)
	out = strings.TrimPrefix(out, `"""`)
	out = strings.TrimSuffix(out, `"""`)
	return strings.TrimSpace(out), nil
}

func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.1,
		MaxTokens:   2000,
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	response := resp.Choices[0].Message.Content
	c.logger.WithFields(logrus.Fields{
		"model":           c.model,
		"prompt_length":   len(userPrompt),
		"response_length": len(response),
		"tokens_used":     resp.Usage.TotalTokens,
	}).Debug("completion finished")

	return strings.TrimSpace(response), nil
}
