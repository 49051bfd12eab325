// Package ai provides LLM-backed response naturalization and post-call
// analysis using the OpenAI chat completions API.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/lososs/callagent/internal/circuitbreaker"
	"github.com/lososs/callagent/internal/config"
	"github.com/lososs/callagent/internal/domain"
	"github.com/lososs/callagent/internal/metrics"
)

// maxNaturalizedChars guards against completions that ramble past what a
// voice response can carry. Longer outputs are discarded and the caller
// falls back to the raw template.
const maxNaturalizedChars = 300

// completionAPI is the slice of the OpenAI client the package uses.
// *openai.Client satisfies it; tests inject a fake.
type completionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client wraps the OpenAI API behind a circuit breaker with short timeouts.
// Every method degrades gracefully: callers always have a non-LLM fallback.
type Client struct {
	api         completionAPI
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	breaker     *circuitbreaker.CircuitBreaker
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewClient creates a Client from configuration.
func NewClient(cfg *config.OpenAIConfig, m *metrics.Metrics, logger *zap.Logger) *Client {
	cbConfig := &circuitbreaker.Config{
		FailureThreshold:    5,
		SuccessThreshold:    3,
		OpenTimeout:         30 * time.Second,
		HalfOpenMaxRequests: 3,
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		api:         openai.NewClient(cfg.APIKey),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
		timeout:     timeout,
		breaker:     circuitbreaker.New("openai", cbConfig, logger),
		metrics:     m,
		logger:      logger,
	}
}

// Naturalize rephrases a selected template so it reads as a direct reply to
// what the caller just said. Returns an error when the completion fails, is
// empty, or exceeds the length guard; the engine then uses the template
// verbatim.
func (c *Client) Naturalize(ctx context.Context, template, utterance string, history []domain.Turn) (string, error) {
	prompt := buildNaturalizePrompt(template, utterance, history)

	text, err := c.complete(ctx, prompt, false)
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(strings.Trim(strings.TrimSpace(text), `"`))
	if text == "" {
		return "", fmt.Errorf("empty completion")
	}
	if len(text) > maxNaturalizedChars {
		return "", fmt.Errorf("completion too long: %d chars", len(text))
	}

	return text, nil
}

// CircuitBreakerStats returns the current circuit breaker statistics.
func (c *Client) CircuitBreakerStats() circuitbreaker.Stats {
	return c.breaker.Stats()
}

// IsCircuitOpen returns true if the circuit breaker is open.
func (c *Client) IsCircuitOpen() bool {
	return c.breaker.IsOpen()
}

// complete runs one chat completion through the circuit breaker.
func (c *Client) complete(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
		// Analysis wants determinism more than flair.
		req.Temperature = 0.3
		req.MaxTokens = 500
	}

	var content string
	start := time.Now()

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		resp, execErr := c.api.CreateChatCompletion(ctx, req)
		if execErr != nil {
			return execErr
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("no choices in completion")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})

	if c.metrics != nil {
		c.metrics.RecordLLMCall(err == nil, time.Since(start))
		if c.breaker.IsOpen() {
			c.metrics.RecordLLMCircuitOpen()
		}
	}

	if err != nil {
		c.logger.Warn("chat completion failed", zap.Error(err))
		return "", err
	}

	return content, nil
}

// buildNaturalizePrompt constructs the rephrasing prompt. The last few
// turns give the model enough context to make the reply connect.
func buildNaturalizePrompt(template, utterance string, history []domain.Turn) string {
	var b strings.Builder

	b.WriteString("You are a friendly phone sales agent for a web design company.\n")
	b.WriteString("Rephrase the scripted response below so it sounds like a natural spoken reply ")
	b.WriteString("to what the customer just said. Keep the meaning, the offer, and any question intact. ")
	b.WriteString("One or two short sentences, plain spoken language, no emojis, no markdown.\n\n")

	recent := history
	if len(recent) > 4 {
		recent = recent[len(recent)-4:]
	}
	if len(recent) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, turn := range recent {
			speaker := "CUSTOMER"
			if turn.Speaker == domain.SpeakerAgent {
				speaker = "AGENT"
			}
			fmt.Fprintf(&b, "%s: %s\n", speaker, turn.Text)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Customer just said: %s\n", utterance)
	fmt.Fprintf(&b, "Scripted response: %s\n\n", template)
	b.WriteString("Rephrased reply:")

	return b.String()
}
