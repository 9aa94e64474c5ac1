package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/researchflow/graph"
)

// errEmptyCompletion is returned when the model answers with no text.
var errEmptyCompletion = errors.New("model returned an empty response")

// modelCall is one system+user exchange with retry and a per-attempt timeout.
type modelCall struct {
	name        string
	model       llms.Model
	temperature float64
	maxTokens   int
	timeout     time.Duration
	retry       *graph.RetryConfig
}

func newModelCall(name string, model llms.Model, config Config) modelCall {
	return modelCall{
		name:        name,
		model:       model,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		timeout:     config.ModelTimeout,
		retry:       config.Retry,
	}
}

func (c modelCall) generate(ctx context.Context, system, user string) (string, error) {
	if c.model == nil {
		return "", fmt.Errorf("%s: no model configured", c.name)
	}
	cfg := *c.retry
	if cfg.RetryableErrors == nil {
		cfg.RetryableErrors = retryable
	}

	opts := []llms.CallOption{llms.WithTemperature(c.temperature)}
	if c.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.maxTokens))
	}

	return graph.Retry(ctx, &cfg, c.name, func(ctx context.Context) (string, error) {
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		resp, err := c.model.GenerateContent(ctx, []llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, system),
			llms.TextParts(llms.ChatMessageTypeHuman, user),
		}, opts...)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
			return "", errEmptyCompletion
		}
		return resp.Choices[0].Content, nil
	})
}

// retryable keeps retrying transient failures and per-attempt timeouts but
// stops once the caller has cancelled.
func retryable(err error) bool {
	return !errors.Is(err, context.Canceled)
}
