// Package gemini implements llms.Model for Google Gemini through its
// OpenAI-compatible chat completions endpoint.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/researchflow/keyring"
	"github.com/smallnest/researchflow/log"
)

var (
	ErrEmptyResponse = errors.New("no response")
	ErrRateLimited   = errors.New("rate limited")
)

// LLM is a Gemini chat model. Requests draw their API key from a keyring.Ring;
// a key rejected for quota or auth reasons is rotated out and the request is
// sent once more with the next key.
type LLM struct {
	keys             *keyring.Ring
	model            ModelName
	baseURL          string
	httpClient       *http.Client
	logger           log.Logger
	CallbacksHandler callbacks.Handler
}

var _ llms.Model = (*LLM)(nil)

// New returns a Gemini client.
//
// Keys come from WithKeyring, WithAPIKey, or else the GEMINI_API_KEY and
// GEMINI_API_KEY_1..10 environment variables.
//
//	llm, err := gemini.New(
//		gemini.WithAPIKey("your-api-key"),
//		gemini.WithModel(gemini.ModelNameFlash),
//	)
func New(opts ...Option) (*LLM, error) {
	options := &options{
		modelName: ModelNameFlashLite,
		baseURL:   DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(options)
	}

	logger := log.WithPrefix(log.OrDefault(options.logger), "gemini")
	ring := options.keys
	if ring == nil {
		apiKeys := options.apiKeys
		if len(apiKeys) == 0 {
			apiKeys = keyring.FromEnv("GEMINI_API_KEY", nil)
		}
		ring = keyring.New("gemini", apiKeys, logger)
	}
	if ring.Len() == 0 {
		return nil, fmt.Errorf(`gemini: %w
You can pass auth info by using gemini.New(gemini.WithAPIKey("{API Key}"))
or
export GEMINI_API_KEY={API Key}`, keyring.ErrNoKeys)
	}

	return &LLM{
		keys:             ring,
		model:            options.modelName,
		baseURL:          strings.TrimRight(options.baseURL, "/"),
		httpClient:       options.httpClient,
		logger:           logger,
		CallbacksHandler: options.callbacksHandler,
	}, nil
}

// Model returns the configured model name.
func (o *LLM) Model() ModelName { return o.model }

// Call generates a response from the LLM for the given prompt.
func (o *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, o, prompt, options...)
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if o.CallbacksHandler != nil {
		o.CallbacksHandler.HandleLLMGenerateContentStart(ctx, messages)
	}

	opts := &llms.CallOptions{}
	for _, opt := range options {
		opt(opts)
	}

	req := openai.ChatCompletionRequest{
		Model:       o.modelString(*opts),
		Messages:    toChatMessages(messages),
		Temperature: float32(opts.Temperature),
		TopP:        float32(opts.TopP),
		MaxTokens:   opts.MaxTokens,
		Stop:        opts.StopWords,
	}

	result, err := o.complete(ctx, req)
	if err == nil && len(result.Choices) == 0 {
		err = ErrEmptyResponse
	}
	if err != nil {
		if o.CallbacksHandler != nil {
			o.CallbacksHandler.HandleLLMError(ctx, err)
		}
		return nil, err
	}

	choice := result.Choices[0]
	resp := &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				Content:    choice.Message.Content,
				StopReason: string(choice.FinishReason),
				GenerationInfo: map[string]any{
					"prompt_tokens":     result.Usage.PromptTokens,
					"completion_tokens": result.Usage.CompletionTokens,
					"total_tokens":      result.Usage.TotalTokens,
				},
			},
		},
	}

	if o.CallbacksHandler != nil {
		o.CallbacksHandler.HandleLLMGenerateContentEnd(ctx, resp)
	}
	return resp, nil
}

func (o *LLM) complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	key, err := o.keys.Current()
	if err != nil {
		return openai.ChatCompletionResponse{}, err
	}

	result, err := o.client(key).CreateChatCompletion(ctx, req)
	if err == nil {
		return result, nil
	}
	err = classify(err)
	if !errors.Is(err, ErrRateLimited) && statusCode(err) != http.StatusUnauthorized && statusCode(err) != http.StatusForbidden {
		return result, err
	}

	next := o.keys.RotateFrom(key)
	if next == key {
		return result, err
	}
	o.logger.Warn("%s: %v, retrying with next key", req.Model, err)
	result, err = o.client(next).CreateChatCompletion(ctx, req)
	return result, classify(err)
}

func (o *LLM) client(key string) *openai.Client {
	cfg := openai.DefaultConfig(key)
	cfg.BaseURL = o.baseURL
	if o.httpClient != nil {
		cfg.HTTPClient = o.httpClient
	}
	return openai.NewClientWithConfig(cfg)
}

func (o *LLM) modelString(opts llms.CallOptions) string {
	if o.model == "" && opts.Model != "" {
		return opts.Model
	}
	return string(o.model)
}

func toChatMessages(messages []llms.MessageContent) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		var role string
		switch msg.Role {
		case llms.ChatMessageTypeSystem:
			role = openai.ChatMessageRoleSystem
		case llms.ChatMessageTypeAI:
			role = openai.ChatMessageRoleAssistant
		default:
			role = openai.ChatMessageRoleUser
		}

		var content strings.Builder
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				content.WriteString(text.Text)
			}
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: content.String()})
	}
	return out
}

// statusCode extracts the HTTP status from go-openai errors, or 0.
func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if statusCode(err) == http.StatusTooManyRequests {
		return fmt.Errorf("gemini: %w: %w", ErrRateLimited, err)
	}
	return fmt.Errorf("gemini: %w", err)
}
