package gemini

import (
	"net/http"

	"github.com/tmc/langchaingo/callbacks"

	"github.com/smallnest/researchflow/keyring"
	"github.com/smallnest/researchflow/log"
)

// ModelName is a Gemini model identifier as accepted by the OpenAI-compatible endpoint.
type ModelName string

const (
	ModelNameFlash     ModelName = "gemini-2.5-flash"      // research and reduction
	ModelNameFlashLite ModelName = "gemini-2.5-flash-lite" // planning and summarizing
	ModelNamePro       ModelName = "gemini-2.5-pro"
)

// DefaultBaseURL is Google's OpenAI-compatible API root for Gemini.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

type options struct {
	keys             *keyring.Ring
	apiKeys          []string
	modelName        ModelName
	baseURL          string
	httpClient       *http.Client
	callbacksHandler callbacks.Handler
	logger           log.Logger
}

// Option is a function that configures an LLM.
type Option func(*options)

// WithAPIKey adds a single API key. It can be given several times to build a
// rotation pool.
func WithAPIKey(apiKey string) Option {
	return func(opts *options) {
		opts.apiKeys = append(opts.apiKeys, apiKey)
	}
}

// WithKeyring shares an existing key ring, so several models rotate together.
func WithKeyring(ring *keyring.Ring) Option {
	return func(opts *options) {
		opts.keys = ring
	}
}

// WithModel sets the model name for the LLM.
func WithModel(model ModelName) Option {
	return func(opts *options) {
		opts.modelName = model
	}
}

// WithBaseURL sets the API root. Default is DefaultBaseURL.
func WithBaseURL(baseURL string) Option {
	return func(opts *options) {
		opts.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the LLM.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *options) {
		opts.httpClient = client
	}
}

// WithCallbacks sets the callbacks handler for the LLM.
func WithCallbacks(handler callbacks.Handler) Option {
	return func(opts *options) {
		opts.callbacksHandler = handler
	}
}

// WithLogger sets the logger used to report key rotation.
func WithLogger(logger log.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}
