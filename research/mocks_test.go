package research

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/researchflow/graph"
	"github.com/smallnest/researchflow/log"
	"github.com/smallnest/researchflow/tool"
)

// MockLLM answers by stage, recognised from the system prompt.
type MockLLM struct {
	Plan      func(ctx context.Context, query string) (string, error)
	Reduce    func(ctx context.Context, user string) (string, error)
	Summarize func(ctx context.Context, user string) (string, error)

	mu      sync.Mutex
	calls   map[string]int
	options llms.CallOptions
}

func (m *MockLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	system, user := textOf(messages[0]), textOf(messages[len(messages)-1])

	var stage string
	var fn func(context.Context, string) (string, error)
	switch {
	case strings.HasPrefix(system, "You are a research planner"):
		stage, fn = NodePlanner, m.Plan
	case strings.HasPrefix(system, "You condense"):
		stage, fn = NodeResearcher, m.Reduce
	default:
		stage, fn = NodeSummarizer, m.Summarize
	}

	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[stage]++
	m.options = llms.CallOptions{}
	for _, opt := range options {
		opt(&m.options)
	}
	m.mu.Unlock()

	if fn == nil {
		return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "- nothing"}}}, nil
	}
	out, err := fn(ctx, user)
	if err != nil {
		return nil, err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: out}}}, nil
}

func (m *MockLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *MockLLM) Calls(stage string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[stage]
}

// LastOptions returns the call options of the most recent call.
func (m *MockLLM) LastOptions() llms.CallOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.options
}

func textOf(msg llms.MessageContent) string {
	var sb strings.Builder
	for _, p := range msg.Parts {
		if t, ok := p.(llms.TextContent); ok {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}

// blockUntilDone simulates a model that never answers.
func blockUntilDone(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type mockSearcher struct {
	fn    func(ctx context.Context, query string) ([]tool.SearchResult, error)
	calls atomic.Int32
}

func (m *mockSearcher) Search(ctx context.Context, query string) ([]tool.SearchResult, error) {
	m.calls.Add(1)
	return m.fn(ctx, query)
}

type mockExtractor struct {
	fn    func(ctx context.Context, query string) (string, error)
	calls atomic.Int32
}

func (m *mockExtractor) ExtractContext(ctx context.Context, query string) (string, error) {
	m.calls.Add(1)
	return m.fn(ctx, query)
}

func hitsFor(query string) []tool.SearchResult {
	slug := strings.ReplaceAll(strings.ToLower(query), " ", "-")
	return []tool.SearchResult{{
		Title:   "About " + query,
		URL:     "https://example.com/" + slug,
		Snippet: "snippet for " + query,
	}}
}

func okSearcher() *mockSearcher {
	return &mockSearcher{fn: func(_ context.Context, q string) ([]tool.SearchResult, error) {
		return hitsFor(q), nil
	}}
}

func okExtractor() *mockExtractor {
	return &mockExtractor{fn: func(_ context.Context, q string) (string, error) {
		return "context for " + q, nil
	}}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Retry = graph.NoRetry()
	cfg.ModelTimeout = time.Second
	cfg.LookupTimeout = time.Second
	cfg.Logger = log.NoOpLogger{}
	return cfg
}

func fastRetry(attempts int) *graph.RetryConfig {
	return &graph.RetryConfig{
		MaxAttempts:   attempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      2 * time.Millisecond,
		BackoffFactor: 2,
	}
}
