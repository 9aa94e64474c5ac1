package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/smallnest/researchflow/keyring"
	"github.com/smallnest/researchflow/log"
)

const defaultTavilyBaseURL = "https://api.tavily.com"

// Tavily calls the Tavily search API. Search uses basic depth for quick
// snippets; ExtractContext runs an advanced search with raw page content.
type Tavily struct {
	keys            *keyring.Ring
	BaseURL         string
	MaxResults      int
	ContextResults  int
	MaxContextChars int
	client          *http.Client
	logger          log.Logger
}

type TavilyOption func(*Tavily)

// WithTavilyBaseURL overrides the API root, e.g. for tests.
func WithTavilyBaseURL(baseURL string) TavilyOption {
	return func(t *Tavily) {
		t.BaseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTavilyMaxResults sets the number of hits Search returns (1-20).
func WithTavilyMaxResults(n int) TavilyOption {
	return func(t *Tavily) {
		t.MaxResults = min(max(n, 1), 20)
	}
}

// WithTavilyContextResults sets how many pages ExtractContext draws from (1-20).
func WithTavilyContextResults(n int) TavilyOption {
	return func(t *Tavily) {
		t.ContextResults = min(max(n, 1), 20)
	}
}

// WithTavilyMaxContextChars caps the text ExtractContext returns.
func WithTavilyMaxContextChars(n int) TavilyOption {
	return func(t *Tavily) {
		t.MaxContextChars = n
	}
}

// WithTavilyHTTPClient sets the HTTP client, which also carries the timeout.
func WithTavilyHTTPClient(c *http.Client) TavilyOption {
	return func(t *Tavily) {
		t.client = c
	}
}

// WithTavilyLogger sets the logger.
func WithTavilyLogger(l log.Logger) TavilyOption {
	return func(t *Tavily) {
		t.logger = l
	}
}

// NewTavily creates a Tavily client drawing API keys from keys.
func NewTavily(keys *keyring.Ring, opts ...TavilyOption) (*Tavily, error) {
	if keys == nil || keys.Len() == 0 {
		return nil, fmt.Errorf("tavily: %w", keyring.ErrNoKeys)
	}
	t := &Tavily{
		keys:            keys,
		BaseURL:         defaultTavilyBaseURL,
		MaxResults:      2,
		ContextResults:  3,
		MaxContextChars: 8000,
		client:          &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = log.OrDefault(t.logger)
	return t, nil
}

type tavilySearchRequest struct {
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results"`
	SearchDepth       string `json:"search_depth"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

// TavilyResponse represents the response from Tavily's search endpoint.
type TavilyResponse struct {
	Query   string         `json:"query"`
	Results []TavilyResult `json:"results"`
}

// TavilyResult represents a single search result from Tavily
type TavilyResult struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
	RawContent string  `json:"raw_content"`
}

// ExtractedPage is one page returned by Extract.
type ExtractedPage struct {
	URL        string `json:"url"`
	RawContent string `json:"raw_content"`
}

type tavilyExtractResponse struct {
	Results       []ExtractedPage `json:"results"`
	FailedResults []struct {
		URL   string `json:"url"`
		Error string `json:"error"`
	} `json:"failed_results"`
}

// Search returns up to MaxResults hits for query.
func (t *Tavily) Search(ctx context.Context, query string) ([]SearchResult, error) {
	var resp TavilyResponse
	err := t.post(ctx, "/search", tavilySearchRequest{
		Query:       query,
		MaxResults:  t.MaxResults,
		SearchDepth: "basic",
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("tavily search %q: %w", query, ErrNoResults)
	}

	results := make([]SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Content, Score: r.Score})
	}
	return results, nil
}

// ExtractContext runs an advanced-depth search and joins the raw content of
// the returned pages, capped at MaxContextChars.
func (t *Tavily) ExtractContext(ctx context.Context, query string) (string, error) {
	var resp TavilyResponse
	err := t.post(ctx, "/search", tavilySearchRequest{
		Query:             query,
		MaxResults:        t.ContextResults,
		SearchDepth:       "advanced",
		IncludeRawContent: true,
	}, &resp)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, r := range resp.Results {
		text := strings.TrimSpace(r.RawContent)
		if text == "" {
			text = strings.TrimSpace(r.Content)
		}
		if text == "" {
			continue
		}
		fmt.Fprintf(&sb, "Source: %s (%s)\n%s\n\n", r.Title, r.URL, text)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("tavily context %q: %w", query, ErrNoResults)
	}
	return truncate(strings.TrimSpace(sb.String()), t.MaxContextChars), nil
}

// Extract fetches the content of specific URLs through Tavily's extract endpoint.
// URLs Tavily could not read are logged and skipped.
func (t *Tavily) Extract(ctx context.Context, urls []string) ([]ExtractedPage, error) {
	if len(urls) == 0 {
		return nil, errors.New("tavily extract: no urls")
	}
	var resp tavilyExtractResponse
	if err := t.post(ctx, "/extract", map[string]any{"urls": urls}, &resp); err != nil {
		return nil, err
	}
	for _, f := range resp.FailedResults {
		t.logger.Debug("tavily extract skipped %s: %s", f.URL, f.Error)
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("tavily extract: %w", ErrNoResults)
	}
	return resp.Results, nil
}

// post sends body to path with the active key. When Tavily rejects the key for
// rate or quota reasons the ring is rotated and the request is sent once more.
func (t *Tavily) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("tavily: failed to marshal request: %w", err)
	}

	key, err := t.keys.Current()
	if err != nil {
		return err
	}

	err = t.do(ctx, path, key, payload, out)
	if err == nil || !Rotatable(err) {
		return err
	}

	next := t.keys.RotateFrom(key)
	if next == key {
		return err
	}
	t.logger.Warn("tavily %s: %v, retrying with next key", path, err)
	return t.do(ctx, path, next, payload, out)
}

func (t *Tavily) do(ctx context.Context, path, key string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("tavily: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("tavily: failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Service: "tavily", StatusCode: resp.StatusCode, Body: string(b)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("tavily: failed to decode response: %w", err)
	}
	return nil
}

// Fetch implements Fetcher with Tavily's extract endpoint, so a PageExtractor
// can read pages through Tavily instead of fetching them directly.
func (t *Tavily) Fetch(ctx context.Context, pageURL string) (string, error) {
	pages, err := t.Extract(ctx, []string{pageURL})
	if err != nil {
		return "", err
	}
	return truncate(strings.TrimSpace(pages[0].RawContent), t.MaxContextChars), nil
}
