package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/smallnest/researchflow/keyring"
)

// BraveSearch searches the web through the Brave Search API.
type BraveSearch struct {
	keys    *keyring.Ring
	BaseURL string
	Count   int
	Country string
	Lang    string
	client  *http.Client
}

type BraveOption func(*BraveSearch)

// WithBraveBaseURL sets the base URL for the Brave Search API.
func WithBraveBaseURL(baseURL string) BraveOption {
	return func(b *BraveSearch) {
		b.BaseURL = baseURL
	}
}

// WithBraveCount sets the number of results to return (1-20).
func WithBraveCount(count int) BraveOption {
	return func(b *BraveSearch) {
		b.Count = min(max(count, 1), 20)
	}
}

// WithBraveCountry sets the country code for search results (e.g., "US", "CN").
func WithBraveCountry(country string) BraveOption {
	return func(b *BraveSearch) {
		b.Country = country
	}
}

// WithBraveLang sets the language code for search results (e.g., "en", "zh").
func WithBraveLang(lang string) BraveOption {
	return func(b *BraveSearch) {
		b.Lang = lang
	}
}

// WithBraveHTTPClient sets the HTTP client.
func WithBraveHTTPClient(c *http.Client) BraveOption {
	return func(b *BraveSearch) {
		b.client = c
	}
}

// NewBraveSearch creates a Brave search provider drawing keys from keys.
func NewBraveSearch(keys *keyring.Ring, opts ...BraveOption) (*BraveSearch, error) {
	if keys == nil || keys.Len() == 0 {
		return nil, fmt.Errorf("brave: %w", keyring.ErrNoKeys)
	}

	b := &BraveSearch{
		keys:    keys,
		BaseURL: "https://api.search.brave.com/res/v1/web/search",
		Count:   5,
		Country: "US",
		Lang:    "en",
		client:  &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search executes the query. A rejected key is rotated and the query retried once.
func (b *BraveSearch) Search(ctx context.Context, query string) ([]SearchResult, error) {
	key, err := b.keys.Current()
	if err != nil {
		return nil, err
	}
	results, err := b.search(ctx, key, query)
	if err != nil && Rotatable(err) {
		if next := b.keys.RotateFrom(key); next != key {
			results, err = b.search(ctx, next, query)
		}
	}
	return results, err
}

func (b *BraveSearch) search(ctx context.Context, key, query string) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(b.Count))
	if b.Country != "" {
		params.Set("country", b.Country)
	}
	if b.Lang != "" {
		params.Set("search_lang", b.Lang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("brave: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", key)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave: failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Service: "brave", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("brave: failed to decode response: %w", err)
	}

	results := make([]SearchResult, 0, len(result.Web.Results))
	for _, r := range result.Web.Results {
		results = append(results, SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Description})
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("brave search %q: %w", query, ErrNoResults)
	}
	return results, nil
}
