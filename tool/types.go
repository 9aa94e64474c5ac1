package tool

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNoResults is returned when a lookup succeeds but finds nothing.
	ErrNoResults = errors.New("no results")

	// ErrRateLimited is matched by StatusErrors for HTTP 429 and quota responses.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnauthorized is matched by StatusErrors for rejected credentials.
	ErrUnauthorized = errors.New("unauthorized")
)

// SearchResult is a single search hit.
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score,omitempty"`
}

// Searcher runs a fast keyword-style web search.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// Extractor returns a longer block of text relevant to query.
type Extractor interface {
	ExtractContext(ctx context.Context, query string) (string, error)
}

// Fetcher downloads a single page as text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// StatusError is a non-2xx answer from a provider API.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s api returned status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s api returned status %d: %s", e.Service, e.StatusCode, body)
}

// Is lets callers test StatusErrors against ErrRateLimited and ErrUnauthorized.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		// Tavily answers 432/433 when a key's plan or pay-as-you-go limit is hit.
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == 432 || e.StatusCode == 433
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// Rotatable reports whether another API key might succeed where this one failed.
func Rotatable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnauthorized)
}

// FormatResults renders hits as the plain-text block handed to models and tools.
func FormatResults(results []SearchResult) string {
	if len(results) == 0 {
		return "No results found"
	}
	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. Title: %s\nURL: %s\nSnippet: %s\n\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// truncate cuts s to at most n bytes on a rune boundary and marks the cut.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n[TRUNCATED]"
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
