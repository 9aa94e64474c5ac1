package tool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/researchflow/keyring"
	"github.com/smallnest/researchflow/log"
)

func newRing(keys ...string) *keyring.Ring {
	return keyring.New("tavily", keys, log.NoOpLogger{})
}

func TestTavily_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))

		var req tavilySearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ev battery cost", req.Query)
		assert.Equal(t, "basic", req.SearchDepth)
		assert.Equal(t, 2, req.MaxResults)

		_ = json.NewEncoder(w).Encode(TavilyResponse{Results: []TavilyResult{
			{Title: "Battery prices", URL: "https://example.com/a", Content: "Pack prices fell to $139/kWh.", Score: 0.9},
			{Title: "EV costs", URL: "https://example.com/b", Content: "Upfront cost remains higher."},
		}})
	}))
	defer server.Close()

	tv, err := NewTavily(newRing("key-1"), WithTavilyBaseURL(server.URL))
	require.NoError(t, err)

	results, err := tv.Search(context.Background(), "ev battery cost")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Battery prices", results[0].Title)
	assert.Equal(t, "Pack prices fell to $139/kWh.", results[0].Snippet)
	assert.InDelta(t, 0.9, results[0].Score, 1e-9)
}

func TestTavily_SearchEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	defer server.Close()

	tv, err := NewTavily(newRing("k"), WithTavilyBaseURL(server.URL))
	require.NoError(t, err)

	_, err = tv.Search(context.Background(), "nothing")
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestTavily_ExtractContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req tavilySearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "advanced", req.SearchDepth)
		assert.True(t, req.IncludeRawContent)

		_ = json.NewEncoder(w).Encode(TavilyResponse{Results: []TavilyResult{
			{Title: "Long read", URL: "https://example.com/long", RawContent: strings.Repeat("x", 100)},
			{Title: "Snippet only", URL: "https://example.com/short", Content: "short content"},
			{Title: "Empty", URL: "https://example.com/empty"},
		}})
	}))
	defer server.Close()

	tv, err := NewTavily(newRing("k"), WithTavilyBaseURL(server.URL), WithTavilyMaxContextChars(120))
	require.NoError(t, err)

	text, err := tv.ExtractContext(context.Background(), "ev range")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "Source: Long read (https://example.com/long)"))
	assert.True(t, strings.HasSuffix(text, "[TRUNCATED]"))
	assert.NotContains(t, text, "Empty")
}

func TestTavily_RotatesKeyOnRateLimit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Authorization") == "Bearer exhausted" {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"detail":"rate limit"}`))
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"title":"ok","url":"https://example.com","content":"fact"}]}`))
	}))
	defer server.Close()

	ring := newRing("exhausted", "fresh")
	tv, err := NewTavily(ring, WithTavilyBaseURL(server.URL))
	require.NoError(t, err)

	results, err := tv.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	current, _ := ring.Current()
	assert.Equal(t, "fresh", current)
}

func TestTavily_RateLimitWithSingleKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	tv, err := NewTavily(newRing("only"), WithTavilyBaseURL(server.URL))
	require.NoError(t, err)

	_, err = tv.Search(context.Background(), "q")
	assert.ErrorIs(t, err, ErrRateLimited)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
}

func TestTavily_ExtractAndFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract", r.URL.Path)
		var req struct {
			URLs []string `json:"urls"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"https://example.com/page"}, req.URLs)
		_, _ = w.Write([]byte(`{"results":[{"url":"https://example.com/page","raw_content":"  page body  "}],"failed_results":[]}`))
	}))
	defer server.Close()

	tv, err := NewTavily(newRing("k"), WithTavilyBaseURL(server.URL))
	require.NoError(t, err)

	text, err := tv.Fetch(context.Background(), "https://example.com/page")
	require.NoError(t, err)
	assert.Equal(t, "page body", text)

	_, err = tv.Extract(context.Background(), nil)
	assert.Error(t, err)
}

func TestNewTavily_RequiresKeys(t *testing.T) {
	_, err := NewTavily(newRing())
	assert.ErrorIs(t, err, keyring.ErrNoKeys)
}
