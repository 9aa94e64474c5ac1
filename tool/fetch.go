package tool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/smallnest/researchflow/graph"
)

const (
	defaultMaxFetchBytes = 2 << 20
	defaultMaxPageChars  = 6000
)

// HTTPFetcher downloads a page and converts its main content to markdown.
type HTTPFetcher struct {
	client       *http.Client
	maxBytes     int64
	maxChars     int
	userAgent    string
	converter    *md.Converter
	dropSelector string
}

// NewHTTPFetcher creates a fetcher. maxChars caps the markdown returned per
// page; zero selects a default.
func NewHTTPFetcher(client *http.Client, maxChars int) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if maxChars <= 0 {
		maxChars = defaultMaxPageChars
	}
	return &HTTPFetcher{
		client:       client,
		maxBytes:     defaultMaxFetchBytes,
		maxChars:     maxChars,
		userAgent:    "Mozilla/5.0 (compatible; researchflow/1.0)",
		converter:    md.NewConverter("", true, nil),
		dropSelector: "script, style, noscript, nav, header, footer, aside, form, iframe, svg",
	}
}

var reBlankLines = regexp.MustCompile(`\n{3,}`)

// Fetch downloads url. HTML is stripped of navigation chrome with goquery and
// converted to markdown; other text content types are returned as-is.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", fmt.Errorf("fetch %q: url must start with http:// or https://", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("fetch: failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Service: "fetch", StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", fmt.Errorf("fetch %s: failed to read body: %w", url, err)
	}

	contentType := resp.Header.Get("Content-Type")
	text := string(body)
	if contentType == "" || strings.Contains(contentType, "html") {
		text, err = f.htmlToMarkdown(text)
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", url, err)
		}
	} else if !strings.HasPrefix(contentType, "text/") && !strings.Contains(contentType, "json") {
		return "", fmt.Errorf("fetch %s: unsupported content type %s", url, contentType)
	}

	text = strings.TrimSpace(reBlankLines.ReplaceAllString(text, "\n\n"))
	if text == "" {
		return "", fmt.Errorf("fetch %s: %w", url, ErrNoResults)
	}
	return truncate(text, f.maxChars), nil
}

func (f *HTTPFetcher) htmlToMarkdown(page string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find(f.dropSelector).Remove()

	root := doc.Find("main, article").First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	html, err := root.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}
	return f.converter.ConvertString(html)
}

// PageExtractor builds an Extractor from a Searcher and a Fetcher: it searches
// for the query and reads the top pages concurrently.
type PageExtractor struct {
	Searcher Searcher
	Fetcher  Fetcher
	MaxPages int
	MaxChars int
}

// ExtractContext implements Extractor. Pages that fail to load are skipped;
// the call fails only when no page could be read.
func (p *PageExtractor) ExtractContext(ctx context.Context, query string) (string, error) {
	if p.Searcher == nil || p.Fetcher == nil {
		return "", errors.New("page extractor: searcher and fetcher are required")
	}
	hits, err := p.Searcher.Search(ctx, query)
	if err != nil {
		return "", fmt.Errorf("page extractor: %w", err)
	}
	if n := max(p.MaxPages, 1); len(hits) > n {
		hits = hits[:n]
	}

	pages, errs := graph.ParallelMap(ctx, hits, 0, func(ctx context.Context, _ int, hit SearchResult) (string, error) {
		return p.Fetcher.Fetch(ctx, hit.URL)
	})

	var sb strings.Builder
	var failures []error
	for i, page := range pages {
		if errs[i] != nil {
			failures = append(failures, errs[i])
			continue
		}
		fmt.Fprintf(&sb, "Source: %s (%s)\n%s\n\n", hits[i].Title, hits[i].URL, page)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("page extractor %q: %w", query, errors.Join(append([]error{ErrNoResults}, failures...)...))
	}
	return truncate(strings.TrimSpace(sb.String()), p.MaxChars), nil
}
