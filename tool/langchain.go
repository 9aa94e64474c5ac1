package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/tools"
)

// Tools returns the lookups as langchaingo tools, search first. A nil
// extractor is left out.
func Tools(searcher Searcher, extractor Extractor) []tools.Tool {
	ts := []tools.Tool{SearchTool{Searcher: searcher}}
	if extractor != nil {
		ts = append(ts, ExtractTool{Extractor: extractor})
	}
	return ts
}

// FindTool returns the tool in ts called name.
func FindTool(ts []tools.Tool, name string) (tools.Tool, error) {
	names := make([]string, 0, len(ts))
	for _, t := range ts {
		if t.Name() == name {
			return t, nil
		}
		names = append(names, t.Name())
	}
	return nil, fmt.Errorf("unknown tool %q (want %s)", name, strings.Join(names, " or "))
}

// SearchTool exposes a Searcher as a langchaingo tool.
type SearchTool struct {
	Searcher Searcher
}

var _ tools.Tool = SearchTool{}

func (t SearchTool) Name() string { return "search" }

func (t SearchTool) Description() string {
	return "Search the web for short factual snippets. Input should be a search query."
}

func (t SearchTool) Call(ctx context.Context, input string) (string, error) {
	results, err := t.Searcher.Search(ctx, input)
	if err != nil {
		return "", err
	}
	return FormatResults(results), nil
}

// ExtractTool exposes an Extractor as a langchaingo tool.
type ExtractTool struct {
	Extractor Extractor
}

var _ tools.Tool = ExtractTool{}

func (t ExtractTool) Name() string { return "extract_context" }

func (t ExtractTool) Description() string {
	return "Retrieve longer page content relevant to a query. Input should be a search query."
}

func (t ExtractTool) Call(ctx context.Context, input string) (string, error) {
	return t.Extractor.ExtractContext(ctx, input)
}
