package config

import (
	"fmt"
	"net/http"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/smallnest/researchflow/graph"
	"github.com/smallnest/researchflow/keyring"
	"github.com/smallnest/researchflow/llms/gemini"
	"github.com/smallnest/researchflow/log"
	"github.com/smallnest/researchflow/metrics"
	"github.com/smallnest/researchflow/research"
	"github.com/smallnest/researchflow/tool"
)

// Research returns the pipeline tuning derived from c.
func (c *Config) Research(logger log.Logger, m *metrics.Metrics) research.Config {
	logger = log.OrDefault(logger)
	retry := graph.DefaultRetryConfig()
	retry.MaxAttempts = c.ModelRetries + 1
	retry.OnRetry = func(attempt int, err error) {
		logger.Warn("model call attempt %d failed: %v", attempt, err)
	}
	return research.Config{
		MaxSteps:           c.MaxSteps,
		SingleStepFallback: c.SingleStepFallback,
		MaxParallelSteps:   c.MaxParallelSteps,
		MaxRawChars:        c.MaxRawChars,
		LookupTimeout:      c.LookupTimeout,
		MaxBulletWords:     c.MaxBulletWords,
		Temperature:        c.Temperature,
		MaxTokens:          c.MaxTokens,
		ModelTimeout:       c.ModelTimeout,
		Retry:              retry,
		Logger:             logger,
		Metrics:            m,
	}
}

// Components builds the models and search tools named by c. Call Validate first.
func (c *Config) Components(logger log.Logger) (research.Components, error) {
	logger = log.OrDefault(logger)
	var comp research.Components

	models, err := c.models(logger)
	if err != nil {
		return comp, err
	}
	comp.PlannerModel, comp.ResearcherModel, comp.SummarizerModel = models[0], models[1], models[2]

	comp.Searcher, comp.Extractor, err = c.Lookups(logger)
	return comp, err
}

// Lookups builds the searcher and extractor named by c. Tavily is shared when
// it serves both.
func (c *Config) Lookups(logger log.Logger) (tool.Searcher, tool.Extractor, error) {
	logger = log.OrDefault(logger)
	httpClient := &http.Client{Timeout: c.LookupTimeout}
	tavilyRing := keyring.New("tavily", c.TavilyKeys, logger)
	var tavily *tool.Tavily
	newTavily := func() (*tool.Tavily, error) {
		if tavily != nil {
			return tavily, nil
		}
		t, err := tool.NewTavily(tavilyRing,
			tool.WithTavilyMaxResults(c.SearchMaxResults),
			tool.WithTavilyContextResults(c.ExtractPages),
			tool.WithTavilyMaxContextChars(c.MaxRawChars),
			tool.WithTavilyHTTPClient(httpClient),
			tool.WithTavilyLogger(log.WithPrefix(logger, "tavily")),
		)
		tavily = t
		return t, err
	}

	var (
		searcher  tool.Searcher
		extractor tool.Extractor
	)
	switch c.Search {
	case SearchBrave:
		b, err := tool.NewBraveSearch(keyring.New("brave", c.BraveKeys, logger),
			tool.WithBraveCount(c.SearchMaxResults), tool.WithBraveHTTPClient(httpClient))
		if err != nil {
			return nil, nil, err
		}
		searcher = b
	default:
		t, err := newTavily()
		if err != nil {
			return nil, nil, err
		}
		searcher = t
	}

	switch c.Extract {
	case ExtractPages:
		extractor = &tool.PageExtractor{
			Searcher: searcher,
			Fetcher:  tool.NewHTTPFetcher(httpClient, 0),
			MaxPages: c.ExtractPages,
			MaxChars: c.MaxRawChars,
		}
	case ExtractTavilyPages:
		t, err := newTavily()
		if err != nil {
			return nil, nil, err
		}
		extractor = &tool.PageExtractor{Searcher: searcher, Fetcher: t, MaxPages: c.ExtractPages, MaxChars: c.MaxRawChars}
	default:
		t, err := newTavily()
		if err != nil {
			return nil, nil, err
		}
		extractor = t
	}
	return searcher, extractor, nil
}

// models returns the planner, researcher and summarizer models.
func (c *Config) models(logger log.Logger) ([3]llms.Model, error) {
	var out [3]llms.Model
	names := [3]string{c.PlannerModel, c.ResearcherModel, c.SummarizerModel}

	switch c.Provider {
	case ProviderOpenAI:
		for i, name := range names {
			opts := []openai.Option{openai.WithToken(c.OpenAIKey), openai.WithModel(name)}
			if c.BaseURL != "" {
				opts = append(opts, openai.WithBaseURL(c.BaseURL))
			}
			m, err := openai.New(opts...)
			if err != nil {
				return out, fmt.Errorf("create %s model: %w", name, err)
			}
			out[i] = m
		}
	case ProviderAnthropic:
		for i, name := range names {
			opts := []anthropic.Option{anthropic.WithToken(c.AnthropicKey), anthropic.WithModel(name)}
			if c.BaseURL != "" {
				opts = append(opts, anthropic.WithBaseURL(c.BaseURL))
			}
			m, err := anthropic.New(opts...)
			if err != nil {
				return out, fmt.Errorf("create %s model: %w", name, err)
			}
			out[i] = m
		}
	case ProviderGemini:
		shared := keyring.New("gemini", c.GeminiKeys, logger)
		researcherRing := shared
		if len(c.ResearcherGeminiKeys) > 0 {
			researcherRing = keyring.New("gemini-researcher", c.ResearcherGeminiKeys, logger)
		}
		rings := [3]*keyring.Ring{shared, researcherRing, shared}
		for i, name := range names {
			opts := []gemini.Option{
				gemini.WithKeyring(rings[i]),
				gemini.WithModel(gemini.ModelName(name)),
				gemini.WithLogger(logger),
			}
			if c.BaseURL != "" {
				opts = append(opts, gemini.WithBaseURL(c.BaseURL))
			}
			m, err := gemini.New(opts...)
			if err != nil {
				return out, fmt.Errorf("create %s model: %w", name, err)
			}
			out[i] = m
		}
	default:
		return out, fmt.Errorf("unknown provider %q", c.Provider)
	}
	return out, nil
}
