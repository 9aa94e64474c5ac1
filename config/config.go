// Package config loads researchflow settings from a YAML file, the
// environment (optionally seeded from a .env file) and command-line flags, in
// that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/smallnest/researchflow/keyring"
)

// Provider names.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	SearchTavily = "tavily"
	SearchBrave  = "brave"

	ExtractTavily = "tavily"
	ExtractPages  = "pages"
	// ExtractTavilyPages reads the top search hits through Tavily's extract endpoint.
	ExtractTavilyPages = "tavily_pages"
)

// Config is the full application configuration. Credentials never come from
// the YAML file; they are read from the environment only.
type Config struct {
	Provider        string `yaml:"provider"`
	BaseURL         string `yaml:"base_url"`
	PlannerModel    string `yaml:"planner_model"`
	ResearcherModel string `yaml:"researcher_model"`
	SummarizerModel string `yaml:"summarizer_model"`

	Search           string `yaml:"search"`
	Extract          string `yaml:"extract"`
	SearchMaxResults int    `yaml:"search_max_results"`
	ExtractPages     int    `yaml:"extract_pages"`

	MaxSteps           int           `yaml:"max_steps"`
	SingleStepFallback bool          `yaml:"single_step_fallback"`
	MaxParallelSteps   int           `yaml:"max_parallel_steps"`
	MaxRawChars        int           `yaml:"max_raw_chars"`
	MaxBulletWords     int           `yaml:"max_bullet_words"`
	Temperature        float64       `yaml:"temperature"`
	MaxTokens          int           `yaml:"max_tokens"`
	ModelTimeout       time.Duration `yaml:"model_timeout"`
	LookupTimeout      time.Duration `yaml:"lookup_timeout"`
	ModelRetries       int           `yaml:"model_retries"`

	LogLevel string `yaml:"log_level"`
	Listen   string `yaml:"listen"`

	GeminiKeys           []string `yaml:"-"`
	ResearcherGeminiKeys []string `yaml:"-"`
	OpenAIKey            string   `yaml:"-"`
	AnthropicKey         string   `yaml:"-"`
	TavilyKeys           []string `yaml:"-"`
	BraveKeys            []string `yaml:"-"`

	// envErrs holds malformed RESEARCHFLOW_* values, reported by Validate.
	envErrs []error
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Provider:         ProviderGemini,
		PlannerModel:     "gemini-2.5-flash-lite",
		ResearcherModel:  "gemini-2.5-flash",
		SummarizerModel:  "gemini-2.5-flash-lite",
		Search:           SearchTavily,
		Extract:          ExtractTavily,
		SearchMaxResults: 2,
		ExtractPages:     3,
		MaxSteps:         5,
		MaxRawChars:      12000,
		MaxBulletWords:   20,
		Temperature:      0.2,
		MaxTokens:        4999,
		ModelTimeout:     60 * time.Second,
		LookupTimeout:    30 * time.Second,
		ModelRetries:     2,
		LogLevel:         "info",
		Listen:           ":8080",
	}
}

// Load returns the defaults overlaid with the YAML file at path (skipped when
// path is empty) and then with the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// LoadFile overlays the YAML file at path. Unknown keys are rejected.
func (c *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// LoadDotEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv reads credentials and RESEARCHFLOW_* overrides through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	c.GeminiKeys = keyring.FromEnv("GEMINI_API_KEY", lookup)
	c.ResearcherGeminiKeys = keyring.FromEnv("GEMINI_RESEARCHER_API_KEY", lookup)
	c.TavilyKeys = keyring.FromEnv("TAVILY_API_KEY", lookup)
	c.BraveKeys = keyring.FromEnv("BRAVE_API_KEY", lookup)
	if v, ok := lookup("OPENAI_API_KEY"); ok {
		c.OpenAIKey = v
	}
	if v, ok := lookup("ANTHROPIC_API_KEY"); ok {
		c.AnthropicKey = v
	}
	c.envErrs = nil

	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	str("RESEARCHFLOW_PROVIDER", &c.Provider)
	str("RESEARCHFLOW_BASE_URL", &c.BaseURL)
	str("RESEARCHFLOW_PLANNER_MODEL", &c.PlannerModel)
	str("RESEARCHFLOW_RESEARCHER_MODEL", &c.ResearcherModel)
	str("RESEARCHFLOW_SUMMARIZER_MODEL", &c.SummarizerModel)
	str("RESEARCHFLOW_SEARCH", &c.Search)
	str("RESEARCHFLOW_EXTRACT", &c.Extract)
	str("RESEARCHFLOW_LOG_LEVEL", &c.LogLevel)
	str("RESEARCHFLOW_LISTEN", &c.Listen)

	num := func(name string, dst *int) {
		v, ok := lookup(name)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			c.envErrs = append(c.envErrs, fmt.Errorf("%s: %q is not an integer", name, v))
			return
		}
		*dst = n
	}
	num("RESEARCHFLOW_MAX_STEPS", &c.MaxSteps)
	num("RESEARCHFLOW_MAX_TOKENS", &c.MaxTokens)
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	errs := c.lookupErrors()
	switch c.Provider {
	case ProviderGemini:
		if len(c.GeminiKeys) == 0 {
			errs = append(errs, errors.New("GEMINI_API_KEY (or GEMINI_API_KEY_1..10) is not set"))
		}
	case ProviderOpenAI:
		if c.OpenAIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is not set"))
		}
	case ProviderAnthropic:
		if c.AnthropicKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q (want gemini, openai or anthropic)", c.Provider))
	}

	if c.PlannerModel == "" || c.ResearcherModel == "" || c.SummarizerModel == "" {
		errs = append(errs, errors.New("planner, researcher and summarizer models must be set"))
	}
	if c.MaxSteps < 1 || c.MaxSteps > 20 {
		errs = append(errs, fmt.Errorf("max_steps must be between 1 and 20, got %d", c.MaxSteps))
	}
	if c.MaxBulletWords < 3 {
		errs = append(errs, fmt.Errorf("max_bullet_words must be at least 3, got %d", c.MaxBulletWords))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be between 0 and 2, got %g", c.Temperature))
	}
	if c.ModelTimeout <= 0 {
		errs = append(errs, errors.New("model_timeout must be positive"))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("max_tokens must not be negative, got %d", c.MaxTokens))
	}
	if c.ModelRetries < 0 {
		errs = append(errs, fmt.Errorf("model_retries must not be negative, got %d", c.ModelRetries))
	}
	if c.MaxParallelSteps < 0 {
		errs = append(errs, errors.New("max_parallel_steps must not be negative"))
	}
	return errors.Join(errs...)
}

// ValidateLookups checks only what Lookups needs, so search can be used
// without model credentials.
func (c *Config) ValidateLookups() error {
	return errors.Join(c.lookupErrors()...)
}

func (c *Config) lookupErrors() []error {
	errs := append([]error(nil), c.envErrs...)
	switch c.Search {
	case SearchTavily:
		if len(c.TavilyKeys) == 0 {
			errs = append(errs, errors.New("TAVILY_API_KEY (or TAVILY_API_KEY_1..10) is not set"))
		}
	case SearchBrave:
		if len(c.BraveKeys) == 0 {
			errs = append(errs, errors.New("BRAVE_API_KEY is not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown search provider %q (want tavily or brave)", c.Search))
	}

	switch c.Extract {
	case ExtractTavily, ExtractTavilyPages:
		if len(c.TavilyKeys) == 0 && c.Search != SearchTavily {
			errs = append(errs, errors.New("tavily extraction needs TAVILY_API_KEY"))
		}
	case ExtractPages:
	default:
		errs = append(errs, fmt.Errorf("unknown extract provider %q (want tavily, pages or tavily_pages)", c.Extract))
	}

	if c.SearchMaxResults < 1 || c.SearchMaxResults > 20 {
		errs = append(errs, fmt.Errorf("search_max_results must be between 1 and 20, got %d", c.SearchMaxResults))
	}
	if c.LookupTimeout <= 0 {
		errs = append(errs, errors.New("lookup_timeout must be positive"))
	}
	if c.MaxRawChars < 0 {
		errs = append(errs, errors.New("max_raw_chars must not be negative"))
	}
	return errs
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	mask := func(keys []string) []string {
		out := make([]string, len(keys))
		for i, k := range keys {
			out[i] = maskKey(k)
		}
		return out
	}
	c.GeminiKeys = mask(c.GeminiKeys)
	c.ResearcherGeminiKeys = mask(c.ResearcherGeminiKeys)
	c.TavilyKeys = mask(c.TavilyKeys)
	c.BraveKeys = mask(c.BraveKeys)
	c.OpenAIKey = maskKey(c.OpenAIKey)
	c.AnthropicKey = maskKey(c.AnthropicKey)
	return c
}

func maskKey(k string) string {
	if len(k) <= 8 {
		return strings.Repeat("*", len(k))
	}
	return k[:4] + "..." + k[len(k)-4:]
}
