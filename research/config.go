package research

import (
	"time"

	"github.com/smallnest/researchflow/graph"
	"github.com/smallnest/researchflow/log"
	"github.com/smallnest/researchflow/metrics"
)

// Config tunes every stage of the pipeline.
type Config struct {
	// MaxSteps caps the number of steps a plan may contain.
	MaxSteps int
	// SingleStepFallback turns a planning failure into a one-step plan made of
	// the original query. Off by default.
	SingleStepFallback bool

	// MaxParallelSteps bounds concurrent steps. Zero runs every step at once.
	MaxParallelSteps int
	// MaxRawChars caps the merged lookup text handed to the reduction call.
	MaxRawChars int
	// LookupTimeout bounds each search and extract call.
	LookupTimeout time.Duration

	// MaxBulletWords caps each bullet of the final report.
	MaxBulletWords int

	Temperature float64
	// MaxTokens caps each model answer. Zero leaves the provider default.
	MaxTokens int
	// ModelTimeout bounds each model attempt.
	ModelTimeout time.Duration
	// Retry governs model calls. Nil means NoRetry.
	Retry *graph.RetryConfig

	Logger  log.Logger
	Metrics *metrics.Metrics
}

// DefaultConfig returns the defaults used by the CLI.
func DefaultConfig() Config {
	retry := graph.DefaultRetryConfig()
	return Config{
		MaxSteps:       5,
		MaxRawChars:    12000,
		LookupTimeout:  30 * time.Second,
		MaxBulletWords: 20,
		Temperature:    0.2,
		MaxTokens:      4999,
		ModelTimeout:   60 * time.Second,
		Retry:          retry,
	}
}

// withDefaults fills zero fields so a partially populated Config still works.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxSteps <= 0 {
		c.MaxSteps = d.MaxSteps
	}
	if c.MaxRawChars <= 0 {
		c.MaxRawChars = d.MaxRawChars
	}
	if c.MaxBulletWords <= 0 {
		c.MaxBulletWords = d.MaxBulletWords
	}
	if c.Retry == nil {
		c.Retry = graph.NoRetry()
	}
	c.Logger = log.OrDefault(c.Logger)
	return c
}
