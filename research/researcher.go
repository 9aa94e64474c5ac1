package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"golang.org/x/sync/errgroup"

	"github.com/smallnest/researchflow/graph"
	"github.com/smallnest/researchflow/log"
	"github.com/smallnest/researchflow/metrics"
	"github.com/smallnest/researchflow/tool"
)

// ErrNoRelevantData is stored on a finding whose fetched text the model judged
// irrelevant to the step.
var ErrNoRelevantData = errors.New("no relevant data in fetched text")

const noRelevantDataMarker = "NO RELEVANT DATA"

// Researcher fetches and condenses data for every step of a plan.
type Researcher struct {
	searcher      tool.Searcher
	extractor     tool.Extractor
	call          modelCall
	maxParallel   int
	maxRawChars   int
	lookupTimeout time.Duration
	logger        log.Logger
	metrics       *metrics.Metrics
}

// NewResearcher creates a researcher. model performs the per-step reduction.
func NewResearcher(model llms.Model, searcher tool.Searcher, extractor tool.Extractor, config Config) *Researcher {
	config = config.withDefaults()
	return &Researcher{
		searcher:      searcher,
		extractor:     extractor,
		call:          newModelCall("researcher", model, config),
		maxParallel:   config.MaxParallelSteps,
		maxRawChars:   config.MaxRawChars,
		lookupTimeout: config.LookupTimeout,
		logger:        config.Logger,
		metrics:       config.Metrics,
	}
}

// Research runs every step concurrently and returns one finding per step in
// plan order. It never fails as a whole; per-step problems are recorded in
// each finding's Status and Err.
func (r *Researcher) Research(ctx context.Context, steps []ResearchStep) []StepFinding {
	findings, errs := graph.ParallelMap(ctx, steps, r.maxParallel, func(ctx context.Context, _ int, step ResearchStep) (StepFinding, error) {
		return r.researchStep(ctx, step), nil
	})
	for i, err := range errs {
		if err != nil {
			findings[i] = StepFinding{Step: steps[i], Status: StatusFailed, Err: err}
		}
		r.metrics.StepOutcome(string(findings[i].Status))
	}
	return findings
}

func (r *Researcher) researchStep(ctx context.Context, step ResearchStep) StepFinding {
	finding := StepFinding{Step: step}

	var (
		hits       []tool.SearchResult
		extracted  string
		searchErr  error
		extractErr error
	)
	// Neither lookup cancels the other; errors are kept per lookup.
	var g errgroup.Group
	g.Go(func() error {
		hits, searchErr = r.search(ctx, step.Query)
		return nil
	})
	g.Go(func() error {
		extracted, extractErr = r.extract(ctx, step.Query)
		return nil
	})
	_ = g.Wait()

	for _, h := range hits {
		finding.Sources = append(finding.Sources, Source{Title: h.Title, URL: h.URL, Snippet: h.Snippet})
	}

	var fetchErr *StepFetchError
	if searchErr != nil || extractErr != nil {
		fetchErr = &StepFetchError{Step: step, Search: searchErr, Extract: extractErr}
	}
	if searchErr != nil && extractErr != nil {
		r.logger.Warn("step %d: no data: %v", step.Index, fetchErr)
		finding.Status = StatusFailed
		finding.Err = fetchErr
		return finding
	}

	var parts []string
	if searchErr == nil {
		parts = append(parts, tool.FormatResults(hits))
	}
	if extractErr == nil {
		parts = append(parts, extracted)
	}
	finding.RawText = clip(strings.Join(parts, "\n\n"), r.maxRawChars)

	summary, err := r.call.generate(ctx, researcherSystemPrompt, researcherUserPrompt(step, finding.RawText))
	if err == nil && isNoRelevantData(summary) {
		err = ErrNoRelevantData
	}
	if err != nil {
		r.logger.Warn("step %d: reduction failed: %v", step.Index, err)
		finding.Status = StatusFailed
		if fetchErr != nil {
			finding.Err = errors.Join(fetchErr, fmt.Errorf("reduce: %w", err))
		} else {
			finding.Err = fmt.Errorf("reduce: %w", err)
		}
		return finding
	}

	finding.Summary = strings.TrimSpace(summary)
	finding.Status = StatusOK
	if fetchErr != nil {
		r.logger.Info("step %d: continuing with partial data: %v", step.Index, fetchErr)
		finding.Status = StatusPartial
		finding.Err = fetchErr
	}
	return finding
}

func (r *Researcher) search(ctx context.Context, query string) ([]tool.SearchResult, error) {
	if r.searcher == nil {
		return nil, errors.New("no searcher configured")
	}
	ctx, cancel := r.lookupContext(ctx)
	defer cancel()

	hits, err := r.searcher.Search(ctx, query)
	if err == nil && len(hits) == 0 {
		err = tool.ErrNoResults
	}
	r.metrics.ExternalCall("search", outcome(err))
	return hits, err
}

func (r *Researcher) extract(ctx context.Context, query string) (string, error) {
	if r.extractor == nil {
		return "", errors.New("no extractor configured")
	}
	ctx, cancel := r.lookupContext(ctx)
	defer cancel()

	text, err := r.extractor.ExtractContext(ctx, query)
	if err == nil && strings.TrimSpace(text) == "" {
		err = tool.ErrNoResults
	}
	r.metrics.ExternalCall("extract", outcome(err))
	return text, err
}

func (r *Researcher) lookupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.lookupTimeout > 0 {
		return context.WithTimeout(ctx, r.lookupTimeout)
	}
	return context.WithCancel(ctx)
}

// isNoRelevantData reports whether the whole reply is the marker. A summary
// that merely mentions the phrase is kept.
func isNoRelevantData(reply string) bool {
	return strings.EqualFold(strings.Trim(strings.TrimSpace(reply), ".\"'`*"), noRelevantDataMarker)
}

// outcome labels an external call for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, tool.ErrNoResults):
		return "empty"
	case errors.Is(err, tool.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// clip cuts s to at most n bytes on a rune boundary.
func clip(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
