package research

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/researchflow/log"
)

// errNoSteps is wrapped by PlanningError when the model output held no steps.
var errNoSteps = errors.New("model returned no usable steps")

// Planner turns a question into an ordered list of ResearchSteps.
type Planner struct {
	call     modelCall
	maxSteps int
	fallback bool
	logger   log.Logger
}

// NewPlanner creates a planner backed by model.
func NewPlanner(model llms.Model, config Config) *Planner {
	config = config.withDefaults()
	return &Planner{
		call:     newModelCall("planner", model, config),
		maxSteps: config.MaxSteps,
		fallback: config.SingleStepFallback,
		logger:   config.Logger,
	}
}

// Plan asks the model for a plan. An empty query is always a *PlanningError.
// Other failures, including a plan with no steps, are too unless the single
// step fallback is enabled.
func (p *Planner) Plan(ctx context.Context, query string) ([]ResearchStep, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &PlanningError{Query: query, Err: ErrEmptyQuery}
	}

	steps, err := p.plan(ctx, query)
	if err == nil {
		return steps, nil
	}
	if p.fallback && ctx.Err() == nil {
		p.logger.Warn("planning failed, researching the question as a single step: %v", err)
		return []ResearchStep{{Index: 0, Query: query}}, nil
	}
	return nil, &PlanningError{Query: query, Err: err}
}

func (p *Planner) plan(ctx context.Context, query string) ([]ResearchStep, error) {
	out, err := p.call.generate(ctx, plannerPrompt(p.maxSteps), query)
	if err != nil {
		return nil, err
	}

	queries := parsePlan(out)
	steps := make([]ResearchStep, 0, min(len(queries), p.maxSteps))
	seen := make(map[string]bool, len(queries))
	for _, q := range queries {
		key := strings.ToLower(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		steps = append(steps, ResearchStep{Index: len(steps), Query: q})
		if len(steps) == p.maxSteps {
			break
		}
	}
	if len(steps) == 0 {
		return nil, errNoSteps
	}
	return steps, nil
}

// parsePlan accepts {"steps": [...]}, a bare JSON array, either inside a code
// fence, or a numbered/bulleted list. Entries are trimmed; blanks are dropped.
func parsePlan(out string) []string {
	body := stripFences(out)

	var obj struct {
		Steps []json.RawMessage `json:"steps"`
	}
	if err := json.Unmarshal([]byte(body), &obj); err == nil && obj.Steps != nil {
		return planEntries(obj.Steps)
	}
	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(body), &arr); err == nil {
		return planEntries(arr)
	}
	if js := extractJSONObject(body); js != "" && js != body {
		if err := json.Unmarshal([]byte(js), &obj); err == nil && obj.Steps != nil {
			return planEntries(obj.Steps)
		}
	}
	return parseList(body)
}

// planEntries reads steps given either as strings or as {"query": "..."} objects.
func planEntries(raw []json.RawMessage) []string {
	var out []string
	for _, r := range raw {
		var s string
		if json.Unmarshal(r, &s) != nil {
			var obj struct {
				Query string `json:"query"`
				Step  string `json:"step"`
			}
			if json.Unmarshal(r, &obj) != nil {
				continue
			}
			s = obj.Query
			if s == "" {
				s = obj.Step
			}
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var reListItem = regexp.MustCompile(`(?i)^\s*(?:\d+[.):]|[-*•]|step\s+\d+[.):]?)\s+(.+)$`)

func parseList(body string) []string {
	var out []string
	for line := range strings.SplitSeq(body, "\n") {
		m := reListItem.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		item := strings.Trim(strings.TrimSpace(m[1]), `"*`)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

var reFence = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\n?(.*?)```")

// stripFences returns the content of the first markdown code fence, or the
// trimmed input when there is none.
func stripFences(s string) string {
	if m := reFence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}

// extractJSONObject returns the outermost {...} span of s, or "".
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
