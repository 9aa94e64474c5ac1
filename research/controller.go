package research

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/researchflow/graph"
	"github.com/smallnest/researchflow/log"
	"github.com/smallnest/researchflow/metrics"
	"github.com/smallnest/researchflow/tool"
)

// Graph node names.
const (
	NodePlanner    = "planner"
	NodeResearcher = "researcher"
	NodeSummarizer = "summarizer"
)

// stageMessages are the progress lines logged when each node starts.
var stageMessages = map[string]string{
	NodePlanner:    "Planning the research steps...",
	NodeResearcher: "Searching the web...",
	NodeSummarizer: "Summarizing the findings...",
}

var nodeStages = map[string]Stage{
	NodePlanner:    StagePlanning,
	NodeResearcher: StageResearch,
	NodeSummarizer: StageSummarization,
}

// Components are the external collaborators of a Controller.
// ResearcherModel and SummarizerModel default to PlannerModel when nil.
type Components struct {
	PlannerModel    llms.Model
	ResearcherModel llms.Model
	SummarizerModel llms.Model
	Searcher        tool.Searcher
	Extractor       tool.Extractor
}

// runState flows through the graph. Each node fills in its own fields.
type runState struct {
	Query    string
	Steps    []ResearchStep
	Findings []StepFinding
	Report   *FinalReport
}

// Controller runs Planner, Researcher and Summarizer in sequence.
type Controller struct {
	Planner    *Planner
	Researcher *Researcher
	Summarizer *Summarizer

	runnable *graph.StateRunnable[*runState]
	logger   log.Logger
	metrics  *metrics.Metrics
}

// NewController wires the stages into a compiled graph.
func NewController(c Components, config Config) (*Controller, error) {
	if c.PlannerModel == nil {
		return nil, errors.New("research: planner model is required")
	}
	if c.Searcher == nil || c.Extractor == nil {
		return nil, errors.New("research: searcher and extractor are required")
	}
	if c.ResearcherModel == nil {
		c.ResearcherModel = c.PlannerModel
	}
	if c.SummarizerModel == nil {
		c.SummarizerModel = c.PlannerModel
	}
	config = config.withDefaults()

	ctrl := &Controller{
		Planner:    NewPlanner(c.PlannerModel, config),
		Researcher: NewResearcher(c.ResearcherModel, c.Searcher, c.Extractor, config),
		Summarizer: NewSummarizer(c.SummarizerModel, config),
		logger:     config.Logger,
		metrics:    config.Metrics,
	}

	g := graph.NewStateGraph[*runState]()
	g.AddNode(NodePlanner, "Decompose the question into research steps", ctrl.planNode)
	g.AddNode(NodeResearcher, "Fetch and condense data for every step", ctrl.researchNode)
	g.AddNode(NodeSummarizer, "Merge findings into the final report", ctrl.summarizeNode)
	g.SetEntryPoint(NodePlanner)
	g.AddEdge(NodePlanner, NodeResearcher)
	g.AddConditionalEdge(NodeResearcher, func(_ context.Context, s *runState) string {
		if allFailed(s.Findings) {
			return graph.END
		}
		return NodeSummarizer
	})
	g.AddEdge(NodeSummarizer, graph.END)

	g.AddListener(graph.NodeListenerFunc(ctrl.logProgress))
	if ctrl.metrics != nil {
		g.AddListener(ctrl.metrics.StageListener())
	}

	runnable, err := g.Compile()
	if err != nil {
		return nil, fmt.Errorf("research: failed to compile graph: %w", err)
	}
	ctrl.runnable = runnable
	return ctrl, nil
}

// Run answers query with a FinalReport. It returns *PlanningError,
// *SummarizationError or *ResearchError as-is so callers can use errors.As.
func (c *Controller) Run(ctx context.Context, query string) (*FinalReport, error) {
	trace, err := c.Trace(ctx, query)
	if err != nil {
		return nil, err
	}
	return trace.Report, nil
}

// Trace is Run that also returns the plan and the per-step findings. The
// returned Trace is non-nil even when err is not.
func (c *Controller) Trace(ctx context.Context, query string) (*Trace, error) {
	runID := uuid.NewString()
	ctx = WithRunID(ctx, runID)
	started := time.Now()

	state, err := c.runnable.Invoke(ctx, &runState{Query: query})
	if state == nil {
		state = &runState{Query: query}
	}
	trace := &Trace{
		RunID:    runID,
		Query:    query,
		Steps:    state.Steps,
		Findings: state.Findings,
		Report:   state.Report,
	}

	var nodeErr *graph.NodeError
	if errors.As(err, &nodeErr) {
		err = nodeErr.Err
		if _, ok := StageOf(err); !ok && ctx.Err() != nil {
			err = &InterruptedError{At: nodeStages[nodeErr.Node], Err: err}
		}
	}
	if err == nil && state.Report == nil {
		err = newResearchError(state.Findings)
	}

	logger := c.runLogger(ctx)
	if err != nil {
		logger.Error("run failed after %s: %v", time.Since(started).Round(time.Millisecond), err)
		c.metrics.RunFinished(runOutcome(err))
		return trace, err
	}
	logger.Info("run finished in %s: %d steps, %d gaps", time.Since(started).Round(time.Millisecond),
		len(state.Steps), len(state.Report.Gaps))
	c.metrics.RunFinished("ok")
	return trace, nil
}

func (c *Controller) planNode(ctx context.Context, s *runState) (*runState, error) {
	steps, err := c.Planner.Plan(ctx, s.Query)
	if err != nil {
		return s, err
	}
	for _, step := range steps {
		c.runLogger(ctx).Info("step %d: %s", step.Index+1, step.Query)
	}
	s.Steps = steps
	return s, nil
}

func (c *Controller) researchNode(ctx context.Context, s *runState) (*runState, error) {
	s.Findings = c.Researcher.Research(ctx, s.Steps)
	return s, nil
}

func (c *Controller) summarizeNode(ctx context.Context, s *runState) (*runState, error) {
	report, err := c.Summarizer.Summarize(ctx, s.Query, s.Findings)
	if err != nil {
		return s, err
	}
	s.Report = report
	return s, nil
}

func (c *Controller) logProgress(ctx context.Context, info graph.NodeEventInfo) {
	graph.NewLoggingListener(c.runLogger(ctx), stageMessages).OnNodeEvent(ctx, info)
}

func (c *Controller) runLogger(ctx context.Context) log.Logger {
	if id := RunID(ctx); id != "" {
		return log.WithPrefix(c.logger, "run "+id[:min(len(id), 8)])
	}
	return c.logger
}

func allFailed(findings []StepFinding) bool {
	for _, f := range findings {
		if !f.Failed() {
			return false
		}
	}
	return true
}

func newResearchError(findings []StepFinding) *ResearchError {
	e := &ResearchError{Failed: len(findings), Total: len(findings)}
	for _, f := range findings {
		if f.Err != nil {
			e.Errs = append(e.Errs, f.Err)
		}
	}
	return e
}

func runOutcome(err error) string {
	var ie *InterruptedError
	if errors.As(err, &ie) {
		return "cancelled"
	}
	if stage, ok := StageOf(err); ok {
		return string(stage) + "_failed"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	return "error"
}

type runIDKey struct{}

// WithRunID returns a context carrying a run id for log correlation.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run id stored by WithRunID, or "".
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
