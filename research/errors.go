package research

import (
	"errors"
	"fmt"
)

// Stage names a pipeline stage.
type Stage string

const (
	StagePlanning      Stage = "planning"
	StageResearch      Stage = "research"
	StageSummarization Stage = "summarization"
)

// ErrEmptyQuery is returned by the Planner for blank input.
var ErrEmptyQuery = errors.New("query is empty")

// StageError is implemented by every error the pipeline returns.
type StageError interface {
	error
	Stage() Stage
}

// PlanningError means no usable plan could be produced. It is fatal.
type PlanningError struct {
	Query string
	Err   error
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("planning %q: %v", e.Query, e.Err)
}

func (e *PlanningError) Unwrap() error { return e.Err }
func (e *PlanningError) Stage() Stage  { return StagePlanning }

// StepFetchError records which lookups of a step failed. It is stored on the
// StepFinding rather than returned.
type StepFetchError struct {
	Step    ResearchStep
	Search  error
	Extract error
}

func (e *StepFetchError) Error() string {
	switch {
	case e.Search != nil && e.Extract != nil:
		return fmt.Sprintf("step %d %q: search: %v; extract: %v", e.Step.Index, e.Step.Query, e.Search, e.Extract)
	case e.Search != nil:
		return fmt.Sprintf("step %d %q: search: %v", e.Step.Index, e.Step.Query, e.Search)
	default:
		return fmt.Sprintf("step %d %q: extract: %v", e.Step.Index, e.Step.Query, e.Extract)
	}
}

func (e *StepFetchError) Unwrap() []error {
	var errs []error
	if e.Search != nil {
		errs = append(errs, e.Search)
	}
	if e.Extract != nil {
		errs = append(errs, e.Extract)
	}
	return errs
}

func (e *StepFetchError) Stage() Stage { return StageResearch }

// SummarizationError means the final report could not be produced. It is fatal.
type SummarizationError struct {
	Err error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("summarization: %v", e.Err)
}

func (e *SummarizationError) Unwrap() error { return e.Err }
func (e *SummarizationError) Stage() Stage  { return StageSummarization }

// ResearchError is returned by the Controller when every step failed. Errs
// holds the per-step causes in plan order.
type ResearchError struct {
	Failed int
	Total  int
	Errs   []error
}

func (e *ResearchError) Error() string {
	return fmt.Sprintf("all %d research steps failed", e.Total)
}

func (e *ResearchError) Unwrap() []error { return e.Errs }
func (e *ResearchError) Stage() Stage    { return StageResearch }

// InterruptedError means the run's context ended before stage At could start.
type InterruptedError struct {
	At  Stage
	Err error
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("interrupted before %s: %v", e.At, e.Err)
}

func (e *InterruptedError) Unwrap() error { return e.Err }
func (e *InterruptedError) Stage() Stage  { return e.At }

// StageOf returns the stage named by the first StageError in err's chain.
func StageOf(err error) (Stage, bool) {
	var se StageError
	if errors.As(err, &se) {
		return se.Stage(), true
	}
	return "", false
}
