package research

// ResearchStep is one sub-query produced by the Planner. Index is the step's
// zero-based position in the plan.
type ResearchStep struct {
	Index int    `json:"index"`
	Query string `json:"query"`
}

// StepStatus is the outcome of researching one step.
type StepStatus string

const (
	StatusOK StepStatus = "ok"
	// StatusPartial means one of the two lookups failed and the summary was
	// built from the other.
	StatusPartial StepStatus = "partial"
	// StatusFailed means no data was fetched or the reduction call failed.
	StatusFailed StepStatus = "failed"
)

// Source is a search hit kept for citation.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// StepFinding is the result of one step. The Researcher returns exactly one
// finding per step, in plan order, whatever happened to it.
type StepFinding struct {
	Step    ResearchStep `json:"step"`
	RawText string       `json:"-"`
	Summary string       `json:"summary"`
	Status  StepStatus   `json:"status"`
	Err     error        `json:"-"`
	Sources []Source     `json:"sources,omitempty"`
}

// Failed reports whether the finding carries no usable summary.
func (f StepFinding) Failed() bool { return f.Status == StatusFailed }

// Section is a themed group of bullets in the final report.
type Section struct {
	Title   string   `json:"title"`
	Bullets []string `json:"bullets"`
}

// Table is a comparison table. Every row has len(Columns) cells.
type Table struct {
	Title   string     `json:"title,omitempty"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// FinalReport is the structured result of a research run.
type FinalReport struct {
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
	Tables   []Table   `json:"tables,omitempty"`
	// Gaps lists the sub-queries whose research step failed.
	Gaps    []string `json:"gaps,omitempty"`
	Sources []Source `json:"sources,omitempty"`
}

// Trace is everything a run produced, for callers that want more than the report.
type Trace struct {
	RunID    string         `json:"run_id"`
	Query    string         `json:"query"`
	Steps    []ResearchStep `json:"steps"`
	Findings []StepFinding  `json:"findings"`
	Report   *FinalReport   `json:"report,omitempty"`
}
