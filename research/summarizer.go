package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/researchflow/log"
)

var (
	errNoFindings = errors.New("no successful findings to summarize")
	errNoSections = errors.New("report has no sections")
)

// opinionMarkers flag bullets that express a view rather than a fact.
var opinionMarkers = []string{
	"i think", "i believe", "i feel", "in my opinion", "in my view", "personally",
	"we recommend", "i recommend", "you should", "amazing", "awesome", "incredible",
	"fantastic", "terrible", "best choice", "worst choice", "must-have",
}

var reBulletPrefix = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)

// Summarizer merges step findings into a FinalReport.
type Summarizer struct {
	call     modelCall
	maxWords int
	logger   log.Logger
}

// NewSummarizer creates a summarizer backed by model.
func NewSummarizer(model llms.Model, config Config) *Summarizer {
	config = config.withDefaults()
	return &Summarizer{
		call:     newModelCall("summarizer", model, config),
		maxWords: config.MaxBulletWords,
		logger:   config.Logger,
	}
}

type modelReport struct {
	Title    string `json:"title"`
	Sections []struct {
		Title   string   `json:"title"`
		Bullets []string `json:"bullets"`
	} `json:"sections"`
	Tables []struct {
		Title   string     `json:"title"`
		Columns []string   `json:"columns"`
		Rows    [][]string `json:"rows"`
	} `json:"tables"`
}

// Summarize builds the report with one model call. The model's output is
// cleaned up in code: bullets are capped, de-duplicated and stripped of
// opinions, and tables are squared to their column count.
func (s *Summarizer) Summarize(ctx context.Context, query string, findings []StepFinding) (*FinalReport, error) {
	report := &FinalReport{}
	seenURL := make(map[string]bool)
	usable := 0
	for _, f := range findings {
		if f.Failed() {
			report.Gaps = append(report.Gaps, f.Step.Query)
			continue
		}
		usable++
		for _, src := range f.Sources {
			if src.URL == "" || seenURL[src.URL] {
				continue
			}
			seenURL[src.URL] = true
			report.Sources = append(report.Sources, src)
		}
	}
	if usable == 0 {
		return nil, &SummarizationError{Err: errNoFindings}
	}

	out, err := s.call.generate(ctx, summarizerPrompt(s.maxWords), summarizerUserPrompt(query, findings))
	if err != nil {
		return nil, &SummarizationError{Err: err}
	}

	var raw modelReport
	if err := json.Unmarshal([]byte(extractJSONObject(stripFences(out))), &raw); err != nil {
		return nil, &SummarizationError{Err: fmt.Errorf("parse report: %w", err)}
	}

	report.Title = strings.TrimSpace(raw.Title)
	if report.Title == "" {
		report.Title = query
	}

	seen := make(map[string]bool)
	for _, sec := range raw.Sections {
		section := Section{Title: strings.TrimSpace(sec.Title)}
		for _, b := range sec.Bullets {
			b = s.cleanBullet(b)
			if b == "" {
				continue
			}
			key := strings.ToLower(b)
			if seen[key] {
				continue
			}
			seen[key] = true
			section.Bullets = append(section.Bullets, b)
		}
		if len(section.Bullets) > 0 {
			report.Sections = append(report.Sections, section)
		}
	}
	if len(report.Sections) == 0 {
		return nil, &SummarizationError{Err: errNoSections}
	}

	for _, t := range raw.Tables {
		if table, ok := normalizeTable(t.Title, t.Columns, t.Rows); ok {
			report.Tables = append(report.Tables, table)
		}
	}

	s.logger.Debug("report: %d sections, %d tables, %d gaps", len(report.Sections), len(report.Tables), len(report.Gaps))
	return report, nil
}

// cleanBullet strips list markers, drops opinions and caps the word count.
// It returns "" for bullets that should be dropped.
func (s *Summarizer) cleanBullet(b string) string {
	b = strings.TrimSpace(reBulletPrefix.ReplaceAllString(b, ""))
	if b == "" || isOpinion(b) {
		return ""
	}
	words := strings.Fields(b)
	if len(words) > s.maxWords {
		words = words[:s.maxWords]
		words[len(words)-1] = strings.TrimRight(words[len(words)-1], ",;:")
	}
	return strings.Join(words, " ")
}

func isOpinion(b string) bool {
	lower := strings.ToLower(b)
	for _, m := range opinionMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// normalizeTable pads or cuts rows to the column count and drops blank rows.
// Tables with fewer than two columns or no rows are rejected.
func normalizeTable(title string, columns []string, rows [][]string) (Table, bool) {
	t := Table{Title: strings.TrimSpace(title)}
	for _, c := range columns {
		t.Columns = append(t.Columns, strings.TrimSpace(c))
	}
	if len(t.Columns) < 2 {
		return Table{}, false
	}
	for _, row := range rows {
		cells := make([]string, len(t.Columns))
		blank := true
		for i := range cells {
			if i < len(row) {
				cells[i] = strings.TrimSpace(row[i])
			}
			if cells[i] != "" {
				blank = false
			}
		}
		if !blank {
			t.Rows = append(t.Rows, cells)
		}
	}
	return t, len(t.Rows) > 0
}
