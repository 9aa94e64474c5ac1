package research

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summarizeReturning(out string) *MockLLM {
	return &MockLLM{Summarize: func(context.Context, string) (string, error) { return out, nil }}
}

func sampleFindings() []StepFinding {
	return []StepFinding{
		{
			Step:    ResearchStep{0, "EV running cost"},
			Summary: "- Electricity costs about 4 cents per mile",
			Status:  StatusOK,
			Sources: []Source{{Title: "A", URL: "https://a.example"}},
		},
		{
			Step:   ResearchStep{1, "EV resale value"},
			Status: StatusFailed,
			Err:    errors.New("no data"),
		},
		{
			Step:    ResearchStep{2, "Gas running cost"},
			Summary: "- Gasoline costs about 12 cents per mile",
			Status:  StatusPartial,
			Sources: []Source{{Title: "A again", URL: "https://a.example"}, {Title: "B", URL: "https://b.example"}},
		},
	}
}

func TestSummarizer_CleansReport(t *testing.T) {
	out := "```json\n" + `{
  "title": "Electric vs gas cars",
  "sections": [
    {"title": "Cost", "bullets": [
      "- Electricity costs about 4 cents per mile",
      "electricity costs about 4 cents per mile",
      "I think electric cars are amazing",
      "Gasoline costs about 12 cents per mile on average across the United States according to the 2023 federal survey data from the previous year"
    ]},
    {"title": "Opinions", "bullets": ["In my opinion gas cars are better"]},
    {"title": "Empty", "bullets": []}
  ],
  "tables": [
    {"title": "Running cost", "columns": ["Attribute", "Electric", "Gas"], "rows": [
      ["Cost per mile", "4 cents", "12 cents", "extra"],
      ["Refuel time", "30 min"],
      ["", "", ""]
    ]},
    {"title": "Broken", "columns": ["Only"], "rows": [["x"]]}
  ]
}` + "\n```"

	s := NewSummarizer(summarizeReturning(out), testConfig())
	report, err := s.Summarize(context.Background(), "compare electric and gas cars", sampleFindings())
	require.NoError(t, err)

	want := &FinalReport{
		Title: "Electric vs gas cars",
		Sections: []Section{{
			Title: "Cost",
			Bullets: []string{
				"Electricity costs about 4 cents per mile",
				"Gasoline costs about 12 cents per mile on average across the United States according to the 2023 federal survey data",
			},
		}},
		Tables: []Table{{
			Title:   "Running cost",
			Columns: []string{"Attribute", "Electric", "Gas"},
			Rows: [][]string{
				{"Cost per mile", "4 cents", "12 cents"},
				{"Refuel time", "30 min", ""},
			},
		}},
		Gaps: []string{"EV resale value"},
		Sources: []Source{
			{Title: "A", URL: "https://a.example"},
			{Title: "B", URL: "https://b.example"},
		},
	}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, strings.Fields(report.Sections[0].Bullets[1]), 20)
}

func TestSummarizer_PromptSkipsFailedSteps(t *testing.T) {
	var prompt string
	model := &MockLLM{Summarize: func(_ context.Context, user string) (string, error) {
		prompt = user
		return `{"title": "t", "sections": [{"title": "s", "bullets": ["fact"]}]}`, nil
	}}

	_, err := NewSummarizer(model, testConfig()).Summarize(context.Background(), "q", sampleFindings())
	require.NoError(t, err)
	assert.Contains(t, prompt, "EV running cost")
	assert.Contains(t, prompt, "Gas running cost")
	assert.NotContains(t, prompt, "EV resale value")
}

func TestSummarizer_DefaultsTitleToQuery(t *testing.T) {
	s := NewSummarizer(summarizeReturning(`{"sections": [{"title": "s", "bullets": ["fact"]}]}`), testConfig())
	report, err := s.Summarize(context.Background(), "heat pump efficiency", sampleFindings())
	require.NoError(t, err)
	assert.Equal(t, "heat pump efficiency", report.Title)
}

func TestSummarizer_Failures(t *testing.T) {
	modelErr := errors.New("model down")
	tests := []struct {
		name     string
		model    *MockLLM
		findings []StepFinding
		is       error
		calls    int
	}{
		{name: "unparseable output", model: summarizeReturning("Here is your report: great stuff"), findings: sampleFindings(), calls: 1},
		{name: "no sections", model: summarizeReturning(`{"title": "t", "sections": [{"title": "x", "bullets": ["I think so"]}]}`), findings: sampleFindings(), is: errNoSections, calls: 1},
		{
			name:     "model error",
			model:    &MockLLM{Summarize: func(context.Context, string) (string, error) { return "", modelErr }},
			findings: sampleFindings(),
			is:       modelErr,
			calls:    1,
		},
		{
			name:     "nothing to summarize",
			model:    summarizeReturning(`{}`),
			findings: []StepFinding{{Step: ResearchStep{0, "q"}, Status: StatusFailed}},
			is:       errNoFindings,
			calls:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := NewSummarizer(tt.model, testConfig()).Summarize(context.Background(), "q", tt.findings)
			assert.Nil(t, report)

			var se *SummarizationError
			require.ErrorAs(t, err, &se)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			assert.Equal(t, tt.calls, tt.model.Calls(NodeSummarizer))
		})
	}
}

func TestNormalizeTable(t *testing.T) {
	_, ok := normalizeTable("t", []string{"a"}, [][]string{{"1"}})
	assert.False(t, ok)

	_, ok = normalizeTable("t", []string{"a", "b"}, [][]string{{" ", ""}})
	assert.False(t, ok)

	table, ok := normalizeTable(" t ", []string{" a ", "b"}, [][]string{{"1"}, {"2", "3", "4"}})
	require.True(t, ok)
	assert.Equal(t, Table{Title: "t", Columns: []string{"a", "b"}, Rows: [][]string{{"1", ""}, {"2", "3"}}}, table)
}
