package research

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func planReturning(out string) *MockLLM {
	return &MockLLM{Plan: func(context.Context, string) (string, error) { return out, nil }}
}

func TestPlanner_ParsesPlans(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want []string
	}{
		{
			name: "json object",
			out:  `{"steps": ["EV purchase price", "gas car purchase price", "maintenance costs"]}`,
			want: []string{"EV purchase price", "gas car purchase price", "maintenance costs"},
		},
		{
			name: "fenced json",
			out:  "Here is the plan:\n```json\n{\"steps\": [\"battery lifespan\", \"charging time\"]}\n```",
			want: []string{"battery lifespan", "charging time"},
		},
		{
			name: "json array of objects",
			out:  `[{"query": "fuel economy"}, {"query": "emissions"}]`,
			want: []string{"fuel economy", "emissions"},
		},
		{
			name: "numbered list",
			out:  "1. Cost of solar panels\n2) Installation timeline\n- Government incentives\nSome trailing prose.",
			want: []string{"Cost of solar panels", "Installation timeline", "Government incentives"},
		},
		{
			name: "json with prose around it",
			out:  `Sure! {"steps": ["market size"]} Hope that helps.`,
			want: []string{"market size"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps, err := NewPlanner(planReturning(tt.out), testConfig()).Plan(context.Background(), "question")
			require.NoError(t, err)

			var got []string
			for i, s := range steps {
				assert.Equal(t, i, s.Index)
				got = append(got, s.Query)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("steps mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPlanner_DedupAndCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSteps = 3
	model := planReturning(`{"steps": ["Cost", "cost", "  Range ", "", "Safety", "Resale value"]}`)

	steps, err := NewPlanner(model, cfg).Plan(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []ResearchStep{{0, "Cost"}, {1, "Range"}, {2, "Safety"}}, steps)
}

func TestPlanner_Failures(t *testing.T) {
	modelErr := errors.New("model unavailable")
	tests := []struct {
		name  string
		query string
		model *MockLLM
		is    error
	}{
		{name: "empty query", query: "   ", model: planReturning(`{"steps":["x"]}`), is: ErrEmptyQuery},
		{name: "no steps", query: "q", model: planReturning(`{"steps": []}`), is: errNoSteps},
		{name: "unparseable", query: "q", model: planReturning("I cannot help with that."), is: errNoSteps},
		{
			name:  "model error",
			query: "q",
			model: &MockLLM{Plan: func(context.Context, string) (string, error) { return "", modelErr }},
			is:    modelErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps, err := NewPlanner(tt.model, testConfig()).Plan(context.Background(), tt.query)
			assert.Nil(t, steps)

			var pe *PlanningError
			require.ErrorAs(t, err, &pe)
			assert.ErrorIs(t, err, tt.is)
			assert.Equal(t, StagePlanning, pe.Stage())
		})
	}
}

func TestPlanner_Timeout(t *testing.T) {
	cfg := testConfig()
	cfg.ModelTimeout = 20 * time.Millisecond

	_, err := NewPlanner(&MockLLM{Plan: blockUntilDone}, cfg).Plan(context.Background(), "q")
	var pe *PlanningError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPlanner_RetriesTransientErrors(t *testing.T) {
	cfg := testConfig()
	cfg.Retry = fastRetry(3)

	attempts := 0
	model := &MockLLM{Plan: func(context.Context, string) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("503 service unavailable")
		}
		return `{"steps": ["only step"]}`, nil
	}}

	steps, err := NewPlanner(model, cfg).Plan(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, steps, 1)
	assert.Equal(t, 3, attempts)
}

func TestPlanner_SingleStepFallback(t *testing.T) {
	cfg := testConfig()
	model := planReturning("no plan here")

	_, err := NewPlanner(model, cfg).Plan(context.Background(), "solar panel payback")
	require.Error(t, err, "fallback must be off by default")

	cfg.SingleStepFallback = true
	steps, err := NewPlanner(model, cfg).Plan(context.Background(), "solar panel payback")
	require.NoError(t, err)
	assert.Equal(t, []ResearchStep{{Index: 0, Query: "solar panel payback"}}, steps)

	_, err = NewPlanner(model, cfg).Plan(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyQuery, "empty queries are never rescued")
}
