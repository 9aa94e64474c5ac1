package report

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/researchflow/research"
)

func sampleReport() *research.FinalReport {
	return &research.FinalReport{
		Title: "Electric vs gas cars",
		Sections: []research.Section{
			{Title: "Cost", Bullets: []string{"EVs cost more upfront", "EVs cost less per mile"}},
		},
		Tables: []research.Table{{
			Title:   "Running cost",
			Columns: []string{"Attribute", "Electric", "Gas"},
			Rows:    [][]string{{"Cost per mile", "4 cents", "12 | 14 cents"}},
		}},
		Gaps:    []string{"EV resale value"},
		Sources: []research.Source{{Title: "DOE", URL: "https://energy.gov/ev"}},
	}
}

func TestMarkdown(t *testing.T) {
	want := `# Electric vs gas cars

## Cost

- EVs cost more upfront
- EVs cost less per mile

### Running cost

| Attribute | Electric | Gas |
| --- | --- | --- |
| Cost per mile | 4 cents | 12 \| 14 cents |

## Gaps

No data could be gathered for:

- EV resale value

## Sources

1. [DOE](https://energy.gov/ev)
`
	if diff := cmp.Diff(want, Markdown(sampleReport())); diff != "" {
		t.Errorf("markdown mismatch (-want +got):\n%s", diff)
	}
}

func TestHTML(t *testing.T) {
	r := sampleReport()
	r.Sections[0].Bullets = append(r.Sections[0].Bullets, `<script>alert("x")</script>`)

	out, err := HTML(r)
	require.NoError(t, err)
	page := string(out)

	assert.True(t, strings.HasPrefix(page, "<!DOCTYPE html>"))
	assert.Contains(t, page, "<title>Electric vs gas cars</title>")
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "<li>EVs cost more upfront</li>")
	assert.Contains(t, page, `href="https://energy.gov/ev"`)
	assert.NotContains(t, page, "<script>")
}

func TestJSON(t *testing.T) {
	out, err := JSON(sampleReport())
	require.NoError(t, err)

	var back research.FinalReport
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, sampleReport(), &back)
}

func TestText(t *testing.T) {
	out := Text(sampleReport())
	for _, want := range []string{"Electric vs gas cars", "Cost", "• EVs cost less per mile", "Attribute", "12 | 14 cents", "Gaps", "https://energy.gov/ev"} {
		assert.Contains(t, out, want)
	}
}

func TestParseFormatAndRender(t *testing.T) {
	for in, want := range map[string]Format{"md": FormatMarkdown, "": FormatMarkdown, "HTML": FormatHTML, "json": FormatJSON, "txt": FormatText} {
		f, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, f)

		out, err := Render(f, sampleReport())
		require.NoError(t, err)
		assert.NotEmpty(t, out)
	}

	_, err := ParseFormat("pdf")
	assert.Error(t, err)
	_, err = Render("pdf", sampleReport())
	assert.Error(t, err)
}
