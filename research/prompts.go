package research

import (
	"fmt"
	"strings"
)

const plannerSystemPrompt = `You are a research planner. Break the user's question into focused web search queries.

Rules:
- Each query must be answerable by a web search on its own.
- When they apply, cover cost, performance, benefits and risks, timeline, and statistics.
- When the question compares options, give each option its own queries for the same attributes.
- Do not repeat a query.
- Return at most %d queries.

Respond with JSON only, no prose:
{"steps": ["first query", "second query"]}`

const researcherSystemPrompt = `You condense web research into a neutral mini-summary.

Rules:
- Use only facts present in the provided text.
- Keep numbers, dates, units and named sources.
- No opinions, recommendations or marketing language.
- At most 8 short bullet points, one fact each, starting with "- ".
- If the text contains nothing relevant, answer "NO RELEVANT DATA".`

const summarizerSystemPrompt = `You merge research notes into a scannable report.

Rules:
- Group facts into sections by recurring theme (for example Cost, Performance, Environment).
- Each bullet is one fact of at most %d words. No opinions, no duplicates.
- When two or more options share comparable attributes, add a comparison table:
  the first column names the attribute, then one column per option.
- Use only facts present in the notes.

Respond with JSON only, no prose, in this shape:
{
  "title": "short report title",
  "sections": [{"title": "Cost", "bullets": ["fact", "fact"]}],
  "tables": [{"title": "Electric vs gas", "columns": ["Attribute", "Electric", "Gas"], "rows": [["Fuel cost", "...", "..."]]}]
}`

func plannerPrompt(maxSteps int) string {
	return fmt.Sprintf(plannerSystemPrompt, maxSteps)
}

func summarizerPrompt(maxWords int) string {
	return fmt.Sprintf(summarizerSystemPrompt, maxWords)
}

func researcherUserPrompt(step ResearchStep, raw string) string {
	return fmt.Sprintf("Sub-query: %s\n\nResearch text:\n%s", step.Query, raw)
}

func summarizerUserPrompt(query string, findings []StepFinding) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Research question: %s\n\nNotes:\n", query)
	for _, f := range findings {
		if f.Failed() {
			continue
		}
		fmt.Fprintf(&sb, "\n## %s\n%s\n", f.Step.Query, strings.TrimSpace(f.Summary))
	}
	return sb.String()
}
