// Package report renders a research.FinalReport as markdown, HTML, JSON or
// styled terminal text.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/smallnest/researchflow/research"
)

// Format is an output format name.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
	FormatText     Format = "text"
)

// ParseFormat accepts a format name or a common alias (md, txt).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markdown", "md", "":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	case "json":
		return FormatJSON, nil
	case "text", "txt":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown format %q (want markdown, html, json or text)", s)
}

// Render renders r in format f.
func Render(f Format, r *research.FinalReport) ([]byte, error) {
	switch f {
	case FormatMarkdown:
		return []byte(Markdown(r)), nil
	case FormatHTML:
		return HTML(r)
	case FormatJSON:
		return JSON(r)
	case FormatText:
		return []byte(Text(r)), nil
	}
	return nil, fmt.Errorf("unknown format %q", f)
}

// Markdown renders r with pipe tables.
func Markdown(r *research.FinalReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n", r.Title)

	for _, s := range r.Sections {
		fmt.Fprintf(&sb, "\n## %s\n\n", s.Title)
		for _, b := range s.Bullets {
			fmt.Fprintf(&sb, "- %s\n", b)
		}
	}

	for _, t := range r.Tables {
		sb.WriteString("\n")
		if t.Title != "" {
			fmt.Fprintf(&sb, "### %s\n\n", t.Title)
		}
		writeRow(&sb, t.Columns)
		sep := make([]string, len(t.Columns))
		for i := range sep {
			sep[i] = "---"
		}
		writeRow(&sb, sep)
		for _, row := range t.Rows {
			writeRow(&sb, row)
		}
	}

	if len(r.Gaps) > 0 {
		sb.WriteString("\n## Gaps\n\nNo data could be gathered for:\n\n")
		for _, g := range r.Gaps {
			fmt.Fprintf(&sb, "- %s\n", g)
		}
	}

	if len(r.Sources) > 0 {
		sb.WriteString("\n## Sources\n\n")
		for i, src := range r.Sources {
			title := src.Title
			if title == "" {
				title = src.URL
			}
			fmt.Fprintf(&sb, "%d. [%s](%s)\n", i+1, title, src.URL)
		}
	}
	return sb.String()
}

func writeRow(sb *strings.Builder, cells []string) {
	sb.WriteString("|")
	for _, c := range cells {
		sb.WriteString(" ")
		sb.WriteString(strings.ReplaceAll(c, "|", `\|`))
		sb.WriteString(" |")
	}
	sb.WriteString("\n")
}

var pageTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 52rem; margin: 2rem auto; line-height: 1.5; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: .3rem .6rem; text-align: left; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// HTML renders the markdown form to a standalone page. The converted body is
// sanitized with bluemonday's UGC policy before it is embedded.
func HTML(r *research.FinalReport) ([]byte, error) {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(Markdown(r)))

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	body := bluemonday.UGCPolicy().SanitizeBytes(markdown.Render(doc, renderer))

	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{
		Title: r.Title,
		Body:  template.HTML(body), // #nosec G203 -- sanitized above
	})
	if err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

// JSON renders r as indented JSON.
func JSON(r *research.FinalReport) ([]byte, error) {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render json: %w", err)
	}
	return append(b, '\n'), nil
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Underline(true).MarginBottom(1)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	gapStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

// Text renders r for a terminal. Colors are dropped automatically when the
// output is not a TTY.
func Text(r *research.FinalReport) string {
	var parts []string
	parts = append(parts, titleStyle.Render(r.Title))

	for _, s := range r.Sections {
		lines := []string{sectionStyle.Render(s.Title)}
		for _, b := range s.Bullets {
			lines = append(lines, "  • "+b)
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}

	for _, t := range r.Tables {
		tbl := table.New().
			Border(lipgloss.NormalBorder()).
			Headers(t.Columns...).
			Rows(t.Rows...).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			})
		block := tbl.Render()
		if t.Title != "" {
			block = sectionStyle.Render(t.Title) + "\n" + block
		}
		parts = append(parts, block)
	}

	if len(r.Gaps) > 0 {
		lines := []string{gapStyle.Render("Gaps")}
		for _, g := range r.Gaps {
			lines = append(lines, "  • "+g)
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}

	if len(r.Sources) > 0 {
		lines := []string{dimStyle.Render("Sources")}
		for i, src := range r.Sources {
			lines = append(lines, dimStyle.Render(fmt.Sprintf("  %d. %s %s", i+1, src.Title, src.URL)))
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}
	return strings.Join(parts, "\n\n") + "\n"
}
