package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smallnest/researchflow/report"
	"github.com/smallnest/researchflow/research"
)

var askFlags struct {
	format string
	output string
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Research a question and print the report",
	Long: `Research a question and print a structured report.

Examples:
  researchflow ask "Compare electric vs gas cars"
  researchflow ask --format html -o report.html "Pros and cons of heat pumps"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	f := askCmd.Flags()
	f.StringVarP(&askFlags.format, "format", "f", "markdown", "Output format: markdown, html, json or text")
	f.StringVarP(&askFlags.output, "output", "o", "", "Write the report to a file instead of stdout")
}

func runAsk(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(askFlags.format)
	if err != nil {
		return err
	}

	ctrl, _, _, err := newController(cmd, nil)
	if err != nil {
		return err
	}

	r, err := ctrl.Run(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		if stage, ok := research.StageOf(err); ok {
			return fmt.Errorf("%s failed: %w", stage, err)
		}
		return err
	}

	out, err := report.Render(format, r)
	if err != nil {
		return err
	}
	if askFlags.output != "" {
		if err := os.WriteFile(askFlags.output, out, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "report written to %s\n", askFlags.output)
		return nil
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
