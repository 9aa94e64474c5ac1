package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smallnest/researchflow/config"
	"github.com/smallnest/researchflow/tool"
)

var lookupFlags struct {
	tool string
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <query>",
	Short: "Run a single search or extract lookup without a model",
	Long: `Run one of the researcher's lookups directly and print its raw output.
Useful for checking search credentials and what a step would see.

Tools: search, extract_context`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLookup,
}

func init() {
	lookupCmd.Flags().StringVarP(&lookupFlags.tool, "tool", "t", "search", "Tool to run: search or extract_context")
}

func runLookup(cmd *cobra.Command, args []string) error {
	// The tool name is checked before any credentials are needed.
	if _, err := tool.FindTool(tool.Tools(nil, &tool.PageExtractor{}), lookupFlags.tool); err != nil {
		return err
	}

	cfg, err := loadConfigWith(cmd, (*config.Config).ValidateLookups)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	searcher, extractor, err := cfg.Lookups(logger)
	if err != nil {
		return err
	}

	t, err := tool.FindTool(tool.Tools(searcher, extractor), lookupFlags.tool)
	if err != nil {
		return err
	}
	out, err := t.Call(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("%s failed: %w", t.Name(), err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
