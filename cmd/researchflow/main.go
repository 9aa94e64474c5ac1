package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "researchflow",
	Short: "Plan, research and summarize a question with web search and an LLM",
	Long: `researchflow breaks a research question into focused sub-queries, searches
the web for each of them concurrently, and condenses the results into a short
report with themed bullet sections and comparison tables.

Credentials are read from the environment (or a .env file):
  GEMINI_API_KEY, GEMINI_API_KEY_1..10   Gemini keys, rotated on rate limits
  TAVILY_API_KEY, TAVILY_API_KEY_1..10   Tavily keys, rotated on rate limits
  BRAVE_API_KEY                          Brave Search key (--search brave)
  OPENAI_API_KEY                         OpenAI key (--provider openai)
  ANTHROPIC_API_KEY                      Anthropic key (--provider anthropic)`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	addConfigFlags(rootCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = version
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
