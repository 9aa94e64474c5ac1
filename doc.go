// Package researchflow turns a research question into a short structured
// report.
//
// The pipeline has three stages run on a typed state graph:
//
//   - Planner: one model call splits the question into at most five focused
//     web search queries.
//   - Researcher: every query runs concurrently. Each step performs a quick
//     search and a deeper context extraction in parallel, then one model call
//     reduces the merged text to a neutral mini-summary. Steps that fail are
//     kept in place and reported as gaps.
//   - Summarizer: one model call merges the mini-summaries into themed bullet
//     sections and comparison tables, which are cleaned up in code.
//
// # Packages
//
//   - research: Planner, Researcher, Summarizer and Controller
//   - graph: state graph, retries and indexed fan-out used by the pipeline
//   - tool: Tavily, Brave Search and page fetching behind Searcher/Extractor
//   - llms/gemini: Gemini through its OpenAI-compatible endpoint
//   - keyring: API key rotation across GEMINI_API_KEY_1..10 style variables
//   - config: YAML, .env and environment configuration
//   - report: markdown, HTML, JSON and terminal rendering
//   - server: HTTP API with Prometheus metrics
//   - log: leveled logging over golog
//
// # Quick Start
//
//	export GEMINI_API_KEY=...
//	export TAVILY_API_KEY=...
//	go run ./cmd/researchflow ask "Compare electric vs gas cars"
//
// Or from Go:
//
//	cfg, _ := config.Load("")
//	components, _ := cfg.Components(nil)
//	controller, _ := research.NewController(components, cfg.Research(nil, nil))
//	report, err := controller.Run(ctx, "Compare electric vs gas cars")
package researchflow
