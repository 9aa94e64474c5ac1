// Package research implements a plan, research, summarize pipeline.
//
// A Planner decomposes a question into ordered ResearchSteps. The Researcher
// runs a search and a context extraction for every step concurrently and
// reduces the fetched text to a short neutral summary. The Summarizer merges
// those summaries into a FinalReport of themed bullet sections and comparison
// tables. The Controller sequences the three stages on a graph.StateRunnable.
//
//	controller, err := research.NewController(research.Components{
//		PlannerModel:    flashLite,
//		ResearcherModel: flash,
//		SummarizerModel: flashLite,
//		Searcher:        tavily,
//		Extractor:       tavily,
//	}, research.DefaultConfig())
//	report, err := controller.Run(ctx, "compare electric and gas cars")
package research
