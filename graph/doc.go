// Package graph is the small execution engine the research pipeline runs on.
//
// A StateGraph[S] is a set of named nodes, each a typed function from state to
// state, connected by static or conditional edges. Compile validates the wiring
// and returns a StateRunnable that walks the graph from its entry point until a
// node routes to END. Listeners observe node start, completion and failure.
//
//	g := graph.NewStateGraph[*State]()
//	g.AddNode("planner", "Plan research steps", planNode)
//	g.AddNode("researcher", "Research every step", researchNode)
//	g.SetEntryPoint("planner")
//	g.AddEdge("planner", "researcher")
//	g.AddEdge("researcher", graph.END)
//
//	runnable, err := g.Compile()
//	final, err := runnable.Invoke(ctx, &State{Query: q})
//
// The package also carries the concurrency and resilience helpers shared by the
// pipeline stages: ParallelMap for order-preserving fan-out and Retry for
// exponential-backoff retries of external calls.
package graph
