package graph

import (
	"context"
	"fmt"
	"time"
)

// StateGraph is a typed state-based graph. S is usually a pointer to a struct
// owned by a single run.
type StateGraph[S any] struct {
	nodes            map[string]TypedNode[S]
	edges            map[string]string
	conditionalEdges map[string]func(ctx context.Context, state S) string
	entryPoint       string
	listeners        []NodeListener
	recursionLimit   int
}

// NewStateGraph creates an empty graph.
func NewStateGraph[S any]() *StateGraph[S] {
	return &StateGraph[S]{
		nodes:            make(map[string]TypedNode[S]),
		edges:            make(map[string]string),
		conditionalEdges: make(map[string]func(ctx context.Context, state S) string),
		recursionLimit:   DefaultRecursionLimit,
	}
}

// AddNode adds a node. Adding a node with an existing name replaces it.
func (g *StateGraph[S]) AddNode(name string, description string, fn func(ctx context.Context, state S) (S, error)) {
	g.nodes[name] = TypedNode[S]{
		Name:        name,
		Description: description,
		Function:    fn,
	}
}

// AddEdge adds a static edge. Each node has at most one static edge; a later
// call replaces the earlier target.
func (g *StateGraph[S]) AddEdge(from, to string) {
	g.edges[from] = to
}

// AddConditionalEdge routes from a node to the node name returned by condition.
// A conditional edge takes precedence over a static edge from the same node.
func (g *StateGraph[S]) AddConditionalEdge(from string, condition func(ctx context.Context, state S) string) {
	g.conditionalEdges[from] = condition
}

// SetEntryPoint sets the entry point node name for the state graph.
func (g *StateGraph[S]) SetEntryPoint(name string) {
	g.entryPoint = name
}

// SetRecursionLimit caps node executions per Invoke. Values < 1 are ignored.
func (g *StateGraph[S]) SetRecursionLimit(limit int) {
	if limit > 0 {
		g.recursionLimit = limit
	}
}

// AddListener registers a listener notified for every node of every run.
func (g *StateGraph[S]) AddListener(listener NodeListener) {
	g.listeners = append(g.listeners, listener)
}

// Compile checks that the entry point and every static edge refer to known
// nodes and returns a runnable graph.
func (g *StateGraph[S]) Compile() (*StateRunnable[S], error) {
	if g.entryPoint == "" {
		return nil, ErrEntryPointNotSet
	}
	if _, ok := g.nodes[g.entryPoint]; !ok {
		return nil, fmt.Errorf("%w: entry point %s", ErrNodeNotFound, g.entryPoint)
	}
	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("%w: edge source %s", ErrNodeNotFound, from)
		}
		if _, ok := g.nodes[to]; !ok && to != END {
			return nil, fmt.Errorf("%w: edge target %s", ErrNodeNotFound, to)
		}
	}
	for from := range g.conditionalEdges {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("%w: conditional edge source %s", ErrNodeNotFound, from)
		}
	}

	return &StateRunnable[S]{graph: g}, nil
}

// StateRunnable is a compiled graph. It holds no per-run state and is safe for
// concurrent Invoke calls as long as the node functions are.
type StateRunnable[S any] struct {
	graph *StateGraph[S]
}

// Invoke runs the graph from the entry point until a node routes to END and
// returns the final state. On failure it returns the state as it was before the
// failing node together with a *NodeError. A context that ends between nodes
// is reported against the node that was about to run.
func (r *StateRunnable[S]) Invoke(ctx context.Context, initialState S) (S, error) {
	state := initialState
	current := r.graph.entryPoint

	for steps := 0; current != END; steps++ {
		if steps >= r.graph.recursionLimit {
			return state, fmt.Errorf("%w (%d)", ErrRecursionLimit, r.graph.recursionLimit)
		}
		if err := ctx.Err(); err != nil {
			return state, &NodeError{Node: current, Err: err}
		}

		node, ok := r.graph.nodes[current]
		if !ok {
			return state, fmt.Errorf("%w: %s", ErrNodeNotFound, current)
		}

		r.notify(ctx, NodeEventStart, node.Name, state, nil, 0)
		started := time.Now()
		next, err := node.Function(ctx, state)
		elapsed := time.Since(started)
		if err != nil {
			r.notify(ctx, NodeEventError, node.Name, state, err, elapsed)
			return state, &NodeError{Node: node.Name, Err: err}
		}
		state = next
		r.notify(ctx, NodeEventComplete, node.Name, state, nil, elapsed)

		current, err = r.nextNode(ctx, node.Name, state)
		if err != nil {
			return state, err
		}
	}

	return state, nil
}

func (r *StateRunnable[S]) nextNode(ctx context.Context, from string, state S) (string, error) {
	if cond, ok := r.graph.conditionalEdges[from]; ok {
		to := cond(ctx, state)
		if to == "" {
			return "", fmt.Errorf("%w: %s (condition returned no target)", ErrNoOutgoingEdge, from)
		}
		return to, nil
	}
	if to, ok := r.graph.edges[from]; ok {
		return to, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoOutgoingEdge, from)
}

func (r *StateRunnable[S]) notify(ctx context.Context, event NodeEvent, node string, state S, err error, elapsed time.Duration) {
	for _, l := range r.graph.listeners {
		l.OnNodeEvent(ctx, NodeEventInfo{Event: event, Node: node, State: state, Err: err, Duration: elapsed})
	}
}
