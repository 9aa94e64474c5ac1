package graph_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/researchflow/graph"
)

type pipelineState struct {
	Trail []string
	Skip  bool
}

func appendNode(name string) func(context.Context, *pipelineState) (*pipelineState, error) {
	return func(_ context.Context, s *pipelineState) (*pipelineState, error) {
		s.Trail = append(s.Trail, name)
		return s, nil
	}
}

func TestStateGraph_LinearPipeline(t *testing.T) {
	g := graph.NewStateGraph[*pipelineState]()
	g.AddNode("plan", "plan", appendNode("plan"))
	g.AddNode("research", "research", appendNode("research"))
	g.AddNode("summarize", "summarize", appendNode("summarize"))
	g.SetEntryPoint("plan")
	g.AddEdge("plan", "research")
	g.AddEdge("research", "summarize")
	g.AddEdge("summarize", graph.END)

	runnable, err := g.Compile()
	require.NoError(t, err)

	final, err := runnable.Invoke(context.Background(), &pipelineState{})
	require.NoError(t, err)
	assert.Equal(t, []string{"plan", "research", "summarize"}, final.Trail)
}

func TestStateGraph_ConditionalEdge(t *testing.T) {
	g := graph.NewStateGraph[*pipelineState]()
	g.AddNode("research", "research", appendNode("research"))
	g.AddNode("summarize", "summarize", appendNode("summarize"))
	g.SetEntryPoint("research")
	g.AddEdge("research", "summarize")
	g.AddConditionalEdge("research", func(_ context.Context, s *pipelineState) string {
		if s.Skip {
			return graph.END
		}
		return "summarize"
	})
	g.AddEdge("summarize", graph.END)

	runnable, err := g.Compile()
	require.NoError(t, err)

	final, err := runnable.Invoke(context.Background(), &pipelineState{Skip: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"research"}, final.Trail)

	final, err = runnable.Invoke(context.Background(), &pipelineState{})
	require.NoError(t, err)
	assert.Equal(t, []string{"research", "summarize"}, final.Trail)
}

type stageError struct{ stage string }

func (e *stageError) Error() string { return e.stage + " failed" }

func TestStateGraph_NodeErrorShortCircuits(t *testing.T) {
	ran := false
	g := graph.NewStateGraph[*pipelineState]()
	g.AddNode("plan", "plan", func(context.Context, *pipelineState) (*pipelineState, error) {
		return nil, &stageError{stage: "planning"}
	})
	g.AddNode("research", "research", func(_ context.Context, s *pipelineState) (*pipelineState, error) {
		ran = true
		return s, nil
	})
	g.SetEntryPoint("plan")
	g.AddEdge("plan", "research")
	g.AddEdge("research", graph.END)

	runnable, err := g.Compile()
	require.NoError(t, err)

	_, err = runnable.Invoke(context.Background(), &pipelineState{})
	require.Error(t, err)
	assert.False(t, ran)

	var nodeErr *graph.NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "plan", nodeErr.Node)

	var se *stageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "planning", se.stage)
}

func TestStateGraph_CompileErrors(t *testing.T) {
	g := graph.NewStateGraph[*pipelineState]()
	_, err := g.Compile()
	assert.ErrorIs(t, err, graph.ErrEntryPointNotSet)

	g.SetEntryPoint("missing")
	_, err = g.Compile()
	assert.ErrorIs(t, err, graph.ErrNodeNotFound)

	g.AddNode("a", "a", appendNode("a"))
	g.SetEntryPoint("a")
	g.AddEdge("a", "nowhere")
	_, err = g.Compile()
	assert.ErrorIs(t, err, graph.ErrNodeNotFound)
}

func TestStateGraph_NoOutgoingEdge(t *testing.T) {
	g := graph.NewStateGraph[*pipelineState]()
	g.AddNode("a", "a", appendNode("a"))
	g.SetEntryPoint("a")

	runnable, err := g.Compile()
	require.NoError(t, err)

	_, err = runnable.Invoke(context.Background(), &pipelineState{})
	assert.ErrorIs(t, err, graph.ErrNoOutgoingEdge)
}

func TestStateGraph_RecursionLimit(t *testing.T) {
	g := graph.NewStateGraph[*pipelineState]()
	g.AddNode("loop", "loop", appendNode("loop"))
	g.SetEntryPoint("loop")
	g.AddEdge("loop", "loop")
	g.SetRecursionLimit(3)

	runnable, err := g.Compile()
	require.NoError(t, err)

	final, err := runnable.Invoke(context.Background(), &pipelineState{})
	assert.ErrorIs(t, err, graph.ErrRecursionLimit)
	assert.Len(t, final.Trail, 3)
}

func TestStateGraph_Listeners(t *testing.T) {
	var mu sync.Mutex
	var events []string

	g := graph.NewStateGraph[*pipelineState]()
	g.AddNode("plan", "plan", appendNode("plan"))
	g.AddNode("research", "research", func(context.Context, *pipelineState) (*pipelineState, error) {
		return nil, errors.New("boom")
	})
	g.SetEntryPoint("plan")
	g.AddEdge("plan", "research")
	g.AddEdge("research", graph.END)
	g.AddListener(graph.NodeListenerFunc(func(_ context.Context, info graph.NodeEventInfo) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, info.Node+":"+string(info.Event))
	}))

	runnable, err := g.Compile()
	require.NoError(t, err)

	_, err = runnable.Invoke(context.Background(), &pipelineState{})
	require.Error(t, err)
	assert.Equal(t, []string{
		"plan:start", "plan:complete",
		"research:start", "research:error",
	}, events)
}

func TestStateGraph_CancelledContext(t *testing.T) {
	g := graph.NewStateGraph[*pipelineState]()
	g.AddNode("a", "a", appendNode("a"))
	g.SetEntryPoint("a")
	g.AddEdge("a", graph.END)

	runnable, err := g.Compile()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	final, err := runnable.Invoke(ctx, &pipelineState{})
	assert.ErrorIs(t, err, context.Canceled)
	var nodeErr *graph.NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "a", nodeErr.Node)
	assert.Empty(t, final.Trail)
}
