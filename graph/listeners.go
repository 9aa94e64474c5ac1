package graph

import (
	"context"
	"time"

	"github.com/smallnest/researchflow/log"
)

// NodeEvent represents different types of node events
type NodeEvent string

const (
	// NodeEventStart indicates a node has started execution
	NodeEventStart NodeEvent = "start"

	// NodeEventComplete indicates a node has completed successfully
	NodeEventComplete NodeEvent = "complete"

	// NodeEventError indicates a node encountered an error
	NodeEventError NodeEvent = "error"
)

// NodeEventInfo describes one node event. Duration is zero for start events.
type NodeEventInfo struct {
	Event    NodeEvent
	Node     string
	State    any
	Err      error
	Duration time.Duration
}

// NodeListener defines the interface for node event listeners
type NodeListener interface {
	OnNodeEvent(ctx context.Context, info NodeEventInfo)
}

// NodeListenerFunc is a function adapter for NodeListener
type NodeListenerFunc func(ctx context.Context, info NodeEventInfo)

// OnNodeEvent implements the NodeListener interface
func (f NodeListenerFunc) OnNodeEvent(ctx context.Context, info NodeEventInfo) {
	f(ctx, info)
}

// LoggingListener writes node events to a Logger. Messages maps a node name to
// the progress line printed when it starts; nodes without an entry log their name.
type LoggingListener struct {
	Logger   log.Logger
	Messages map[string]string
}

// NewLoggingListener creates a listener over logger (the package default when nil).
func NewLoggingListener(logger log.Logger, messages map[string]string) *LoggingListener {
	return &LoggingListener{Logger: log.OrDefault(logger), Messages: messages}
}

// OnNodeEvent implements NodeListener.
func (l *LoggingListener) OnNodeEvent(_ context.Context, info NodeEventInfo) {
	switch info.Event {
	case NodeEventStart:
		if msg, ok := l.Messages[info.Node]; ok {
			l.Logger.Info("%s", msg)
			return
		}
		l.Logger.Info("running %s", info.Node)
	case NodeEventComplete:
		l.Logger.Debug("%s finished in %s", info.Node, info.Duration.Round(time.Millisecond))
	case NodeEventError:
		l.Logger.Error("%s failed after %s: %v", info.Node, info.Duration.Round(time.Millisecond), info.Err)
	}
}
