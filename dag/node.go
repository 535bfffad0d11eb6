package dag

import "context"

// Node is the execution unit in a DAG.
type Node interface {
	Name() string
	Run(ctx context.Context, state *State) (any, error)
}

// Func adapts a function into a Node.
func Func(name string, fn func(ctx context.Context, state *State) (any, error)) Node {
	return &funcNode{name: name, fn: fn}
}

type funcNode struct {
	name string
	fn   func(ctx context.Context, state *State) (any, error)
}

func (n *funcNode) Name() string { return n.name }

func (n *funcNode) Run(ctx context.Context, state *State) (any, error) {
	return n.fn(ctx, state)
}

// Noop is a marker node that always succeeds, used for graph entry and exit
// points.
func Noop(name string) Node {
	return Func(name, func(context.Context, *State) (any, error) { return nil, nil })
}

// TaskInfo identifies the attempt a node is running under.
type TaskInfo struct {
	RunID   string
	Task    string
	Attempt int
}

type taskInfoKey struct{}

// WithTaskInfo stores info in ctx.
func WithTaskInfo(ctx context.Context, info TaskInfo) context.Context {
	return context.WithValue(ctx, taskInfoKey{}, info)
}

// TaskInfoFrom returns the TaskInfo the engine placed in ctx.
func TaskInfoFrom(ctx context.Context) (TaskInfo, bool) {
	info, ok := ctx.Value(taskInfoKey{}).(TaskInfo)
	return info, ok
}
