package explorer

import (
	"context"
	"errors"

	"github.com/dshills/taskexplorer/internal/logging"
	"github.com/dshills/taskexplorer/internal/notify"
	"github.com/dshills/taskexplorer/internal/task"
)

// User-visible messages.
const (
	MsgSelectTaskToRun  = "Select a task to run."
	MsgSelectTaskToStop = "Select a task to stop."
	MsgStartFailed      = "Failed to start task: "
)

// Messenger shows short messages to the user.
type Messenger interface {
	Info(msg string)
	Error(msg string)
}

// Explorer is the command surface over the tree, run state and bridge.
type Explorer struct {
	tree      *Tree
	runs      *RunState
	bridge    *Bridge
	notifier  *notify.Notifier
	messenger Messenger
	log       *logging.Logger

	runOpts []RunStateOption
}

// Option configures an Explorer.
type Option func(*Explorer)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Explorer) {
		if l != nil {
			e.log = l
		}
	}
}

// WithNotifier sets the notifier tree changes are published on.
func WithNotifier(n *notify.Notifier) Option {
	return func(e *Explorer) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithMessenger sets where user messages go.
func WithMessenger(m Messenger) Option {
	return func(e *Explorer) { e.messenger = m }
}

// WithRunStateOptions passes options to the run-state tracker.
func WithRunStateOptions(opts ...RunStateOption) Option {
	return func(e *Explorer) { e.runOpts = append(e.runOpts, opts...) }
}

// New wires a tree, run-state tracker and execution bridge together.
// Every run-state change is published as a tree change.
func New(source TaskSource, settings SettingsProvider, exec Executor, opts ...Option) *Explorer {
	e := &Explorer{
		notifier: notify.New(),
		log:      logging.Null(),
	}
	for _, opt := range opts {
		opt(e)
	}

	runOpts := append([]RunStateOption{OnChange(func(t *task.Task) {
		e.notifier.NotifyTree(t.Identity())
	})}, e.runOpts...)

	e.runs = NewRunState(runOpts...)
	e.tree = NewTree(source, settings, e.runs, e.notifier, e.log.WithComponent("explorer"))
	e.bridge = NewBridge(exec, e.runs, e.log.WithComponent("bridge"))
	return e
}

// SetView attaches the host view used by ExpandAll and CollapseAll.
func (e *Explorer) SetView(v View) { e.tree.SetView(v) }

// SetMessenger sets where user messages go.
func (e *Explorer) SetMessenger(m Messenger) { e.messenger = m }

// Tree returns the underlying tree.
func (e *Explorer) Tree() *Tree { return e.tree }

// RunState returns the underlying run-state tracker.
func (e *Explorer) RunState() *RunState { return e.runs }

// Subscribe registers an observer for tree changes.
func (e *Explorer) Subscribe(observer notify.Observer) *notify.Subscription {
	return e.notifier.Subscribe(observer)
}

// Refresh clears the expand/collapse-all override and rebuilds the tree.
func (e *Explorer) Refresh() { e.tree.Refresh() }

// ExpandAll expands every type group.
func (e *Explorer) ExpandAll(ctx context.Context) error { return e.tree.ExpandAll(ctx) }

// CollapseAll collapses every type group.
func (e *Explorer) CollapseAll() { e.tree.CollapseAll() }

// Children returns the children of node, or the type groups for nil.
func (e *Explorer) Children(ctx context.Context, node *Node) ([]*Node, error) {
	return e.tree.Children(ctx, node)
}

// Parent returns the parent of a node the tree has handed out.
func (e *Explorer) Parent(node *Node) *Node { return e.tree.Parent(node) }

// Item returns the render decoration of node.
func (e *Explorer) Item(node *Node) Item { return e.tree.Item(node) }

// IsTaskRunning reports whether any Task with t's identity is running.
func (e *Explorer) IsTaskRunning(t *task.Task) bool { return e.runs.IsRunning(t) }

// RunTask starts the task of a leaf. Failures are reported through the
// messenger and leave run state unchanged; the execution is nil then.
func (e *Explorer) RunTask(ctx context.Context, node *Node) *task.Execution {
	if !node.IsLeaf() {
		e.showInfo(MsgSelectTaskToRun)
		return nil
	}

	execution, err := e.bridge.Start(ctx, node.Task)
	if err != nil {
		e.log.Warn("%v", err)
		msg := err.Error()
		var opErr *OperationError
		if errors.As(err, &opErr) {
			msg = opErr.Err.Error()
		}
		e.showError(MsgStartFailed + msg)
		return nil
	}
	return execution
}

// StopTask stops the execution started for the leaf's task. Stopping a
// task that is not running is a no-op.
func (e *Explorer) StopTask(node *Node) {
	if !node.IsLeaf() {
		e.showInfo(MsgSelectTaskToStop)
		return
	}
	e.bridge.Stop(node.Task)
}

// ProcessEnded records the natural end of the execution with handle id.
// Call it on the explorer's event loop.
func (e *Explorer) ProcessEnded(id string) { e.bridge.ProcessEnded(id) }

func (e *Explorer) showInfo(msg string) {
	if e.messenger != nil {
		e.messenger.Info(msg)
	}
	e.log.Info("%s", msg)
}

func (e *Explorer) showError(msg string) {
	if e.messenger != nil {
		e.messenger.Error(msg)
	}
}
