package explorer

import (
	"context"

	"github.com/dshills/taskexplorer/internal/logging"
	"github.com/dshills/taskexplorer/internal/task"
)

// Executor starts and stops task processes. *task.Executor implements it.
type Executor interface {
	Execute(ctx context.Context, t *task.Task) (*task.Execution, error)
	Terminate(id string) error
}

// Bridge maps execution handles back to the Task value that started them
// and keeps RunState in step with starts, stops and natural exits.
type Bridge struct {
	exec     Executor
	runs     *RunState
	log      *logging.Logger
	registry map[string]*task.Task
}

// NewBridge creates a bridge over exec.
func NewBridge(exec Executor, runs *RunState, log *logging.Logger) *Bridge {
	if log == nil {
		log = logging.Null()
	}
	return &Bridge{
		exec:     exec,
		runs:     runs,
		log:      log,
		registry: make(map[string]*task.Task),
	}
}

// Start executes t and marks it running. On failure nothing is registered
// and run state is unchanged.
func (b *Bridge) Start(ctx context.Context, t *task.Task) (*task.Execution, error) {
	execution, err := b.exec.Execute(ctx, t)
	if err != nil {
		return nil, &OperationError{Op: "start", Target: t.Identity(), Err: err}
	}

	b.registry[execution.ID] = t
	b.runs.MarkRunning(t)
	b.log.Debug("started %s as %s", t.Identity(), execution.ID)
	return execution, nil
}

// Stop terminates the execution started for this exact Task value. Another
// Task value with the same identity is not matched. Stopping a task that
// was never started here, or has already ended, does nothing.
func (b *Bridge) Stop(t *task.Task) {
	for id, registered := range b.registry {
		if registered != t {
			continue
		}
		if err := b.exec.Terminate(id); err != nil {
			b.log.Debug("terminate %s (%s): %v", t.Identity(), id, err)
		}
		delete(b.registry, id)
		b.runs.MarkStopped(t)
		return
	}
	b.log.Debug("stop %s: no execution registered", t.Identity())
}

// ProcessEnded reaps the execution with the given handle after its process
// exits on its own. Unknown handles are ignored.
func (b *Bridge) ProcessEnded(id string) {
	t, ok := b.registry[id]
	if !ok {
		return
	}
	delete(b.registry, id)
	b.runs.MarkStopped(t)
	b.log.Debug("%s ended (%s)", t.Identity(), id)
}

// Active returns the number of registered executions.
func (b *Bridge) Active() int {
	return len(b.registry)
}
