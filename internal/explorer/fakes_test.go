package explorer

import (
	"context"
	"fmt"

	"github.com/dshills/taskexplorer/internal/config"
	"github.com/dshills/taskexplorer/internal/notify"
	"github.com/dshills/taskexplorer/internal/task"
)

// fakeSource returns a fixed task list.
type fakeSource struct {
	tasks       []*task.Task
	err         error
	calls       int
	invalidated int
}

func (f *fakeSource) FetchTasks(context.Context) ([]*task.Task, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.tasks, nil
}

func (f *fakeSource) Invalidate() { f.invalidated++ }

// fakeExecutor hands out sequential handles.
type fakeExecutor struct {
	next       int
	err        error
	termErr    error
	started    []*task.Task
	terminated []string
}

func (f *fakeExecutor) Execute(_ context.Context, t *task.Task) (*task.Execution, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.next++
	f.started = append(f.started, t)
	return &task.Execution{ID: fmt.Sprintf("exec-%d", f.next), Task: t}, nil
}

func (f *fakeExecutor) Terminate(id string) error {
	f.terminated = append(f.terminated, id)
	return f.termErr
}

// fakeView records reveal and collapse requests.
type fakeView struct {
	revealed  []*Node
	expanded  []bool
	collapsed int
	err       error
}

func (f *fakeView) Reveal(node *Node, expand bool) error {
	f.revealed = append(f.revealed, node)
	f.expanded = append(f.expanded, expand)
	return f.err
}

func (f *fakeView) CollapseAll() { f.collapsed++ }

// fakeMessenger records messages.
type fakeMessenger struct {
	infos  []string
	errors []string
}

func (f *fakeMessenger) Info(msg string)  { f.infos = append(f.infos, msg) }
func (f *fakeMessenger) Error(msg string) { f.errors = append(f.errors, msg) }

func tk(typ task.Type, name string) *task.Task {
	return &task.Task{Type: typ, Name: name}
}

func settings(mut ...func(*config.Settings)) StaticSettings {
	s := config.Defaults()
	for _, m := range mut {
		m(&s)
	}
	return StaticSettings(s)
}

func newTestTree(src *fakeSource, s StaticSettings) (*Tree, *notify.Notifier, *[]notify.Change) {
	n := notify.New()
	var changes []notify.Change
	n.Subscribe(func(c notify.Change) { changes = append(changes, c) })
	return NewTree(src, s, NewRunState(), n, nil), n, &changes
}

func labels(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Label
	}
	return out
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
