// Package view renders the task explorer in a terminal.
//
// TreeView is the interactive tcell widget; Print writes a static tree.
package view

import (
	"context"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/taskexplorer/internal/config"
	"github.com/dshills/taskexplorer/internal/explorer"
	"github.com/dshills/taskexplorer/internal/logging"
	"github.com/dshills/taskexplorer/internal/notify"
	"github.com/dshills/taskexplorer/internal/task"
)

// Interrupt payloads posted from other goroutines onto the event loop.
type (
	processEnded struct {
		id    string
		name  string
		state task.ExecutionState
		code  int
	}
	refreshRequest struct{ reason string }
	quitRequest    struct{}
)

type row struct {
	node  *explorer.Node
	key   string
	depth int
}

// TreeView is an interactive tree widget over an Explorer. It implements
// explorer.View and explorer.Messenger. All methods except the Post*
// helpers and the execution listener must run on the event loop.
type TreeView struct {
	exp    *explorer.Explorer
	screen tcell.Screen
	log    *logging.Logger
	title  string

	rows   []row
	cursor int
	offset int

	// state remembers expansion the user toggled, by node path, so it
	// survives the tree rebuilding its nodes. bulk holds expansion forced
	// by reveal and collapse-all; a refresh drops it.
	state     map[string]config.Expansion
	bulk      map[string]config.Expansion
	cursorKey string
	dirty     bool

	message    string
	messageErr bool

	sub *notify.Subscription
}

// Option configures a TreeView.
type Option func(*TreeView)

// WithTitle sets the header text.
func WithTitle(title string) Option {
	return func(v *TreeView) { v.title = title }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(v *TreeView) {
		if l != nil {
			v.log = l.WithComponent("view")
		}
	}
}

// New creates a view drawing to screen. The screen is initialized by Run.
func New(exp *explorer.Explorer, screen tcell.Screen, opts ...Option) *TreeView {
	v := &TreeView{
		exp:    exp,
		screen: screen,
		log:    logging.Null(),
		title:  "Task Explorer",
		state:  make(map[string]config.Expansion),
		bulk:   make(map[string]config.Expansion),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.sub = exp.Subscribe(func(c notify.Change) {
		if c.Type == notify.ChangeTree && c.Source == explorer.ChangeRefresh {
			clear(v.bulk)
		}
		v.dirty = true
	})
	return v
}

// Close detaches the view from the explorer.
func (v *TreeView) Close() {
	v.sub.Unsubscribe()
}

// Run initializes the screen and processes events until the user quits or
// ctx is done.
func (v *TreeView) Run(ctx context.Context) error {
	if err := v.screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer v.screen.Fini()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = v.screen.PostEvent(tcell.NewEventInterrupt(quitRequest{}))
		case <-done:
		}
	}()

	v.rebuild(ctx)
	v.Draw()

	for {
		ev := v.screen.PollEvent()
		if ev == nil {
			return nil
		}
		if quit := v.HandleEvent(ctx, ev); quit {
			return nil
		}
		v.Rebuild(ctx)
		v.Draw()
	}
}

// PostRefresh asks the loop to refresh the tree. Safe from any goroutine.
func (v *TreeView) PostRefresh(reason string) {
	_ = v.screen.PostEvent(tcell.NewEventInterrupt(refreshRequest{reason: reason}))
}

// ExecutionListener returns a listener that forwards process ends to the
// loop. Register it on the executor.
func (v *TreeView) ExecutionListener() task.ExecutionListener {
	return task.ListenerFuncs{
		Ended: func(exec *task.Execution) {
			_ = v.screen.PostEvent(tcell.NewEventInterrupt(processEnded{
				id:    exec.ID,
				name:  exec.Task.Identity(),
				state: exec.State(),
				code:  exec.ExitCode(),
			}))
		},
	}
}

// HandleEvent applies one event and reports whether the view should quit.
func (v *TreeView) HandleEvent(ctx context.Context, ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		v.screen.Sync()

	case *tcell.EventInterrupt:
		switch data := ev.Data().(type) {
		case processEnded:
			v.exp.ProcessEnded(data.id)
			if data.state == task.ExecutionFailed {
				v.Error(fmt.Sprintf("%s exited with code %d", data.name, data.code))
			} else {
				v.Info(fmt.Sprintf("%s %s", data.name, data.state))
			}
		case refreshRequest:
			v.log.Debug("refresh: %s", data.reason)
			v.exp.Refresh()
		case quitRequest:
			return true
		}

	case *tcell.EventKey:
		return v.handleKey(ctx, ev)
	}
	return false
}

func (v *TreeView) handleKey(ctx context.Context, ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyUp:
		v.move(-1)
	case tcell.KeyDown:
		v.move(1)
	case tcell.KeyRight:
		v.expandOrRun(ctx, false)
	case tcell.KeyEnter:
		v.expandOrRun(ctx, true)
	case tcell.KeyLeft:
		v.collapseOrParent()
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return true
		case 'k':
			v.move(-1)
		case 'j':
			v.move(1)
		case 'l':
			v.expandOrRun(ctx, false)
		case 'h':
			v.collapseOrParent()
		case 's':
			v.exp.StopTask(v.selected())
		case 'r':
			v.exp.Refresh()
		case 'e':
			if err := v.exp.ExpandAll(ctx); err != nil {
				v.Error(err.Error())
			}
		case 'c':
			v.exp.CollapseAll()
		}
	}
	return false
}

func (v *TreeView) move(delta int) {
	if len(v.rows) == 0 {
		return
	}
	v.cursor = clamp(v.cursor+delta, 0, len(v.rows)-1)
	v.cursorKey = v.rows[v.cursor].key
}

func (v *TreeView) selected() *explorer.Node {
	if v.cursor < 0 || v.cursor >= len(v.rows) {
		return nil
	}
	return v.rows[v.cursor].node
}

// expandOrRun expands a collapsed group (toggling an open one on Enter) or
// runs the selected task.
func (v *TreeView) expandOrRun(ctx context.Context, toggle bool) {
	node := v.selected()
	if node == nil || !node.IsGroup() {
		v.exp.RunTask(ctx, node)
		return
	}
	r := v.rows[v.cursor]
	if v.expanded(r) && toggle {
		v.state[r.key] = config.Collapsed
	} else {
		v.state[r.key] = config.Expanded
	}
	v.dirty = true
}

func (v *TreeView) collapseOrParent() {
	if len(v.rows) == 0 {
		return
	}
	r := v.rows[v.cursor]
	if r.node.IsGroup() && v.expanded(r) {
		v.state[r.key] = config.Collapsed
		v.dirty = true
		return
	}
	if parent := v.exp.Parent(r.node); parent != nil {
		v.cursorKey = parentKey(r.key)
		v.dirty = true
	}
}

// Reveal implements explorer.View. It expands the node's ancestors (and
// the node itself with expand) and moves the cursor to it.
func (v *TreeView) Reveal(node *explorer.Node, expand bool) error {
	if node == nil {
		return explorer.ErrNotALeaf
	}
	key := v.keyOf(node)
	for k := parentKey(key); k != ""; k = parentKey(k) {
		v.force(k, config.Expanded)
	}
	if expand && node.IsGroup() {
		v.force(key, config.Expanded)
	}
	v.cursorKey = key
	v.dirty = true
	return nil
}

// CollapseAll implements explorer.View.
func (v *TreeView) CollapseAll() {
	clear(v.state)
	clear(v.bulk)
	for _, r := range v.rows {
		if r.node.IsGroup() {
			v.bulk[r.key] = config.Collapsed
		}
	}
	if len(v.rows) > 0 {
		v.cursorKey = rootKey(v.rows[v.cursor].key)
	}
	v.dirty = true
}

// Info implements explorer.Messenger.
func (v *TreeView) Info(msg string) {
	v.message, v.messageErr = msg, false
}

// Error implements explorer.Messenger.
func (v *TreeView) Error(msg string) {
	v.message, v.messageErr = msg, true
}

// Message returns the status line text and whether it is an error.
func (v *TreeView) Message() (string, bool) {
	return v.message, v.messageErr
}

// Rows returns the labels of the visible rows, indented two spaces per level.
func (v *TreeView) Rows() []string {
	out := make([]string, len(v.rows))
	for i, r := range v.rows {
		out[i] = strings.Repeat("  ", r.depth) + r.node.Label
	}
	return out
}

// Cursor returns the selected row index.
func (v *TreeView) Cursor() int { return v.cursor }

// Rebuild re-reads the tree from the explorer if anything changed since
// the last rebuild.
func (v *TreeView) Rebuild(ctx context.Context) {
	if v.dirty || v.rows == nil {
		v.rebuild(ctx)
	}
}

func (v *TreeView) rebuild(ctx context.Context) {
	v.dirty = false
	if len(v.rows) > 0 && v.cursorKey == "" {
		v.cursorKey = v.rows[v.cursor].key
	}

	roots, err := v.exp.Children(ctx, nil)
	if err != nil {
		v.Error(err.Error())
		v.rows = nil
		return
	}

	rows := make([]row, 0, len(v.rows))
	rows = v.walk(ctx, rows, roots, "", 0)
	v.rows = rows

	v.cursor = clamp(v.cursor, 0, max(len(rows)-1, 0))
	for i, r := range rows {
		if r.key == v.cursorKey {
			v.cursor = i
			break
		}
	}
	v.cursorKey = ""
}

// walk flattens visible nodes. Children are requested only for expanded
// groups.
func (v *TreeView) walk(ctx context.Context, rows []row, nodes []*explorer.Node, parent string, depth int) []row {
	for _, n := range nodes {
		r := row{node: n, key: childKey(parent, n), depth: depth}
		rows = append(rows, r)
		if !n.IsGroup() || !v.expanded(r) {
			continue
		}
		children, err := v.exp.Children(ctx, n)
		if err != nil {
			v.log.Warn("children of %s: %v", n, err)
			continue
		}
		rows = v.walk(ctx, rows, children, r.key, depth+1)
	}
	return rows
}

func (v *TreeView) expanded(r row) bool {
	if s, ok := v.state[r.key]; ok {
		return s == config.Expanded
	}
	if s, ok := v.bulk[r.key]; ok {
		return s == config.Expanded
	}
	return r.node.Expansion == config.Expanded
}

// force sets bulk expansion for key, replacing any user toggle.
func (v *TreeView) force(key string, e config.Expansion) {
	delete(v.state, key)
	v.bulk[key] = e
}

func (v *TreeView) keyOf(node *explorer.Node) string {
	var chain []*explorer.Node
	for n := node; n != nil; n = v.exp.Parent(n) {
		chain = append(chain, n)
	}
	key := ""
	for i := len(chain) - 1; i >= 0; i-- {
		key = childKey(key, chain[i])
	}
	return key
}

// keySep separates path segments in row keys. Labels are task names and
// may contain any printable character.
const keySep = "\x1f"

func childKey(parent string, n *explorer.Node) string {
	kind := "g:"
	if n.Kind == explorer.KindLeaf {
		kind = "l:"
	}
	return parent + keySep + kind + n.Label
}

func parentKey(key string) string {
	i := strings.LastIndex(key, keySep)
	if i <= 0 {
		return ""
	}
	return key[:i]
}

func rootKey(key string) string {
	if i := strings.Index(key[len(keySep):], keySep); i >= 0 {
		return key[:i+len(keySep)]
	}
	return key
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
