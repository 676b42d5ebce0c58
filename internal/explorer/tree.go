package explorer

import (
	"context"
	"fmt"

	"github.com/dshills/taskexplorer/internal/config"
	"github.com/dshills/taskexplorer/internal/logging"
	"github.com/dshills/taskexplorer/internal/notify"
	"github.com/dshills/taskexplorer/internal/task"
)

// TaskSource supplies the flat task list.
type TaskSource interface {
	FetchTasks(ctx context.Context) ([]*task.Task, error)
}

// SettingsProvider supplies the current settings. *config.Config
// implements it.
type SettingsProvider interface {
	Settings() config.Settings
}

// StaticSettings is a SettingsProvider with fixed settings.
type StaticSettings config.Settings

// Settings implements SettingsProvider.
func (s StaticSettings) Settings() config.Settings { return config.Settings(s) }

// View is the host widget that renders the tree.
type View interface {
	// Reveal makes node visible and, with expand, expands it. The view may
	// walk Tree.Parent to find the node's ancestry.
	Reveal(node *Node, expand bool) error

	// CollapseAll recursively collapses every rendered group.
	CollapseAll()
}

// Sources of the tree change notifications raised by bulk operations.
const (
	ChangeExpandAll   = "expand-all"
	ChangeCollapseAll = "collapse-all"
	ChangeRefresh     = "refresh"
)

// Tree serves lazily materialized nodes and keeps the parent index the view
// needs for reveal.
type Tree struct {
	source   TaskSource
	settings SettingsProvider
	runs     *RunState
	notifier *notify.Notifier
	view     View
	log      *logging.Logger

	parents map[*Node]*Node
	roots   []*Node

	// override is set by ExpandAll/CollapseAll and cleared by Refresh.
	// Empty means new type groups follow the settings.
	override config.Expansion
}

// NewTree creates a tree over source.
func NewTree(source TaskSource, settings SettingsProvider, runs *RunState, notifier *notify.Notifier, log *logging.Logger) *Tree {
	if log == nil {
		log = logging.Null()
	}
	return &Tree{
		source:   source,
		settings: settings,
		runs:     runs,
		notifier: notifier,
		log:      log,
		parents:  make(map[*Node]*Node),
	}
}

// SetView attaches the host view. A nil view is allowed.
func (t *Tree) SetView(v View) {
	t.view = v
}

// Children returns the children of node, or the type groups when node is
// nil. Every returned node is entered in the parent index. A root query
// starts a new generation: nodes from earlier generations are forgotten.
func (t *Tree) Children(ctx context.Context, node *Node) ([]*Node, error) {
	settings := t.settings.Settings()
	g := NewGrouper(settings)

	var children []*Node
	switch {
	case node == nil:
		tasks, err := t.source.FetchTasks(ctx)
		if err != nil {
			return nil, &OperationError{Op: "fetch tasks", Err: err}
		}
		children = g.TypeGroups(tasks, t.groupExpansion(settings))
		t.parents = make(map[*Node]*Node, len(children))
		t.roots = children
		t.log.Debug("materialized %d type groups from %d tasks", len(children), len(tasks))
		return children, nil

	case node.Kind == KindLeaf:
		return nil, nil

	case node.Kind == KindGroup && node.NameSubgroup:
		children = g.SubgroupChildren(node)

	case node.Kind == KindGroup:
		children = g.TypeGroupChildren(node)

	default:
		return nil, fmt.Errorf("unknown node kind %v", node.Kind)
	}

	for _, c := range children {
		t.parents[c] = node
	}
	return children, nil
}

// Parent returns the group node was listed under, or nil for type groups
// and for nodes the tree never handed out.
func (t *Tree) Parent(node *Node) *Node {
	return t.parents[node]
}

// ExpandAll makes every type group expanded: groups materialized from now
// on start expanded, and the current ones are forced open and revealed.
// When no root query has happened yet the tree fetches the roots itself.
func (t *Tree) ExpandAll(ctx context.Context) error {
	t.override = config.Expanded
	t.notifier.NotifyTree(ChangeExpandAll)

	roots := t.roots
	if len(roots) == 0 {
		var err error
		if roots, err = t.Children(ctx, nil); err != nil {
			return err
		}
	}

	for _, r := range roots {
		r.Expansion = config.Expanded
		if t.view == nil {
			continue
		}
		if err := t.view.Reveal(r, true); err != nil {
			t.log.Debug("reveal %s: %v", r, err)
		}
	}
	return nil
}

// CollapseAll makes every type group collapsed and asks the view to
// collapse what it has already rendered.
func (t *Tree) CollapseAll() {
	t.override = config.Collapsed
	for _, r := range t.roots {
		r.Expansion = config.Collapsed
	}
	if t.view != nil {
		t.view.CollapseAll()
	}
	t.notifier.NotifyTree(ChangeCollapseAll)
}

// Refresh clears the expand/collapse-all override, drops any cached task
// list held by the source, and notifies that the whole tree changed.
func (t *Tree) Refresh() {
	t.override = ""
	if inv, ok := t.source.(interface{ Invalidate() }); ok {
		inv.Invalidate()
	}
	t.notifier.NotifyTree(ChangeRefresh)
}

// Override returns the active expand/collapse-all override, or "".
func (t *Tree) Override() config.Expansion {
	return t.override
}

func (t *Tree) groupExpansion(s config.Settings) config.Expansion {
	if t.override != "" {
		return t.override
	}
	return s.Expansion
}
