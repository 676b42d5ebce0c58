package explorer

import (
	"fmt"
	"time"

	"github.com/dshills/taskexplorer/internal/config"
	"github.com/dshills/taskexplorer/internal/task"
)

// DefaultIcon is shown for task types without a built-in or configured icon.
const DefaultIcon = "☐"

// GroupIcon is shown for name subgroups.
const GroupIcon = "▤"

var builtinIcons = map[task.Type]string{
	task.TypeShell:    "$",
	task.TypeProcess:  "⚙",
	task.TypeNPM:      "⬢",
	task.TypeMake:     "⚒",
	task.TypeTaskfile: "✓",
}

// Item is the render-time decoration of a node.
type Item struct {
	Label       string
	Description string
	Icon        string
	Status      Status
	// Expansion is empty for leaves.
	Expansion config.Expansion
	// LastRun is the last start time of a leaf's task, zero if never run.
	LastRun time.Time
}

// Item derives the decoration for node from the current settings and run
// state. Nothing is cached on the node.
func (t *Tree) Item(node *Node) Item {
	settings := t.settings.Settings()

	if node.Kind != KindLeaf {
		icon := GroupIcon
		if !node.NameSubgroup {
			icon = iconFor(settings, node.Type)
		}
		return Item{
			Label:       node.Label,
			Description: TaskCount(node.Count()),
			Icon:        icon,
			Expansion:   node.Expansion,
		}
	}

	item := Item{
		Label:       node.Label,
		Description: string(node.Task.ResolvedType()),
		Icon:        iconFor(settings, node.Type),
		Status:      t.status(node.Task),
	}
	if at, ok := t.runs.LastRun(node.Task); ok {
		item.LastRun = at
		item.Description += " · ran " + Ago(t.runs.now().Sub(at))
	}
	return item
}

func (t *Tree) status(tk *task.Task) Status {
	if t.runs.IsRunning(tk) {
		return StatusRunning
	}
	return StatusIdle
}

func iconFor(s config.Settings, typ task.Type) string {
	if icon, ok := s.Icon(string(typ)); ok {
		return icon
	}
	if icon, ok := builtinIcons[typ]; ok {
		return icon
	}
	return DefaultIcon
}

// Ago renders a coarse age such as "just now", "5m ago" or "2h ago".
func Ago(d time.Duration) string {
	switch {
	case d < 10*time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d/time.Second))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
}
