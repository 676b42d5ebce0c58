package explorer

import (
	"github.com/dshills/taskexplorer/internal/config"
	"github.com/dshills/taskexplorer/internal/task"
)

// Kind discriminates the node variants.
type Kind int

const (
	// KindGroup is a type group or a name-prefix subgroup.
	KindGroup Kind = iota + 1
	// KindLeaf is a single task.
	KindLeaf
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindLeaf:
		return "leaf"
	default:
		return "unknown"
	}
}

// Node is an element of the task tree. Which fields are meaningful depends
// on Kind:
//
//	KindGroup: Label, Type, Tasks, NameSubgroup, Expansion
//	KindLeaf:  Label, Type, Task
//
// Nodes never carry run state; see Tree.Item.
type Node struct {
	Kind  Kind
	Label string

	// Type is the resolved task type of every task under the node.
	Type task.Type

	// Tasks are the tasks under a group, in discovery order.
	Tasks []*task.Task

	// NameSubgroup marks a second-level name-prefix group.
	NameSubgroup bool

	// Expansion is the group's expand state. It may be overwritten once by
	// ExpandAll or CollapseAll.
	Expansion config.Expansion

	// Task is the task of a leaf.
	Task *task.Task
}

// IsGroup reports whether n is a group node.
func (n *Node) IsGroup() bool { return n != nil && n.Kind == KindGroup }

// IsLeaf reports whether n is a task leaf.
func (n *Node) IsLeaf() bool { return n != nil && n.Kind == KindLeaf && n.Task != nil }

// Count returns the number of tasks at or under n.
func (n *Node) Count() int {
	switch {
	case n == nil:
		return 0
	case n.Kind == KindLeaf:
		return 1
	default:
		return len(n.Tasks)
	}
}

func (n *Node) String() string {
	if n == nil {
		return "<root>"
	}
	if n.Kind == KindLeaf {
		return n.Task.Identity()
	}
	if n.NameSubgroup {
		return string(n.Type) + "/" + n.Label
	}
	return n.Label
}

func newLeaf(t *task.Task, label string) *Node {
	return &Node{
		Kind:  KindLeaf,
		Label: label,
		Type:  t.ResolvedType(),
		Task:  t,
	}
}

// Status is the derived run status of a leaf.
type Status int

const (
	// StatusIdle means the task is not running.
	StatusIdle Status = iota
	// StatusRunning means an execution of the task is in flight.
	StatusRunning
)

// String returns the status name.
func (s Status) String() string {
	if s == StatusRunning {
		return "running"
	}
	return "idle"
}
