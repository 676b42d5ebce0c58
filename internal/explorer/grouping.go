package explorer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/dshills/taskexplorer/internal/config"
	"github.com/dshills/taskexplorer/internal/task"
)

// Grouper partitions tasks into type groups and name-prefix subgroups.
type Grouper struct {
	settings config.Settings
}

// NewGrouper creates a grouper for one settings snapshot.
func NewGrouper(settings config.Settings) *Grouper {
	return &Grouper{settings: settings}
}

// TypeGroups drops excluded types and buckets the rest by resolved type,
// ordered by type name. Each bucket keeps the input order. New groups get
// the given expansion.
func (g *Grouper) TypeGroups(tasks []*task.Task, expansion config.Expansion) []*Node {
	kept := lo.Filter(tasks, func(t *task.Task, _ int) bool {
		return t != nil && !g.settings.Excluded(string(t.ResolvedType()))
	})
	buckets := lo.GroupBy(kept, func(t *task.Task) task.Type {
		return t.ResolvedType()
	})

	types := lo.Keys(buckets)
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return lo.Map(types, func(typ task.Type, _ int) *Node {
		return &Node{
			Kind:      KindGroup,
			Label:     string(typ),
			Type:      typ,
			Tasks:     buckets[typ],
			Expansion: expansion,
		}
	})
}

// TypeGroupChildren lists the children of a type group. With name grouping
// on, tasks whose name holds the separator after the first byte are wrapped
// in a subgroup per prefix; the rest stay direct leaves ("singles").
// Subgroups and singles are sorted together by label.
func (g *Grouper) TypeGroupChildren(group *Node) []*Node {
	if !g.nameGrouping() {
		return sortByLabel(lo.Map(group.Tasks, func(t *task.Task, _ int) *Node {
			return newLeaf(t, t.Name)
		}))
	}

	var (
		prefixes []string
		members  = make(map[string][]*task.Task)
		singles  []*Node
	)
	for _, t := range group.Tasks {
		prefix, ok := g.prefix(t.Name)
		if !ok {
			singles = append(singles, newLeaf(t, t.Name))
			continue
		}
		if _, seen := members[prefix]; !seen {
			prefixes = append(prefixes, prefix)
		}
		members[prefix] = append(members[prefix], t)
	}

	children := make([]*Node, 0, len(prefixes)+len(singles))
	for _, prefix := range prefixes {
		children = append(children, &Node{
			Kind:         KindGroup,
			Label:        prefix,
			Type:         group.Type,
			Tasks:        members[prefix],
			NameSubgroup: true,
			Expansion:    g.settings.Expansion,
		})
	}
	children = append(children, singles...)
	return sortByLabel(children)
}

// SubgroupChildren lists the leaves of a name subgroup with the
// "prefix+separator" stripped from each label. A task whose name does not
// start with that prefix keeps its full name.
func (g *Grouper) SubgroupChildren(group *Node) []*Node {
	strip := group.Label + g.settings.Separator
	return sortByLabel(lo.Map(group.Tasks, func(t *task.Task, _ int) *Node {
		label := t.Name
		if g.settings.Separator != "" && strings.HasPrefix(label, strip) {
			label = strings.TrimPrefix(label, strip)
		}
		return newLeaf(t, label)
	}))
}

func (g *Grouper) nameGrouping() bool {
	return g.settings.GroupByName && g.settings.Separator != ""
}

// prefix returns the part of name before the first separator, when the
// separator occurs past index 0.
func (g *Grouper) prefix(name string) (string, bool) {
	i := strings.Index(name, g.settings.Separator)
	if i <= 0 {
		return "", false
	}
	return name[:i], true
}

func sortByLabel(nodes []*Node) []*Node {
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Label < nodes[j].Label })
	return nodes
}

// TaskCount formats a group description: "1 task" or "<n> tasks".
func TaskCount(n int) string {
	if n == 1 {
		return "1 task"
	}
	return fmt.Sprintf("%d tasks", n)
}
