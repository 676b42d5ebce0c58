package sources

import "github.com/dshills/taskexplorer/internal/task"

// All returns every built-in source.
func All() []task.Source {
	return []task.Source{
		NewMakefileSource(),
		NewPackageJSONSource(),
		NewTaskfileSource(),
		NewWorkspaceSource(),
		NewLuaSource(),
	}
}

// NewDiscovery returns a discovery manager with every built-in source registered.
func NewDiscovery(opts ...task.DiscoveryOption) *task.Discovery {
	for _, src := range All() {
		opts = append(opts, task.WithSource(src))
	}
	return task.NewDiscovery(opts...)
}
