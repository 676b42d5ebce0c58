package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/dshills/taskexplorer/internal/task"
)

// WorkspaceDir is the per-workspace directory holding user task files.
const WorkspaceDir = ".taskexplorer"

// WorkspaceSource discovers user-defined tasks from .taskexplorer/tasks.json.
type WorkspaceSource struct{}

// NewWorkspaceSource creates a workspace tasks.json source.
func NewWorkspaceSource() *WorkspaceSource {
	return &WorkspaceSource{}
}

// Name returns the source name.
func (s *WorkspaceSource) Name() string { return "workspace" }

// Patterns returns the file patterns this source handles.
func (s *WorkspaceSource) Patterns() []string { return []string{"tasks.json"} }

// Priority returns the source priority.
func (s *WorkspaceSource) Priority() int { return 200 }

type workspaceFile struct {
	Version string          `json:"version"`
	Tasks   []workspaceTask `json:"tasks"`
}

type workspaceTask struct {
	Label   string           `json:"label"`
	Type    string           `json:"type"`
	Command string           `json:"command"`
	Args    []string         `json:"args,omitempty"`
	Detail  string           `json:"detail,omitempty"`
	Options workspaceOptions `json:"options,omitempty"`
}

type workspaceOptions struct {
	Cwd string            `json:"cwd,omitempty"`
	Env map[string]string `json:"env,omitempty"`
}

// Discover returns the tasks declared in a tasks.json that lives in a
// .taskexplorer directory. Other tasks.json files are ignored.
func (s *WorkspaceSource) Discover(ctx context.Context, path string) ([]*task.Task, error) {
	dir := filepath.Dir(path)
	if filepath.Base(dir) != WorkspaceDir {
		return nil, nil
	}
	root := filepath.Dir(dir)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var wf workspaceFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, err
	}

	tasks := make([]*task.Task, 0, len(wf.Tasks))
	for _, wt := range wf.Tasks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if wt.Label == "" {
			continue
		}

		typ := task.Type(wt.Type)
		if typ == "" {
			typ = task.TypeShell
		}

		tasks = append(tasks, &task.Task{
			Name:        wt.Label,
			Type:        typ,
			Custom:      true,
			Description: wt.Detail,
			Command:     wt.Command,
			Args:        wt.Args,
			Cwd:         resolveDir(root, wt.Options.Cwd),
			Env:         wt.Options.Env,
		})
	}
	return tasks, nil
}

func resolveDir(root, dir string) string {
	if dir == "" {
		return root
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

// Scaffold writes a starter .taskexplorer/tasks.json under root and returns
// its path. It refuses to overwrite an existing file.
func Scaffold(root string) (string, error) {
	dir := filepath.Join(root, WorkspaceDir)
	path := filepath.Join(dir, "tasks.json")

	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("%s: %w", path, os.ErrExist)
	}

	doc := "{}"
	steps := []struct {
		path  string
		value any
	}{
		{"version", "1"},
		{"tasks", []any{}},
		{"tasks.-1", workspaceTask{Label: "build", Type: "shell", Command: "go", Args: []string{"build", "./..."}, Detail: "Build all packages"}},
		{"tasks.-1", workspaceTask{Label: "test", Type: "shell", Command: "go", Args: []string{"test", "./..."}, Detail: "Run all tests"}},
	}
	for _, step := range steps {
		var err error
		if doc, err = sjson.Set(doc, step.path, step.value); err != nil {
			return "", fmt.Errorf("build %s: %w", step.path, err)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, pretty.Pretty([]byte(doc)), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
