package sources

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/dshills/taskexplorer/internal/task"
)

// TaskfileSource discovers tasks from go-task Taskfiles.
type TaskfileSource struct{}

// NewTaskfileSource creates a Taskfile source.
func NewTaskfileSource() *TaskfileSource {
	return &TaskfileSource{}
}

// Name returns the source name.
func (s *TaskfileSource) Name() string { return "taskfile" }

// Patterns returns the file patterns this source handles.
func (s *TaskfileSource) Patterns() []string {
	return []string{"Taskfile.yml", "Taskfile.yaml", "taskfile.yml", "taskfile.yaml"}
}

// Priority returns the source priority.
func (s *TaskfileSource) Priority() int { return 95 }

type taskfile struct {
	Version string                 `yaml:"version"`
	Env     map[string]string      `yaml:"env"`
	Tasks   map[string]taskfileDef `yaml:"tasks"`
}

type taskfileDef struct {
	Desc     string            `yaml:"desc"`
	Summary  string            `yaml:"summary"`
	Dir      string            `yaml:"dir"`
	Env      map[string]string `yaml:"env"`
	Internal bool              `yaml:"internal"`
}

// Discover returns every non-internal task, sorted by name.
func (s *TaskfileSource) Discover(ctx context.Context, path string) ([]*task.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tf taskfile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(tf.Tasks))
	for name, def := range tf.Tasks {
		if !def.Internal {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	tasks := make([]*task.Task, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		def := tf.Tasks[name]

		desc := def.Desc
		if desc == "" {
			desc = def.Summary
		}

		t := &task.Task{
			Name:        name,
			Type:        task.TypeTaskfile,
			Description: desc,
			Command:     "task",
			Args:        []string{"--taskfile", path, name},
			Env:         mergeEnv(tf.Env, def.Env),
		}
		if def.Dir != "" {
			t.Cwd = def.Dir
			if !filepath.IsAbs(t.Cwd) {
				t.Cwd = filepath.Join(filepath.Dir(path), def.Dir)
			}
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func mergeEnv(global, local map[string]string) map[string]string {
	if len(global) == 0 && len(local) == 0 {
		return nil
	}
	env := make(map[string]string, len(global)+len(local))
	for k, v := range global {
		env[k] = v
	}
	for k, v := range local {
		env[k] = v
	}
	return env
}
