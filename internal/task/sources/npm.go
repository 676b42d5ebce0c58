package sources

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"

	"github.com/dshills/taskexplorer/internal/task"
)

// ErrInvalidJSON is returned for task files that are not valid JSON.
var ErrInvalidJSON = errors.New("invalid JSON")

// PackageJSONSource discovers scripts from package.json files.
type PackageJSONSource struct{}

// NewPackageJSONSource creates a package.json source.
func NewPackageJSONSource() *PackageJSONSource {
	return &PackageJSONSource{}
}

// Name returns the source name.
func (s *PackageJSONSource) Name() string { return "npm" }

// Patterns returns the file patterns this source handles.
func (s *PackageJSONSource) Patterns() []string { return []string{"package.json"} }

// Priority returns the source priority.
func (s *PackageJSONSource) Priority() int { return 90 }

// Discover returns one task per script, in file order.
func (s *PackageJSONSource) Discover(ctx context.Context, path string) ([]*task.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}

	scripts := gjson.GetBytes(data, "scripts")
	if !scripts.IsObject() {
		return nil, nil
	}

	manager := DetectPackageManager(filepath.Dir(path))

	var tasks []*task.Task
	scripts.ForEach(func(key, value gjson.Result) bool {
		if ctx.Err() != nil {
			return false
		}
		name := key.String()
		tasks = append(tasks, &task.Task{
			Name:        name,
			Type:        task.TypeNPM,
			Description: summarize(value.String()),
			Command:     manager,
			Args:        []string{"run", name},
		})
		return true
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// DetectPackageManager picks the package manager from the lock file in dir.
func DetectPackageManager(dir string) string {
	lockFiles := []struct {
		file    string
		manager string
	}{
		{"pnpm-lock.yaml", "pnpm"},
		{"yarn.lock", "yarn"},
		{"bun.lockb", "bun"},
		{"package-lock.json", "npm"},
	}

	for _, lf := range lockFiles {
		if _, err := os.Stat(filepath.Join(dir, lf.file)); err == nil {
			return lf.manager
		}
	}
	return "npm"
}

func summarize(script string) string {
	if len(script) > 80 {
		return script[:77] + "..."
	}
	return script
}
