// Package sources provides task discovery sources for common build tools
// and for workspace-defined tasks.
package sources

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dshills/taskexplorer/internal/task"
)

var (
	makeTargetPattern = regexp.MustCompile(`^([a-zA-Z_][a-zA-Z0-9_.-]*)\s*:(?:[^=]|$)`)
	makePhonyPattern  = regexp.MustCompile(`^\.PHONY\s*:\s*(.+)$`)
	makeDocPattern    = regexp.MustCompile(`^##\s*(.*)$`)
)

// MakefileSource discovers targets from Makefiles.
type MakefileSource struct{}

// NewMakefileSource creates a Makefile source.
func NewMakefileSource() *MakefileSource {
	return &MakefileSource{}
}

// Name returns the source name.
func (s *MakefileSource) Name() string { return "makefile" }

// Patterns returns the file patterns this source handles.
func (s *MakefileSource) Patterns() []string {
	return []string{"Makefile", "makefile", "GNUmakefile", "*.mk"}
}

// Priority returns the source priority.
func (s *MakefileSource) Priority() int { return 100 }

// Discover returns the runnable targets in a Makefile. When the file
// declares .PHONY targets only those are returned; otherwise every explicit
// target is. A "## text" line directly above a target becomes its description.
func (s *MakefileSource) Discover(ctx context.Context, path string) ([]*task.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	phony := make(map[string]bool)
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		if m := makePhonyPattern.FindStringSubmatch(scanner.Text()); m != nil {
			for _, target := range strings.Fields(m[1]) {
				phony[target] = true
			}
		}
	}

	var (
		tasks   []*task.Task
		seen    = make(map[string]bool)
		comment string
	)

	args := func(target string) []string {
		switch filepath.Base(path) {
		case "Makefile", "makefile", "GNUmakefile":
			return []string{target}
		default:
			return []string{"-f", filepath.Base(path), target}
		}
	}

	scanner = bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := scanner.Text()

		if m := makeDocPattern.FindStringSubmatch(line); m != nil {
			comment = m[1]
			continue
		}

		m := makeTargetPattern.FindStringSubmatch(line)
		if m == nil {
			if !strings.HasPrefix(line, "#") && strings.TrimSpace(line) != "" {
				comment = ""
			}
			continue
		}

		target := m[1]
		doc := comment
		comment = ""

		if strings.HasPrefix(target, ".") || seen[target] {
			continue
		}
		if len(phony) > 0 && !phony[target] {
			continue
		}
		seen[target] = true

		tasks = append(tasks, &task.Task{
			Name:        target,
			Type:        task.TypeMake,
			Description: doc,
			Command:     "make",
			Args:        args(target),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}
