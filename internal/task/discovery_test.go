package task

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// MockSource returns predefined tasks for any matching file.
type MockSource struct {
	name     string
	patterns []string
	priority int
	tasks    []*Task
	err      error
	calls    atomic.Int32
}

func (s *MockSource) Name() string       { return s.name }
func (s *MockSource) Patterns() []string { return s.patterns }
func (s *MockSource) Priority() int      { return s.priority }
func (s *MockSource) Discover(ctx context.Context, path string) ([]*Task, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		c := *t
		out = append(out, &c)
	}
	return out, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscovery_Sources(t *testing.T) {
	d := NewDiscovery(
		WithSource(&MockSource{name: "zeta"}),
		WithSource(&MockSource{name: "alpha"}),
	)
	d.RegisterSource(&MockSource{name: "mid"})

	got := d.Sources()
	want := []string{"alpha", "mid", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("Sources() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Sources()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDiscovery_Discover(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Makefile"), "all:\n")
	writeFile(t, filepath.Join(root, "sub", "Makefile"), "all:\n")
	writeFile(t, filepath.Join(root, "node_modules", "Makefile"), "all:\n")
	writeFile(t, filepath.Join(root, "README.md"), "# readme\n")

	src := &MockSource{
		name:     "mock",
		patterns: []string{"Makefile"},
		priority: 10,
		tasks:    []*Task{{Name: "build", Type: TypeMake, Command: "make"}},
	}
	d := NewDiscovery(WithSource(src), WithCacheTime(0))

	result, err := d.Discover(context.Background(), DefaultDiscoveryOptions(root))
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if len(result.Tasks) != 2 {
		t.Fatalf("got %d tasks, want 2 (node_modules excluded)", len(result.Tasks))
	}
	for _, tk := range result.Tasks {
		if tk.Source != "mock" {
			t.Errorf("Source = %q, want mock", tk.Source)
		}
		if tk.SourceFile == "" || tk.Cwd != filepath.Dir(tk.SourceFile) {
			t.Errorf("SourceFile = %q, Cwd = %q", tk.SourceFile, tk.Cwd)
		}
	}
	if len(result.Files) != 2 {
		t.Errorf("Files = %v, want 2 entries", result.Files)
	}
}

func TestDiscovery_HighestPriorityWins(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "tasks.json"), "{}")

	low := &MockSource{name: "low", patterns: []string{"tasks.json"}, priority: 1, tasks: []*Task{{Name: "low"}}}
	high := &MockSource{name: "high", patterns: []string{"*.json"}, priority: 100, tasks: []*Task{{Name: "high"}}}
	d := NewDiscovery(WithSource(low), WithSource(high))

	result, err := d.Discover(context.Background(), DefaultDiscoveryOptions(root))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Tasks) != 1 || result.Tasks[0].Name != "high" {
		t.Errorf("tasks = %v, want only high", result.Tasks)
	}
	if low.calls.Load() != 0 {
		t.Errorf("low priority source called %d times", low.calls.Load())
	}
}

func TestDiscovery_FileErrorsAreCollected(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "bad.mk"), "")

	boom := errors.New("boom")
	d := NewDiscovery(WithSource(&MockSource{name: "bad", patterns: []string{"*.mk"}, err: boom}))

	result, err := d.Discover(context.Background(), DefaultDiscoveryOptions(root))
	if err != nil {
		t.Fatalf("Discover() error = %v, want nil", err)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("Errors = %v, want 1", result.Errors)
	}
	if !errors.Is(result.Errors[0], boom) {
		t.Errorf("error %v does not wrap boom", result.Errors[0])
	}
	if len(result.Tasks) != 0 {
		t.Errorf("Tasks = %v, want none", result.Tasks)
	}
}

func TestDiscovery_MissingRootFails(t *testing.T) {
	d := NewDiscovery(WithSource(&MockSource{name: "m", patterns: []string{"*"}}))

	_, err := d.Discover(context.Background(), DefaultDiscoveryOptions(filepath.Join(t.TempDir(), "missing")))
	if err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestDiscovery_NoSources(t *testing.T) {
	d := NewDiscovery()
	result, err := d.Discover(context.Background(), DefaultDiscoveryOptions(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Tasks) != 0 {
		t.Errorf("Tasks = %v, want empty", result.Tasks)
	}
}

func TestDiscovery_CacheAndInvalidate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Makefile"), "")

	src := &MockSource{name: "m", patterns: []string{"Makefile"}, tasks: []*Task{{Name: "a"}}}
	d := NewDiscovery(WithSource(src), WithCacheTime(time.Hour))
	fetch := d.Fetcher(DefaultDiscoveryOptions(root))

	for i := 0; i < 3; i++ {
		if _, err := fetch.FetchTasks(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if src.calls.Load() != 1 {
		t.Errorf("source calls = %d, want 1 (cached)", src.calls.Load())
	}

	fetch.Invalidate()
	if _, err := fetch.FetchTasks(context.Background()); err != nil {
		t.Fatal(err)
	}
	if src.calls.Load() != 2 {
		t.Errorf("source calls = %d after Invalidate, want 2", src.calls.Load())
	}
}

func TestFetcher_KeepsTaskPointersAcrossRescans(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Makefile"), "")

	src := &MockSource{name: "m", patterns: []string{"Makefile"}, tasks: []*Task{
		{Name: "build", Type: TypeMake, Command: "make build"},
		{Name: "serve", Type: TypeMake, Command: "make serve"},
	}}
	fetch := NewDiscovery(WithSource(src)).Fetcher(DefaultDiscoveryOptions(root))
	ctx := context.Background()

	first, err := fetch.FetchTasks(ctx)
	if err != nil {
		t.Fatal(err)
	}

	fetch.Invalidate()
	second, err := fetch.FetchTasks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if src.calls.Load() != 2 {
		t.Fatalf("source calls = %d, want a rescan", src.calls.Load())
	}
	for i := range first {
		if second[i] != first[i] {
			t.Errorf("%s: unchanged task got a new pointer", first[i].Name)
		}
	}

	src.tasks[1] = &Task{Name: "serve", Type: TypeMake, Command: "make serve PORT=9000"}
	fetch.Invalidate()
	third, err := fetch.FetchTasks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if third[0] != first[0] {
		t.Error("build: unchanged task got a new pointer")
	}
	if third[1] == first[1] {
		t.Error("serve: changed task kept the stale pointer")
	}
	if third[1].Command != "make serve PORT=9000" {
		t.Errorf("serve command = %q", third[1].Command)
	}
}

func TestDiscovery_SortedByName(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Makefile"), "")

	src := &MockSource{name: "m", patterns: []string{"Makefile"}, tasks: []*Task{
		{Name: "zeta"}, {Name: "alpha"}, {Name: "Mid"},
	}}
	d := NewDiscovery(WithSource(src))

	tasks, err := d.Fetcher(DefaultDiscoveryOptions(root)).FetchTasks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Mid", "alpha", "zeta"}
	for i, name := range want {
		if tasks[i].Name != name {
			t.Errorf("tasks[%d] = %q, want %q", i, tasks[i].Name, name)
		}
	}
}

func TestDiscoveryError_Error(t *testing.T) {
	e := DiscoveryError{Source: "npm", File: "package.json", Err: errors.New("bad json")}
	if got := e.Error(); got != "npm: package.json: bad json" {
		t.Errorf("Error() = %q", got)
	}
	e.File = ""
	if got := e.Error(); got != "npm: bad json" {
		t.Errorf("Error() = %q", got)
	}
}
