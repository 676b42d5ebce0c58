package task

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/dshills/taskexplorer/internal/logging"
)

// maxConcurrentDiscovery limits the number of files parsed at once.
var maxConcurrentDiscovery = runtime.GOMAXPROCS(0) * 2

// Source discovers tasks from one kind of file.
type Source interface {
	// Name returns the source name (e.g. "makefile", "npm").
	Name() string

	// Patterns returns filename glob patterns this source handles.
	Patterns() []string

	// Priority orders sources that claim the same file (higher wins).
	Priority() int

	// Discover parses tasks out of the file at path.
	Discover(ctx context.Context, path string) ([]*Task, error)
}

// DiscoveryOptions configures a discovery pass.
type DiscoveryOptions struct {
	// RootDir is the directory to search from.
	RootDir string

	// MaxDepth is the maximum directory depth (0 = root only).
	MaxDepth int

	// ExcludeDirs are directory base names that are never entered.
	ExcludeDirs []string

	// Timeout bounds the whole pass. Zero means no timeout.
	Timeout time.Duration
}

// DefaultDiscoveryOptions returns sensible defaults for rootDir.
func DefaultDiscoveryOptions(rootDir string) DiscoveryOptions {
	return DiscoveryOptions{
		RootDir:  rootDir,
		MaxDepth: 3,
		ExcludeDirs: []string{
			"node_modules",
			".git",
			"vendor",
			".venv",
			"__pycache__",
			"dist",
			"build",
			".cache",
		},
		Timeout: 30 * time.Second,
	}
}

// DiscoveryResult is the outcome of one discovery pass.
type DiscoveryResult struct {
	// Tasks are all discovered tasks, sorted by name.
	Tasks []*Task

	// Files are the task files that were parsed.
	Files []string

	// Errors are per-file failures. They never abort the pass.
	Errors []DiscoveryError

	// Duration is how long the pass took.
	Duration time.Duration
}

// DiscoveryError is a failure to parse one task file.
type DiscoveryError struct {
	Source string
	File   string
	Err    error
}

func (e DiscoveryError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.File, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e DiscoveryError) Unwrap() error { return e.Err }

// Discovery finds tasks across registered sources.
type Discovery struct {
	mu      sync.RWMutex
	sources map[string]Source

	cacheMu   sync.Mutex
	cache     map[string]cacheEntry
	cacheTime time.Duration

	log *logging.Logger
}

type cacheEntry struct {
	result *DiscoveryResult
	at     time.Time
}

// DiscoveryOption configures a Discovery.
type DiscoveryOption func(*Discovery)

// WithSource registers a source at construction.
func WithSource(src Source) DiscoveryOption {
	return func(d *Discovery) {
		d.sources[src.Name()] = src
	}
}

// WithCacheTime sets how long a result is reused. Zero disables caching.
func WithCacheTime(ttl time.Duration) DiscoveryOption {
	return func(d *Discovery) {
		d.cacheTime = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) DiscoveryOption {
	return func(d *Discovery) {
		if l != nil {
			d.log = l.WithComponent("discovery")
		}
	}
}

// NewDiscovery creates a discovery manager.
func NewDiscovery(opts ...DiscoveryOption) *Discovery {
	d := &Discovery{
		sources:   make(map[string]Source),
		cache:     make(map[string]cacheEntry),
		cacheTime: 5 * time.Second,
		log:       logging.Null(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RegisterSource registers a task source, replacing one with the same name.
func (d *Discovery) RegisterSource(src Source) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sources[src.Name()] = src
}

// Sources returns the registered source names, sorted.
func (d *Discovery) Sources() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.sources))
	for name := range d.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Patterns returns every filename pattern of every registered source.
func (d *Discovery) Patterns() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var patterns []string
	for _, src := range d.sources {
		patterns = append(patterns, src.Patterns()...)
	}
	sort.Strings(patterns)
	return patterns
}

// Invalidate drops all cached results.
func (d *Discovery) Invalidate() {
	d.cacheMu.Lock()
	defer d.cacheMu.Unlock()
	d.cache = make(map[string]cacheEntry)
}

// Discover finds tasks under opts.RootDir. It fails only when the root
// itself cannot be walked; per-file failures land in the result.
func (d *Discovery) Discover(ctx context.Context, opts DiscoveryOptions) (*DiscoveryResult, error) {
	if cached := d.cached(opts.RootDir); cached != nil {
		return cached, nil
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	files, err := d.findFiles(opts)
	if err != nil {
		return nil, fmt.Errorf("find task files: %w", err)
	}

	result := &DiscoveryResult{Tasks: make([]*Task, 0)}

	var (
		wg       sync.WaitGroup
		resultMu sync.Mutex
		sem      = make(chan struct{}, maxConcurrentDiscovery)
	)

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}

		candidates := files[path]
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Priority() > candidates[j].Priority()
		})
		src := candidates[0]

		wg.Add(1)
		go func(file string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			tasks, err := src.Discover(ctx, file)

			resultMu.Lock()
			defer resultMu.Unlock()

			if err != nil {
				result.Errors = append(result.Errors, DiscoveryError{Source: src.Name(), File: file, Err: err})
				return
			}
			result.Files = append(result.Files, file)

			for _, t := range tasks {
				t.Source = src.Name()
				if t.SourceFile == "" {
					t.SourceFile = file
				}
				if t.Cwd == "" {
					t.Cwd = filepath.Dir(file)
				}
				result.Tasks = append(result.Tasks, t)
			}
		}(path)
	}

	wg.Wait()

	sort.SliceStable(result.Tasks, func(i, j int) bool {
		a, b := result.Tasks[i], result.Tasks[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.SourceFile < b.SourceFile
	})
	sort.Strings(result.Files)
	result.Duration = time.Since(start)

	for _, e := range result.Errors {
		d.log.Warn("skipping task file: %v", e)
	}
	d.log.Debug("discovered %d tasks in %d files (%s)", len(result.Tasks), len(result.Files), result.Duration)

	d.store(opts.RootDir, result)
	return result, nil
}

// findFiles maps each matching file to the sources that claim it.
func (d *Discovery) findFiles(opts DiscoveryOptions) (map[string][]Source, error) {
	d.mu.RLock()
	patternMap := make(map[string][]Source)
	for _, src := range d.sources {
		for _, pattern := range src.Patterns() {
			patternMap[pattern] = append(patternMap[pattern], src)
		}
	}
	d.mu.RUnlock()

	result := make(map[string][]Source)
	if len(patternMap) == 0 {
		return result, nil
	}

	exclude := make(map[string]bool, len(opts.ExcludeDirs))
	for _, dir := range opts.ExcludeDirs {
		exclude[dir] = true
	}

	err := walkDir(opts.RootDir, opts.MaxDepth, exclude, func(path string) {
		name := filepath.Base(path)
		for pattern, sources := range patternMap {
			if ok, err := filepath.Match(pattern, name); err == nil && ok {
				result[path] = append(result[path], sources...)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// walkDir calls fn for every file under root up to maxDepth, skipping
// excluded directories and symlink cycles.
func walkDir(root string, maxDepth int, exclude map[string]bool, fn func(path string)) error {
	visited := make(map[string]bool)

	rootReal, err := filepath.EvalSymlinks(filepath.Clean(root))
	if err != nil {
		rootReal = filepath.Clean(root)
	}
	visited[rootReal] = true

	return walkDirRecursive(root, 0, maxDepth, exclude, visited, fn)
}

func walkDirRecursive(dir string, depth, maxDepth int, exclude, visited map[string]bool, fn func(path string)) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		entryPath := filepath.Join(dir, entry.Name())

		if !entry.IsDir() {
			fn(entryPath)
			continue
		}
		if exclude[entry.Name()] || depth >= maxDepth {
			continue
		}

		realPath, err := filepath.EvalSymlinks(entryPath)
		if err != nil || visited[realPath] {
			continue
		}
		visited[realPath] = true

		if err := walkDirRecursive(entryPath, depth+1, maxDepth, exclude, visited, fn); err != nil {
			return err
		}
	}
	return nil
}

func (d *Discovery) cached(rootDir string) *DiscoveryResult {
	d.cacheMu.Lock()
	defer d.cacheMu.Unlock()

	entry, ok := d.cache[rootDir]
	if !ok || d.cacheTime <= 0 || time.Since(entry.at) > d.cacheTime {
		return nil
	}
	return entry.result
}

func (d *Discovery) store(rootDir string, result *DiscoveryResult) {
	if d.cacheTime <= 0 {
		return
	}
	d.cacheMu.Lock()
	defer d.cacheMu.Unlock()
	d.cache[rootDir] = cacheEntry{result: result, at: time.Now()}
}

// Fetcher adapts a Discovery to a fixed workspace, producing a flat task
// list per call. A task that comes back from a rescan unchanged keeps the
// pointer returned by earlier fetches, so references held by callers stay
// valid across refreshes.
type Fetcher struct {
	discovery *Discovery
	opts      DiscoveryOptions

	mu    sync.Mutex
	known map[string]*Task
}

// Fetcher returns a task fetcher bound to opts.
func (d *Discovery) Fetcher(opts DiscoveryOptions) *Fetcher {
	return &Fetcher{discovery: d, opts: opts, known: make(map[string]*Task)}
}

// FetchTasks runs (or reuses) discovery and returns the flat task list.
func (f *Fetcher) FetchTasks(ctx context.Context) ([]*Task, error) {
	result, err := f.discovery.Discover(ctx, f.opts)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tasks := make([]*Task, len(result.Tasks))
	known := make(map[string]*Task, len(result.Tasks))
	for i, t := range result.Tasks {
		key := t.SourceFile + "\x00" + t.Identity()
		if _, dup := known[key]; !dup {
			if prev, ok := f.known[key]; ok && sameTask(prev, t) {
				t = prev
			}
			known[key] = t
		}
		tasks[i] = t
	}
	f.known = known
	return tasks, nil
}

func sameTask(a, b *Task) bool {
	return a.Name == b.Name &&
		a.Type == b.Type &&
		a.Custom == b.Custom &&
		a.Description == b.Description &&
		a.Source == b.Source &&
		a.SourceFile == b.SourceFile &&
		a.Command == b.Command &&
		slices.Equal(a.Args, b.Args) &&
		a.Cwd == b.Cwd &&
		maps.Equal(a.Env, b.Env)
}

// Invalidate drops cached discovery results so the next fetch rescans.
func (f *Fetcher) Invalidate() {
	f.discovery.Invalidate()
}

// RootDir returns the workspace root this fetcher scans.
func (f *Fetcher) RootDir() string {
	return f.opts.RootDir
}
