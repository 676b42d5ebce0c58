// Package config provides layered settings for the task explorer.
//
// Settings are merged from four layers, lowest priority first:
//
//	defaults < user file < project file < environment
//
// The user file is $XDG_CONFIG_HOME/taskexplorer/config.toml and the
// project file is <workspace>/.taskexplorer/config.toml:
//
//	[explorer]
//	groupByName = true
//	separator = "_"
//	excludeTypes = ["shell"]
//	expansion = "collapsed"
//
//	[icons]
//	npm = "⬢"
//
// A malformed file or value never prevents loading. The offending layer or
// key falls back to the layer below and is reported through Problems.
package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/taskexplorer/internal/logging"
	"github.com/dshills/taskexplorer/internal/notify"
	"github.com/dshills/taskexplorer/internal/watch"
)

// FileName is the settings file name in both config directories.
const FileName = "config.toml"

// Layer names, lowest priority first.
const (
	LayerDefaults = "defaults"
	LayerUser     = "user"
	LayerProject  = "project"
	LayerEnv      = "environment"
)

type layer struct {
	name string
	data map[string]any
}

// Config holds the merged settings. It is safe for concurrent use.
type Config struct {
	mu sync.RWMutex

	userConfigDir    string
	projectConfigDir string
	lookupEnv        func(string) (string, bool)

	settings Settings
	problems []Problem
	loaded   []string

	notifier    *notify.Notifier
	ownNotifier bool
	watcher     *watch.Watcher
	log         *logging.Logger
}

// Option configures a Config instance.
type Option func(*Config)

// WithUserConfigDir sets the user configuration directory.
func WithUserConfigDir(dir string) Option {
	return func(c *Config) {
		c.userConfigDir = dir
	}
}

// WithProjectConfigDir sets the project configuration directory.
func WithProjectConfigDir(dir string) Option {
	return func(c *Config) {
		c.projectConfigDir = dir
	}
}

// WithEnv replaces the environment lookup, mainly for tests.
func WithEnv(lookup func(string) (string, bool)) Option {
	return func(c *Config) {
		c.lookupEnv = lookup
	}
}

// WithNotifier sets the notifier that receives reload changes.
func WithNotifier(n *notify.Notifier) Option {
	return func(c *Config) {
		c.notifier = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.log = l.WithComponent("config")
		}
	}
}

// New creates a Config holding the defaults. Call Load to read files and
// the environment.
func New(opts ...Option) *Config {
	c := &Config{
		lookupEnv: os.LookupEnv,
		settings:  Defaults(),
		log:       logging.Null(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.userConfigDir == "" {
		c.userConfigDir = DefaultUserConfigDir()
	}
	if c.notifier == nil {
		c.notifier = notify.New()
		c.ownNotifier = true
	}
	return c
}

// DefaultUserConfigDir returns the user configuration directory.
func DefaultUserConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "taskexplorer")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "taskexplorer")
}

// ProjectConfigDir returns the project configuration directory for a
// workspace root.
func ProjectConfigDir(workspace string) string {
	return filepath.Join(workspace, ".taskexplorer")
}

// Load reads every layer and replaces the current settings. Parse errors
// are returned joined, but the remaining layers are still applied.
func (c *Config) Load(_ context.Context) error {
	var (
		layers = []layer{{name: LayerDefaults, data: defaultConfig()}}
		loaded []string
		errs   []error
	)

	r := &resolver{}

	for _, f := range []struct {
		name string
		dir  string
	}{
		{LayerUser, c.userConfigDir},
		{LayerProject, c.projectConfigDir},
	} {
		if f.dir == "" {
			continue
		}
		path := filepath.Join(f.dir, FileName)
		data, err := loadTOML(path)
		if err != nil {
			errs = append(errs, err)
			r.problem(path, f.name, err)
			continue
		}
		if data == nil {
			continue
		}
		layers = append(layers, layer{name: f.name, data: data})
		loaded = append(loaded, path)
	}

	if env := envLayer(c.lookupEnv); len(env) > 0 {
		layers = append(layers, layer{name: LayerEnv, data: env})
	}

	r.layers = layers
	settings := r.settings()

	c.mu.Lock()
	c.settings = settings
	c.problems = r.problems
	c.loaded = loaded
	c.mu.Unlock()

	for _, p := range r.problems {
		c.log.Warn("%s", p)
	}
	c.log.Debug("loaded %d config files", len(loaded))

	return errors.Join(errs...)
}

// Settings returns a snapshot of the current settings.
func (c *Config) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.settings
	s.ExcludeTypes = append([]string(nil), s.ExcludeTypes...)
	icons := make(map[string]string, len(s.Icons))
	for k, v := range s.Icons {
		icons[k] = v
	}
	s.Icons = icons
	return s
}

// Problems returns the values rejected by the last Load.
func (c *Config) Problems() []Problem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Problem(nil), c.problems...)
}

// Files returns the config files read by the last Load.
func (c *Config) Files() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.loaded...)
}

// Subscribe registers an observer for reload changes.
func (c *Config) Subscribe(observer notify.Observer) *notify.Subscription {
	return c.notifier.Subscribe(observer)
}

// Watch starts reloading whenever a config file is created, changed or
// removed. Directories that do not exist are skipped.
func (c *Config) Watch(opts ...watch.Option) error {
	w, err := watch.New(c.handleFileChange, append(opts,
		watch.WithFilter(watch.MatchBase(FileName)),
		watch.WithLogger(c.log),
	)...)
	if err != nil {
		return err
	}

	for _, dir := range []string{c.userConfigDir, c.projectConfigDir} {
		if dir == "" {
			continue
		}
		if err := w.Add(dir); err != nil && !errors.Is(err, os.ErrNotExist) && !errors.Is(err, watch.ErrAlreadyWatching) {
			_ = w.Close()
			return err
		}
	}

	c.mu.Lock()
	old := c.watcher
	c.watcher = w
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Close stops the watcher. A notifier created by New is closed too.
func (c *Config) Close() {
	c.mu.Lock()
	w := c.watcher
	c.watcher = nil
	c.mu.Unlock()

	if w != nil {
		_ = w.Close()
	}
	if c.ownNotifier {
		c.notifier.Close()
	}
}

func (c *Config) handleFileChange(paths []string) {
	if err := c.Load(context.Background()); err != nil {
		c.log.Warn("reload: %v", err)
	}
	for _, p := range paths {
		c.log.Info("reloaded settings after change to %s", p)
	}
	if len(paths) > 0 {
		c.notifier.NotifyReload(paths[0])
	}
}

// loadTOML reads a TOML file. A missing file yields nil, nil.
func loadTOML(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, newParseError(path, err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// getPath retrieves a value from a nested map using a dot-separated path.
func getPath(m map[string]any, path string) (any, bool) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return nil, false
	}

	current := any(m)
	for _, part := range parts {
		cm, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = cm[part]; !ok {
			return nil, false
		}
	}
	return current, true
}

// setPath sets a value in a nested map using a dot-separated path.
func setPath(m map[string]any, path string, value any) error {
	parts := splitPath(path)
	if len(parts) == 0 {
		return ErrInvalidPath
	}

	current := m
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part]
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		nextMap, ok := next.(map[string]any)
		if !ok {
			return ErrInvalidPath
		}
		current = nextMap
	}

	current[parts[len(parts)-1]] = value
	return nil
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '.' {
			if i > start {
				parts = append(parts, path[start:i])
			}
			start = i + 1
		}
	}
	return parts
}
