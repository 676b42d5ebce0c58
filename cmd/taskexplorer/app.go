package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dshills/taskexplorer/internal/config"
	"github.com/dshills/taskexplorer/internal/explorer"
	"github.com/dshills/taskexplorer/internal/logging"
	"github.com/dshills/taskexplorer/internal/task"
	"github.com/dshills/taskexplorer/internal/task/sources"
)

// app holds the components every subcommand shares.
type app struct {
	root      string
	log       *logging.Logger
	logFile   *os.File
	config    *config.Config
	discovery *task.Discovery
	fetcher   *task.Fetcher
	executor  *task.Executor
	explorer  *explorer.Explorer
}

// newApp resolves the workspace, loads configuration and wires the
// explorer. Logs go to stderr unless quiet is set or a log file is given.
func newApp(ctx context.Context, opts *globalOptions, quiet bool) (*app, error) {
	root := opts.Workspace
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve workspace: %w", err)
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("workspace %s is not a directory", root)
	}

	a := &app{root: root}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(opts.LogLevel)
	switch {
	case opts.LogFile != "":
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		a.logFile = f
		logCfg.Output = f
	case quiet:
		logCfg.Output = io.Discard
	}
	a.log = logging.New(logCfg).WithField("workspace", root)

	cfgOpts := []config.Option{
		config.WithProjectConfigDir(config.ProjectConfigDir(root)),
		config.WithLogger(a.log),
	}
	if opts.ConfigDir != "" {
		cfgOpts = append(cfgOpts, config.WithUserConfigDir(opts.ConfigDir))
	}
	a.config = config.New(cfgOpts...)
	if err := a.config.Load(ctx); err != nil {
		// Bad files are reported, the rest of the configuration still applies.
		a.log.Warn("config: %v", err)
	}
	for _, p := range a.config.Problems() {
		a.log.Warn("config: %s", p)
	}

	a.discovery = sources.NewDiscovery(task.WithLogger(a.log))
	a.fetcher = a.discovery.Fetcher(task.DefaultDiscoveryOptions(root))

	execCfg := task.DefaultExecutorConfig()
	execCfg.WorkingDir = root
	a.executor = task.NewExecutor(execCfg, a.log)

	a.explorer = explorer.New(a.fetcher, a.config, a.executor, explorer.WithLogger(a.log))
	return a, nil
}

// Close stops running tasks and releases files and watchers.
func (a *app) Close() {
	a.executor.TerminateAll()
	a.config.Close()
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

// findLeaf walks the explorer tree for the leaf whose task matches target.
// Target is either a "type:name" identity or a bare name; a bare name must
// be unambiguous.
func findLeaf(ctx context.Context, exp *explorer.Explorer, target string) (*explorer.Node, error) {
	var byName []*explorer.Node
	var walk func(nodes []*explorer.Node) (*explorer.Node, error)
	walk = func(nodes []*explorer.Node) (*explorer.Node, error) {
		for _, n := range nodes {
			if n.IsLeaf() {
				if n.Task.Identity() == target {
					return n, nil
				}
				if n.Task.Name == target {
					byName = append(byName, n)
				}
				continue
			}
			children, err := exp.Children(ctx, n)
			if err != nil {
				return nil, err
			}
			if found, err := walk(children); found != nil || err != nil {
				return found, err
			}
		}
		return nil, nil
	}

	roots, err := exp.Children(ctx, nil)
	if err != nil {
		return nil, err
	}
	found, err := walk(roots)
	if err != nil || found != nil {
		return found, err
	}

	switch len(byName) {
	case 0:
		return nil, fmt.Errorf("task %q not found", target)
	case 1:
		return byName[0], nil
	default:
		ids := make([]string, len(byName))
		for i, n := range byName {
			ids[i] = n.Task.Identity()
		}
		return nil, fmt.Errorf("task %q is ambiguous, use one of %v", target, ids)
	}
}
