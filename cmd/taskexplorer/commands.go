package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dshills/taskexplorer/internal/notify"
	"github.com/dshills/taskexplorer/internal/task"
	"github.com/dshills/taskexplorer/internal/task/sources"
	"github.com/dshills/taskexplorer/internal/view"
	"github.com/dshills/taskexplorer/internal/watch"
)

func newUICommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Open the interactive task tree (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUI(cmd, opts)
		},
	}
}

func runUI(cmd *cobra.Command, opts *globalOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, opts, true)
	if err != nil {
		return err
	}
	defer a.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}

	v := view.New(a.explorer, screen,
		view.WithTitle("Task Explorer: "+filepath.Base(a.root)),
		view.WithLogger(a.log),
	)
	defer v.Close()
	a.explorer.SetView(v)
	a.explorer.SetMessenger(v)
	a.executor.AddListener(v.ExecutionListener())

	if problems := a.config.Problems(); len(problems) > 0 {
		v.Error("config: " + problems[0].String())
	}

	// Configuration reloads and task file edits arrive on watcher
	// goroutines and are posted to the view's loop.
	a.config.Subscribe(func(c notify.Change) {
		if c.Type == notify.ChangeReload {
			v.PostRefresh("config " + c.Source)
		}
	})
	if err := a.config.Watch(watch.WithLogger(a.log)); err != nil {
		a.log.Warn("watch config: %v", err)
	}

	tasks, err := watch.New(func(paths []string) {
		v.PostRefresh(paths[0])
	}, watch.WithFilter(watch.MatchBase(a.discovery.Patterns()...)), watch.WithLogger(a.log))
	if err != nil {
		a.log.Warn("watch tasks: %v", err)
	} else {
		defer tasks.Close()
		for _, dir := range []string{a.root, filepath.Join(a.root, sources.WorkspaceDir)} {
			if err := tasks.Add(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
				a.log.Warn("watch %s: %v", dir, err)
			}
		}
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-hup:
				v.PostRefresh("SIGHUP")
			case <-ctx.Done():
				return
			}
		}
	}()

	return v.Run(ctx)
}

func newTreeCommand(opts *globalOptions) *cobra.Command {
	var collapsed, noColor bool

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the task tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			return view.Print(cmd.Context(), out, a.explorer, view.PrintOptions{
				Color:     !noColor && isTerminal(out),
				Collapsed: collapsed,
			})
		},
	}
	cmd.Flags().BoolVar(&collapsed, "collapsed", false, "Do not descend into collapsed groups")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	return cmd
}

func newRunCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <type:name | name>",
		Short: "Run one task and stream its output",
		Example: `  taskexplorer run make:build
  taskexplorer run test`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()
			return runTask(ctx, a, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func runTask(ctx context.Context, a *app, target string, stdout, stderr io.Writer) error {
	leaf, err := findLeaf(ctx, a.explorer, target)
	if err != nil {
		return err
	}

	msgs := newConsoleMessenger(stderr)
	a.explorer.SetMessenger(msgs)

	var mu sync.Mutex
	a.executor.AddListener(task.ListenerFuncs{
		Output: func(exec *task.Execution, line task.OutputLine) {
			if exec.Task != leaf.Task {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			w := stdout
			if line.Stream == task.Stderr {
				w = stderr
			}
			fmt.Fprintln(w, line.Text)
		},
	})

	exec := a.explorer.RunTask(ctx, leaf)
	if exec == nil {
		return &exitError{code: 1}
	}

	select {
	case <-exec.Done():
	case <-ctx.Done():
		a.explorer.StopTask(leaf)
		<-exec.Done()
	}
	a.explorer.ProcessEnded(exec.ID)

	msgs.Info(fmt.Sprintf("%s %s in %s", exec.Task.Identity(), exec.State(), exec.Duration().Round(time.Millisecond)))
	if exec.State() != task.ExecutionSucceeded {
		code := exec.ExitCode()
		if code == 0 {
			code = 1
		}
		return &exitError{code: code}
	}
	return nil
}

// consoleMessenger prints explorer messages to a terminal.
type consoleMessenger struct {
	w         io.Writer
	infoStyle lipgloss.Style
	errStyle  lipgloss.Style
}

func newConsoleMessenger(w io.Writer) *consoleMessenger {
	r := lipgloss.NewRenderer(w)
	return &consoleMessenger{
		w:         w,
		infoStyle: r.NewStyle().Faint(true),
		errStyle:  r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
}

func (m *consoleMessenger) Info(msg string) {
	fmt.Fprintln(m.w, m.infoStyle.Render(msg))
}

func (m *consoleMessenger) Error(msg string) {
	fmt.Fprintln(m.w, m.errStyle.Render(msg))
}

func newInitCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a starter " + sources.WorkspaceDir + "/tasks.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := opts.Workspace
			if root == "" {
				root = "."
			}
			path, err := sources.Scaffold(root)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "taskexplorer %s\n", version)
			fmt.Fprintf(out, "Commit: %s\n", commit)
			fmt.Fprintf(out, "Built: %s\n", date)
			fmt.Fprintf(out, "Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
