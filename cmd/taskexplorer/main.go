// Package main is the entry point for the taskexplorer command.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dshills/taskexplorer/internal/logging"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := newRootCommand().Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			return exit.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// exitError carries a task's exit status out of the run command.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	Workspace string
	ConfigDir string
	LogLevel  string
	LogFile   string
}

func bindGlobalFlags(flags *pflag.FlagSet, opts *globalOptions) {
	flags.StringVarP(&opts.Workspace, "workspace", "w", "", "Workspace directory (default: current directory)")
	flags.StringVarP(&opts.ConfigDir, "config", "c", "", "User configuration directory")
	flags.StringVar(&opts.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.LogFile, "log-file", "", "Write logs to this file")
}

func (o *globalOptions) validate() error {
	if !logging.ValidLevel(o.LogLevel) {
		return fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", o.LogLevel)
	}
	return nil
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "taskexplorer",
		Short: "Browse and run the tasks defined in a workspace",
		Long: `Task Explorer discovers the tasks defined in a workspace (Makefile targets,
package.json scripts, Taskfile entries, .taskexplorer/tasks.json and tasks.lua),
groups them by type and by name prefix, and runs or stops them.

Without a subcommand the interactive tree view is started.`,
		Example: `  taskexplorer
  taskexplorer tree --collapsed
  taskexplorer run npm:test
  taskexplorer -w ./project init`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUI(cmd, opts)
		},
	}
	bindGlobalFlags(rootCmd.PersistentFlags(), opts)

	rootCmd.AddCommand(newUICommand(opts))
	rootCmd.AddCommand(newTreeCommand(opts))
	rootCmd.AddCommand(newRunCommand(opts))
	rootCmd.AddCommand(newInitCommand(opts))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
