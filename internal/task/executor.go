package task

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/taskexplorer/internal/logging"
)

// Executor errors.
var (
	// ErrEmptyCommand is returned when a task has nothing to run.
	ErrEmptyCommand = errors.New("task has no command")

	// ErrExecutionNotFound is returned for an unknown or already reaped execution.
	ErrExecutionNotFound = errors.New("execution not found")
)

// ExecutorConfig configures the task executor.
type ExecutorConfig struct {
	// Shell runs shell-type tasks.
	Shell string

	// ShellArgs precede the command line (usually "-c").
	ShellArgs []string

	// Env is added to every task's environment.
	Env map[string]string

	// WorkingDir is used when a task has no Cwd.
	WorkingDir string

	// OutputLines is how many output lines each execution keeps.
	OutputLines int
}

// DefaultExecutorConfig returns sensible defaults.
func DefaultExecutorConfig() ExecutorConfig {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	return ExecutorConfig{
		Shell:       shell,
		ShellArgs:   []string{"-c"},
		OutputLines: 1000,
	}
}

// ExecutionState is the lifecycle state of one execution.
type ExecutionState string

const (
	// ExecutionRunning means the process is alive.
	ExecutionRunning ExecutionState = "running"
	// ExecutionSucceeded means the process exited with status 0.
	ExecutionSucceeded ExecutionState = "succeeded"
	// ExecutionFailed means the process exited non-zero or could not be waited on.
	ExecutionFailed ExecutionState = "failed"
	// ExecutionTerminated means the process was killed through Terminate.
	ExecutionTerminated ExecutionState = "terminated"
)

// OutputStream identifies stdout or stderr.
type OutputStream int

const (
	// Stdout is the standard output stream.
	Stdout OutputStream = iota
	// Stderr is the standard error stream.
	Stderr
)

// OutputLine is one line of task output.
type OutputLine struct {
	Stream OutputStream
	Text   string
	Time   time.Time
}

// Execution is one run of a task. Its ID is the opaque handle callers use
// to terminate it or to match its completion.
type Execution struct {
	// ID uniquely identifies this run.
	ID string

	// Task is the task instance that was started.
	Task *Task

	// StartTime is when the process started.
	StartTime time.Time

	mu         sync.RWMutex
	state      ExecutionState
	endTime    time.Time
	exitCode   int
	err        error
	output     []OutputLine
	maxLines   int
	terminated bool

	cmd    *osexec.Cmd
	cancel context.CancelFunc
	done   chan struct{}
}

// ExecutionListener receives execution events. Callbacks run on executor
// goroutines.
type ExecutionListener interface {
	OnExecutionStarted(exec *Execution)
	OnExecutionOutput(exec *Execution, line OutputLine)
	OnExecutionEnded(exec *Execution)
}

// ListenerFuncs adapts plain functions to ExecutionListener. Nil fields are skipped.
type ListenerFuncs struct {
	Started func(exec *Execution)
	Output  func(exec *Execution, line OutputLine)
	Ended   func(exec *Execution)
}

func (l ListenerFuncs) OnExecutionStarted(exec *Execution) {
	if l.Started != nil {
		l.Started(exec)
	}
}

func (l ListenerFuncs) OnExecutionOutput(exec *Execution, line OutputLine) {
	if l.Output != nil {
		l.Output(exec, line)
	}
}

func (l ListenerFuncs) OnExecutionEnded(exec *Execution) {
	if l.Ended != nil {
		l.Ended(exec)
	}
}

// Executor starts tasks as child processes and tracks the live ones.
type Executor struct {
	config ExecutorConfig
	log    *logging.Logger

	executionsMu sync.RWMutex
	executions   map[string]*Execution

	listenersMu sync.RWMutex
	listeners   []ExecutionListener
}

// NewExecutor creates an executor.
func NewExecutor(config ExecutorConfig, log *logging.Logger) *Executor {
	if config.Shell == "" {
		config.Shell = "/bin/sh"
	}
	if len(config.ShellArgs) == 0 {
		config.ShellArgs = []string{"-c"}
	}
	if config.OutputLines <= 0 {
		config.OutputLines = 1000
	}
	if log == nil {
		log = logging.Null()
	}
	return &Executor{
		config:     config,
		log:        log.WithComponent("executor"),
		executions: make(map[string]*Execution),
	}
}

// AddListener registers an execution listener.
func (e *Executor) AddListener(l ExecutionListener) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.listeners = append(e.listeners, l)
}

// Execute starts the task and returns once the process is running.
// A task that cannot be started returns an error and leaves no trace.
func (e *Executor) Execute(ctx context.Context, t *Task) (*Execution, error) {
	if t == nil || strings.TrimSpace(t.Command) == "" {
		return nil, ErrEmptyCommand
	}

	execCtx, cancel := context.WithCancel(ctx)
	cmd := e.buildCommand(execCtx, t)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start %s: %w", t.Command, err)
	}

	exec := &Execution{
		ID:        uuid.New().String(),
		Task:      t,
		StartTime: time.Now(),
		state:     ExecutionRunning,
		exitCode:  -1,
		maxLines:  e.config.OutputLines,
		cmd:       cmd,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	e.executionsMu.Lock()
	e.executions[exec.ID] = exec
	e.executionsMu.Unlock()

	e.log.Info("started %s (%s, pid %d)", t.Identity(), exec.ID, cmd.Process.Pid)
	e.notify(func(l ExecutionListener) { l.OnExecutionStarted(exec) })

	go e.wait(exec, stdout, stderr)

	return exec, nil
}

// Terminate kills the execution's process group.
func (e *Executor) Terminate(id string) error {
	e.executionsMu.RLock()
	exec, ok := e.executions[id]
	e.executionsMu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
	}

	exec.terminate()
	e.log.Info("terminated %s (%s)", exec.Task.Identity(), id)
	return nil
}

// Get returns a live execution by ID.
func (e *Executor) Get(id string) (*Execution, bool) {
	e.executionsMu.RLock()
	defer e.executionsMu.RUnlock()
	exec, ok := e.executions[id]
	return exec, ok
}

// Running returns all live executions ordered by start time.
func (e *Executor) Running() []*Execution {
	e.executionsMu.RLock()
	result := make([]*Execution, 0, len(e.executions))
	for _, exec := range e.executions {
		result = append(result, exec)
	}
	e.executionsMu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})
	return result
}

// TerminateAll kills every live execution.
func (e *Executor) TerminateAll() {
	for _, exec := range e.Running() {
		exec.terminate()
	}
}

func (e *Executor) wait(exec *Execution, stdout, stderr io.Reader) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.readOutput(exec, stdout, Stdout)
	}()
	go func() {
		defer wg.Done()
		e.readOutput(exec, stderr, Stderr)
	}()
	wg.Wait()

	err := exec.cmd.Wait()

	exec.mu.Lock()
	exec.endTime = time.Now()
	switch {
	case exec.terminated:
		exec.state = ExecutionTerminated
		exec.err = context.Canceled
	case err != nil:
		exec.state = ExecutionFailed
		exec.err = err
		var exitErr *osexec.ExitError
		if errors.As(err, &exitErr) {
			exec.exitCode = exitErr.ExitCode()
		}
	default:
		exec.state = ExecutionSucceeded
		exec.exitCode = 0
	}
	state, code := exec.state, exec.exitCode
	exec.mu.Unlock()

	exec.cancel()

	e.executionsMu.Lock()
	delete(e.executions, exec.ID)
	e.executionsMu.Unlock()

	e.log.Info("%s ended: %s (exit %d)", exec.Task.Identity(), state, code)
	e.notify(func(l ExecutionListener) { l.OnExecutionEnded(exec) })

	close(exec.done)
}

// MaxLineBytes is the longest output line kept. The remainder of a longer
// line is read and discarded.
const MaxLineBytes = 1024 * 1024

// readOutput reads r to EOF, emitting one OutputLine per line.
func (e *Executor) readOutput(exec *Execution, r io.Reader, stream OutputStream) {
	br := bufio.NewReaderSize(r, 64*1024)
	var buf []byte
	for {
		chunk, err := br.ReadSlice('\n')
		if room := MaxLineBytes - len(buf); room > 0 {
			buf = append(buf, chunk[:min(len(chunk), room)]...)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err == nil || len(buf) > 0 {
			text := strings.TrimRight(string(buf), "\r\n")
			line := OutputLine{Stream: stream, Text: text, Time: time.Now()}
			exec.appendOutput(line)
			e.notify(func(l ExecutionListener) { l.OnExecutionOutput(exec, line) })
		}
		buf = buf[:0]
		if err != nil {
			if !errors.Is(err, io.EOF) {
				e.log.Debug("%s output: %v", exec.Task.Identity(), err)
			}
			return
		}
	}
}

func (e *Executor) notify(fn func(l ExecutionListener)) {
	e.listenersMu.RLock()
	listeners := make([]ExecutionListener, len(e.listeners))
	copy(listeners, e.listeners)
	e.listenersMu.RUnlock()

	for _, l := range listeners {
		fn(l)
	}
}

// buildCommand creates the process for a task. Shell tasks, custom tasks and
// tasks of unknown type go through the shell; tool tasks run directly.
func (e *Executor) buildCommand(ctx context.Context, t *Task) *osexec.Cmd {
	var cmd *osexec.Cmd

	switch t.ResolvedType() {
	case TypeProcess, TypeMake, TypeNPM, TypeTaskfile:
		cmd = osexec.CommandContext(ctx, t.Command, t.Args...)
	default:
		line := t.Command
		for _, arg := range t.Args {
			line += " " + shellEscape(arg)
		}
		args := append(append([]string{}, e.config.ShellArgs...), line)
		cmd = osexec.CommandContext(ctx, e.config.Shell, args...)
	}

	cmd.Dir = t.Cwd
	if cmd.Dir == "" {
		cmd.Dir = e.config.WorkingDir
	}
	cmd.Env = e.buildEnvironment(t)

	// Own process group so Terminate reaches grandchildren.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	return cmd
}

// buildEnvironment merges os.Environ < config env < task env.
func (e *Executor) buildEnvironment(t *Task) []string {
	envMap := make(map[string]string)
	for _, kv := range os.Environ() {
		if idx := strings.Index(kv, "="); idx > 0 {
			envMap[kv[:idx]] = kv[idx+1:]
		}
	}
	for k, v := range e.config.Env {
		envMap[k] = v
	}
	for k, v := range t.Env {
		envMap[k] = v
	}

	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+envMap[k])
	}
	return env
}

// shellEscape single-quotes s when it contains characters the shell would
// interpret.
func shellEscape(s string) string {
	if s == "" {
		return "''"
	}

	safe := true
	for _, c := range s {
		if !isShellSafe(c) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}

	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func isShellSafe(c rune) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == '/'
}

func (ex *Execution) appendOutput(line OutputLine) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.output = append(ex.output, line)
	if over := len(ex.output) - ex.maxLines; ex.maxLines > 0 && over > 0 {
		ex.output = append(ex.output[:0:0], ex.output[over:]...)
	}
}

func (ex *Execution) terminate() {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	if ex.state != ExecutionRunning {
		return
	}
	ex.terminated = true
	if ex.cmd != nil && ex.cmd.Process != nil {
		_ = syscall.Kill(-ex.cmd.Process.Pid, syscall.SIGKILL)
	}
	ex.cancel()
}

// Done returns a channel closed when the process has ended.
func (ex *Execution) Done() <-chan struct{} {
	return ex.done
}

// State returns the current state.
func (ex *Execution) State() ExecutionState {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	return ex.state
}

// ExitCode returns the exit code, or -1 while running or when unknown.
func (ex *Execution) ExitCode() int {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	return ex.exitCode
}

// Err returns the wait error, if any.
func (ex *Execution) Err() error {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	return ex.err
}

// Duration returns how long the execution ran (or has been running).
func (ex *Execution) Duration() time.Duration {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	end := ex.endTime
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(ex.StartTime)
}

// Output returns a copy of the retained output lines.
func (ex *Execution) Output() []OutputLine {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	out := make([]OutputLine, len(ex.output))
	copy(out, ex.output)
	return out
}
