package task

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingListener struct {
	mu      sync.Mutex
	started []*Execution
	lines   []OutputLine
	ended   []*Execution
}

func (r *recordingListener) OnExecutionStarted(exec *Execution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, exec)
}

func (r *recordingListener) OnExecutionOutput(exec *Execution, line OutputLine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *recordingListener) OnExecutionEnded(exec *Execution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended = append(r.ended, exec)
}

func waitDone(t *testing.T, exec *Execution) {
	t.Helper()
	select {
	case <-exec.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("execution did not finish")
	}
}

func TestDefaultExecutorConfig(t *testing.T) {
	config := DefaultExecutorConfig()
	if config.Shell == "" {
		t.Error("Shell is empty")
	}
	if len(config.ShellArgs) == 0 {
		t.Error("ShellArgs is empty")
	}
	if config.OutputLines != 1000 {
		t.Errorf("OutputLines = %d, want 1000", config.OutputLines)
	}
}

func TestExecutor_EmptyCommand(t *testing.T) {
	e := NewExecutor(DefaultExecutorConfig(), nil)

	_, err := e.Execute(context.Background(), &Task{Name: "nothing"})
	if !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("err = %v, want ErrEmptyCommand", err)
	}
	if _, err := e.Execute(context.Background(), nil); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("nil task err = %v, want ErrEmptyCommand", err)
	}
	if len(e.Running()) != 0 {
		t.Error("failed start left an execution behind")
	}
}

func TestExecutor_MissingBinary(t *testing.T) {
	e := NewExecutor(DefaultExecutorConfig(), nil)

	_, err := e.Execute(context.Background(), &Task{
		Name:    "ghost",
		Type:    TypeProcess,
		Command: "/definitely/not/a/binary",
	})
	if err == nil {
		t.Fatal("expected start error")
	}
	if len(e.Running()) != 0 {
		t.Error("failed start left an execution behind")
	}
}

func TestExecutor_RunShellTask(t *testing.T) {
	e := NewExecutor(ExecutorConfig{Shell: "/bin/sh"}, nil)
	listener := &recordingListener{}
	e.AddListener(listener)

	exec, err := e.Execute(context.Background(), &Task{
		Name:    "hello",
		Type:    TypeShell,
		Command: "echo hello; echo oops 1>&2",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if exec.ID == "" {
		t.Error("execution has no ID")
	}

	waitDone(t, exec)

	if exec.State() != ExecutionSucceeded {
		t.Errorf("State() = %q, want succeeded", exec.State())
	}
	if exec.ExitCode() != 0 {
		t.Errorf("ExitCode() = %d, want 0", exec.ExitCode())
	}

	var stdout, stderr []string
	for _, line := range exec.Output() {
		if line.Stream == Stdout {
			stdout = append(stdout, line.Text)
		} else {
			stderr = append(stderr, line.Text)
		}
	}
	if strings.Join(stdout, "\n") != "hello" {
		t.Errorf("stdout = %v", stdout)
	}
	if strings.Join(stderr, "\n") != "oops" {
		t.Errorf("stderr = %v", stderr)
	}

	if _, ok := e.Get(exec.ID); ok {
		t.Error("finished execution still tracked")
	}

	listener.mu.Lock()
	defer listener.mu.Unlock()
	if len(listener.started) != 1 || len(listener.ended) != 1 {
		t.Errorf("started=%d ended=%d, want 1/1", len(listener.started), len(listener.ended))
	}
}

func TestExecutor_NonZeroExit(t *testing.T) {
	e := NewExecutor(ExecutorConfig{Shell: "/bin/sh"}, nil)

	exec, err := e.Execute(context.Background(), &Task{Name: "fail", Command: "exit 3"})
	if err != nil {
		t.Fatal(err)
	}
	waitDone(t, exec)

	if exec.State() != ExecutionFailed {
		t.Errorf("State() = %q, want failed", exec.State())
	}
	if exec.ExitCode() != 3 {
		t.Errorf("ExitCode() = %d, want 3", exec.ExitCode())
	}
}

func TestExecutor_LongLine(t *testing.T) {
	e := NewExecutor(ExecutorConfig{Shell: "/bin/sh"}, nil)

	exec, err := e.Execute(context.Background(), &Task{
		Name:    "long",
		Command: "head -c 2097152 /dev/zero | tr '\\0' a; echo; echo done",
	})
	if err != nil {
		t.Fatal(err)
	}
	waitDone(t, exec)

	if exec.State() != ExecutionSucceeded {
		t.Errorf("State() = %q, want succeeded", exec.State())
	}
	out := exec.Output()
	if len(out) != 2 {
		t.Fatalf("len(Output()) = %d, want 2", len(out))
	}
	if len(out[0].Text) != MaxLineBytes || strings.Trim(out[0].Text, "a") != "" {
		t.Errorf("long line has %d bytes, want %d", len(out[0].Text), MaxLineBytes)
	}
	if out[1].Text != "done" {
		t.Errorf("last line = %q, want done", out[1].Text)
	}
}

func TestExecutor_Terminate(t *testing.T) {
	e := NewExecutor(ExecutorConfig{Shell: "/bin/sh"}, nil)

	exec, err := e.Execute(context.Background(), &Task{Name: "sleep", Command: "sleep 30"})
	if err != nil {
		t.Fatal(err)
	}
	if len(e.Running()) != 1 {
		t.Fatalf("Running() = %d, want 1", len(e.Running()))
	}

	if err := e.Terminate(exec.ID); err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}
	waitDone(t, exec)

	if exec.State() != ExecutionTerminated {
		t.Errorf("State() = %q, want terminated", exec.State())
	}
	if err := e.Terminate(exec.ID); !errors.Is(err, ErrExecutionNotFound) {
		t.Errorf("second Terminate() = %v, want ErrExecutionNotFound", err)
	}
}

func TestExecutor_TaskEnvAndCwd(t *testing.T) {
	dir := t.TempDir()
	e := NewExecutor(ExecutorConfig{Shell: "/bin/sh", Env: map[string]string{"A": "from-config", "B": "b"}}, nil)

	exec, err := e.Execute(context.Background(), &Task{
		Name:    "env",
		Command: `echo "$A $B"; pwd`,
		Cwd:     dir,
		Env:     map[string]string{"A": "from-task"},
	})
	if err != nil {
		t.Fatal(err)
	}
	waitDone(t, exec)

	out := exec.Output()
	if len(out) < 2 {
		t.Fatalf("output = %v", out)
	}
	if out[0].Text != "from-task b" {
		t.Errorf("env line = %q", out[0].Text)
	}
	if !strings.HasSuffix(out[1].Text, dirBase(dir)) {
		t.Errorf("pwd = %q, want suffix of %q", out[1].Text, dir)
	}
}

func dirBase(dir string) string {
	parts := strings.Split(strings.TrimRight(dir, "/"), "/")
	return parts[len(parts)-1]
}

func TestExecution_OutputIsBounded(t *testing.T) {
	ex := &Execution{maxLines: 3}
	for i := 0; i < 10; i++ {
		ex.appendOutput(OutputLine{Text: string(rune('a' + i))})
	}
	out := ex.Output()
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	if out[0].Text != "h" || out[2].Text != "j" {
		t.Errorf("kept %v, want last three lines", out)
	}
}

func TestShellEscape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "''"},
		{"simple", "simple"},
		{"path/to-file_1.txt", "path/to-file_1.txt"},
		{"two words", "'two words'"},
		{"it's", `'it'\''s'`},
		{"$HOME", "'$HOME'"},
	}
	for _, tt := range tests {
		if got := shellEscape(tt.in); got != tt.want {
			t.Errorf("shellEscape(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
