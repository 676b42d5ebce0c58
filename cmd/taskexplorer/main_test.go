package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

const testMakefile = `.PHONY: build docker_build docker_push
build:
	@echo building
docker_build:
	@echo docker
docker_push:
	@echo push
`

func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Makefile"), []byte(testMakefile), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTreeCommand(t *testing.T) {
	dir := workspace(t)
	out, err := execute(t, "-w", dir, "--log-level", "error", "tree")
	if err != nil {
		t.Fatalf("tree: %v\n%s", err, out)
	}
	for _, want := range []string{"make (3 tasks)", "├── ", "build (make)", "docker (2 tasks)", "push (make)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTreeCommand_ProjectConfig(t *testing.T) {
	dir := workspace(t)
	cfgDir := filepath.Join(dir, ".taskexplorer")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := "[explorer]\ngroupByName = false\nexpansion = \"collapsed\"\n"
	if err := os.WriteFile(filepath.Join(cfgDir, "config.toml"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "-w", dir, "--log-level", "error", "tree", "--collapsed")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "⚒ make (3 tasks)" {
		t.Errorf("collapsed output = %q", out)
	}

	out, err = execute(t, "-w", dir, "--log-level", "error", "tree")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "docker (2 tasks)") || !strings.Contains(out, "docker_build") {
		t.Errorf("name grouping should be off:\n%s", out)
	}
}

func TestInitCommand(t *testing.T) {
	dir := workspace(t)
	out, err := execute(t, "-w", dir, "init")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, ".taskexplorer", "tasks.json")
	if !strings.Contains(out, path) {
		t.Errorf("output = %q", out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "-w", dir, "init"); !errors.Is(err, os.ErrExist) {
		t.Errorf("second init err = %v, want ErrExist", err)
	}
}

func TestRunCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs make and a POSIX shell")
	}
	dir := workspace(t)
	if _, err := os.Stat("/usr/bin/make"); err != nil {
		t.Skip("make not installed")
	}

	out, err := execute(t, "-w", dir, "--log-level", "error", "run", "make:build")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "building") {
		t.Errorf("output = %q", out)
	}
}

func TestRunCommand_UnknownTask(t *testing.T) {
	dir := workspace(t)
	_, err := execute(t, "-w", dir, "--log-level", "error", "run", "nope")
	if err == nil || !strings.Contains(err.Error(), `"nope" not found`) {
		t.Errorf("err = %v", err)
	}
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "version")
	if err == nil {
		t.Error("expected an error for an unknown log level")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "taskexplorer dev") {
		t.Errorf("output = %q", out)
	}
}

func TestFindLeaf(t *testing.T) {
	dir := workspace(t)
	a, err := newApp(context.Background(), &globalOptions{Workspace: dir, LogLevel: "error"}, true)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	ctx := context.Background()

	for _, target := range []string{"make:docker_push", "docker_push"} {
		leaf, err := findLeaf(ctx, a.explorer, target)
		if err != nil {
			t.Fatalf("%s: %v", target, err)
		}
		if leaf.Task.Identity() != "make:docker_push" {
			t.Errorf("%s: found %s", target, leaf.Task.Identity())
		}
	}
}

func TestStopAfterRefresh(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs make and a POSIX shell")
	}
	if _, err := os.Stat("/usr/bin/make"); err != nil {
		t.Skip("make not installed")
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Makefile"), []byte("serve:\n\tsleep 30\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	ctx := context.Background()
	a, err := newApp(ctx, &globalOptions{Workspace: dir, LogLevel: "error"}, true)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	leaf, err := findLeaf(ctx, a.explorer, "make:serve")
	if err != nil {
		t.Fatal(err)
	}
	exec := a.explorer.RunTask(ctx, leaf)
	if exec == nil {
		t.Fatal("RunTask returned no execution")
	}

	a.explorer.Refresh()
	again, err := findLeaf(ctx, a.explorer, "make:serve")
	if err != nil {
		t.Fatal(err)
	}
	if again.Task != leaf.Task {
		t.Error("refresh replaced an unchanged task")
	}

	a.explorer.StopTask(again)
	if a.explorer.IsTaskRunning(again.Task) {
		t.Error("task still marked running after stop")
	}
	select {
	case <-exec.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("stopped task did not end")
	}
	if n := len(a.executor.Running()); n != 0 {
		t.Errorf("%d executions still running", n)
	}
}
