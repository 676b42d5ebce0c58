package explorer

import (
	"testing"
	"time"

	"github.com/dshills/taskexplorer/internal/task"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func TestRunState_IdentityIsStructural(t *testing.T) {
	r := NewRunState()

	a := tk(task.TypeNPM, "build")
	b := tk(task.TypeNPM, "build")
	other := tk(task.TypeMake, "build")

	r.MarkRunning(a)
	if !r.IsRunning(b) {
		t.Error("distinct Task value with same identity should report running")
	}
	if r.IsRunning(other) {
		t.Error("same name under another type must not be running")
	}

	untyped := tk("", "x")
	r.MarkRunning(untyped)
	if !r.IsRunning(tk(task.TypeOther, "x")) {
		t.Error("empty type should resolve to other")
	}
}

func TestRunState_MarkStoppedKeepsLastRun(t *testing.T) {
	clock := &stepClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := NewRunState(WithClock(clock.now))
	x := tk(task.TypeShell, "deploy")

	if _, ok := r.LastRun(x); ok {
		t.Fatal("LastRun should be absent before any run")
	}

	r.MarkRunning(x)
	started, _ := r.LastRun(x)

	r.MarkStopped(x)
	if r.IsRunning(x) {
		t.Error("IsRunning after MarkStopped")
	}
	if at, ok := r.LastRun(x); !ok || !at.Equal(started) {
		t.Errorf("LastRun after stop = %v, %v; want %v", at, ok, started)
	}
}

func TestRunState_NotifiesEveryMutation(t *testing.T) {
	clock := &stepClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	var notified []string
	r := NewRunState(WithClock(clock.now), OnChange(func(t *task.Task) {
		notified = append(notified, t.Identity())
	}))
	x := tk(task.TypeShell, "serve")

	r.MarkRunning(x)
	first, _ := r.LastRun(x)
	r.MarkRunning(x)
	second, _ := r.LastRun(x)
	r.MarkStopped(x)
	r.MarkStopped(tk(task.TypeShell, "never-started"))

	if len(notified) != 4 {
		t.Errorf("notifications = %v, want 4", notified)
	}
	if !second.After(first) {
		t.Error("duplicate MarkRunning should re-stamp last run")
	}
}

func TestRunState_Running(t *testing.T) {
	r := NewRunState()
	r.MarkRunning(tk(task.TypeNPM, "b"))
	r.MarkRunning(tk(task.TypeMake, "a"))
	r.MarkRunning(tk(task.TypeNPM, "c"))
	r.MarkStopped(tk(task.TypeNPM, "c"))

	got := r.Running()
	want := []string{"make:a", "npm:b"}
	if !sameStrings(got, want) {
		t.Errorf("Running() = %v, want %v", got, want)
	}
}
