package explorer

import (
	"sort"
	"time"

	"github.com/dshills/taskexplorer/internal/task"
)

type runEntry struct {
	running   bool
	lastRunAt time.Time
}

// RunState tracks which task identities are running and when each last
// started. Entries are created on the first MarkRunning and never removed.
type RunState struct {
	entries  map[string]*runEntry
	now      func() time.Time
	onChange func(t *task.Task)
}

// RunStateOption configures a RunState.
type RunStateOption func(*RunState)

// WithClock sets the time source used for last-run stamps.
func WithClock(now func() time.Time) RunStateOption {
	return func(r *RunState) {
		if now != nil {
			r.now = now
		}
	}
}

// OnChange sets the hook called after every mutation.
func OnChange(fn func(t *task.Task)) RunStateOption {
	return func(r *RunState) { r.onChange = fn }
}

// NewRunState creates an empty tracker.
func NewRunState(opts ...RunStateOption) *RunState {
	r := &RunState{
		entries: make(map[string]*runEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsRunning reports whether the task's identity is marked running.
func (r *RunState) IsRunning(t *task.Task) bool {
	e, ok := r.entries[t.Identity()]
	return ok && e.running
}

// MarkRunning marks the task running and stamps its last run time. The
// change hook fires even when the task was already running.
func (r *RunState) MarkRunning(t *task.Task) {
	id := t.Identity()
	e, ok := r.entries[id]
	if !ok {
		e = &runEntry{}
		r.entries[id] = e
	}
	e.running = true
	e.lastRunAt = r.now()
	r.changed(t)
}

// MarkStopped clears the running flag, keeping the last run time.
func (r *RunState) MarkStopped(t *task.Task) {
	if e, ok := r.entries[t.Identity()]; ok {
		e.running = false
	}
	r.changed(t)
}

// LastRun returns when the task last started, if ever.
func (r *RunState) LastRun(t *task.Task) (time.Time, bool) {
	e, ok := r.entries[t.Identity()]
	if !ok {
		return time.Time{}, false
	}
	return e.lastRunAt, true
}

// Running returns the identities currently marked running, sorted.
func (r *RunState) Running() []string {
	var ids []string
	for id, e := range r.entries {
		if e.running {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (r *RunState) changed(t *task.Task) {
	if r.onChange != nil {
		r.onChange(t)
	}
}
