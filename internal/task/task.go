package task

// Type is the declared kind of a task (the build tool or runner it belongs to).
type Type string

const (
	// TypeShell is a shell command task.
	TypeShell Type = "shell"
	// TypeProcess runs a binary directly, without a shell.
	TypeProcess Type = "process"
	// TypeNPM is a package.json script.
	TypeNPM Type = "npm"
	// TypeMake is a Makefile target.
	TypeMake Type = "make"
	// TypeTaskfile is a go-task Taskfile entry.
	TypeTaskfile Type = "task"
	// TypeOther is the resolved type of a task that declares none.
	TypeOther Type = "other"
)

// Task is a discovered task that can be executed.
//
// Two Task values describing the same logical task may exist at once (every
// discovery pass produces fresh values). Compare them with Identity, not by
// pointer, when the question is "is this the same task".
type Task struct {
	// Name is the display name of the task.
	Name string `json:"name"`

	// Type is the declared task type. Empty means "other".
	Type Type `json:"type,omitempty"`

	// Custom is set for tasks declared by the user in a workspace task
	// file rather than derived from a build tool's own manifest.
	Custom bool `json:"custom,omitempty"`

	// Description is a human-readable description.
	Description string `json:"description,omitempty"`

	// Source names the discovery source that produced the task.
	Source string `json:"source,omitempty"`

	// SourceFile is the file the task was found in.
	SourceFile string `json:"sourceFile,omitempty"`

	// Command is the executable or shell command line.
	Command string `json:"command"`

	// Args are the command arguments.
	Args []string `json:"args,omitempty"`

	// Cwd is the working directory.
	Cwd string `json:"cwd,omitempty"`

	// Env holds extra environment variables.
	Env map[string]string `json:"env,omitempty"`
}

// ResolvedType returns the declared type, or TypeOther when none is declared.
func (t *Task) ResolvedType() Type {
	if t == nil || t.Type == "" {
		return TypeOther
	}
	return t.Type
}

// Identity returns the structural key "type:name" used for run-state lookups.
// Identical (type, name) pairs always produce identical identities.
func (t *Task) Identity() string {
	if t == nil {
		return string(TypeOther) + ":"
	}
	return string(t.ResolvedType()) + ":" + t.Name
}

// String implements fmt.Stringer.
func (t *Task) String() string {
	return t.Identity()
}
