package task

import "testing"

func TestTask_Identity(t *testing.T) {
	tests := []struct {
		name string
		task *Task
		want string
	}{
		{"typed", &Task{Type: TypeNPM, Name: "build"}, "npm:build"},
		{"empty type", &Task{Name: "deploy"}, "other:deploy"},
		{"custom type", &Task{Type: "cargo", Name: "test"}, "cargo:test"},
		{"name with colon", &Task{Type: TypeMake, Name: "a:b"}, "make:a:b"},
		{"nil", nil, "other:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.task.Identity(); got != tt.want {
				t.Errorf("Identity() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTask_IdentityIsStructural(t *testing.T) {
	a := &Task{Type: TypeNPM, Name: "lint", Command: "npm"}
	b := &Task{Type: TypeNPM, Name: "lint", Command: "yarn", SourceFile: "/other/package.json"}

	if a == b {
		t.Fatal("test needs distinct instances")
	}
	if a.Identity() != b.Identity() {
		t.Errorf("identities differ: %q vs %q", a.Identity(), b.Identity())
	}
}

func TestTask_ResolvedType(t *testing.T) {
	if got := (&Task{}).ResolvedType(); got != TypeOther {
		t.Errorf("ResolvedType() = %q, want %q", got, TypeOther)
	}
	if got := (&Task{Type: TypeMake}).ResolvedType(); got != TypeMake {
		t.Errorf("ResolvedType() = %q, want %q", got, TypeMake)
	}
}
