package sources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/taskexplorer/internal/task"
)

// DefaultLuaTimeout bounds evaluation of a tasks.lua file.
const DefaultLuaTimeout = 2 * time.Second

// LuaSource discovers user-defined tasks from .taskexplorer/tasks.lua.
//
// The script runs in a state with only the base, table, string and math
// libraries, with file loading functions removed, and must return a list:
//
//	return {
//	  { name = "deploy_prod", type = "shell", command = "./deploy.sh", args = { "prod" } },
//	  { name = "seed", command = "go run ./cmd/seed", env = { DB = "dev" } },
//	}
type LuaSource struct {
	timeout time.Duration
}

// NewLuaSource creates a tasks.lua source.
func NewLuaSource() *LuaSource {
	return &LuaSource{timeout: DefaultLuaTimeout}
}

// Name returns the source name.
func (s *LuaSource) Name() string { return "lua" }

// Patterns returns the file patterns this source handles.
func (s *LuaSource) Patterns() []string { return []string{"tasks.lua"} }

// Priority returns the source priority.
func (s *LuaSource) Priority() int { return 200 }

// Discover evaluates the script and converts the returned table to tasks.
func (s *LuaSource) Discover(ctx context.Context, path string) ([]*task.Task, error) {
	dir := filepath.Dir(path)
	if filepath.Base(dir) != WorkspaceDir {
		return nil, nil
	}
	root := filepath.Dir(dir)

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	L := newSandbox()
	defer L.Close()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	L.SetContext(ctx)

	fn, err := L.LoadString(string(src))
	if err != nil {
		return nil, err
	}
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		return nil, err
	}
	ret := L.Get(-1)
	L.Pop(1)

	list, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("tasks.lua must return a table, got %s", ret.Type())
	}

	var tasks []*task.Task
	for i := 1; i <= list.Len(); i++ {
		entry, ok := list.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("task %d: expected table, got %s", i, list.RawGetInt(i).Type())
		}

		name := lua.LVAsString(entry.RawGetString("name"))
		if name == "" {
			continue
		}
		typ := task.Type(lua.LVAsString(entry.RawGetString("type")))
		if typ == "" {
			typ = task.TypeShell
		}

		tasks = append(tasks, &task.Task{
			Name:        name,
			Type:        typ,
			Custom:      true,
			Description: lua.LVAsString(entry.RawGetString("description")),
			Command:     lua.LVAsString(entry.RawGetString("command")),
			Args:        luaStrings(entry.RawGetString("args")),
			Cwd:         resolveDir(root, lua.LVAsString(entry.RawGetString("cwd"))),
			Env:         luaStringMap(entry.RawGetString("env")),
		})
	}
	return tasks, nil
}

// newSandbox opens a state with the safe subset of the standard library.
func newSandbox() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

func luaStrings(v lua.LValue) []string {
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return nil
	}
	out := make([]string, 0, tbl.Len())
	for i := 1; i <= tbl.Len(); i++ {
		out = append(out, lua.LVAsString(tbl.RawGetInt(i)))
	}
	return out
}

func luaStringMap(v lua.LValue) map[string]string {
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return nil
	}
	out := make(map[string]string)
	tbl.ForEach(func(k, v lua.LValue) {
		out[lua.LVAsString(k)] = lua.LVAsString(v)
	})
	return out
}
