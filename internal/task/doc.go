// Package task discovers and runs workspace tasks.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                    Discovery                                     │
//	│  - Walks the workspace for task files                           │
//	│  - Hands each file to the highest-priority Source               │
//	│  - Returns one flat, name-sorted task list                      │
//	└─────────────────────────────────────────────────────────────────┘
//	                              │
//	                              ▼
//	┌─────────────────────────────────────────────────────────────────┐
//	│                    Executor                                      │
//	│  - Starts tasks as child processes in their own process group   │
//	│  - Hands back an Execution whose ID is the run's handle         │
//	│  - Reports start, output and end to ExecutionListeners          │
//	└─────────────────────────────────────────────────────────────────┘
//
// # Identity
//
// A Task's Identity is "type:name", with an empty type resolved to "other".
// Every discovery pass allocates new Task values, so anything that tracks a
// task across passes must key on Identity rather than on the pointer.
//
// # Usage
//
//	discovery := task.NewDiscovery(
//	    task.WithSource(sources.NewMakefileSource()),
//	    task.WithSource(sources.NewPackageJSONSource()),
//	)
//	fetcher := discovery.Fetcher(task.DefaultDiscoveryOptions(root))
//	tasks, err := fetcher.FetchTasks(ctx)
//
//	executor := task.NewExecutor(task.DefaultExecutorConfig(), log)
//	exec, err := executor.Execute(ctx, tasks[0])
//	<-exec.Done()
//
// # Subpackages
//
//   - sources: Makefile, package.json, Taskfile, tasks.json and tasks.lua sources
package task
