// Package explorer turns a flat task list into a grouped, lazily
// materialized tree and tracks which tasks are running.
//
// # Architecture
//
//	┌─────────────┐  FetchTasks   ┌──────────┐  TypeGroups / *Children  ┌─────────┐
//	│ TaskSource  │ ────────────► │   Tree   │ ───────────────────────► │ Grouper │
//	└─────────────┘               └──────────┘                          └─────────┘
//	                                │  ▲   │ Item (status, last run)
//	                 Reveal /       │  │   ▼
//	                 CollapseAll    │  │ ┌──────────┐  MarkRunning/Stopped  ┌────────┐
//	┌─────────────┐ ◄───────────────┘  │ │ RunState │ ◄──────────────────── │ Bridge │
//	│    View     │ ── Children/Parent ┘ └──────────┘                       └────────┘
//	└─────────────┘                           │ change                          │
//	       ▲                                  ▼                           Execute/Terminate
//	       └──────────── notify.ChangeTree ◄──┘                                 ▼
//	                                                                      ┌──────────┐
//	                                                                      │ Executor │
//	                                                                      └──────────┘
//
// The tree has exactly three levels below the root: type groups, optional
// name-prefix subgroups, and task leaves. Nodes are created on demand each
// time a view asks for children; the tree keeps only a parent index for the
// nodes it last handed out, so Parent works for any node the view has seen.
//
// Run state is keyed by task identity ("type:name"), so any two Task values
// for the same logical task report the same state. The execution bridge, by
// contrast, matches a stop request to the exact Task value it started.
//
// # Concurrency
//
// Tree, RunState, Bridge and Explorer are not safe for concurrent use. Drive
// them from one event loop and forward executor completions onto that loop
// before calling ProcessEnded.
//
// # Usage
//
//	exp := explorer.New(fetcher, cfg, exec, explorer.WithLogger(log))
//	exp.SetView(view)
//	exp.SetMessenger(view)
//	exp.Subscribe(func(notify.Change) { view.Redraw() })
//
//	roots, err := exp.Children(ctx, nil)
//	exp.RunTask(ctx, leaf)
package explorer
