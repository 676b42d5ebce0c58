// Package notify delivers change notifications between taskexplorer components.
//
// The explorer publishes a ChangeTree event whenever the rendered tree may
// have changed (run state moved, refresh, expand/collapse-all), and the
// configuration watcher publishes ChangeReload after settings are reloaded.
// Views subscribe and re-query the tree on delivery.
package notify

import (
	"sort"
	"sync"
)

// ChangeType identifies what changed.
type ChangeType int

const (
	// ChangeTree means the whole tree should be re-queried.
	ChangeTree ChangeType = iota

	// ChangeReload means configuration was reloaded.
	ChangeReload
)

// String returns the change type name.
func (c ChangeType) String() string {
	switch c {
	case ChangeTree:
		return "tree"
	case ChangeReload:
		return "reload"
	default:
		return "unknown"
	}
}

// Change is a single notification.
type Change struct {
	// Type is the kind of change.
	Type ChangeType

	// Source names the component that raised the change.
	Source string
}

// Observer receives changes.
type Observer func(change Change)

// Subscription is an active observer registration.
type Subscription struct {
	id       uint64
	notifier *Notifier
}

// Unsubscribe removes the observer. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s != nil && s.notifier != nil {
		s.notifier.unsubscribe(s.id)
	}
}

// Notifier fans changes out to observers synchronously, in subscription order.
type Notifier struct {
	mu        sync.RWMutex
	observers map[uint64]Observer
	nextID    uint64
	closed    bool
}

// New creates a Notifier.
func New() *Notifier {
	return &Notifier{
		observers: make(map[uint64]Observer),
	}
}

// Subscribe registers an observer for every change.
func (n *Notifier) Subscribe(observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.observers[id] = observer

	return &Subscription{id: id, notifier: n}
}

// Notify delivers a change. Observers run outside the lock so they may
// subscribe or unsubscribe.
func (n *Notifier) Notify(change Change) {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return
	}
	ids := make([]uint64, 0, len(n.observers))
	for id := range n.observers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	observers := make([]Observer, 0, len(ids))
	for _, id := range ids {
		observers = append(observers, n.observers[id])
	}
	n.mu.RUnlock()

	for _, obs := range observers {
		obs(change)
	}
}

// NotifyTree is a convenience for ChangeTree.
func (n *Notifier) NotifyTree(source string) {
	n.Notify(Change{Type: ChangeTree, Source: source})
}

// NotifyReload is a convenience for ChangeReload.
func (n *Notifier) NotifyReload(source string) {
	n.Notify(Change{Type: ChangeReload, Source: source})
}

// Len returns the number of active observers.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.observers)
}

// Close stops delivery. It is safe to call Close multiple times.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.observers = make(map[uint64]Observer)
}

func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.observers, id)
}
