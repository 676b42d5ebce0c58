package notify

import "testing"

func TestChangeType_String(t *testing.T) {
	tests := []struct {
		c    ChangeType
		want string
	}{
		{ChangeTree, "tree"},
		{ChangeReload, "reload"},
		{ChangeType(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.c.String(); got != tt.want {
			t.Errorf("ChangeType(%d).String() = %q, want %q", tt.c, got, tt.want)
		}
	}
}

func TestNotifier_DeliversInSubscriptionOrder(t *testing.T) {
	n := New()
	var order []int

	n.Subscribe(func(Change) { order = append(order, 1) })
	n.Subscribe(func(Change) { order = append(order, 2) })
	n.Subscribe(func(Change) { order = append(order, 3) })

	n.NotifyTree("test")

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("order = %v, want [1 2 3]", order)
	}
}

func TestNotifier_ChangePayload(t *testing.T) {
	n := New()
	var got Change
	n.Subscribe(func(c Change) { got = c })

	n.NotifyReload("config")

	if got.Type != ChangeReload || got.Source != "config" {
		t.Errorf("got %+v", got)
	}
}

func TestSubscription_Unsubscribe(t *testing.T) {
	n := New()
	calls := 0
	sub := n.Subscribe(func(Change) { calls++ })

	n.NotifyTree("a")
	sub.Unsubscribe()
	sub.Unsubscribe()
	n.NotifyTree("b")

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if n.Len() != 0 {
		t.Errorf("Len() = %d, want 0", n.Len())
	}
}

func TestNotifier_ObserverMaySubscribe(t *testing.T) {
	n := New()
	n.Subscribe(func(Change) {
		n.Subscribe(func(Change) {})
	})

	n.NotifyTree("x")

	if n.Len() != 2 {
		t.Errorf("Len() = %d, want 2", n.Len())
	}
}

func TestNotifier_Close(t *testing.T) {
	n := New()
	calls := 0
	n.Subscribe(func(Change) { calls++ })

	n.Close()
	n.Close()
	n.NotifyTree("after close")

	if calls != 0 {
		t.Errorf("calls = %d after Close, want 0", calls)
	}
}
