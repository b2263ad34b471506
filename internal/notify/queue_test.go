package notify

import (
	"testing"
	"time"
)

func ids(notes []Notification) []int64 {
	out := make([]int64, len(notes))
	for i, n := range notes {
		out[i] = n.ID
	}
	return out
}

func TestPushAssignsDistinctIDsInOrder(t *testing.T) {
	q := New(time.Minute, nil)

	seen := map[int64]bool{}
	for i := 0; i < 50; i++ {
		id := q.Push("msg", Info)
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}

	notes := q.Snapshot()
	if len(notes) != 50 {
		t.Fatalf("snapshot len = %d, want 50", len(notes))
	}
	for i := 1; i < len(notes); i++ {
		if notes[i].ID <= notes[i-1].ID {
			t.Fatalf("snapshot not in insertion order at %d: %v", i, ids(notes))
		}
	}
}

func TestDismissAndExpiryCommute(t *testing.T) {
	q := New(30*time.Millisecond, nil)

	// Dismiss before expiry, then let the timer fire anyway.
	id := q.Push("early dismissal", Warning)
	q.Dismiss(id)
	if got := len(q.Snapshot()); got != 0 {
		t.Fatalf("after dismiss: %d entries, want 0", got)
	}
	time.Sleep(60 * time.Millisecond)
	if got := len(q.Snapshot()); got != 0 {
		t.Fatalf("expiry after dismiss resurrected entry (%d entries)", got)
	}

	// Expiry first, then a late dismiss.
	id = q.Push("expires naturally", Info)
	time.Sleep(60 * time.Millisecond)
	if got := len(q.Snapshot()); got != 0 {
		t.Fatalf("entry outlived its TTL (%d entries)", got)
	}
	q.Dismiss(id) // must be a no-op
	if got := len(q.Snapshot()); got != 0 {
		t.Fatalf("late dismiss broke queue (%d entries)", got)
	}
}

func TestTimersAreIndependent(t *testing.T) {
	q := New(80*time.Millisecond, nil)

	first := q.Push("first", Info)
	time.Sleep(50 * time.Millisecond)
	second := q.Push("second", Info)

	// First expires, second still within its own TTL.
	time.Sleep(60 * time.Millisecond)
	notes := q.Snapshot()
	if len(notes) != 1 || notes[0].ID != second {
		t.Fatalf("want only second (%d) alive, got %v", second, ids(notes))
	}
	_ = first

	time.Sleep(60 * time.Millisecond)
	if got := len(q.Snapshot()); got != 0 {
		t.Fatalf("second never expired (%d entries)", got)
	}
}

func TestDismissMiddleKeepsOrder(t *testing.T) {
	q := New(time.Minute, nil)
	a := q.Push("a", Info)
	b := q.Push("b", Info)
	c := q.Push("c", Info)

	q.Dismiss(b)

	got := ids(q.Snapshot())
	if len(got) != 2 || got[0] != a || got[1] != c {
		t.Fatalf("after dismissing middle: %v, want [%d %d]", got, a, c)
	}
}

func TestOnChangeFires(t *testing.T) {
	fired := make(chan struct{}, 16)
	q := New(20*time.Millisecond, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})

	q.Push("hello", Success)
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatalf("no change signal on push")
	}

	// Expiry fires the hook too.
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatalf("no change signal on expiry")
	}
}

func TestClearStopsEverything(t *testing.T) {
	q := New(time.Minute, nil)
	q.Push("a", Info)
	q.Push("b", Info)
	q.Clear()
	if got := len(q.Snapshot()); got != 0 {
		t.Fatalf("clear left %d entries", got)
	}
}
