// Package notify is the transient notification feed: every entry expires on
// its own timer, independently of the rest of the queue.
package notify

import (
	"sync"
	"time"
)

// DefaultTTL is how long a notification stays visible unless dismissed.
const DefaultTTL = 5 * time.Second

type Severity string

const (
	Info    Severity = "info"
	Success Severity = "success"
	Warning Severity = "warning"
	Error   Severity = "error"
)

type Notification struct {
	ID        int64
	Message   string
	Severity  Severity
	CreatedAt time.Time
}

type entry struct {
	note  Notification
	timer *time.Timer
}

// Queue holds notifications in insertion order. Expiry timers fire on their
// own goroutines, so all access goes through the mutex. Removal by id is
// idempotent: timer expiry and explicit dismissal commute.
type Queue struct {
	mu       sync.Mutex
	ttl      time.Duration
	nextID   int64
	entries  []*entry
	onChange func()
}

// New builds a queue with the given TTL (DefaultTTL if zero). onChange, if
// non-nil, is called after every mutation, outside the lock.
func New(ttl time.Duration, onChange func()) *Queue {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Queue{ttl: ttl, onChange: onChange}
}

// Push appends a notification and schedules its expiry. Returns the assigned
// id, unique for the queue's lifetime.
func (q *Queue) Push(message string, severity Severity) int64 {
	q.mu.Lock()
	q.nextID++
	id := q.nextID
	e := &entry{note: Notification{
		ID:        id,
		Message:   message,
		Severity:  severity,
		CreatedAt: time.Now(),
	}}
	e.timer = time.AfterFunc(q.ttl, func() { q.remove(id) })
	q.entries = append(q.entries, e)
	q.mu.Unlock()

	q.changed()
	return id
}

// Dismiss removes the entry early and cancels its timer. No-op if the entry
// already expired.
func (q *Queue) Dismiss(id int64) {
	q.remove(id)
}

func (q *Queue) remove(id int64) {
	q.mu.Lock()
	removed := false
	for i, e := range q.entries {
		if e.note.ID == id {
			e.timer.Stop()
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			removed = true
			break
		}
	}
	q.mu.Unlock()

	if removed {
		q.changed()
	}
}

// Snapshot returns the live notifications, oldest first.
func (q *Queue) Snapshot() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Notification, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.note
	}
	return out
}

// Clear drops everything and stops all timers.
func (q *Queue) Clear() {
	q.mu.Lock()
	for _, e := range q.entries {
		e.timer.Stop()
	}
	cleared := len(q.entries) > 0
	q.entries = nil
	q.mu.Unlock()

	if cleared {
		q.changed()
	}
}

func (q *Queue) changed() {
	if q.onChange != nil {
		q.onChange()
	}
}
