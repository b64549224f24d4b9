// Package history keeps the bounded audit trail of applied changes.
package history

import (
	"github.com/Sakeeb91/claim-mapper-sub003/domain/collab"
)

// DefaultCapacity is how many changes the log retains
const DefaultCapacity = 100

// Log is an append-only ring of the most recent changes. It is never a
// source of truth and is never replayed. Not safe for concurrent use.
type Log struct {
	buf   []collab.ChangeEvent
	start int
	size  int
	total uint64

	listeners []func(collab.ChangeEvent)
}

// New creates a log holding at most capacity entries
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{buf: make([]collab.ChangeEvent, capacity)}
}

// Subscribe registers fn to be called after every append
func (l *Log) Subscribe(fn func(collab.ChangeEvent)) {
	l.listeners = append(l.listeners, fn)
}

// Append records a copy of a change, evicting the oldest entry when full
func (l *Log) Append(e collab.ChangeEvent) {
	e = e.Clone()
	l.total++
	if l.size < len(l.buf) {
		l.buf[(l.start+l.size)%len(l.buf)] = e
		l.size++
	} else {
		l.buf[l.start] = e
		l.start = (l.start + 1) % len(l.buf)
	}
	for _, fn := range l.listeners {
		fn(e.Clone())
	}
}

// Len returns the number of retained entries
func (l *Log) Len() int {
	return l.size
}

// Capacity returns the maximum number of retained entries
func (l *Log) Capacity() int {
	return len(l.buf)
}

// Total returns how many changes were ever appended
func (l *Log) Total() uint64 {
	return l.total
}

// Entries returns copies of the retained changes, oldest first
func (l *Log) Entries() []collab.ChangeEvent {
	out := make([]collab.ChangeEvent, l.size)
	for i := 0; i < l.size; i++ {
		out[i] = l.buf[(l.start+i)%len(l.buf)].Clone()
	}
	return out
}

// Recent returns up to n of the newest changes, oldest first
func (l *Log) Recent(n int) []collab.ChangeEvent {
	if n <= 0 || n >= l.size {
		return l.Entries()
	}
	out := make([]collab.ChangeEvent, n)
	offset := l.size - n
	for i := 0; i < n; i++ {
		out[i] = l.buf[(l.start+offset+i)%len(l.buf)].Clone()
	}
	return out
}

// ForEntity returns the retained changes touching entityID, oldest first
func (l *Log) ForEntity(entityID string) []collab.ChangeEvent {
	var out []collab.ChangeEvent
	for _, e := range l.Entries() {
		if e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out
}
