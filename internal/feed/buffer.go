package feed

import "sync"

// Buffer keeps the most recent events, newest first. It is written by the
// collector goroutine and read by HTTP handlers, so access is guarded.
type Buffer struct {
	mu     sync.RWMutex
	events []Event
	cap    int
}

// NewBuffer creates a buffer holding at most capacity events.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 50
	}
	return &Buffer{cap: capacity}
}

// Push appends an event, evicting the oldest when the buffer is full.
// Duplicate events are kept; eviction is strictly by arrival order.
func (b *Buffer) Push(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, evt)
	if len(b.events) > b.cap {
		// Drop the oldest; shift rather than reslice so the backing
		// array does not grow without bound.
		copy(b.events, b.events[1:])
		b.events = b.events[:b.cap]
	}
}

// Snapshot returns the buffered events newest first.
func (b *Buffer) Snapshot() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Event, len(b.events))
	for i, evt := range b.events {
		out[len(b.events)-1-i] = evt
	}
	return out
}

// Len reports the number of buffered events.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}
