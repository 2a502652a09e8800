package activity

import (
	"context"
	"sync"
)

// DefaultMemoryCapacity bounds a Memory recorder created with capacity <= 0.
const DefaultMemoryCapacity = 1000

// Memory keeps the most recent events in a fixed-size ring.
type Memory struct {
	mu     sync.Mutex
	events []Event
	next   int
	full   bool
}

var _ Recorder = (*Memory)(nil)

// NewMemory returns a ring holding at most capacity events.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &Memory{events: make([]Event, capacity)}
}

func (m *Memory) Record(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events[m.next] = e
	m.next = (m.next + 1) % len(m.events)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

func (m *Memory) Recent(_ context.Context, q Query) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.next
	if m.full {
		n = len(m.events)
	}

	out := make([]Event, 0)
	for i := 1; i <= n; i++ {
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
		e := m.events[(m.next-i+len(m.events))%len(m.events)]
		if q.matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) Close() {}
