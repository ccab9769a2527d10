package dispatch

import (
	"context"
	"sync"
)

// SeenStore remembers event ids for duplicate suppression.
type SeenStore interface {
	// MarkSeen records an id and reports whether it was already present.
	MarkSeen(ctx context.Context, id string) (bool, error)
}

// DefaultSeenCapacity bounds the in-memory seen set.
const DefaultSeenCapacity = 4096

// MemorySeen is a bounded in-memory seen set with oldest-entry eviction.
type MemorySeen struct {
	mu       sync.Mutex
	capacity int
	set      map[string]struct{}
	order    []string
}

// NewMemorySeen creates a seen set holding at most capacity ids.
func NewMemorySeen(capacity int) *MemorySeen {
	if capacity <= 0 {
		capacity = DefaultSeenCapacity
	}
	return &MemorySeen{
		capacity: capacity,
		set:      make(map[string]struct{}, capacity),
	}
}

func (m *MemorySeen) MarkSeen(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.set[id]; ok {
		return true, nil
	}

	if len(m.order) >= m.capacity {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.set, oldest)
	}
	m.set[id] = struct{}{}
	m.order = append(m.order, id)
	return false, nil
}
