package registry

import (
	"sync"
	"time"
)

const defaultHistoryCapacity = 100

// Record describes a task that left the registry.
type Record struct {
	ID        ID
	Namespace Namespace
	Group     string
	Label     string
	Reason    ClearReason
	At        time.Time
}

type history struct {
	mu    sync.Mutex
	items []Record
	head  int
	count int
}

func newHistory(capacity int) *history {
	if capacity < 0 {
		return &history{}
	}
	if capacity == 0 {
		capacity = defaultHistoryCapacity
	}
	return &history{items: make([]Record, capacity)}
}

func (h *history) add(record Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.items) == 0 {
		return
	}

	h.items[h.head] = record
	h.head = (h.head + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
}

// recent returns up to limit records, newest first.
func (h *history) recent(limit int) []Record {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return nil
	}

	if limit <= 0 || limit > h.count {
		limit = h.count
	}

	out := make([]Record, 0, limit)
	for i := range limit {
		idx := (h.head - 1 - i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}
