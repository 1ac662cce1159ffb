package router

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultHistorySize = 100

// History is a fixed-capacity, insertion-ordered record of envelopes.  Entries are
// never looked up through the cache, so recency order is insertion order and the
// cache's eviction drops the oldest envelope first.
type History struct {
	mu       sync.Mutex
	seq      uint64
	capacity int
	entries  *lru.Cache[uint64, Envelope]
}

func NewHistory(capacity int) (*History, error) {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}

	entries, err := lru.New[uint64, Envelope](capacity)
	if err != nil {
		return nil, err
	}

	return &History{capacity: capacity, entries: entries}, nil
}

func (h *History) Append(e Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	h.entries.Add(h.seq, e)
}

// Entries returns a copy of the history, oldest first.
func (h *History) Entries() []Envelope {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.entries.Values()
}

func (h *History) Len() int {
	return h.entries.Len()
}

func (h *History) Capacity() int {
	return h.capacity
}
