package feed

import (
	"sync"
	"time"

	"github.com/unclebandit/clickreward-backend/internal/model"
)

// Publisher is the write side of the hub, used by services.
type Publisher interface {
	Publish(ev model.Event)
}

// Hub fans activity events out to live subscribers and keeps a capped history.
// Slow subscribers miss events instead of blocking publishers.
type Hub struct {
	mu       sync.RWMutex
	subs     map[int]chan model.Event
	nextID   int
	recent   []model.Event // ring buffer, oldest at head once full
	head     int
	capacity int
	now      func() time.Time
}

func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 50
	}
	return &Hub{
		subs:     map[int]chan model.Event{},
		recent:   make([]model.Event, 0, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

func (h *Hub) Publish(ev model.Event) {
	if ev.At.IsZero() {
		ev.At = h.now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.recent) < h.capacity {
		h.recent = append(h.recent, ev)
	} else {
		h.recent[h.head] = ev
		h.head = (h.head + 1) % h.capacity
	}

	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe returns a buffered event channel and a cancel func that closes it.
func (h *Hub) Subscribe(buffer int) (<-chan model.Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan model.Event, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Recent returns up to n events, newest first.
func (h *Hub) Recent(n int) []model.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	size := len(h.recent)
	if n <= 0 || n > size {
		n = size
	}
	out := make([]model.Event, 0, n)
	for i := 0; i < n; i++ {
		// index of the i-th newest element
		idx := (h.head + size - 1 - i) % size
		out = append(out, h.recent[idx])
	}
	return out
}

func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

var _ Publisher = (*Hub)(nil)
