package chat

import "sync"

// State describes the lifecycle of the realtime connection.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// handlers is the callback registry for one event type. Register
// returns a disposer that removes exactly the registered callback, so
// a screen can unsubscribe on unmount without disturbing other
// subscribers to the same event.
type handlers[T any] struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(T)
}

func (h *handlers[T]) register(fn func(T)) func() {
	h.mu.Lock()
	if h.fns == nil {
		h.fns = make(map[int]func(T))
	}
	id := h.nextID
	h.nextID++
	h.fns[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.fns, id)
			h.mu.Unlock()
		})
	}
}

func (h *handlers[T]) emit(v T) {
	h.mu.Lock()
	fns := make([]func(T), 0, len(h.fns))
	for _, fn := range h.fns {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// seenSet is a bounded FIFO set of message IDs used to drop duplicate
// deliveries, e.g. reconnect replays. When full, the oldest entry is
// evicted first.
type seenSet struct {
	limit int
	order []string
	ids   map[string]struct{}
}

func newSeenSet(limit int) *seenSet {
	return &seenSet{
		limit: limit,
		ids:   make(map[string]struct{}, limit),
	}
}

// observe records the ID and reports whether it was new.
func (s *seenSet) observe(id string) bool {
	if _, dup := s.ids[id]; dup {
		return false
	}
	if len(s.order) >= s.limit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.ids, oldest)
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}
