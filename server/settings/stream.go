package settings

import "sync"

// actionBufferSize bounds the number of undelivered actions per consumer.
const actionBufferSize = 32

// stateHolder keeps the latest UiState and fans it out to subscribers. Each
// subscriber channel holds at most one pending snapshot; a newer snapshot
// replaces an unread older one, so a reader never sees a stale value after a
// fresh one.
type stateHolder struct {
	mu      sync.Mutex
	current UiState
	subs    map[int]chan UiState
	nextID  int
	closed  bool
}

func newStateHolder() *stateHolder {
	return &stateHolder{
		subs: make(map[int]chan UiState),
	}
}

func (h *stateHolder) get() UiState {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.current
}

// update replaces the snapshot with fn(current) and publishes it.
// It is a no-op once the holder is closed.
func (h *stateHolder) update(fn func(UiState) UiState) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.current = fn(h.current)
	for _, ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		ch <- h.current
	}
}

// subscribe returns a channel that immediately holds the current snapshot.
func (h *stateHolder) subscribe() (<-chan UiState, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan UiState, 1)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	ch <- h.current

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
}

func (h *stateHolder) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// actionStream delivers actions in order to the single attached consumer.
// Actions emitted while no consumer is attached are dropped, never replayed.
type actionStream struct {
	mu       sync.Mutex
	consumer chan Action
	closed   bool
}

// attach replaces the current consumer. The previous consumer's channel is closed.
func (s *actionStream) attach() (<-chan Action, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Action, actionBufferSize)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	if s.consumer != nil {
		close(s.consumer)
	}
	s.consumer = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.consumer == ch {
			close(ch)
			s.consumer = nil
		}
	}
}

// emit delivers a to the attached consumer without blocking. It reports whether
// the action was delivered.
func (s *actionStream) emit(a Action) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.consumer == nil {
		return false
	}

	select {
	case s.consumer <- a:
		return true
	default:
		return false
	}
}

func (s *actionStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.consumer != nil {
		close(s.consumer)
		s.consumer = nil
	}
}
