package collection

import "sync"

// Hub tracks live subscribers per collection path. Publish marks every
// subscriber of a path dirty; the signal is coalesced because each delivery
// reloads a full snapshot.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*subscriber]struct{}
	closed      bool
	done        chan struct{}
}

type subscriber struct {
	hub   *Hub
	path  string
	dirty chan struct{}
	done  chan struct{}
	once  sync.Once

	// evicted is set before done closes when the hub, not the subscriber,
	// ended the subscription.
	evicted bool
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[*subscriber]struct{}),
		done:        make(chan struct{}),
	}
}

func (h *Hub) add(path string) (*subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}

	sub := &subscriber{
		hub:   h,
		path:  path,
		dirty: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	if h.subscribers[path] == nil {
		h.subscribers[path] = make(map[*subscriber]struct{})
	}
	h.subscribers[path][sub] = struct{}{}
	return sub, nil
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[sub.path]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.subscribers, sub.path)
	}
}

func (h *Hub) Publish(path string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers[path] {
		sub.markDirty()
	}
}

func (h *Hub) SubscriberCount(path string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[path])
}

// Close stops every subscriber. Later subscriptions fail with ErrClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	subs := h.subscribers
	h.subscribers = make(map[string]map[*subscriber]struct{})
	h.closed = true
	close(h.done)
	h.mu.Unlock()

	for _, byPath := range subs {
		for sub := range byPath {
			sub.stopWith(true)
		}
	}
}

// Done is closed once the hub is closed.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (s *subscriber) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// unsubscribe is safe to call any number of times.
func (s *subscriber) unsubscribe() {
	s.hub.remove(s)
	s.stopWith(false)
}

// stopWith ends the subscription once. The first caller decides evicted.
func (s *subscriber) stopWith(evicted bool) {
	s.once.Do(func() {
		s.evicted = evicted
		close(s.done)
	})
}

func (s *subscriber) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
