package store

import (
	"sync"
)

const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// Subscribers receive events via buffered channels (buffer size 100). Events
// are sent non-blocking; if a subscriber's buffer is full, the event is
// dropped for that subscriber to prevent blocking the polling loops.
type MemoryStore struct {
	mu     sync.RWMutex
	status *Status
	frame  *Frame

	subMu       sync.RWMutex
	subscribers map[chan Event]struct{}

	// watchMu serializes watcher calls. It is never held while subMu or mu
	// is held, so a watcher may call back into code that updates the store.
	watchMu  sync.Mutex
	watchers []func(int)
}

// NewMemoryStore creates a new in-memory [Store] implementation.
//
// The store is immediately ready for use. No cleanup is required when done.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscribers: make(map[chan Event]struct{}),
	}
}

// UpdateStatus stores s and notifies all subscribers.
func (m *MemoryStore) UpdateStatus(s Status) {
	s.Fields = append(s.Fields[:0:0], s.Fields...)

	m.mu.Lock()
	m.status = &s
	m.mu.Unlock()

	m.notifySubscribers(Event{Type: EventStatus, Status: &s})
}

// UpdateFrame stores f and notifies all subscribers.
func (m *MemoryStore) UpdateFrame(f Frame) {
	m.mu.Lock()
	m.frame = &f
	m.mu.Unlock()

	m.notifySubscribers(Event{Type: EventFrame, Frame: &f})
}

// Status returns a copy of the stored status.
func (m *MemoryStore) Status() (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.status == nil {
		return Status{}, false
	}
	s := *m.status
	s.Fields = append(s.Fields[:0:0], s.Fields...)
	return s, true
}

// Frame returns the stored frame. The body is shared and must not be
// modified.
func (m *MemoryStore) Frame() (Frame, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.frame == nil {
		return Frame{}, false
	}
	return *m.frame, true
}

// Subscribe creates a new subscription and returns a channel for receiving
// events.
//
// The returned channel has a buffer of 100 messages. If the buffer fills
// (slow consumer), new events are dropped for this subscriber.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Event {
	ch := make(chan Event, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	m.notifyWatchers()
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// After calling Unsubscribe, the channel will be closed and no further
// events will be sent. Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Event) {
	removed := false

	m.subMu.Lock()
	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			removed = true
			break
		}
	}
	m.subMu.Unlock()

	if removed {
		m.notifyWatchers()
	}
}

// Subscribers returns the number of active subscriptions.
func (m *MemoryStore) Subscribers() int {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	return len(m.subscribers)
}

// WatchSubscribers registers fn. It is not called for the current count.
func (m *MemoryStore) WatchSubscribers(fn func(count int)) {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	m.watchers = append(m.watchers, fn)
}

// notifyWatchers reads the count inside watchMu so that the last call any
// watcher sees always carries the current count.
func (m *MemoryStore) notifyWatchers() {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()

	if len(m.watchers) == 0 {
		return
	}
	n := m.Subscribers()
	for _, fn := range m.watchers {
		fn(n)
	}
}

// notifySubscribers sends the event to all active subscribers.
//
// This is non-blocking: if a subscriber's channel buffer is full, the event
// is dropped for that subscriber rather than blocking the update path.
func (m *MemoryStore) notifySubscribers(ev Event) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- ev:
		default:
			// subscriber is slow, drop the message
		}
	}
}
