package server

import "sync"

// Event kinds sent to subscribers.
const (
	EventReload       = "reload"
	EventReloadFailed = "reload_failed"
)

// Event describes a change of the registered tables.
type Event struct {
	Kind   string `json:"kind"`
	File   string `json:"file,omitempty"`
	Tables int    `json:"tables"`
	Error  string `json:"error,omitempty"`
}

// Notifier fans events out to subscribers. A subscriber that has not
// consumed its previous event misses the next one.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan Event]struct{}
}

// NewNotifier creates a notifier without subscribers.
func NewNotifier() *Notifier {
	return &Notifier{
		listeners: make(map[chan Event]struct{}),
	}
}

// Subscribe returns a channel receiving events. Callers must Unsubscribe.
func (n *Notifier) Subscribe() chan Event {
	ch := make(chan Event, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan Event) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Broadcast sends ev to all listeners without blocking.
func (n *Notifier) Broadcast(ev Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of listeners.
func (n *Notifier) Subscribers() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}
