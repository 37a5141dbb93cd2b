package identity

import (
	"sync"

	"github.com/LogiStackDev/access-onboard-flow/internal/domain"
)

// Notifier fans session events out to subscribers. Handlers run synchronously
// on the publishing goroutine, in subscription order.
type Notifier struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[uint64]func(domain.SessionEvent)
	order    []uint64
}

func NewNotifier() *Notifier {
	return &Notifier{handlers: make(map[uint64]func(domain.SessionEvent))}
}

// Subscribe registers fn and returns a function that removes it again.
// Calling the returned function more than once is harmless.
func (n *Notifier) Subscribe(fn func(domain.SessionEvent)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	id := n.nextID
	n.handlers[id] = fn
	n.order = append(n.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { n.unsubscribe(id) })
	}
}

func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.handlers, id)
	for i, v := range n.order {
		if v == id {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
}

// Publish delivers ev to every current subscriber. Events with an unknown
// type are dropped.
func (n *Notifier) Publish(ev domain.SessionEvent) {
	if !ev.Type.IsValid() {
		return
	}

	n.mu.RLock()
	handlers := make([]func(domain.SessionEvent), 0, len(n.order))
	for _, id := range n.order {
		handlers = append(handlers, n.handlers[id])
	}
	n.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// Subscribers returns the number of registered handlers.
func (n *Notifier) Subscribers() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.handlers)
}
