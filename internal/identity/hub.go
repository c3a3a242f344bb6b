package identity

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/studlyf/gateway/internal/models"
)

// Hub is the in-process Provider implementation. The login handlers push
// sign-in/sign-out transitions into it and it fans them out to subscribers.
// The initial state is anonymous until the first SignIn.
type Hub struct {
	// deliverMu serializes event delivery so a replay and a concurrent
	// publish can never reach a subscriber out of order.
	deliverMu sync.Mutex

	mu          sync.Mutex
	current     Event
	subscribers map[int]func(Event)
	nextID      int
}

// NewHub creates a hub in the anonymous state.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[int]func(Event)),
	}
}

// Subscribe implements Provider. The current state is replayed to fn
// before Subscribe returns so a late subscriber never waits for the next
// transition to learn where it stands.
func (h *Hub) Subscribe(fn func(Event)) (cancel func()) {
	h.deliverMu.Lock()

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subscribers[id] = fn
	current := h.current
	h.mu.Unlock()

	fn(current)
	h.deliverMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, id)
			h.mu.Unlock()
		})
	}
}

// SignIn publishes a new current principal to all subscribers.
func (h *Hub) SignIn(p *models.Principal) {
	if p == nil {
		// A nil sign-in is a provider glitch; treat it as sign-out.
		log.Warn().Msg("SignIn called with nil principal, treating as sign-out")
		h.SignOut()
		return
	}
	h.publish(Event{Principal: p})
}

// SignOut publishes the anonymous state to all subscribers.
func (h *Hub) SignOut() {
	h.publish(Event{})
}

func (h *Hub) publish(ev Event) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	h.mu.Lock()
	h.current = ev
	fns := make([]func(Event), 0, len(h.subscribers))
	for _, fn := range h.subscribers {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	// Deliver outside the lock so a subscriber may unsubscribe from
	// within its callback without deadlocking.
	for _, fn := range fns {
		fn(ev)
	}
}
