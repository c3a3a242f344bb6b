// Package session maintains the single process-wide session value: the
// current principal, its resolved role, and whether resolution is still
// in flight. The coordinator is constructed once at bootstrap, subscribes
// to the identity provider exactly once, and is torn down on shutdown.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/studlyf/gateway/internal/identity"
	"github.com/studlyf/gateway/internal/models"
)

var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("coordinator already started")
	// ErrClosed is returned when Start is called after Close.
	ErrClosed = errors.New("coordinator closed")
)

// RoleResolver resolves a principal ID to a role. It must never block
// past its own deadline and must fall back to the least-privileged role
// on failure.
type RoleResolver interface {
	Resolve(ctx context.Context, principalID uuid.UUID) (models.Role, error)
}

// Coordinator owns the session cell. All mutation happens here, in
// response to provider events; everything else reads snapshots via
// Current or Subscribe.
type Coordinator struct {
	resolver RoleResolver

	mu            sync.Mutex
	current       models.Session
	gen           uint64 // bumped on every provider event; stale resolutions are discarded
	cancelResolve context.CancelFunc
	unsubscribe   func()
	started       bool
	closed        bool

	watchers    map[int]chan models.Session
	nextWatcher int

	wg sync.WaitGroup
}

// New creates a coordinator. The session starts in the loading state and
// stays there until the first provider event settles it.
func New(resolver RoleResolver) *Coordinator {
	return &Coordinator{
		resolver: resolver,
		current:  models.Session{Loading: true},
		watchers: make(map[int]chan models.Session),
	}
}

// Start registers the single long-lived subscription with the identity
// provider. The provider replays its current state synchronously, so the
// session may already be settled when Start returns. Start may be called
// at most once; the subscription is released by Close on every exit path.
func (c *Coordinator) Start(provider identity.Provider) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	cancel := provider.Subscribe(c.handleEvent)

	c.mu.Lock()
	if c.closed {
		// Closed while subscribing; release immediately.
		c.mu.Unlock()
		cancel()
		return ErrClosed
	}
	c.unsubscribe = cancel
	c.mu.Unlock()

	return nil
}

// Close releases the provider subscription, cancels any in-flight role
// resolution, and waits for the resolve task to finish. Safe to call
// more than once.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	if c.cancelResolve != nil {
		c.cancelResolve()
		c.cancelResolve = nil
	}
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.wg.Wait()
}

// Current returns a snapshot of the session.
func (c *Coordinator) Current() models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Subscribe returns a channel that receives the current snapshot
// immediately and every subsequent transition. Slow consumers drop
// intermediate snapshots rather than blocking the coordinator. The
// returned cancel func releases the channel.
func (c *Coordinator) Subscribe() (<-chan models.Session, func()) {
	ch := make(chan models.Session, 8)

	c.mu.Lock()
	id := c.nextWatcher
	c.nextWatcher++
	c.watchers[id] = ch
	ch <- c.current
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.watchers, id)
			c.mu.Unlock()
		})
	}
}

// handleEvent processes one provider notification. Each event supersedes
// the previous one: any in-flight resolution is cancelled and its late
// completion discarded, so a guard can never observe a stale role from a
// previous principal.
func (c *Coordinator) handleEvent(ev identity.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.gen++
	if c.cancelResolve != nil {
		c.cancelResolve()
		c.cancelResolve = nil
	}

	if ev.Anonymous() {
		c.current = models.Session{}
		c.notifyLocked()
		log.Debug().Msg("Session cleared (anonymous)")
		return
	}

	p := ev.Principal

	// Duplicate notification for the principal we already resolved;
	// skip the redundant profile fetch.
	if c.current.Principal != nil && !c.current.Loading &&
		c.current.Principal.Subject == p.Subject {
		c.current.Principal = p
		c.notifyLocked()
		return
	}

	c.current = models.Session{Principal: p, Loading: true}
	c.notifyLocked()

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelResolve = cancel
	gen := c.gen

	c.wg.Add(1)
	go c.resolve(ctx, cancel, p, gen)
}

// resolve runs the role resolution for one principal-change event and
// publishes the result unless a newer event superseded it.
func (c *Coordinator) resolve(ctx context.Context, cancel context.CancelFunc, p *models.Principal, gen uint64) {
	defer c.wg.Done()
	defer cancel()

	role, err := c.resolver.Resolve(ctx, p.ID)
	if err != nil {
		log.Error().Err(err).
			Str("principal_id", p.ID.String()).
			Msg("Role resolution failed, falling back to student")
	}
	if !role.Valid() {
		role = models.RoleStudent
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.gen {
		// Superseded by a newer sign-in/sign-out; discard.
		return
	}

	c.current = models.Session{Principal: p, Role: role}
	c.notifyLocked()

	log.Debug().
		Str("principal_id", p.ID.String()).
		Str("role", string(role)).
		Msg("Session resolved")
}

func (c *Coordinator) notifyLocked() {
	for _, ch := range c.watchers {
		select {
		case ch <- c.current:
		default:
		}
	}
}
