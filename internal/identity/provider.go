// Package identity carries the auth-state notification stream from the
// external identity provider to the session coordinator. Subscribers
// receive the current state immediately on subscribe and an event on
// every subsequent sign-in, sign-out or token refresh.
package identity

import (
	"github.com/studlyf/gateway/internal/models"
)

// Event is a single auth-state notification. A nil Principal marks the
// anonymous state (signed out, or provider-level failure treated as
// signed out by omission).
type Event struct {
	Principal *models.Principal
}

// Anonymous reports whether the event carries no principal.
func (e Event) Anonymous() bool {
	return e.Principal == nil
}

// Provider is a push-style source of auth-state change events.
type Provider interface {
	// Subscribe registers fn for auth-state notifications. The current
	// state is delivered synchronously before Subscribe returns, then fn
	// is invoked on every transition. The returned cancel func releases
	// the subscription; it is safe to call more than once.
	Subscribe(fn func(Event)) (cancel func())
}
