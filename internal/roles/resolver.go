// Package roles maps a principal to its platform role by consulting the
// profile store. The policy is default-deny-elevated-privilege: any
// missing, malformed or unreachable record resolves to student.
package roles

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/studlyf/gateway/internal/models"
	"github.com/studlyf/gateway/internal/store"
)

// DefaultTimeout bounds a single role resolution so the session can never
// hang in the loading state behind a stuck profile fetch.
const DefaultTimeout = 10 * time.Second

// ProfileGetter is the read-only slice of the profile store the resolver
// needs. Both local stores and the remote profile client satisfy it.
type ProfileGetter interface {
	GetProfile(ctx context.Context, principalID uuid.UUID) (*models.Profile, error)
}

// Resolver resolves a principal ID to a role with a single profile read
// per invocation. It is idempotent and never returns an elevated role
// unless a valid record says so.
type Resolver struct {
	profiles ProfileGetter
	timeout  time.Duration
}

// NewResolver creates a resolver over the given profile source. A timeout
// of zero selects DefaultTimeout.
func NewResolver(profiles ProfileGetter, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{profiles: profiles, timeout: timeout}
}

// Resolve returns the role for the given principal.
//
// Missing record resolves to student with a nil error. Fetch failures and
// timeouts also resolve to student; the error is returned so the caller
// can log it, but it must never block access decisions. An unrecognized
// role string in the record is mapped to student rather than trusted.
func (r *Resolver) Resolve(ctx context.Context, principalID uuid.UUID) (models.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	profile, err := r.profiles.GetProfile(ctx, principalID)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			log.Debug().
				Str("principal_id", principalID.String()).
				Msg("No profile record, defaulting to student role")
			return models.RoleStudent, nil
		}
		return models.RoleStudent, err
	}

	role := models.ParseRole(profile.Role)
	if role == models.RoleUnknown {
		log.Warn().
			Str("principal_id", principalID.String()).
			Str("role", profile.Role).
			Msg("Unrecognized role in profile record, defaulting to student")
		return models.RoleStudent, nil
	}

	return role, nil
}
