package models

import (
	"time"

	"github.com/google/uuid"
)

// Principal represents an authenticated end user as issued by the external
// identity provider. At most one principal is current at any time; a nil
// principal means the session is anonymous.
//
// Principals are owned exclusively by the session coordinator. Token
// material from the provider is opaque and never inspected here.
type Principal struct {
	ID      uuid.UUID // UUIDv7, assigned on first sign-in
	Subject string    // Provider-issued subject identifier

	Name      string // Display name, may be empty
	Email     string // Primary email address, may be empty
	AvatarURL string // Provider avatar URL, may be empty

	IssuedAt time.Time // When the provider asserted this identity
}
