package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the per-user record held in the profile store, keyed by
// principal ID. The Role field carries the raw string as stored; callers
// run it through ParseRole before trusting it.
type Profile struct {
	PrincipalID uuid.UUID `json:"principal_id"`
	Role        string    `json:"role"`
	DisplayName string    `json:"display_name,omitempty"`
	Email       string    `json:"email,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
