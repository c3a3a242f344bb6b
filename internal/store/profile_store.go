package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/studlyf/gateway/internal/models"
)

// Sentinel errors for profile store operations
var (
	ErrProfileNotFound      = errors.New("profile not found")
	ErrProfileAlreadyExists = errors.New("profile already exists")
)

// ProfileStore defines the interface for profile storage operations.
// Profiles are keyed by principal ID; absence of a record is a valid
// response (the caller falls back to the default role), not an error
// condition beyond the sentinel.
type ProfileStore interface {
	// GetProfile retrieves a profile by principal ID.
	// Returns ErrProfileNotFound if no record exists.
	GetProfile(ctx context.Context, principalID uuid.UUID) (*models.Profile, error)

	// PutProfile creates a new profile.
	// Returns ErrProfileAlreadyExists if a record already exists for the principal.
	PutProfile(ctx context.Context, profile *models.Profile) error

	// UpdateProfile updates an existing profile.
	// Returns ErrProfileNotFound if no record exists.
	UpdateProfile(ctx context.Context, profile *models.Profile) error

	// DeleteProfile removes a profile by principal ID.
	// Returns ErrProfileNotFound if no record exists.
	DeleteProfile(ctx context.Context, principalID uuid.UUID) error

	// ListProfiles returns all profiles, optionally filtered by role.
	ListProfiles(ctx context.Context, role *string) ([]*models.Profile, error)
}
