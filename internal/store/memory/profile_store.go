package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/studlyf/gateway/internal/models"
	"github.com/studlyf/gateway/internal/store"
)

// ProfileStore implements store.ProfileStore using in-memory storage.
// This implementation is for testing and development only - data is lost on restart.
type ProfileStore struct {
	mu sync.RWMutex

	profiles map[uuid.UUID]*models.Profile // principal_id -> Profile
}

// NewProfileStore creates a new in-memory profile store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles: make(map[uuid.UUID]*models.Profile),
	}
}

// GetProfile retrieves a profile by principal ID.
func (s *ProfileStore) GetProfile(ctx context.Context, principalID uuid.UUID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, exists := s.profiles[principalID]
	if !exists {
		return nil, store.ErrProfileNotFound
	}

	// Clone to avoid external modifications
	clone := *profile
	return &clone, nil
}

// PutProfile creates a new profile in memory.
func (s *ProfileStore) PutProfile(ctx context.Context, profile *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[profile.PrincipalID]; exists {
		return store.ErrProfileAlreadyExists
	}

	// Clone to avoid external modifications
	clone := *profile
	s.profiles[profile.PrincipalID] = &clone

	return nil
}

// UpdateProfile updates an existing profile.
func (s *ProfileStore) UpdateProfile(ctx context.Context, profile *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[profile.PrincipalID]; !exists {
		return store.ErrProfileNotFound
	}

	// Clone first so the timestamp lands on the stored copy, not the
	// caller's struct
	clone := *profile
	clone.UpdatedAt = time.Now()
	s.profiles[profile.PrincipalID] = &clone

	return nil
}

// DeleteProfile removes a profile by principal ID.
func (s *ProfileStore) DeleteProfile(ctx context.Context, principalID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[principalID]; !exists {
		return store.ErrProfileNotFound
	}

	delete(s.profiles, principalID)

	return nil
}

// ListProfiles returns all profiles, optionally filtered by role.
func (s *ProfileStore) ListProfiles(ctx context.Context, role *string) ([]*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Profile
	for _, p := range s.profiles {
		if role != nil && p.Role != *role {
			continue
		}

		// Clone to avoid external modifications
		clone := *p
		result = append(result, &clone)
	}

	return result, nil
}
