package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/studlyf/gateway/internal/models"
	"github.com/studlyf/gateway/internal/store"
)

// ProfileStore implements store.ProfileStore using PostgreSQL.
type ProfileStore struct {
	pool *pgxpool.Pool
}

// NewProfileStore creates a new PostgreSQL-backed profile store.
// It shares the connection pool with other stores.
func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{
		pool: pool,
	}
}

// GetProfile retrieves a profile by principal ID.
func (s *ProfileStore) GetProfile(ctx context.Context, principalID uuid.UUID) (*models.Profile, error) {
	query := `
		SELECT principal_id, role, display_name, email, created_at, updated_at
		FROM profiles
		WHERE principal_id = $1
	`

	var p models.Profile
	err := s.pool.QueryRow(ctx, query, principalID).Scan(
		&p.PrincipalID,
		&p.Role,
		&p.DisplayName,
		&p.Email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", mapPostgresError(err))
	}

	return &p, nil
}

// PutProfile creates a new profile record.
func (s *ProfileStore) PutProfile(ctx context.Context, profile *models.Profile) error {
	query := `
		INSERT INTO profiles (principal_id, role, display_name, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	now := time.Now()
	createdAt := profile.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := profile.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	_, err := s.pool.Exec(ctx, query,
		profile.PrincipalID,
		profile.Role,
		profile.DisplayName,
		profile.Email,
		createdAt,
		updatedAt,
	)
	if err != nil {
		mapped := mapPostgresError(err)
		if errors.Is(mapped, store.ErrProfileAlreadyExists) {
			return store.ErrProfileAlreadyExists
		}
		return fmt.Errorf("failed to create profile: %w", mapped)
	}

	log.Debug().
		Str("principal_id", profile.PrincipalID.String()).
		Str("role", profile.Role).
		Msg("Created profile")

	return nil
}

// UpdateProfile updates an existing profile record.
func (s *ProfileStore) UpdateProfile(ctx context.Context, profile *models.Profile) error {
	query := `
		UPDATE profiles
		SET role = $2, display_name = $3, email = $4, updated_at = $5
		WHERE principal_id = $1
	`

	updatedAt := time.Now()

	tag, err := s.pool.Exec(ctx, query,
		profile.PrincipalID,
		profile.Role,
		profile.DisplayName,
		profile.Email,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", mapPostgresError(err))
	}

	if tag.RowsAffected() == 0 {
		return store.ErrProfileNotFound
	}

	return nil
}

// DeleteProfile removes a profile record.
func (s *ProfileStore) DeleteProfile(ctx context.Context, principalID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM profiles WHERE principal_id = $1", principalID)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", mapPostgresError(err))
	}

	if tag.RowsAffected() == 0 {
		return store.ErrProfileNotFound
	}

	return nil
}

// ListProfiles returns all profiles, optionally filtered by role.
func (s *ProfileStore) ListProfiles(ctx context.Context, role *string) ([]*models.Profile, error) {
	query := `
		SELECT principal_id, role, display_name, email, created_at, updated_at
		FROM profiles
		WHERE ($1::text IS NULL OR role = $1)
		ORDER BY created_at
	`

	rows, err := s.pool.Query(ctx, query, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var result []*models.Profile
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(
			&p.PrincipalID,
			&p.Role,
			&p.DisplayName,
			&p.Email,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		result = append(result, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}

	return result, nil
}
