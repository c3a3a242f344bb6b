package roles

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/studlyf/gateway/internal/models"
	"github.com/studlyf/gateway/internal/store"
)

// fakeProfiles is a ProfileGetter with scripted responses.
type fakeProfiles struct {
	profile *models.Profile
	err     error
	delay   time.Duration
	calls   int
}

func (f *fakeProfiles) GetProfile(ctx context.Context, principalID uuid.UUID) (*models.Profile, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

func TestResolver_Resolve(t *testing.T) {
	principalID := uuid.Must(uuid.NewV7())

	t.Run("record present with valid role", func(t *testing.T) {
		profiles := &fakeProfiles{profile: &models.Profile{PrincipalID: principalID, Role: "mentor"}}
		r := NewResolver(profiles, 0)

		role, err := r.Resolve(context.Background(), principalID)
		require.NoError(t, err)
		require.Equal(t, models.RoleMentor, role)
		require.Equal(t, 1, profiles.calls)
	})

	t.Run("missing record defaults to student", func(t *testing.T) {
		profiles := &fakeProfiles{err: store.ErrProfileNotFound}
		r := NewResolver(profiles, 0)

		role, err := r.Resolve(context.Background(), principalID)
		require.NoError(t, err)
		require.Equal(t, models.RoleStudent, role)
	})

	t.Run("missing record never resolves to admin", func(t *testing.T) {
		profiles := &fakeProfiles{err: store.ErrProfileNotFound}
		r := NewResolver(profiles, 0)

		role, _ := r.Resolve(context.Background(), principalID)
		require.NotEqual(t, models.RoleAdmin, role)
		require.NotEqual(t, models.RoleSuperAdmin, role)
	})

	t.Run("fetch error falls back to student and surfaces the error", func(t *testing.T) {
		fetchErr := errors.New("connection refused")
		profiles := &fakeProfiles{err: fetchErr}
		r := NewResolver(profiles, 0)

		role, err := r.Resolve(context.Background(), principalID)
		require.ErrorIs(t, err, fetchErr)
		require.Equal(t, models.RoleStudent, role)
	})

	t.Run("unrecognized role string falls back to student", func(t *testing.T) {
		profiles := &fakeProfiles{profile: &models.Profile{PrincipalID: principalID, Role: "owner"}}
		r := NewResolver(profiles, 0)

		role, err := r.Resolve(context.Background(), principalID)
		require.NoError(t, err)
		require.Equal(t, models.RoleStudent, role)
	})

	t.Run("elevated roles come through verbatim", func(t *testing.T) {
		for _, raw := range []string{"super_admin", "admin", "hiring_partner", "student"} {
			profiles := &fakeProfiles{profile: &models.Profile{PrincipalID: principalID, Role: raw}}
			r := NewResolver(profiles, 0)

			role, err := r.Resolve(context.Background(), principalID)
			require.NoError(t, err)
			require.Equal(t, models.Role(raw), role)
		}
	})

	t.Run("slow fetch times out and falls back to student", func(t *testing.T) {
		profiles := &fakeProfiles{
			profile: &models.Profile{PrincipalID: principalID, Role: "admin"},
			delay:   time.Second,
		}
		r := NewResolver(profiles, 25*time.Millisecond)

		started := time.Now()
		role, err := r.Resolve(context.Background(), principalID)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Equal(t, models.RoleStudent, role)
		require.Less(t, time.Since(started), 500*time.Millisecond)
	})

	t.Run("single round trip per invocation", func(t *testing.T) {
		profiles := &fakeProfiles{err: errors.New("boom")}
		r := NewResolver(profiles, 0)

		_, _ = r.Resolve(context.Background(), principalID)
		require.Equal(t, 1, profiles.calls)
	})
}
