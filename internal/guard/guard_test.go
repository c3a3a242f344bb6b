package guard

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/studlyf/gateway/internal/models"
)

// fixedSession is a SessionSource returning one snapshot.
type fixedSession struct {
	session models.Session
}

func (f fixedSession) Current() models.Session {
	return f.session
}

func loading() SessionSource {
	return fixedSession{session: models.Session{Loading: true}}
}

func anonymous() SessionSource {
	return fixedSession{session: models.Session{}}
}

func signedIn(role models.Role) SessionSource {
	return fixedSession{session: models.Session{
		Principal: &models.Principal{
			ID:       uuid.Must(uuid.NewV7()),
			Subject:  "subject-" + string(role),
			IssuedAt: time.Now(),
		},
		Role: role,
	}}
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("content"))
})

func serve(t *testing.T, h http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/some/path", nil)
	h.ServeHTTP(w, r)
	return w
}

func requireRedirect(t *testing.T, w *httptest.ResponseRecorder, dest string) {
	t.Helper()
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, dest, w.Header().Get("Location"))
}

func TestPublicGuard(t *testing.T) {
	t.Run("loading renders placeholder without redirect", func(t *testing.T) {
		g := New(loading(), DefaultRoutes())
		w := serve(t, g.Public(okHandler))

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		require.Empty(t, w.Header().Get("Location"))
		require.NotEmpty(t, w.Header().Get("Retry-After"))
	})

	t.Run("anonymous visitor sees the page", func(t *testing.T) {
		g := New(anonymous(), DefaultRoutes())
		w := serve(t, g.Public(okHandler))

		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "content", w.Body.String())
	})

	t.Run("authenticated users are redirected home", func(t *testing.T) {
		tests := []struct {
			role models.Role
			dest string
		}{
			{role: models.RoleSuperAdmin, dest: "/admin"},
			{role: models.RoleAdmin, dest: "/admin"},
			{role: models.RoleHiringPartner, dest: "/dashboard/partner"},
			{role: models.RoleMentor, dest: "/dashboard"},
			{role: models.RoleStudent, dest: "/dashboard"},
			{role: models.RoleUnknown, dest: "/dashboard"},
		}

		for _, tt := range tests {
			t.Run(string(tt.role), func(t *testing.T) {
				g := New(signedIn(tt.role), DefaultRoutes())
				w := serve(t, g.Public(okHandler))
				requireRedirect(t, w, tt.dest)
			})
		}
	})
}

func TestProtectedGuard(t *testing.T) {
	t.Run("loading renders placeholder", func(t *testing.T) {
		g := New(loading(), DefaultRoutes())
		w := serve(t, g.Protected(okHandler))

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("anonymous visitor is sent to login", func(t *testing.T) {
		g := New(anonymous(), DefaultRoutes())
		w := serve(t, g.Protected(okHandler))

		requireRedirect(t, w, "/login")
	})

	t.Run("member roles see the page", func(t *testing.T) {
		for _, role := range []models.Role{models.RoleStudent, models.RoleMentor, models.RoleHiringPartner, models.RoleUnknown} {
			t.Run(string(role), func(t *testing.T) {
				g := New(signedIn(role), DefaultRoutes())
				w := serve(t, g.Protected(okHandler))

				require.Equal(t, http.StatusOK, w.Code)
			})
		}
	})

	t.Run("admin tiers are kept out of the member area", func(t *testing.T) {
		for _, role := range []models.Role{models.RoleSuperAdmin, models.RoleAdmin} {
			t.Run(string(role), func(t *testing.T) {
				g := New(signedIn(role), DefaultRoutes())
				w := serve(t, g.Protected(okHandler))

				requireRedirect(t, w, "/admin")
			})
		}
	})
}

func TestAdminGuard(t *testing.T) {
	t.Run("loading renders placeholder", func(t *testing.T) {
		g := New(loading(), DefaultRoutes())
		w := serve(t, g.Admin()(okHandler))

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("anonymous visitor is sent to login", func(t *testing.T) {
		g := New(anonymous(), DefaultRoutes())
		w := serve(t, g.Admin()(okHandler))

		requireRedirect(t, w, "/login")
	})

	t.Run("default allow-set admits both admin tiers", func(t *testing.T) {
		for _, role := range []models.Role{models.RoleSuperAdmin, models.RoleAdmin} {
			g := New(signedIn(role), DefaultRoutes())
			w := serve(t, g.Admin()(okHandler))

			require.Equal(t, http.StatusOK, w.Code)
		}
	})

	t.Run("denied roles never see children", func(t *testing.T) {
		for _, role := range []models.Role{models.RoleStudent, models.RoleMentor, models.RoleHiringPartner, models.RoleUnknown} {
			g := New(signedIn(role), DefaultRoutes())
			w := serve(t, g.Admin()(okHandler))

			require.Equal(t, http.StatusFound, w.Code)
			require.NotContains(t, w.Body.String(), "content")
		}
	})

	t.Run("simple variant redirects denied roles to the learner dashboard", func(t *testing.T) {
		g := New(signedIn(models.RoleStudent), DefaultRoutes())
		w := serve(t, g.Admin()(okHandler))

		requireRedirect(t, w, "/dashboard")
	})

	t.Run("denied principal is never bounced to login", func(t *testing.T) {
		g := New(signedIn(models.RoleMentor), DefaultRoutes())
		w := serve(t, g.Admin()(okHandler))

		require.NotEqual(t, "/login", w.Header().Get("Location"))
	})

	t.Run("role redirects send each role to its own dashboard", func(t *testing.T) {
		tests := []struct {
			role models.Role
			dest string
		}{
			{role: models.RoleStudent, dest: "/dashboard"},
			{role: models.RoleMentor, dest: "/dashboard/mentor"},
			{role: models.RoleHiringPartner, dest: "/dashboard/partner"},
			{role: models.RoleUnknown, dest: "/"},
		}

		for _, tt := range tests {
			t.Run(string(tt.role), func(t *testing.T) {
				g := New(signedIn(tt.role), DefaultRoutes())
				w := serve(t, g.Admin(WithRoleRedirects())(okHandler))
				requireRedirect(t, w, tt.dest)
			})
		}
	})

	t.Run("custom allow-set narrows access", func(t *testing.T) {
		g := New(signedIn(models.RoleAdmin), DefaultRoutes())
		w := serve(t, g.Admin(WithAllowedRoles(models.RoleSuperAdmin))(okHandler))

		// admin is outside the super_admin-only allow-set
		require.Equal(t, http.StatusFound, w.Code)

		g = New(signedIn(models.RoleSuperAdmin), DefaultRoutes())
		w = serve(t, g.Admin(WithAllowedRoles(models.RoleSuperAdmin))(okHandler))
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("custom allow-set broadens access", func(t *testing.T) {
		g := New(signedIn(models.RoleHiringPartner), DefaultRoutes())
		mw := g.Admin(WithAllowedRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleHiringPartner))
		w := serve(t, mw(okHandler))

		require.Equal(t, http.StatusOK, w.Code)
	})
}
