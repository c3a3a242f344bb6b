// Package guard gates HTTP routes on the current session. Each guard is
// a middleware that either serves its wrapped handler, serves a loading
// placeholder while role resolution is in flight, or redirects to a
// role-appropriate destination. Guards never write an error page and
// never fail open: a role outside a guard's table is treated as the
// least-privileged case for that table.
package guard

import (
	"net/http"
	"slices"

	"github.com/rs/zerolog/log"
	"github.com/studlyf/gateway/internal/models"
)

// SessionSource provides the current session snapshot. The session
// coordinator satisfies this; tests substitute fixed snapshots.
type SessionSource interface {
	Current() models.Session
}

// Guard builds the route-guard middleware family over one session source
// and one destination table.
type Guard struct {
	sessions SessionSource
	routes   Routes
}

// New creates a guard family.
func New(sessions SessionSource, routes Routes) *Guard {
	return &Guard{sessions: sessions, routes: routes}
}

// Public wraps pages that only make sense for anonymous visitors (login,
// signup). An authenticated principal is redirected to its home
// destination instead of being shown the auth forms again.
func (g *Guard) Public(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := g.sessions.Current()

		if session.Loading {
			serveLoading(w)
			return
		}

		if session.Anonymous() {
			next.ServeHTTP(w, r)
			return
		}

		http.Redirect(w, r, g.homeFor(session.Role), http.StatusFound)
	})
}

// Protected wraps the generic member area. Anonymous visitors go to
// login; admin-tier principals are kept out of learner-only UI and sent
// to the admin home instead.
func (g *Guard) Protected(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := g.sessions.Current()

		if session.Loading {
			serveLoading(w)
			return
		}

		if session.Anonymous() {
			http.Redirect(w, r, g.routes.Login, http.StatusFound)
			return
		}

		if session.Role.IsAdminTier() {
			log.Warn().
				Str("role", string(session.Role)).
				Str("path", r.URL.Path).
				Msg("Admin-tier principal on member route, redirecting to admin home")
			http.Redirect(w, r, g.routes.AdminHome, http.StatusFound)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// AdminOption configures the Admin guard.
type AdminOption func(*adminConfig)

type adminConfig struct {
	allowed       []models.Role
	roleRedirects bool
}

// WithAllowedRoles overrides the allow-set, so the same guard can gate
// narrower (super_admin only) or broader staff surfaces.
func WithAllowedRoles(allowed ...models.Role) AdminOption {
	return func(c *adminConfig) {
		c.allowed = allowed
	}
}

// WithRoleRedirects sends a denied principal to its role-specific
// dashboard instead of the generic learner dashboard.
func WithRoleRedirects() AdminOption {
	return func(c *adminConfig) {
		c.roleRedirects = true
	}
}

// Admin wraps staff surfaces. The default allow-set is the two admin
// tiers. A denied principal is never bounced to login - it IS
// authenticated, just not authorized - it goes to a dashboard it can use.
func (g *Guard) Admin(opts ...AdminOption) func(http.Handler) http.Handler {
	cfg := adminConfig{
		allowed: []models.Role{models.RoleSuperAdmin, models.RoleAdmin},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := g.sessions.Current()

			if session.Loading {
				serveLoading(w)
				return
			}

			if session.Anonymous() {
				http.Redirect(w, r, g.routes.Login, http.StatusFound)
				return
			}

			if slices.Contains(cfg.allowed, session.Role) {
				next.ServeHTTP(w, r)
				return
			}

			log.Warn().
				Str("role", string(session.Role)).
				Str("path", r.URL.Path).
				Msg("Access denied, insufficient role")

			dest := g.routes.Learner
			if cfg.roleRedirects {
				dest = g.dashboardFor(session.Role)
			}
			http.Redirect(w, r, dest, http.StatusFound)
		})
	}
}

// homeFor maps a role to the destination an authenticated principal is
// sent to when it lands on a public auth page.
func (g *Guard) homeFor(role models.Role) string {
	switch {
	case role.IsAdminTier():
		return g.routes.AdminHome
	case role == models.RoleHiringPartner:
		return g.routes.Partner
	default:
		return g.routes.Learner
	}
}

// dashboardFor maps a role to its own dashboard, used by the Admin guard
// when role-specific redirects are enabled.
func (g *Guard) dashboardFor(role models.Role) string {
	switch role {
	case models.RoleStudent:
		return g.routes.Learner
	case models.RoleMentor:
		return g.routes.Mentor
	case models.RoleHiringPartner:
		return g.routes.Partner
	default:
		return g.routes.Root
	}
}

// serveLoading renders the placeholder shown while the session is still
// resolving. No redirect happens in this state.
func serveLoading(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "1")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("<!doctype html><title>Loading</title><p>Loading&hellip;</p>"))
}
