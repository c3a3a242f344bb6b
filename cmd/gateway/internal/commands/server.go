package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"filippo.io/csrf"
	"github.com/rs/cors"

	"github.com/studlyf/gateway/internal/client"
	"github.com/studlyf/gateway/internal/guard"
	httpmiddleware "github.com/studlyf/gateway/internal/http"
	"github.com/studlyf/gateway/internal/identity"
	"github.com/studlyf/gateway/internal/logger"
	"github.com/studlyf/gateway/internal/login"
	"github.com/studlyf/gateway/internal/models"
	"github.com/studlyf/gateway/internal/roles"
	"github.com/studlyf/gateway/internal/session"
	memorystore "github.com/studlyf/gateway/internal/store/memory"
	postgresstore "github.com/studlyf/gateway/internal/store/postgres"
)

type ServerCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8443" env:"STUDLYF_LISTEN"`
	Cert   string `help:"path to TLS cert file" default:"" env:"STUDLYF_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"STUDLYF_TLS_KEY"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"https://localhost" env:"STUDLYF_CORS_ORIGINS"`

	// Google OAuth configuration
	ClientID      string        `help:"Google client ID" default:"" env:"STUDLYF_GOOGLE_CLIENT_ID"`
	ClientSecret  string        `help:"Google client secret" default:"" env:"STUDLYF_GOOGLE_CLIENT_SECRET"`
	CallbackURL   string        `help:"Google callback URL" default:"" env:"STUDLYF_GOOGLE_CALLBACK_URL"`
	SessionSecret string        `help:"secret for signing session cookies (min 32 bytes)" default:"" env:"STUDLYF_SESSION_SECRET"`
	SessionTTL    time.Duration `help:"session TTL" default:"168h" env:"STUDLYF_SESSION_TTL"`

	// Role resolution
	ResolveTimeout time.Duration `help:"deadline for a single role resolution" default:"10s" env:"STUDLYF_RESOLVE_TIMEOUT"`
	RoutesConfig   string        `help:"path to YAML guard policy file (destinations, admin allow-set)" default:"" env:"STUDLYF_ROUTES_CONFIG"`

	// Profile store configuration
	ProfileStoreType string             `help:"profile store type (memory, postgres or remote)" default:"memory" env:"STUDLYF_PROFILE_STORE_TYPE" enum:"memory,postgres,remote"`
	PostgresStore    PostgresStoreFlags `embed:"" prefix:"postgres-"`
	ProfileAPI       ProfileAPIFlags    `embed:"" prefix:"profile-"`
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"STUDLYF_POSTGRES_AUTO_MIGRATE"`
}

type ProfileAPIFlags struct {
	BaseURL  string `help:"base URL of the remote profile service" env:"STUDLYF_PROFILE_API_URL"`
	CacheDir string `help:"directory for cached profile responses (empty for in-memory)" default:"" env:"STUDLYF_PROFILE_CACHE_DIR"`
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx := context.Background()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting gateway")

	// Guard policy (destinations + admin allow-set)
	policy := guard.DefaultPolicy()
	if c.RoutesConfig != "" {
		f, err := os.Open(c.RoutesConfig)
		if err != nil {
			return fmt.Errorf("failed to open routes config: %w", err)
		}
		policy, err = guard.LoadPolicy(f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("failed to load routes config: %w", err)
		}
		log.Info().Str("path", c.RoutesConfig).Msg("Loaded guard policy")
	}

	// Profile source for role resolution
	var profiles roles.ProfileGetter
	switch c.ProfileStoreType {
	case "postgres":
		pool, err := postgresstore.NewPool(ctx, &postgresstore.PoolConfig{
			ConnString:      c.PostgresStore.ConnString,
			MaxConns:        c.PostgresStore.MaxConns,
			MinConns:        c.PostgresStore.MinConns,
			MaxConnLifetime: c.PostgresStore.MaxConnLifetime,
			MaxConnIdleTime: c.PostgresStore.MaxConnIdleTime,
		})
		if err != nil {
			return fmt.Errorf("failed to create postgres pool: %w", err)
		}
		defer pool.Close()

		if c.PostgresStore.AutoMigrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		profiles = postgresstore.NewProfileStore(pool)
		log.Info().Msg("Using postgres profile store")

	case "remote":
		if c.ProfileAPI.BaseURL == "" {
			return errors.New("profile API base URL is required for remote store (--profile-base-url)")
		}
		profiles = client.NewProfileClient(c.ProfileAPI.BaseURL, c.ProfileAPI.CacheDir)
		log.Info().Str("base_url", c.ProfileAPI.BaseURL).Msg("Using remote profile service")

	default:
		profiles = memorystore.NewProfileStore()
		log.Info().Msg("Using in-memory profile store")
	}

	resolver := roles.NewResolver(profiles, c.ResolveTimeout)

	// Identity hub and session coordinator. The coordinator holds the
	// single provider subscription for the life of the process.
	hub := identity.NewHub()
	coordinator := session.New(resolver)
	if err := coordinator.Start(hub); err != nil {
		return fmt.Errorf("failed to start session coordinator: %w", err)
	}
	defer coordinator.Close()

	gl, err := login.NewGoogle(c.ClientID, c.ClientSecret, c.CallbackURL, []byte(c.SessionSecret), c.SessionTTL, hub,
		login.WithDestinations(policy.Routes.Learner, policy.Routes.Login))
	if err != nil {
		return fmt.Errorf("failed to initialize Google OAuth: %w", err)
	}

	guards := guard.New(coordinator, policy.Routes)

	clientIPMiddleware := httpmiddleware.ClientIPMiddleware()

	mux := http.NewServeMux()

	// Marketing root
	mux.Handle("/", page("Studlyf"))

	// Auth pages are public-guarded: an authenticated principal is
	// bounced to its home instead of seeing the forms again.
	mux.Handle("/login", guards.Public(page("Sign in")))
	mux.Handle("/signup", guards.Public(page("Create account")))

	// OAuth flow endpoints
	mux.Handle("/auth/google", clientIPMiddleware(http.HandlerFunc(gl.LoginHandler)))
	mux.Handle("/auth/google/callback", clientIPMiddleware(http.HandlerFunc(gl.CallbackHandler)))
	mux.Handle("/logout", clientIPMiddleware(http.HandlerFunc(gl.LogoutHandler)))

	// Member area
	mux.Handle("/dashboard", guards.Protected(page("Learner dashboard")))
	mux.Handle("/dashboard/mentor", guards.Protected(page("Mentor dashboard")))
	mux.Handle("/dashboard/partner", guards.Protected(page("Partner dashboard")))

	// Staff surfaces. The admin home uses the configured allow-set with
	// role-specific redirects; settings is super_admin only.
	adminGuard := guards.Admin(
		guard.WithAllowedRoles(policy.AllowedRoles()...),
		guard.WithRoleRedirects(),
	)
	mux.Handle("/admin", adminGuard(page("Admin")))
	mux.Handle("/admin/settings", guards.Admin(guard.WithAllowedRoles(models.RoleSuperAdmin))(page("Platform settings")))

	// Session snapshot for browser code
	mux.Handle("/api/session", sessionHandler(coordinator))

	// Rehydrate the coordinator from the session cookie so a signed-in
	// browser survives a gateway restart.
	root := gl.RestoreSession(coordinator)(mux)

	// CSRF protection for HTML pages (not applied to API routes)
	protection := csrf.New()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// API routes get CORS, HTML routes get CSRF
		if isAPIRoute(r.URL.Path) {
			withCORS(c.CORSOrigins, root).ServeHTTP(w, r)
		} else {
			protection.Handler(root).ServeHTTP(w, r)
		}
	})

	server := configureHTTPServer(c.Listen, logger.HTTPRequests(log)(handler))

	if c.Cert == "" || c.Key == "" {
		log.Warn().Msg("TLS is disabled (no --cert/--key). This should only be used in development!")
		log.Info().Str("addr", c.Listen).Msg("Starting HTTP server")
		return server.ListenAndServe()
	}

	if _, err := os.Stat(c.Cert); err != nil {
		return fmt.Errorf("TLS certificate not found at %s: %w", c.Cert, err)
	}
	if _, err := os.Stat(c.Key); err != nil {
		return fmt.Errorf("TLS key not found at %s: %w", c.Key, err)
	}

	log.Info().Str("addr", c.Listen).Msg("Starting HTTPS server")
	return server.ListenAndServeTLS(c.Cert, c.Key)
}

// isAPIRoute returns true if the path is an API route that needs CORS instead of CSRF
func isAPIRoute(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

// withCORS adds CORS support to API routes.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true, // Required for cookie-based authentication
	})
	return middleware.Handler(h)
}

// page returns a minimal HTML page handler. The real UI is rendered by
// the web front-end; these stand in for the guarded destinations.
func page(title string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<!doctype html><title>%s</title><h1>%s</h1>", title, title)
	})
}

// sessionHandler exposes the current session snapshot as JSON.
func sessionHandler(coordinator *session.Coordinator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := coordinator.Current()

		resp := struct {
			Authenticated bool   `json:"authenticated"`
			Loading       bool   `json:"loading"`
			Role          string `json:"role,omitempty"`
			Name          string `json:"name,omitempty"`
			Email         string `json:"email,omitempty"`
		}{
			Authenticated: !s.Anonymous(),
			Loading:       s.Loading,
			Role:          string(s.Role),
		}
		if s.Principal != nil {
			resp.Name = s.Principal.Name
			resp.Email = s.Principal.Email
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
}
