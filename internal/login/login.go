// Package login implements the federated sign-in flow. A successful
// callback mints a principal, publishes it to the identity hub (which
// drives the session coordinator) and sets a signed session cookie so
// the browser session survives a gateway restart.
package login

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	httpmiddleware "github.com/studlyf/gateway/internal/http"
	"github.com/studlyf/gateway/internal/identity"
	"github.com/studlyf/gateway/internal/models"
)

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrExpiredSession = errors.New("session expired")
)

const sessionCookie = "_session"

// Google handles the Google OAuth sign-in flow for the gateway.
type Google struct {
	config        *oauth2.Config
	hub           *identity.Hub
	sessionSecret []byte
	sessionTTL    time.Duration
	userInfoURL   string
	signedInURL   string
	signedOutURL  string
}

// Option configures the login flow.
type Option func(*Google)

// WithDestinations overrides where the browser lands after a completed
// sign-in and after sign-out. Defaults match guard.DefaultRoutes; pass
// the configured policy destinations so an overridden routes table keeps
// the redirects and the guards in agreement.
func WithDestinations(signedIn, signedOut string) Option {
	return func(g *Google) {
		if signedIn != "" {
			g.signedInURL = signedIn
		}
		if signedOut != "" {
			g.signedOutURL = signedOut
		}
	}
}

// NewGoogle creates the login flow. The session secret signs the session
// cookie JWT and must be at least 32 bytes.
func NewGoogle(clientID, clientSecret, callbackURL string, sessionSecret []byte, sessionTTL time.Duration, hub *identity.Hub, opts ...Option) (*Google, error) {
	if len(sessionSecret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 bytes")
	}

	if clientID == "" || clientSecret == "" || callbackURL == "" {
		return nil, fmt.Errorf("client ID, client secret, and callback URL are required")
	}

	if sessionTTL <= 0 {
		return nil, fmt.Errorf("session TTL must be greater than 0")
	}

	g := &Google{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		hub:           hub,
		sessionSecret: sessionSecret,
		sessionTTL:    sessionTTL,
		userInfoURL:   "https://www.googleapis.com/oauth2/v2/userinfo",
		signedInURL:   "/dashboard",
		signedOutURL:  "/login",
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// SessionData holds the authenticated user's session information as
// carried in the session cookie.
type SessionData struct {
	PrincipalID uuid.UUID
	Subject     string
	Email       string
	Name        string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

type sessionClaims struct {
	PrincipalID string `json:"pid"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	jwt.RegisteredClaims
}

// createSessionToken mints an HS256-signed session token for the principal.
func (g *Google) createSessionToken(p *models.Principal, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := sessionClaims{
		PrincipalID: p.ID.String(),
		Name:        p.Name,
		Email:       p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.sessionSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signed, nil
}

// validateSessionToken verifies the signature and expiry of a session token.
func (g *Google) validateSessionToken(tokenStr string) (*SessionData, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &sessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return g.sessionSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			log.Debug().Msg("Session token expired")
			return nil, ErrExpiredSession
		}
		log.Debug().Err(err).Msg("Session token validation failed")
		return nil, ErrInvalidSession
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidSession
	}

	principalID, err := uuid.Parse(claims.PrincipalID)
	if err != nil {
		log.Debug().Msg("Session token carries invalid principal id")
		return nil, ErrInvalidSession
	}

	return &SessionData{
		PrincipalID: principalID,
		Subject:     claims.Subject,
		Email:       claims.Email,
		Name:        claims.Name,
		IssuedAt:    claims.IssuedAt.Time,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// GetSession extracts and validates the session from a request.
func (g *Google) GetSession(r *http.Request) (*SessionData, error) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, ErrInvalidSession
	}

	return g.validateSessionToken(cookie.Value)
}

// SessionSource reports the current session snapshot, so the restore
// middleware only rehydrates when nobody is signed in.
type SessionSource interface {
	Current() models.Session
}

// RestoreSession returns middleware that rebuilds identity state from the
// session cookie. After a gateway restart the coordinator starts anonymous
// even though the browser still holds a valid signed cookie; the first
// request from that browser republishes the principal to the hub, which
// kicks off role resolution as if the provider had signed the user in.
func (g *Google) RestoreSession(sessions SessionSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := sessions.Current()
			if s.Loading || !s.Anonymous() {
				next.ServeHTTP(w, r)
				return
			}

			data, err := g.GetSession(r)
			if err != nil {
				// No cookie, or an expired/invalid one; stay anonymous.
				next.ServeHTTP(w, r)
				return
			}

			log.Info().
				Str("user", data.Email).
				Str("principal_id", data.PrincipalID.String()).
				Msg("Restored session from cookie")

			g.hub.SignIn(&models.Principal{
				ID:       data.PrincipalID,
				Subject:  data.Subject,
				Name:     data.Name,
				Email:    data.Email,
				IssuedAt: data.IssuedAt,
			})

			next.ServeHTTP(w, r)
		})
	}
}

func (g *Google) saveState(w http.ResponseWriter, r *http.Request) string {
	// generate random state
	state := rand.Text()

	cookie := &http.Cookie{
		Name:     "state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300, // 5 minutes - enough time for OAuth flow
	}
	http.SetCookie(w, cookie)

	return state
}

// LoginHandler starts the OAuth flow by redirecting to the provider.
func (g *Google) LoginHandler(w http.ResponseWriter, r *http.Request) {
	log.Debug().Msg("Initiating Google OAuth flow")

	state := g.saveState(w, r)

	http.Redirect(w, r, g.config.AuthCodeURL(state), http.StatusFound)
}

// CallbackHandler completes the OAuth flow: validates state, exchanges
// the code, fetches user info, mints a principal, publishes the sign-in
// to the hub, and sets the session cookie.
func (g *Google) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	log.Debug().Msg("OAuth callback received")

	state := r.FormValue("state")
	code := r.FormValue("code")

	if state == "" || code == "" {
		log.Warn().Msg("OAuth callback missing state or code")
		http.Error(w, "Authentication failed", http.StatusBadRequest)
		return
	}

	cookie, err := r.Cookie("state")
	if err != nil {
		log.Warn().Err(err).Msg("OAuth callback missing state cookie")
		http.Error(w, "Authentication failed", http.StatusBadRequest)
		return
	}

	if state != cookie.Value {
		log.Warn().Msg("OAuth callback state mismatch")
		http.Error(w, "Authentication failed", http.StatusBadRequest)
		return
	}

	// Clear the state cookie after validation
	http.SetCookie(w, &http.Cookie{
		Name:     "state",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})

	token, err := g.config.Exchange(r.Context(), code)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to exchange OAuth code for token")
		http.Error(w, "Authentication failed", http.StatusBadRequest)
		return
	}

	userInfo, err := g.getUserInfo(r.Context(), token)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to fetch user info from Google")
		http.Error(w, "Authentication failed", http.StatusBadRequest)
		return
	}

	if userInfo.ID == "" || userInfo.Email == "" {
		log.Warn().Msg("Google user info missing subject or email")
		http.Error(w, "Authentication failed", http.StatusBadRequest)
		return
	}

	principal := &models.Principal{
		ID:        uuid.Must(uuid.NewV7()),
		Subject:   userInfo.ID,
		Name:      userInfo.Name,
		Email:     userInfo.Email,
		AvatarURL: userInfo.Picture,
		IssuedAt:  time.Now(),
	}

	sessionToken, err := g.createSessionToken(principal, g.sessionTTL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create session token")
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sessionToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(g.sessionTTL.Seconds()),
	})

	log.Info().
		Str("user", userInfo.Email).
		Str("client_ip", httpmiddleware.ClientIPFromContext(r.Context())).
		Msg("User authenticated successfully")

	// Notify the session coordinator
	g.hub.SignIn(principal)

	http.Redirect(w, r, g.signedInURL, http.StatusFound)
}

// LogoutHandler clears the session cookie and publishes the anonymous
// state to the hub.
func (g *Google) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})

	log.Info().
		Str("client_ip", httpmiddleware.ClientIPFromContext(r.Context())).
		Msg("User signed out")

	g.hub.SignOut()

	http.Redirect(w, r, g.signedOutURL, http.StatusFound)
}

// UserInfo is the subset of the provider's userinfo response we consume.
type UserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (g *Google) getUserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error) {
	// Add timeout to prevent hanging on a slow provider API
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := g.config.Client(ctx, token)
	resp, err := client.Get(g.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo endpoint returned HTTP %d", resp.StatusCode)
	}

	var userInfo UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	return &userInfo, nil
}
