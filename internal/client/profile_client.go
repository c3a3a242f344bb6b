// Package client talks to the remote Studlyf profile service. The client
// satisfies roles.ProfileGetter so it can back role resolution directly.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/studlyf/gateway/internal/models"
	"github.com/studlyf/gateway/internal/store"
)

const defaultMaxTries = 3

// ProfileClient reads profile records over HTTP. Transient failures
// (network errors, 5xx) are retried with exponential backoff; a missing
// record is a terminal, expected response mapped to ErrProfileNotFound.
type ProfileClient struct {
	baseURL    string
	httpClient *http.Client
	maxTries   uint
}

// Option configures a ProfileClient.
type Option func(*ProfileClient)

// WithHTTPClient overrides the HTTP client, e.g. for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(pc *ProfileClient) {
		pc.httpClient = c
	}
}

// WithMaxTries overrides the retry budget per GetProfile call.
func WithMaxTries(n uint) Option {
	return func(pc *ProfileClient) {
		pc.maxTries = n
	}
}

// NewProfileClient creates a client for the profile service at baseURL.
// An empty cacheDir selects in-memory response caching.
func NewProfileClient(baseURL, cacheDir string, opts ...Option) *ProfileClient {
	pc := &ProfileClient{
		baseURL:    baseURL,
		httpClient: NewCachingHTTPClient(cacheDir),
		maxTries:   defaultMaxTries,
	}
	for _, opt := range opts {
		opt(pc)
	}
	return pc
}

// GetProfile fetches the profile record for a principal.
// Returns store.ErrProfileNotFound when the service reports no record.
func (c *ProfileClient) GetProfile(ctx context.Context, principalID uuid.UUID) (*models.Profile, error) {
	url := fmt.Sprintf("%s/v1/profiles/%s", c.baseURL, principalID)

	operation := func() (*models.Profile, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to build profile request: %w", err))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("profile request failed: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, backoff.Permanent(store.ErrProfileNotFound)

		case resp.StatusCode >= 500:
			// Transient server-side failure, worth retrying
			return nil, fmt.Errorf("profile service returned %d", resp.StatusCode)

		case resp.StatusCode != http.StatusOK:
			return nil, backoff.Permanent(fmt.Errorf("profile service returned %d", resp.StatusCode))
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("failed to read profile response: %w", err)
		}

		var profile models.Profile
		if err := json.Unmarshal(body, &profile); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to decode profile record: %w", err))
		}

		return &profile, nil
	}

	profile, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.maxTries),
	)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("principal_id", principalID.String()).
		Str("role", profile.Role).
		Msg("Fetched profile record")

	return profile, nil
}
