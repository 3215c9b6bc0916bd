package api

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/stocktakehq/stocktake-go/auth"
	"github.com/stocktakehq/stocktake-go/credentials"
)

// Config carries the dependencies of a client. BaseURL and Store are
// required for authenticated use; everything else has a default.
type Config struct {
	BaseURL    string
	Store      credentials.Store
	Gate       *auth.Gate
	Session    *auth.Session
	HTTPClient HTTPClient
	Logger     zerolog.Logger
}

// Client is the authenticated Stocktake API client. It attaches the
// stored bearer token to every request, refreshes proactively when the
// token looks expired, and retries exactly once after a server-side 401.
type Client struct {
	exec    *executor
	store   credentials.Store
	gate    *auth.Gate
	session *auth.Session
	logger  zerolog.Logger
}

// New creates a client from the given config.
func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = NewHTTPClient()
	}
	return &Client{
		exec: &executor{
			baseURL:    cfg.BaseURL,
			httpClient: cfg.HTTPClient,
			logger:     cfg.Logger,
		},
		store:   cfg.Store,
		gate:    cfg.Gate,
		session: cfg.Session,
		logger:  cfg.Logger,
	}
}

// Do runs one logical request against the endpoint. body is marshalled
// as JSON when non-nil; out receives the decoded 2xx payload when
// non-nil. The request fails before reaching the network only when a
// needed token refresh fails.
func (c *Client) Do(ctx context.Context, ep Endpoint, body, out any) error {
	if c.store.Expired() {
		if err := c.gate.EnsureFresh(ctx); err != nil {
			return &Error{Kind: KindRefreshFailure, Message: "session cannot be refreshed", Err: err}
		}
	}

	// One resend at most, and only after a 401
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		err := c.exec.send(ctx, ep, c.store.AccessToken(), body, out)
		if !IsKind(err, KindUnauthorized) {
			return err
		}
		lastErr = err

		if attempt == 1 {
			// The server rejects even a freshly refreshed token; the
			// session is beyond saving from here
			c.logger.Error().Msg("Still received 401 after token refresh, giving up")
			c.session.NotifyExpired()
			return lastErr
		}

		c.logger.Warn().Msg("Received 401 Unauthorized, attempting token refresh...")
		if refreshErr := c.gate.ForceRefresh(ctx); refreshErr != nil {
			// The gate has already fired the session signal
			c.logger.Error().Err(refreshErr).Msg("Failed to refresh credentials after 401 error")
			return lastErr
		}
		c.logger.Info().Msg("Successfully refreshed credentials, retrying request...")
	}
	return lastErr
}

// Get runs a GET of the path and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, Get(path), nil, out)
}

// Post runs a POST of body to the path and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Post(path), body, out)
}

// Put runs a PUT of body to the path and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Put(path), body, out)
}

// Delete runs a DELETE of the path, discarding any response body.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, Delete(path), nil, nil)
}

// Items returns typed access to inventory items.
func (c *Client) Items() *Items {
	return &Items{client: c}
}

// Locations returns typed access to storage locations.
func (c *Client) Locations() *Locations {
	return &Locations{client: c}
}

// Events returns the live-events stream client.
func (c *Client) Events() *Stream {
	return &Stream{client: c}
}
