package api

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/stocktakehq/stocktake-go/credentials"
)

// PublicClient serves the preview surface, where authentication is
// best-effort: a stored token is attached as-is without an expiry check,
// no refresh is ever triggered, and a 401 comes back as KindAuthRequired
// for the caller to act on. A nil store means fully anonymous use.
type PublicClient struct {
	exec   *executor
	store  credentials.Store
	logger zerolog.Logger
}

// NewPublic creates a public client from the given config. Gate and
// Session are ignored; the public path never refreshes.
func NewPublic(cfg Config) *PublicClient {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = NewHTTPClient()
	}
	return &PublicClient{
		exec: &executor{
			baseURL:    cfg.BaseURL,
			httpClient: cfg.HTTPClient,
			logger:     cfg.Logger,
		},
		store:  cfg.Store,
		logger: cfg.Logger,
	}
}

// Do runs one request with whatever token happens to be stored. The
// result is terminal either way: 401 maps to KindAuthRequired, 403 stays
// KindForbidden regardless of auth state.
func (p *PublicClient) Do(ctx context.Context, ep Endpoint, body, out any) error {
	var token string
	if p.store != nil {
		token = p.store.AccessToken()
	}

	err := p.exec.send(ctx, ep, token, body, out)
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Kind == KindUnauthorized {
		return &Error{
			Kind:      KindAuthRequired,
			Status:    apiErr.Status,
			Message:   "authentication required",
			RequestID: apiErr.RequestID,
		}
	}
	return err
}

// Get runs a GET of the path and decodes the response into out.
func (p *PublicClient) Get(ctx context.Context, path string, out any) error {
	return p.Do(ctx, Get(path), nil, out)
}

// Preview returns typed access to the public preview surface.
func (p *PublicClient) Preview() *Preview {
	return &Preview{client: p}
}
