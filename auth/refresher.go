package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/stocktakehq/stocktake-go/credentials"
)

// refreshTimeout bounds a single token endpoint call.
const refreshTimeout = 30 * time.Second

var (
	// ErrNoRefreshToken means the store holds nothing to exchange; a
	// refresh cannot even be attempted.
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrRefreshTokenInvalid means the server rejected the refresh token
	// itself (invalid_grant or invalid_token); only a new sign-in helps.
	ErrRefreshTokenInvalid = errors.New("refresh token expired or invalid")
)

// HTTPClient is the minimal HTTP client surface, satisfied by
// *http.Client and by test doubles.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Refresher exchanges a refresh token for a new token set at the OAuth
// token endpoint.
type Refresher struct {
	tokenURL   string
	clientID   string
	httpClient HTTPClient
	logger     zerolog.Logger
}

// NewRefresher creates a refresher for the given token endpoint and
// client ID.
func NewRefresher(logger zerolog.Logger, tokenURL, clientID string) *Refresher {
	return &Refresher{
		tokenURL:   tokenURL,
		clientID:   clientID,
		httpClient: &http.Client{Timeout: refreshTimeout},
		logger:     logger,
	}
}

// NewRefresherWithClient creates a refresher using a custom HTTP client.
func NewRefresherWithClient(logger zerolog.Logger, tokenURL, clientID string, httpClient HTTPClient) *Refresher {
	r := NewRefresher(logger, tokenURL, clientID)
	if httpClient != nil {
		r.httpClient = httpClient
	}
	return r
}

// Refresh posts the refresh_token grant and returns the replacement token
// set. When the server omits a new refresh token, the old one is carried
// into the returned set. A missing refresh token fails immediately with
// ErrNoRefreshToken and no network call.
func (r *Refresher) Refresh(ctx context.Context, refreshToken string) (credentials.TokenSet, error) {
	if refreshToken == "" {
		return credentials.TokenSet{}, ErrNoRefreshToken
	}

	reqCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	data.Set("client_id", r.clientID)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, r.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return credentials.TokenSet{}, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return credentials.TokenSet{}, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return credentials.TokenSet{}, fmt.Errorf("failed to read refresh response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		r.logger.Warn().
			Int("status_code", resp.StatusCode).
			Msg("Token endpoint rejected refresh")
		var errResp ErrorResponse
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil {
			// invalid_grant / invalid_token mean the refresh token itself
			// is dead, not a transient server problem
			if errResp.Error == "invalid_grant" || errResp.Error == "invalid_token" {
				return credentials.TokenSet{}, fmt.Errorf("%w: %s", ErrRefreshTokenInvalid, errResp.Error)
			}
		}
		return credentials.TokenSet{}, &oauth2.RetrieveError{
			Response: resp,
			Body:     body,
		}
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return credentials.TokenSet{}, fmt.Errorf("failed to parse refresh response: %w", err)
	}
	if err := validateTokenResponse(tokenResp); err != nil {
		return credentials.TokenSet{}, fmt.Errorf("invalid refresh response: %w", err)
	}

	// Rotation fallback: a server in fixed mode omits refresh_token, so
	// the previous one stays valid and must be kept
	newRefreshToken := tokenResp.RefreshToken
	if newRefreshToken == "" {
		newRefreshToken = refreshToken
	}

	set := credentials.TokenSet{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: newRefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}

	r.logger.Debug().
		Time("expires_at", set.ExpiresAt).
		Bool("refresh_token_rotated", tokenResp.RefreshToken != "").
		Msg("Token refresh succeeded")

	return set, nil
}

// validateTokenResponse checks the fields a usable grant must carry.
func validateTokenResponse(tr TokenResponse) error {
	if tr.AccessToken == "" {
		return errors.New("access_token is empty")
	}
	if tr.ExpiresIn <= 0 {
		return fmt.Errorf("expires_in must be positive, got: %d", tr.ExpiresIn)
	}
	// token_type is optional, but when present it must be Bearer
	if tr.TokenType != "" && !strings.EqualFold(tr.TokenType, "Bearer") {
		return fmt.Errorf("unexpected token_type: %s (expected Bearer)", tr.TokenType)
	}
	return nil
}
