package credentials

import (
	"errors"
	"os"
	"time"
)

// Environment variable names read by the Env store.
const (
	EnvAccessToken  = "STOCKTAKE_ACCESS_TOKEN"
	EnvRefreshToken = "STOCKTAKE_REFRESH_TOKEN"
	EnvExpiresAt    = "STOCKTAKE_EXPIRES_AT"
)

// ErrReadOnly is returned by stores that cannot persist tokens.
var ErrReadOnly = errors.New("credentials store is read-only")

// Env is a read-only Store populated from environment variables at
// construction. Save and Clear fail; callers that need persistence after
// a refresh should use File instead.
type Env struct {
	set TokenSet
}

// NewEnv reads STOCKTAKE_ACCESS_TOKEN, STOCKTAKE_REFRESH_TOKEN and
// STOCKTAKE_EXPIRES_AT (RFC 3339). An unparsable expiry is treated as
// absent, so the token counts as expired.
func NewEnv() *Env {
	set := TokenSet{
		AccessToken:  os.Getenv(EnvAccessToken),
		RefreshToken: os.Getenv(EnvRefreshToken),
	}
	if raw := os.Getenv(EnvExpiresAt); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			set.ExpiresAt = t
		}
	}
	return &Env{set: set}
}

func (e *Env) AccessToken() string {
	return e.set.AccessToken
}

func (e *Env) RefreshToken() string {
	return e.set.RefreshToken
}

func (e *Env) Expired() bool {
	return e.set.Expired(ExpiryLeeway)
}

// Save is rejected; environment credentials cannot be updated in place.
func (e *Env) Save(TokenSet) error {
	return ErrReadOnly
}

// Clear is rejected; environment credentials cannot be removed.
func (e *Env) Clear() error {
	return ErrReadOnly
}
