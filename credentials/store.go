package credentials

import "time"

// ExpiryLeeway is how long before the recorded expiry a token is already
// treated as expired, so a token cannot lapse between the local check and
// the server receiving the request.
const ExpiryLeeway = 30 * time.Second

// TokenSet holds one complete set of OAuth credentials. A refresh always
// replaces the whole set; tokens are never updated field by field.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the access token is unusable: missing, past its
// expiry, or within leeway of it. A zero ExpiresAt counts as expired.
func (t TokenSet) Expired(leeway time.Duration) bool {
	if t.AccessToken == "" || t.ExpiresAt.IsZero() {
		return true
	}
	return !time.Now().Add(leeway).Before(t.ExpiresAt)
}

// Store is the token storage contract the client core depends on.
// Implementations must be safe for concurrent callers; the core never
// assumes external locking. The only ordering guarantee is last-write-wins
// on Save.
type Store interface {
	// AccessToken returns the current access token, or "" when absent.
	AccessToken() string
	// RefreshToken returns the current refresh token, or "" when absent.
	RefreshToken() string
	// Expired reports whether the stored access token needs refreshing
	// before authenticated use.
	Expired() bool
	// Save replaces the stored token set wholesale.
	Save(TokenSet) error
	// Clear removes all stored tokens.
	Clear() error
}
