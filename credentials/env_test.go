package credentials

import (
	"errors"
	"testing"
	"time"
)

func TestEnvReadsVariables(t *testing.T) {
	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	t.Setenv(EnvAccessToken, "env-access")
	t.Setenv(EnvRefreshToken, "env-refresh")
	t.Setenv(EnvExpiresAt, expires.Format(time.RFC3339))

	store := NewEnv()
	if got := store.AccessToken(); got != "env-access" {
		t.Errorf("Expected env-access, got %s", got)
	}
	if got := store.RefreshToken(); got != "env-refresh" {
		t.Errorf("Expected env-refresh, got %s", got)
	}
	if store.Expired() {
		t.Error("Token expiring in an hour should not be expired")
	}
}

func TestEnvUnparsableExpiry(t *testing.T) {
	t.Setenv(EnvAccessToken, "env-access")
	t.Setenv(EnvRefreshToken, "env-refresh")
	t.Setenv(EnvExpiresAt, "not-a-timestamp")

	store := NewEnv()
	if !store.Expired() {
		t.Error("Unparsable expiry should count as expired")
	}
}

func TestEnvIsReadOnly(t *testing.T) {
	store := NewEnv()

	err := store.Save(TokenSet{AccessToken: "tok"})
	if !errors.Is(err, ErrReadOnly) {
		t.Errorf("Expected ErrReadOnly from Save, got %v", err)
	}

	err = store.Clear()
	if !errors.Is(err, ErrReadOnly) {
		t.Errorf("Expected ErrReadOnly from Clear, got %v", err)
	}
}
