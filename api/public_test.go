package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocktakehq/stocktake-go/credentials"
)

func newPublicClient(store credentials.Store, apiHandler http.HandlerFunc, t *testing.T) *PublicClient {
	t.Helper()
	srv := httptest.NewServer(apiHandler)
	t.Cleanup(srv.Close)
	return NewPublic(Config{
		BaseURL: srv.URL,
		Store:   store,
		Logger:  zerolog.Nop(),
	})
}

func TestPublicClientAnonymous(t *testing.T) {
	var gotAuth string
	pc := newPublicClient(nil, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"items":[{"id":"itm_1","name":"Widget","public":true}]}`))
	}, t)

	items, err := pc.Preview().Catalog(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].Public)
	assert.Empty(t, gotAuth, "no token means no Authorization header")
}

func TestPublicClientAttachesTokenWithoutExpiryCheck(t *testing.T) {
	// The stored token expired long ago; the public path attaches it
	// anyway and lets the server decide
	store := credentials.NewMemoryWith(credentials.TokenSet{
		AccessToken:  "long-expired",
		RefreshToken: "valid-refresh",
		ExpiresAt:    time.Now().Add(-time.Hour),
	})

	var gotAuth string
	pc := newPublicClient(store, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"id":"itm_1","name":"Widget","public":false}`))
	}, t)

	item, err := pc.Preview().Item(context.Background(), "itm_1")
	require.NoError(t, err)
	assert.Equal(t, "itm_1", item.ID)
	assert.Equal(t, "Bearer long-expired", gotAuth)
}

func TestPublicClient401IsAuthRequired(t *testing.T) {
	var apiCalls int
	pc := newPublicClient(nil, func(w http.ResponseWriter, r *http.Request) {
		apiCalls++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"sign in to view this item"}}`))
	}, t)

	_, err := pc.Preview().Item(context.Background(), "itm_private")
	assert.True(t, IsKind(err, KindAuthRequired), "the public path surfaces 401 as needs-sign-in")
	assert.False(t, IsKind(err, KindUnauthorized))
	assert.Equal(t, 1, apiCalls, "no refresh, no retry")
}

func TestPublicClient403StaysForbidden(t *testing.T) {
	store := credentials.NewMemoryWith(credentials.TokenSet{
		AccessToken: "valid-but-not-whitelisted",
		ExpiresAt:   time.Now().Add(time.Hour),
	})
	pc := newPublicClient(store, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"message":"not on the preview whitelist"}}`))
	}, t)

	_, err := pc.Preview().Item(context.Background(), "itm_private")
	assert.True(t, IsKind(err, KindForbidden), "authenticated but not authorized is terminal")
}
