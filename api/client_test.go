package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocktakehq/stocktake-go/auth"
	"github.com/stocktakehq/stocktake-go/credentials"
)

// clientFixture wires a real gate, refresher and store against an API
// handler and a counting token endpoint.
type clientFixture struct {
	client     *Client
	store      *credentials.Memory
	session    *auth.Session
	tokenCalls *int32
}

func newClientFixture(t *testing.T, set credentials.TokenSet, apiHandler http.HandlerFunc) *clientFixture {
	t.Helper()

	var tokenCalls int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		json.NewEncoder(w).Encode(auth.TokenResponse{
			AccessToken:  "refreshed-access",
			RefreshToken: "rotated-refresh",
			ExpiresIn:    3600,
		})
	}))
	t.Cleanup(tokenSrv.Close)

	apiSrv := httptest.NewServer(apiHandler)
	t.Cleanup(apiSrv.Close)

	store := credentials.NewMemoryWith(set)
	session := auth.NewSession()
	refresher := auth.NewRefresher(zerolog.Nop(), tokenSrv.URL, "client-123")
	gate := auth.NewGate(zerolog.Nop(), store, refresher, session)

	client := New(Config{
		BaseURL: apiSrv.URL,
		Store:   store,
		Gate:    gate,
		Session: session,
		Logger:  zerolog.Nop(),
	})

	return &clientFixture{
		client:     client,
		store:      store,
		session:    session,
		tokenCalls: &tokenCalls,
	}
}

// failingTokenFixture is the same wiring with a token endpoint that
// always rejects the grant.
func failingTokenFixture(t *testing.T, set credentials.TokenSet, apiHandler http.HandlerFunc) *clientFixture {
	t.Helper()

	var tokenCalls int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(tokenSrv.Close)

	apiSrv := httptest.NewServer(apiHandler)
	t.Cleanup(apiSrv.Close)

	store := credentials.NewMemoryWith(set)
	session := auth.NewSession()
	refresher := auth.NewRefresher(zerolog.Nop(), tokenSrv.URL, "client-123")
	gate := auth.NewGate(zerolog.Nop(), store, refresher, session)

	client := New(Config{
		BaseURL: apiSrv.URL,
		Store:   store,
		Gate:    gate,
		Session: session,
		Logger:  zerolog.Nop(),
	})

	return &clientFixture{
		client:     client,
		store:      store,
		session:    session,
		tokenCalls: &tokenCalls,
	}
}

func freshSet() credentials.TokenSet {
	return credentials.TokenSet{
		AccessToken:  "live-access",
		RefreshToken: "valid-refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

func expiredSet() credentials.TokenSet {
	return credentials.TokenSet{
		AccessToken:  "stale-access",
		RefreshToken: "valid-refresh",
		ExpiresAt:    time.Now().Add(-time.Second),
	}
}

func itemsJSON() string {
	return `{"items":[{"id":"itm_1","sku":"WIDGET-1","name":"Widget","quantity":3}]}`
}

func TestClientUsesStoredToken(t *testing.T) {
	var gotAuth string
	fx := newClientFixture(t, freshSet(), func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(itemsJSON()))
	})

	items, err := fx.client.Items().List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "itm_1", items[0].ID)
	assert.Equal(t, "Bearer live-access", gotAuth)
	assert.Equal(t, int32(0), atomic.LoadInt32(fx.tokenCalls), "a fresh token must not trigger a refresh")
}

func TestClientProactiveRefreshIsShared(t *testing.T) {
	// Token expired one second ago, valid refresh token, three concurrent
	// GETs: one refresh call, every GET carries the new token
	var mu sync.Mutex
	var auths []string
	fx := newClientFixture(t, expiredSet(), func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auths = append(auths, r.Header.Get("Authorization"))
		mu.Unlock()
		w.Write([]byte(itemsJSON()))
	})

	const callers = 3
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = fx.client.Items().List(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "caller %d", i)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(fx.tokenCalls), "refresh endpoint must see exactly one call")
	require.Len(t, auths, callers)
	for _, a := range auths {
		assert.Equal(t, "Bearer refreshed-access", a)
	}
	assert.False(t, fx.session.Expired())
}

func TestClientRetriesOnceAfter401(t *testing.T) {
	// The server has revoked the current token even though the local
	// clock still trusts it
	var apiCalls int32
	fx := newClientFixture(t, freshSet(), func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&apiCalls, 1)
		if r.Header.Get("Authorization") != "Bearer refreshed-access" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"invalid or expired token"}}`))
			return
		}
		w.Write([]byte(itemsJSON()))
	})

	items, err := fx.client.Items().List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, int32(2), atomic.LoadInt32(&apiCalls), "one send plus one resend")
	assert.Equal(t, int32(1), atomic.LoadInt32(fx.tokenCalls))
	assert.False(t, fx.session.Expired())
	assert.Equal(t, "refreshed-access", fx.store.AccessToken())
}

func TestClientSecond401IsTerminal(t *testing.T) {
	var apiCalls int32
	fx := newClientFixture(t, freshSet(), func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&apiCalls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid or expired token"}}`))
	})

	err := fx.client.Get(context.Background(), "/v1/items", nil)
	assert.True(t, IsKind(err, KindUnauthorized))

	assert.Equal(t, int32(2), atomic.LoadInt32(&apiCalls), "exactly one resend, then give up")
	assert.Equal(t, int32(1), atomic.LoadInt32(fx.tokenCalls), "no second refresh after the resend")
	assert.True(t, fx.session.Expired(), "a 401 surviving a refresh expires the session")
}

func TestClientProactiveRefreshFailure(t *testing.T) {
	var apiCalls int32
	fx := failingTokenFixture(t, expiredSet(), func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&apiCalls, 1)
	})

	err := fx.client.Get(context.Background(), "/v1/items", nil)
	assert.True(t, IsKind(err, KindRefreshFailure))

	assert.Equal(t, int32(0), atomic.LoadInt32(&apiCalls), "the request must fail before reaching the network")
	assert.Equal(t, int32(1), atomic.LoadInt32(fx.tokenCalls))
	assert.True(t, fx.session.Expired())
}

func TestClientNoRefreshTokenFailsImmediately(t *testing.T) {
	var apiCalls int32
	set := credentials.TokenSet{
		AccessToken: "stale-access",
		ExpiresAt:   time.Now().Add(-time.Second),
	}
	fx := newClientFixture(t, set, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&apiCalls, 1)
	})

	err := fx.client.Get(context.Background(), "/v1/items", nil)
	assert.True(t, IsKind(err, KindRefreshFailure))
	assert.ErrorIs(t, err, auth.ErrNoRefreshToken)

	assert.Equal(t, int32(0), atomic.LoadInt32(&apiCalls))
	assert.Equal(t, int32(0), atomic.LoadInt32(fx.tokenCalls), "no network call without a refresh token")
	assert.True(t, fx.session.Expired())
}

func TestClient401ThenRefreshFailure(t *testing.T) {
	var apiCalls int32
	fx := failingTokenFixture(t, freshSet(), func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&apiCalls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := fx.client.Get(context.Background(), "/v1/items", nil)
	assert.True(t, IsKind(err, KindUnauthorized), "a failed 401-triggered refresh surfaces the 401")

	assert.Equal(t, int32(1), atomic.LoadInt32(&apiCalls), "no resend without fresh credentials")
	assert.Equal(t, int32(1), atomic.LoadInt32(fx.tokenCalls))
	assert.True(t, fx.session.Expired())
}

func TestClientDoesNotRetryTerminalFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		kind   Kind
	}{
		{"server error", http.StatusServiceUnavailable, KindServerError},
		{"not found", http.StatusNotFound, KindNotFound},
		{"forbidden", http.StatusForbidden, KindForbidden},
		{"client error", http.StatusBadRequest, KindClientError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var apiCalls int32
			fx := newClientFixture(t, freshSet(), func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&apiCalls, 1)
				w.WriteHeader(tc.status)
			})

			err := fx.client.Get(context.Background(), "/v1/items", nil)
			assert.True(t, IsKind(err, tc.kind))
			assert.Equal(t, int32(1), atomic.LoadInt32(&apiCalls), "terminal failures are never retried")
			assert.Equal(t, int32(0), atomic.LoadInt32(fx.tokenCalls))
		})
	}
}

func TestClientCancellationNeverRefreshes(t *testing.T) {
	started := make(chan struct{})
	fx := newClientFixture(t, freshSet(), func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- fx.client.Get(ctx, "/v1/items", nil)
	}()

	<-started
	cancel()
	err := <-done

	assert.True(t, IsKind(err, KindNetworkFailure), "cancellation is a network failure, not an auth failure")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), atomic.LoadInt32(fx.tokenCalls))
	assert.False(t, fx.session.Expired())
}

func TestClientTypedResources(t *testing.T) {
	fx := newClientFixture(t, freshSet(), func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "POST /v1/items":
			w.Write([]byte(`{"id":"itm_9","sku":"CRATE-1","name":"Crate","quantity":5}`))
		case "POST /v1/items/itm_9/adjust":
			w.Write([]byte(`{"id":"itm_9","sku":"CRATE-1","name":"Crate","quantity":3}`))
		case "GET /v1/locations":
			w.Write([]byte(`{"locations":[{"id":"loc_1","name":"Main warehouse","kind":"warehouse"}]}`))
		case "DELETE /v1/items/itm_9":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()

	item, err := fx.client.Items().Create(ctx, ItemCreate{SKU: "CRATE-1", Name: "Crate", Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, "itm_9", item.ID)

	item, err = fx.client.Items().Adjust(ctx, "itm_9", -2)
	require.NoError(t, err)
	assert.Equal(t, 3, item.Quantity)

	locs, err := fx.client.Locations().List(ctx)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "Main warehouse", locs[0].Name)

	require.NoError(t, fx.client.Items().Delete(ctx, "itm_9"))
}
