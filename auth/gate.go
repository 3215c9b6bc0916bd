package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stocktakehq/stocktake-go/credentials"
)

// refreshCall is one in-flight refresh shared by every caller that
// demanded it. err is written exactly once, before done is closed.
type refreshCall struct {
	done chan struct{}
	err  error
}

// Gate collapses concurrent refresh demands into at most one token
// endpoint call. Callers that arrive while a refresh is running join it
// and receive the same outcome; the gate never retries on its own.
type Gate struct {
	store     credentials.Store
	refresher *Refresher
	session   *Session
	logger    zerolog.Logger

	mu      sync.Mutex
	current *refreshCall
}

// NewGate creates a gate over the given store and refresher. session may
// be nil when nobody listens for forced sign-outs.
func NewGate(logger zerolog.Logger, store credentials.Store, refresher *Refresher, session *Session) *Gate {
	return &Gate{
		store:     store,
		refresher: refresher,
		session:   session,
		logger:    logger,
	}
}

// EnsureFresh makes sure the store holds a usable access token. If the
// store is already fresh this is a no-op with zero network calls; if a
// refresh is in flight the caller joins it; otherwise this caller starts
// the one refresh. All joined callers receive the same outcome.
func (g *Gate) EnsureFresh(ctx context.Context) error {
	return g.refresh(ctx, false)
}

// ForceRefresh refreshes even when the local clock still considers the
// token fresh, for when the server has already rejected it with a 401.
// An in-flight refresh is joined rather than duplicated.
func (g *Gate) ForceRefresh(ctx context.Context) error {
	return g.refresh(ctx, true)
}

func (g *Gate) refresh(ctx context.Context, force bool) error {
	g.mu.Lock()
	if call := g.current; call != nil {
		g.mu.Unlock()
		g.logger.Debug().Msg("Joining in-flight token refresh")
		return g.wait(ctx, call)
	}

	// Re-check under the lock: another caller may have refreshed between
	// this caller's expiry check and entering the gate
	if !force && !g.store.Expired() {
		g.mu.Unlock()
		return nil
	}

	call := &refreshCall{done: make(chan struct{})}
	g.current = call
	g.mu.Unlock()

	// The outcome is shared by every waiter, so the call must not die
	// with whichever caller happened to start it
	go g.run(context.WithoutCancel(ctx), call)

	return g.wait(ctx, call)
}

// run performs the one refresh and publishes its outcome. The store is
// updated before done is closed so released waiters read the new token.
func (g *Gate) run(ctx context.Context, call *refreshCall) {
	set, err := g.refresher.Refresh(ctx, g.store.RefreshToken())
	if err != nil {
		g.logger.Error().Err(err).Msg("❌ Token refresh failed")
		g.session.NotifyExpired()
		err = fmt.Errorf("token refresh failed: %w", err)
	} else if saveErr := g.store.Save(set); saveErr != nil {
		// The grant itself succeeded; the session is not dead
		g.logger.Error().Err(saveErr).Msg("Failed to save refreshed tokens")
		err = fmt.Errorf("failed to save refreshed tokens: %w", saveErr)
	} else {
		g.logger.Info().Msg("✅ Token refreshed")
	}

	call.err = err

	g.mu.Lock()
	g.current = nil
	g.mu.Unlock()

	close(call.done)
}

// wait blocks until the call publishes or the caller's own context ends.
// A caller that gives up does not affect the refresh or its co-waiters.
func (g *Gate) wait(ctx context.Context, call *refreshCall) error {
	select {
	case <-call.done:
		return call.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// KeepFresh refreshes ahead of demand on a ticker until ctx ends, for
// long-running processes. Failures are logged and the loop keeps going;
// the next tick or on-demand caller sees the same failure path.
func (g *Gate) KeepFresh(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := g.EnsureFresh(ctx); err != nil {
				g.logger.Error().Err(err).Msg("Background token refresh failed")
			}
		case <-ctx.Done():
			g.logger.Debug().Msg("Background token refresh stopped")
			return
		}
	}
}
