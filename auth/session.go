package auth

import "sync"

// Session is the process-wide session-expired broadcast. It fires when a
// refresh attempt definitively fails or the server keeps rejecting a
// freshly refreshed token; consumers clear local session state and prompt
// re-authentication. A nil *Session is legal everywhere and drops the
// signal.
type Session struct {
	mu      sync.Mutex
	expired bool
	ch      chan struct{}
}

// NewSession creates an armed session broadcast.
func NewSession() *Session {
	return &Session{ch: make(chan struct{})}
}

// ExpiredC returns a channel that is closed once the session expires.
// On a nil Session it returns nil, which blocks forever.
func (s *Session) ExpiredC() <-chan struct{} {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

// Expired reports whether the signal has fired since the last Reset.
func (s *Session) Expired() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expired
}

// NotifyExpired fires the broadcast. Firing an already-expired session is
// a no-op, so overlapping failures still produce one signal.
func (s *Session) NotifyExpired() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired {
		return
	}
	s.expired = true
	close(s.ch)
}

// Reset re-arms the broadcast after a successful re-authentication.
func (s *Session) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.expired {
		return
	}
	s.expired = false
	s.ch = make(chan struct{})
}
