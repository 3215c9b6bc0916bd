package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const streamHandshakeTimeout = 10 * time.Second

// Event is one live inventory change pushed by the backend.
type Event struct {
	Type     string    `json:"type"`
	ItemID   string    `json:"item_id"`
	Quantity int       `json:"quantity"`
	At       time.Time `json:"at"`
}

// Stream delivers live inventory events over a websocket, authenticated
// with the same bearer credential as the HTTP client.
type Stream struct {
	client *Client
}

// Watch dials the events endpoint and delivers events on the returned
// channel until ctx ends or the peer closes. The channel is closed when
// the stream ends. Dialing follows the usual auth protocol: proactive
// refresh when the token looks expired, one refresh and re-dial after a
// 401 handshake rejection.
func (s *Stream) Watch(ctx context.Context) (<-chan Event, error) {
	c := s.client

	if c.store.Expired() {
		if err := c.gate.EnsureFresh(ctx); err != nil {
			return nil, &Error{Kind: KindRefreshFailure, Message: "session cannot be refreshed", Err: err}
		}
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}

	events := make(chan Event)

	// Cancellation must close the read loop promptly
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go func() {
		defer conn.Close()
		defer close(events)

		for {
			msgType, payload, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
					return
				}
				if ctx.Err() != nil {
					return
				}
				c.logger.Error().Err(err).Msg("Event stream read failed")
				return
			}
			if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
				continue
			}

			var evt Event
			if err := json.Unmarshal(payload, &evt); err != nil {
				c.logger.Warn().Err(err).Msg("Skipping undecodable event frame")
				continue
			}

			select {
			case events <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

// dial opens the websocket, refreshing and re-dialing once when the
// handshake is rejected with a 401.
func (s *Stream) dial(ctx context.Context) (*websocket.Conn, error) {
	c := s.client

	wsURL, err := toWebSocketURL(Get("/v1/events").URL(c.exec.baseURL))
	if err != nil {
		return nil, &Error{Kind: KindClientError, Message: "invalid events URL", Err: err}
	}

	dialer := websocket.Dialer{
		Proxy:             http.ProxyFromEnvironment,
		HandshakeTimeout:  streamHandshakeTimeout,
		EnableCompression: true,
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		headers := http.Header{}
		headers.Set("Authorization", bearerHeader(c.store.AccessToken()))

		conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
		if err == nil {
			return conn, nil
		}
		if resp == nil {
			return nil, &Error{Kind: KindNetworkFailure, Message: "failed to open event stream", Err: err}
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		lastErr = classifyStatus(resp.StatusCode, body, "")

		if resp.StatusCode != http.StatusUnauthorized {
			return nil, lastErr
		}
		if attempt == 1 {
			c.logger.Error().Msg("Still received 401 after token refresh, giving up")
			c.session.NotifyExpired()
			return nil, lastErr
		}

		c.logger.Warn().Msg("Received 401 Unauthorized, attempting token refresh...")
		if refreshErr := c.gate.ForceRefresh(ctx); refreshErr != nil {
			c.logger.Error().Err(refreshErr).Msg("Failed to refresh credentials after 401 error")
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// toWebSocketURL rewrites an HTTP base URL onto the websocket scheme.
func toWebSocketURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL %q: %w", rawURL, err)
	}
	switch strings.ToLower(strings.TrimSpace(u.Scheme)) {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	return u.String(), nil
}
