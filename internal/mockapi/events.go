package mockapi

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Event is one stock change pushed to event stream subscribers.
type Event struct {
	Type     string    `json:"type"`
	ItemID   string    `json:"item_id"`
	Quantity int       `json:"quantity"`
	At       time.Time `json:"at"`
}

// hub fans stock-change events out to connected websocket clients. A
// slow client is dropped rather than allowed to block the others.
type hub struct {
	logger zerolog.Logger

	mu   sync.Mutex
	subs map[*websocket.Conn]chan Event
}

func newHub(logger zerolog.Logger) *hub {
	return &hub{
		logger: logger,
		subs:   make(map[*websocket.Conn]chan Event),
	}
}

func (h *hub) subscribe(conn *websocket.Conn) chan Event {
	ch := make(chan Event, 16)
	h.mu.Lock()
	h.subs[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unsubscribe(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.subs[conn]; ok {
		delete(h.subs, conn)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(evt Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.subs {
		select {
		case ch <- evt:
		default:
			h.logger.Warn().Msg("Dropping slow event stream subscriber")
			delete(h.subs, conn)
			close(ch)
		}
	}
}

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
}

// eventsHandler upgrades the connection and streams one JSON event per
// text frame until the client disconnects. Auth has already run.
func (s *Server) eventsHandler(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade events connection")
		return
	}

	events := s.hub.subscribe(conn)
	s.logger.Info().
		Str("subject", c.GetString("subject")).
		Str("remote_addr", c.Request.RemoteAddr).
		Msg("Event stream subscriber connected")

	// Reads only matter for detecting the client going away
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.hub.unsubscribe(conn)
				conn.Close()
				return
			}
		}
	}()

	go func() {
		defer conn.Close()
		for evt := range events {
			if err := conn.WriteJSON(evt); err != nil {
				s.hub.unsubscribe(conn)
				return
			}
		}
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}()
}
