// Package mockapi is an in-memory stand-in for the Stocktake backend.
// It speaks the same wire protocol as the real service — the OAuth
// refresh grant, bearer-authenticated CRUD, the public preview surface
// and the events websocket — so the SDK can be exercised end to end
// without network access. State lives in seedable in-memory maps.
package mockapi

import (
	"crypto/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultTokenTTL = 15 * time.Minute

// Config controls the mock backend. Zero values get defaults: a random
// JWT secret, a 15 minute token TTL and the "stocktake-app" client ID.
type Config struct {
	ClientID  string
	JWTSecret []byte
	TokenTTL  time.Duration
	Logger    zerolog.Logger
}

// Item is one stored inventory item.
type Item struct {
	ID         string    `json:"id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	Quantity   int       `json:"quantity"`
	LocationID string    `json:"location_id,omitempty"`
	Public     bool      `json:"-"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Location is one stored storage location.
type Location struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// Server is the mock backend. Create it with New and serve it directly
// or mount it in an httptest.Server.
type Server struct {
	cfg    Config
	logger zerolog.Logger
	engine *gin.Engine
	hub    *hub

	mu            sync.Mutex
	refreshTokens map[string]string // refresh token -> subject, removed on use
	items         map[string]*Item
	locations     map[string]*Location
	whitelist     map[string]bool // subjects allowed to preview private items
}

// New creates a mock backend with empty state.
func New(cfg Config) *Server {
	if cfg.ClientID == "" {
		cfg.ClientID = "stocktake-app"
	}
	if len(cfg.JWTSecret) == 0 {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			panic(err)
		}
		cfg.JWTSecret = secret
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}

	s := &Server{
		cfg:           cfg,
		logger:        cfg.Logger,
		hub:           newHub(cfg.Logger),
		refreshTokens: make(map[string]string),
		items:         make(map[string]*Item),
		locations:     make(map[string]*Location),
		whitelist:     make(map[string]bool),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := gin.New()
	r.Use(gin.Recovery(), s.loggingMiddleware())

	r.GET("/healthz", s.healthHandler)
	r.POST("/oauth/token", s.tokenHandler)

	r.GET("/v1/preview/catalog", s.previewCatalogHandler)
	r.GET("/v1/preview/items/:id", s.previewItemHandler)

	authed := r.Group("/v1", s.authMiddleware())
	authed.GET("/items", s.listItemsHandler)
	authed.POST("/items", s.createItemHandler)
	authed.GET("/items/:id", s.getItemHandler)
	authed.DELETE("/items/:id", s.deleteItemHandler)
	authed.POST("/items/:id/adjust", s.adjustItemHandler)
	authed.GET("/locations", s.listLocationsHandler)
	authed.POST("/locations", s.createLocationHandler)
	authed.GET("/events", s.eventsHandler)

	s.engine = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info().
			Str("method", c.Request.Method).
			Str("uri", c.Request.RequestURI).
			Str("remote_addr", c.Request.RemoteAddr).
			Int("status_code", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request completed")
	}
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// errorJSON writes the backend's error envelope.
func errorJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"message": msg}})
}

// SeedItem stores an item and returns its generated ID.
func (s *Server) SeedItem(item Item) string {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = &item
	return item.ID
}

// SeedLocation stores a location and returns its generated ID.
func (s *Server) SeedLocation(loc Location) string {
	if loc.ID == "" {
		loc.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations[loc.ID] = &loc
	return loc.ID
}

// IssueRefreshToken mints a refresh token for the given subject, as the
// (out of scope) initial sign-in flow would.
func (s *Server) IssueRefreshToken(subject string) string {
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTokens[token] = subject
	return token
}

// RevokeRefreshToken invalidates a refresh token, as a sign-out or a
// grant on another device would.
func (s *Server) RevokeRefreshToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refreshTokens, token)
}

// AllowPreview puts a subject on the private-preview whitelist.
func (s *Server) AllowPreview(subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.whitelist[subject] = true
}
