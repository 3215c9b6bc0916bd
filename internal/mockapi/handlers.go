package mockapi

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type itemCreateRequest struct {
	SKU        string `json:"sku" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Quantity   int    `json:"quantity"`
	LocationID string `json:"location_id"`
	Public     bool   `json:"public"`
}

type adjustRequest struct {
	Delta int `json:"delta"`
}

type locationCreateRequest struct {
	Name string `json:"name" binding:"required"`
	Kind string `json:"kind"`
}

func (s *Server) listItemsHandler(c *gin.Context) {
	s.mu.Lock()
	items := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, *item)
	}
	s.mu.Unlock()

	sort.Slice(items, func(i, j int) bool { return items[i].SKU < items[j].SKU })
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) createItemHandler(c *gin.Context) {
	var req itemCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "sku and name are required")
		return
	}
	if req.Quantity < 0 {
		errorJSON(c, http.StatusBadRequest, "quantity cannot be negative")
		return
	}

	item := &Item{
		ID:         uuid.NewString(),
		SKU:        req.SKU,
		Name:       req.Name,
		Quantity:   req.Quantity,
		LocationID: req.LocationID,
		Public:     req.Public,
		UpdatedAt:  time.Now().UTC(),
	}

	s.mu.Lock()
	s.items[item.ID] = item
	s.mu.Unlock()

	s.hub.broadcast(Event{Type: "item.created", ItemID: item.ID, Quantity: item.Quantity, At: item.UpdatedAt})
	c.JSON(http.StatusCreated, item)
}

func (s *Server) getItemHandler(c *gin.Context) {
	s.mu.Lock()
	item, ok := s.items[c.Param("id")]
	var copied Item
	if ok {
		copied = *item
	}
	s.mu.Unlock()

	if !ok {
		errorJSON(c, http.StatusNotFound, "item not found")
		return
	}
	c.JSON(http.StatusOK, copied)
}

func (s *Server) deleteItemHandler(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	_, ok := s.items[id]
	if ok {
		delete(s.items, id)
	}
	s.mu.Unlock()

	if !ok {
		errorJSON(c, http.StatusNotFound, "item not found")
		return
	}
	s.hub.broadcast(Event{Type: "item.deleted", ItemID: id, At: time.Now().UTC()})
	c.Status(http.StatusNoContent)
}

func (s *Server) adjustItemHandler(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "delta is required")
		return
	}

	s.mu.Lock()
	item, ok := s.items[c.Param("id")]
	if !ok {
		s.mu.Unlock()
		errorJSON(c, http.StatusNotFound, "item not found")
		return
	}
	if item.Quantity+req.Delta < 0 {
		s.mu.Unlock()
		errorJSON(c, http.StatusBadRequest, "insufficient stock")
		return
	}
	item.Quantity += req.Delta
	item.UpdatedAt = time.Now().UTC()
	copied := *item
	s.mu.Unlock()

	s.hub.broadcast(Event{Type: "item.adjusted", ItemID: copied.ID, Quantity: copied.Quantity, At: copied.UpdatedAt})
	c.JSON(http.StatusOK, copied)
}

func (s *Server) listLocationsHandler(c *gin.Context) {
	s.mu.Lock()
	locations := make([]Location, 0, len(s.locations))
	for _, loc := range s.locations {
		locations = append(locations, *loc)
	}
	s.mu.Unlock()

	sort.Slice(locations, func(i, j int) bool { return locations[i].Name < locations[j].Name })
	c.JSON(http.StatusOK, gin.H{"locations": locations})
}

func (s *Server) createLocationHandler(c *gin.Context) {
	var req locationCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "name is required")
		return
	}

	loc := &Location{ID: uuid.NewString(), Name: req.Name, Kind: req.Kind}

	s.mu.Lock()
	s.locations[loc.ID] = loc
	s.mu.Unlock()

	c.JSON(http.StatusCreated, loc)
}

type previewItem struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Public bool   `json:"public"`
}

// previewSubject resolves the caller's preview rights. Anonymous
// callers and callers with a bad token see public items only; a bad
// token is not an error on this surface.
func (s *Server) previewSubject(c *gin.Context) (subject string, whitelisted bool) {
	if c.GetHeader("Authorization") == "" {
		return "", false
	}
	subject, err := s.verifyBearer(c)
	if err != nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return subject, s.whitelist[subject]
}

func (s *Server) previewCatalogHandler(c *gin.Context) {
	_, whitelisted := s.previewSubject(c)

	s.mu.Lock()
	catalog := make([]previewItem, 0, len(s.items))
	for _, item := range s.items {
		if item.Public || whitelisted {
			catalog = append(catalog, previewItem{ID: item.ID, Name: item.Name, Public: item.Public})
		}
	}
	s.mu.Unlock()

	sort.Slice(catalog, func(i, j int) bool { return catalog[i].Name < catalog[j].Name })
	c.JSON(http.StatusOK, gin.H{"items": catalog})
}

func (s *Server) previewItemHandler(c *gin.Context) {
	subject, whitelisted := s.previewSubject(c)

	s.mu.Lock()
	item, ok := s.items[c.Param("id")]
	var copied Item
	if ok {
		copied = *item
	}
	s.mu.Unlock()

	if !ok {
		errorJSON(c, http.StatusNotFound, "item not found")
		return
	}
	if !copied.Public && !whitelisted {
		if subject == "" {
			// Signing in might reveal this item
			errorJSON(c, http.StatusUnauthorized, "authentication required")
			return
		}
		errorJSON(c, http.StatusForbidden, "not on the preview whitelist")
		return
	}
	c.JSON(http.StatusOK, previewItem{ID: copied.ID, Name: copied.Name, Public: copied.Public})
}
