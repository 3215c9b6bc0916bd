package api

import "context"

// Location is a place stock lives: a warehouse, a shelf, a van.
type Location struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

// LocationCreate is the payload for creating a location.
type LocationCreate struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

type locationList struct {
	Locations []Location `json:"locations"`
}

// Locations provides typed access to storage locations.
type Locations struct {
	client *Client
}

// List returns all locations.
func (l *Locations) List(ctx context.Context) ([]Location, error) {
	var list locationList
	if err := l.client.Get(ctx, "/v1/locations", &list); err != nil {
		return nil, err
	}
	return list.Locations, nil
}

// Create adds a new location.
func (l *Locations) Create(ctx context.Context, create LocationCreate) (*Location, error) {
	var loc Location
	if err := l.client.Post(ctx, "/v1/locations", create, &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}
