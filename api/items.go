package api

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// Item is one inventory item.
type Item struct {
	ID         string    `json:"id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	Quantity   int       `json:"quantity"`
	LocationID string    `json:"location_id,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ItemCreate is the payload for creating an item.
type ItemCreate struct {
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	LocationID string `json:"location_id,omitempty"`
}

type itemList struct {
	Items []Item `json:"items"`
}

type itemAdjust struct {
	Delta int `json:"delta"`
}

// Items provides typed access to inventory items.
type Items struct {
	client *Client
}

// List returns all items visible to the caller.
func (i *Items) List(ctx context.Context) ([]Item, error) {
	var list itemList
	if err := i.client.Get(ctx, "/v1/items", &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// Get returns one item by ID.
func (i *Items) Get(ctx context.Context, id string) (*Item, error) {
	var item Item
	if err := i.client.Get(ctx, itemPath(id), &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Create adds a new item.
func (i *Items) Create(ctx context.Context, create ItemCreate) (*Item, error) {
	var item Item
	if err := i.client.Post(ctx, "/v1/items", create, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Adjust changes an item's quantity by delta and returns the updated
// item. Negative deltas below available stock are rejected by the server.
func (i *Items) Adjust(ctx context.Context, id string, delta int) (*Item, error) {
	var item Item
	if err := i.client.Post(ctx, itemPath(id)+"/adjust", itemAdjust{Delta: delta}, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Delete removes an item.
func (i *Items) Delete(ctx context.Context, id string) error {
	return i.client.Delete(ctx, itemPath(id))
}

func itemPath(id string) string {
	return fmt.Sprintf("/v1/items/%s", url.PathEscape(id))
}
