package api

import (
	"context"
	"fmt"
	"net/url"
)

// PreviewItem is the reduced item shape served on the public preview
// surface.
type PreviewItem struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Public bool   `json:"public"`
}

type previewList struct {
	Items []PreviewItem `json:"items"`
}

// Preview provides typed access to the public preview surface. Calls
// succeed anonymously for public content; private content answers
// KindAuthRequired without a token and KindForbidden for callers outside
// the preview whitelist.
type Preview struct {
	client *PublicClient
}

// Catalog returns the preview catalog visible to the caller.
func (p *Preview) Catalog(ctx context.Context) ([]PreviewItem, error) {
	var list previewList
	if err := p.client.Get(ctx, "/v1/preview/catalog", &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// Item returns one preview item by ID.
func (p *Preview) Item(ctx context.Context, id string) (*PreviewItem, error) {
	var item PreviewItem
	path := fmt.Sprintf("/v1/preview/items/%s", url.PathEscape(id))
	if err := p.client.Get(ctx, path, &item); err != nil {
		return nil, err
	}
	return &item, nil
}
