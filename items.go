package nodio

import (
	"context"
	"encoding/json"
	"strconv"
)

// Items maps item and comment operations onto API requests.
type Items struct {
	client *Client
}

// Get retrieves an item by its ID.
func (i *Items) Get(ctx context.Context, itemID int64) (json.RawMessage, error) {
	return i.client.Handle(ctx, Get, "item/"+strconv.FormatInt(itemID, 10), nil)
}

// Create adds an item with the given field values to the client's app.
func (i *Items) Create(ctx context.Context, fields any) (json.RawMessage, error) {
	item := struct {
		Fields any `json:"fields"`
	}{Fields: fields}
	return i.client.Handle(ctx, PostJSON, "item/app/"+i.client.AppID()+"/", item)
}

// Filter returns the items of the client's app matching filters.
func (i *Items) Filter(ctx context.Context, filters any) (json.RawMessage, error) {
	return i.client.Handle(ctx, PostJSON, "item/app/"+i.client.AppID()+"/filter/", filters)
}

// Comments lists the comments on an item.
func (i *Items) Comments(ctx context.Context, itemID int64) (json.RawMessage, error) {
	return i.client.Handle(ctx, Get, "comment/item/"+strconv.FormatInt(itemID, 10), nil)
}

// AddComment posts text as a new comment on an item.
func (i *Items) AddComment(ctx context.Context, itemID int64, text string) (json.RawMessage, error) {
	comment := struct {
		Value string `json:"value"`
	}{Value: text}
	return i.client.Handle(ctx, PostJSON, "comment/item/"+strconv.FormatInt(itemID, 10), comment)
}
