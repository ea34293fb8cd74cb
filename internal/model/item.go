// Package model defines data structures used throughout the application.
package model

import (
	"time"
)

// Pagination bounds for item listings.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Item is a catalogue entry. ID is assigned by the store.
type Item struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// ItemInput is the request body for creating or updating an item.
// Both fields are required; a negative price is accepted.
type ItemInput struct {
	Name  *string `json:"name" validate:"required"`
	Price *int64  `json:"price" validate:"required"`
}

// PageParams is a validated limit/offset window.
type PageParams struct {
	Limit  int `json:"limit" validate:"min=1,max=100"`
	Offset int `json:"offset" validate:"min=0"`
}

// DefaultPageParams returns the window used when no query parameters are given.
func DefaultPageParams() PageParams {
	return PageParams{Limit: DefaultLimit, Offset: 0}
}

// Page is one slice of the item collection, newest first.
// Count is the total number of items regardless of the window.
type Page struct {
	Items  []Item `json:"items"`
	Count  int    `json:"count"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// NewPage builds a Page, never leaving Items nil so it encodes as [].
func NewPage(items []Item, count int, params PageParams) Page {
	if items == nil {
		items = []Item{}
	}
	return Page{
		Items:  items,
		Count:  count,
		Limit:  params.Limit,
		Offset: params.Offset,
	}
}

// DeleteResult is the response body of a successful delete.
type DeleteResult struct {
	Success bool `json:"success"`
}

// MessageResponse carries a human-readable status message.
type MessageResponse struct {
	Message string `json:"message"`
}

// DetailResponse is returned by the login endpoint on bad credentials.
type DetailResponse struct {
	Detail string `json:"detail"`
}

// ResetResponse is returned by the debug reset endpoint.
type ResetResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// LoginInput is the body of a login request. Fields are pointers so a
// missing field fails validation while an empty string reaches the
// credential check.
type LoginInput struct {
	Username *string `json:"username" validate:"required"`
	Password *string `json:"password" validate:"required"`
}

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response structure.
type ErrorResponse struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

// Item event types.
const (
	ItemEventCreated = "created"
	ItemEventUpdated = "updated"
	ItemEventDeleted = "deleted"
)

// ItemEvent is pushed to WebSocket subscribers after a successful mutation.
type ItemEvent struct {
	Type      string    `json:"type"`
	Item      Item      `json:"item"`
	Timestamp time.Time `json:"timestamp"`
}

// NewItemEvent creates an event of the given type stamped with the current time.
func NewItemEvent(eventType string, item Item) ItemEvent {
	return ItemEvent{
		Type:      eventType,
		Item:      item,
		Timestamp: time.Now().UTC(),
	}
}
