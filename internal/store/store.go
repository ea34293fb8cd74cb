// Package store provides data storage interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/vyrodovalexey/items-api/internal/model"
)

// Store errors.
var (
	ErrNotFound      = errors.New("item not found")
	ErrUnknownDriver = errors.New("unknown store driver")
)

// Store defines the interface for item storage operations.
// Every call is atomic on its own; no transaction spans two calls.
type Store interface {
	// Count returns the total number of items.
	Count(ctx context.Context) (int, error)

	// ListDesc returns up to limit items ordered by descending ID,
	// skipping the first offset.
	ListDesc(ctx context.Context, offset, limit int) ([]model.Item, error)

	// Get retrieves an item by its ID.
	Get(ctx context.Context, id int64) (*model.Item, error)

	// Create adds a new item and returns it with its assigned ID.
	Create(ctx context.Context, name string, price int64) (*model.Item, error)

	// Update overwrites name and price of an existing item.
	Update(ctx context.Context, id int64, name string, price int64) (*model.Item, error)

	// Delete removes an item by its ID.
	Delete(ctx context.Context, id int64) error

	// Reset removes every item.
	Reset(ctx context.Context) error

	// Ping reports whether the store can serve requests.
	Ping(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}
