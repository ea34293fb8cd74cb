package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vyrodovalexey/items-api/internal/model"
)

// MemoryStore implements Store interface with in-memory storage.
// Items are kept in ascending ID order; IDs are never reused until Reset.
type MemoryStore struct {
	mu     sync.RWMutex
	items  []model.Item
	nextID int64
}

// NewMemoryStore creates a new MemoryStore instance.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:  make([]model.Item, 0),
		nextID: 1,
	}
}

// Count returns the number of stored items.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.items), nil
}

// ListDesc returns a newest-first window of items.
func (s *MemoryStore) ListDesc(ctx context.Context, offset, limit int) ([]model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.items)
	if offset < 0 || limit <= 0 || offset >= total {
		return []model.Item{}, nil
	}

	n := min(limit, total-offset)
	items := make([]model.Item, 0, n)
	for i := total - 1 - offset; i >= 0 && len(items) < n; i-- {
		items = append(items, s.items[i])
	}

	return items, nil
}

// Get retrieves an item by its ID.
func (s *MemoryStore) Get(ctx context.Context, id int64) (*model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indexOf(id)
	if !ok {
		return nil, ErrNotFound
	}

	item := s.items[idx]
	return &item, nil
}

// Create adds a new item to the store and returns the created item with generated ID.
func (s *MemoryStore) Create(ctx context.Context, name string, price int64) (*model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item := model.Item{
		ID:    s.nextID,
		Name:  name,
		Price: price,
	}
	s.nextID++
	s.items = append(s.items, item)

	return &item, nil
}

// Update modifies an existing item in the store.
func (s *MemoryStore) Update(ctx context.Context, id int64, name string, price int64) (*model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexOf(id)
	if !ok {
		return nil, ErrNotFound
	}

	s.items[idx].Name = name
	s.items[idx].Price = price

	item := s.items[idx]
	return &item, nil
}

// Delete removes an item from the store by its ID.
func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexOf(id)
	if !ok {
		return ErrNotFound
	}

	s.items = append(s.items[:idx], s.items[idx+1:]...)

	return nil
}

// Reset drops every item and restarts ID assignment.
func (s *MemoryStore) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("reset items: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make([]model.Item, 0)
	s.nextID = 1

	return nil
}

// Ping always succeeds unless the context is done.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// indexOf binary-searches the ID-ordered slice. Caller holds the lock.
func (s *MemoryStore) indexOf(id int64) (int, bool) {
	idx := sort.Search(len(s.items), func(i int) bool {
		return s.items[i].ID >= id
	})
	if idx < len(s.items) && s.items[idx].ID == id {
		return idx, true
	}
	return 0, false
}
