package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/vyrodovalexey/items-api/internal/model"
	"github.com/vyrodovalexey/items-api/internal/store"
)

// Notifier receives item change events. Implementations must not block.
type Notifier interface {
	Notify(event model.ItemEvent)
}

// ItemService implements listing and mutation of items. It performs no
// recovery: store and validation errors are returned to the caller.
type ItemService struct {
	store    store.Store
	validate *Validator
	notifier Notifier
}

// NewItemService creates an ItemService. notifier may be nil.
func NewItemService(s store.Store, notifier Notifier) *ItemService {
	return &ItemService{
		store:    s,
		validate: NewValidator(),
		notifier: notifier,
	}
}

// ParsePageParams reads limit and offset from raw query values. Empty
// values take the defaults; anything else must be an in-range integer.
func (s *ItemService) ParsePageParams(limitRaw, offsetRaw string) (model.PageParams, error) {
	params := model.DefaultPageParams()

	var fields []model.FieldError

	if limitRaw != "" {
		n, err := strconv.Atoi(limitRaw)
		if err != nil {
			fields = append(fields, model.FieldError{Field: "limit", Message: "value is not a valid integer"})
		} else {
			params.Limit = n
		}
	}

	if offsetRaw != "" {
		n, err := strconv.Atoi(offsetRaw)
		if err != nil {
			fields = append(fields, model.FieldError{Field: "offset", Message: "value is not a valid integer"})
		} else {
			params.Offset = n
		}
	}

	if len(fields) > 0 {
		return model.PageParams{}, &ValidationError{Fields: fields}
	}

	if err := s.validate.Struct(params); err != nil {
		return model.PageParams{}, err
	}

	return params, nil
}

// List returns one page of items, newest first, with the total count.
// Invalid params fail before the store is queried.
func (s *ItemService) List(ctx context.Context, params model.PageParams) (*model.Page, error) {
	if err := s.validate.Struct(params); err != nil {
		return nil, err
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}

	items, err := s.store.ListDesc(ctx, params.Offset, params.Limit)
	if err != nil {
		return nil, err
	}

	page := model.NewPage(items, count, params)
	return &page, nil
}

// Get returns a single item.
func (s *ItemService) Get(ctx context.Context, id int64) (*model.Item, error) {
	return s.store.Get(ctx, id)
}

// Create stores a new item. Negative prices are accepted.
func (s *ItemService) Create(ctx context.Context, in model.ItemInput) (*model.Item, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	item, err := s.store.Create(ctx, *in.Name, *in.Price)
	if err != nil {
		return nil, err
	}

	s.notify(model.ItemEventCreated, *item)
	return item, nil
}

// Update overwrites name and price of an existing item.
func (s *ItemService) Update(ctx context.Context, id int64, in model.ItemInput) (*model.Item, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	item, err := s.store.Update(ctx, id, *in.Name, *in.Price)
	if err != nil {
		return nil, err
	}

	s.notify(model.ItemEventUpdated, *item)
	return item, nil
}

// Delete removes an item. Deleting a missing item returns store.ErrNotFound,
// so a repeated delete fails.
func (s *ItemService) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.notify(model.ItemEventDeleted, model.Item{ID: id})
	return nil
}

// Reset empties the store and inserts seed items in order.
func (s *ItemService) Reset(ctx context.Context, seed []model.ItemInput) error {
	if err := s.store.Reset(ctx); err != nil {
		return err
	}

	for i, in := range seed {
		if err := s.validate.Struct(in); err != nil {
			return fmt.Errorf("seed item %d: %w", i, err)
		}
		if _, err := s.store.Create(ctx, *in.Name, *in.Price); err != nil {
			return fmt.Errorf("seed item %d: %w", i, err)
		}
	}

	return nil
}

func (s *ItemService) notify(eventType string, item model.Item) {
	if s.notifier != nil {
		s.notifier.Notify(model.NewItemEvent(eventType, item))
	}
}

// LoadSeed reads a JSON array of {"name", "price"} objects. An empty path
// yields no seed items.
func LoadSeed(path string) ([]model.ItemInput, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var seed []model.ItemInput
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing seed file %s: %w", path, err)
	}

	return seed, nil
}
