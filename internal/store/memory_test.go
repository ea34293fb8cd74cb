package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMemoryStore(t *testing.T) {
	// Act
	s := NewMemoryStore()

	// Assert
	require.NotNil(t, s)
	assert.NotNil(t, s.items)
	assert.Equal(t, int64(1), s.nextID)
}

func TestMemoryStore_ContextCancellation(t *testing.T) {
	// Arrange
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	// Act / Assert
	_, err := s.Count(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	items, err := s.ListDesc(ctx, 0, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, items)

	_, err = s.Get(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)

	created, err := s.Create(ctx, "x", 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, created)

	_, err = s.Update(ctx, 1, "x", 1)
	assert.ErrorIs(t, err, context.Canceled)

	assert.ErrorIs(t, s.Delete(ctx, 1), context.Canceled)
	assert.ErrorIs(t, s.Reset(ctx), context.Canceled)
	assert.ErrorIs(t, s.Ping(ctx), context.Canceled)
}

func TestMemoryStore_ListDesc_BadWindow(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, _ = s.Create(ctx, "a", 1)

	tests := []struct {
		name   string
		offset int
		limit  int
	}{
		{"negative offset", -1, 10},
		{"zero limit", 0, 0},
		{"offset past end", 1, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := s.ListDesc(ctx, tt.offset, tt.limit)
			require.NoError(t, err)
			assert.NotNil(t, items)
			assert.Empty(t, items)
		})
	}
}

func TestMemoryStore_IDsNotReusedAfterDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a, _ := s.Create(ctx, "a", 1)
	b, _ := s.Create(ctx, "b", 1)
	require.NoError(t, s.Delete(ctx, b.ID))

	c, err := s.Create(ctx, "c", 1)
	require.NoError(t, err)

	assert.Greater(t, c.ID, b.ID)

	items, err := s.ListDesc(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, c.ID, items[0].ID)
	assert.Equal(t, a.ID, items[1].ID)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	created, _ := s.Create(ctx, "orig", 1)
	created.Name = "mutated"

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "orig", got.Name)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	// Arrange
	s := NewMemoryStore()
	ctx := context.Background()
	numGoroutines := 100
	numOperations := 10

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	// Act
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()

			for j := 0; j < numOperations; j++ {
				created, err := s.Create(ctx, "Test Item", int64(id*j))
				if err != nil {
					return
				}
				_, _ = s.Get(ctx, created.ID)
				_, _ = s.ListDesc(ctx, 0, 10)
				_, _ = s.Count(ctx)
				_, _ = s.Update(ctx, created.ID, "Updated Item", int64(id*j*2))
				_ = s.Delete(ctx, created.ID)
			}
		}(i)
	}

	wg.Wait()

	// Assert
	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMemoryStore_ConcurrentWritesUniqueIDs(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	numGoroutines := 50

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[int64]bool)
	)
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(price int) {
			defer wg.Done()
			created, err := s.Create(ctx, "Test Item", int64(price))
			if err != nil {
				return
			}
			mu.Lock()
			ids[created.ID] = true
			mu.Unlock()
		}(i)
	}

	wg.Wait()

	assert.Len(t, ids, numGoroutines)

	items, err := s.ListDesc(ctx, 0, 100)
	require.NoError(t, err)
	require.Len(t, items, numGoroutines)
	for i := 1; i < len(items); i++ {
		assert.Greater(t, items[i-1].ID, items[i].ID)
	}
}

func TestMemoryStore_ImplementsInterface(t *testing.T) {
	var _ Store = (*MemoryStore)(nil)
}
