package testutil

import (
	"context"
	"sort"
	"sync"
)

// FilterFunc is a generic filter function type
type FilterFunc[T any] func(item T) bool

// SortFunc is a generic sort function type
type SortFunc[T any] func(i, j T) bool

// InMemoryStore is a map of rows keyed by a ledger style numeric id. Items
// handed out are copies so callers never mutate stored rows.
type InMemoryStore[T any] struct {
	mu     sync.RWMutex
	items  map[int64]T
	nextID int64
	clone  func(T) T
}

// NewInMemoryStore creates a store whose ids start at 1
func NewInMemoryStore[T any](clone func(T) T) *InMemoryStore[T] {
	return &InMemoryStore[T]{
		items:  make(map[int64]T),
		nextID: 1,
		clone:  clone,
	}
}

// SetNextID makes the next assigned id equal to id
func (s *InMemoryStore[T]) SetNextID(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = id
}

// allocateID must be called with the lock held
func (s *InMemoryStore[T]) allocateID() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// put must be called with the lock held
func (s *InMemoryStore[T]) put(id int64, item T) {
	s.items[id] = s.clone(item)
}

// get must be called with the lock held
func (s *InMemoryStore[T]) get(id int64) (T, bool) {
	item, ok := s.items[id]
	if !ok {
		var zero T
		return zero, false
	}
	return s.clone(item), true
}

// remove must be called with the lock held
func (s *InMemoryStore[T]) remove(id int64) {
	delete(s.items, id)
}

// Seed stores item under id, bypassing every constraint
func (s *InMemoryStore[T]) Seed(id int64, item T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(id, item)
	if id >= s.nextID {
		s.nextID = id + 1
	}
}

// Find returns copies of the matching items, sorted when sortFn is set
func (s *InMemoryStore[T]) Find(filterFn FilterFunc[T], sortFn SortFunc[T]) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.find(filterFn, sortFn)
}

// find must be called with the lock held
func (s *InMemoryStore[T]) find(filterFn FilterFunc[T], sortFn SortFunc[T]) []T {
	var result []T
	for _, item := range s.items {
		if filterFn == nil || filterFn(item) {
			result = append(result, s.clone(item))
		}
	}
	if sortFn != nil {
		sort.Slice(result, func(i, j int) bool {
			return sortFn(result[i], result[j])
		})
	}
	return result
}

// Len returns the number of stored items
func (s *InMemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Clear removes all items from the store
func (s *InMemoryStore[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[int64]T)
	s.nextID = 1
}

// withRollback runs undo under the store lock if the surrounding mock
// transaction rolls back
func (s *InMemoryStore[T]) withRollback(ctx context.Context, undo func()) {
	OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		undo()
	})
}

// paginate applies limit and offset to an already filtered slice
func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
