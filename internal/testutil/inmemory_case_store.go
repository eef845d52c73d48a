package testutil

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/lm-legal/payments/internal/domain/legalcase"
	"github.com/lm-legal/payments/internal/types"
)

// InMemoryCaseStore implements legalcase.Repository and counts the advances
// that actually changed a case
type InMemoryCaseStore struct {
	*InMemoryStore[*legalcase.Case]
	advances atomic.Int32
}

var _ legalcase.Repository = (*InMemoryCaseStore)(nil)

func NewInMemoryCaseStore() *InMemoryCaseStore {
	return &InMemoryCaseStore{
		InMemoryStore: NewInMemoryStore(func(c *legalcase.Case) *legalcase.Case {
			cp := *c
			return &cp
		}),
	}
}

func (s *InMemoryCaseStore) Get(ctx context.Context, id int64) (*legalcase.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.get(id)
	if !ok {
		return nil, legalcase.ErrNotFound(id)
	}
	return c, nil
}

func (s *InMemoryCaseStore) AdvanceToProcessing(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.get(id)
	if !ok {
		return false, legalcase.ErrNotFound(id)
	}
	if c.Status == types.CaseStatusProcessing || c.Status == types.CaseStatusCompleted {
		return false, nil
	}

	c.Status = types.CaseStatusProcessing
	c.UpdatedAt = time.Now().UTC()
	s.put(id, c)
	s.advances.Add(1)
	return true, nil
}

// Advances returns how many calls moved a case to processing
func (s *InMemoryCaseStore) Advances() int {
	return int(s.advances.Load())
}

func (s *InMemoryCaseStore) Clear() {
	s.InMemoryStore.Clear()
	s.advances.Store(0)
}
