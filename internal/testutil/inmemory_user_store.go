package testutil

import (
	"context"

	"github.com/lm-legal/payments/internal/domain/user"
)

// InMemoryUserStore implements user.Repository
type InMemoryUserStore struct {
	*InMemoryStore[*user.User]
}

var _ user.Repository = (*InMemoryUserStore)(nil)

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{
		InMemoryStore: NewInMemoryStore(func(u *user.User) *user.User {
			cp := *u
			return &cp
		}),
	}
}

func (s *InMemoryUserStore) Get(ctx context.Context, id int64) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.get(id)
	if !ok {
		return nil, user.ErrNotFound(id)
	}
	return u, nil
}
