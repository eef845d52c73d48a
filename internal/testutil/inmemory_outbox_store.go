package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lm-legal/payments/internal/domain/outbox"
	"github.com/samber/lo"
)

// InMemoryOutboxStore implements outbox.Repository. Claims are not locked,
// the mock client already runs one transaction at a time.
type InMemoryOutboxStore struct {
	mu     sync.RWMutex
	events map[string]*outbox.Event
}

var _ outbox.Repository = (*InMemoryOutboxStore)(nil)

func NewInMemoryOutboxStore() *InMemoryOutboxStore {
	return &InMemoryOutboxStore{
		events: make(map[string]*outbox.Event),
	}
}

func (s *InMemoryOutboxStore) Create(ctx context.Context, e *outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *e
	s.events[e.ID] = &cp

	id := e.ID
	OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.events, id)
	})
	return nil
}

func (s *InMemoryOutboxStore) ClaimUnpublished(ctx context.Context, limit int) ([]*outbox.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := lo.Filter(lo.Values(s.events), func(e *outbox.Event, _ int) bool {
		return e.PublishedAt == nil
	})
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return lo.Map(pending, func(e *outbox.Event, _ int) *outbox.Event {
		cp := *e
		return &cp
	}), nil
}

func (s *InMemoryOutboxStore) MarkPublished(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.events[id]; ok {
		e.PublishedAt = lo.ToPtr(at)
		e.Attempts++
	}
	return nil
}

func (s *InMemoryOutboxStore) MarkFailed(ctx context.Context, id string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.events[id]; ok {
		e.LastError = lo.ToPtr(reason)
		e.Attempts++
	}
	return nil
}

// ByTopic returns the recorded events of topic in creation order
func (s *InMemoryOutboxStore) ByTopic(topic string) []*outbox.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := lo.Filter(lo.Values(s.events), func(e *outbox.Event, _ int) bool {
		return e.Topic == topic
	})
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return events
}

func (s *InMemoryOutboxStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[string]*outbox.Event)
}
