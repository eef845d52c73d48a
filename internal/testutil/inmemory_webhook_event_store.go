package testutil

import (
	"context"
	"time"

	"github.com/lm-legal/payments/internal/domain/webhookevent"
	"github.com/lm-legal/payments/internal/types"
	"github.com/samber/lo"
)

// InMemoryWebhookEventStore implements webhookevent.Repository. Deliveries with
// the same provider event id share one row.
type InMemoryWebhookEventStore struct {
	*InMemoryStore[*webhookevent.Delivery]
}

var _ webhookevent.Repository = (*InMemoryWebhookEventStore)(nil)

func NewInMemoryWebhookEventStore() *InMemoryWebhookEventStore {
	return &InMemoryWebhookEventStore{
		InMemoryStore: NewInMemoryStore(func(d *webhookevent.Delivery) *webhookevent.Delivery {
			cp := *d
			return &cp
		}),
	}
}

func (s *InMemoryWebhookEventStore) Record(ctx context.Context, d *webhookevent.Delivery) (*webhookevent.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ProviderEventID != nil {
		for id, existing := range s.items {
			if existing.Provider == d.Provider && existing.ProviderEventID != nil &&
				*existing.ProviderEventID == *d.ProviderEventID {
				existing.DeliveryCount++
				existing.SignatureValid = d.SignatureValid
				existing.ReceivedAt = time.Now().UTC()
				s.put(id, existing)
				out, _ := s.get(id)
				return out, nil
			}
		}
	}

	rec := *d
	rec.ID = s.allocateID()
	rec.DeliveryCount = 1
	rec.ReceivedAt = time.Now().UTC()
	s.put(rec.ID, &rec)
	return &rec, nil
}

func (s *InMemoryWebhookEventStore) Complete(ctx context.Context, id int64, outcome types.WebhookOutcome, paymentID *int64, processingErr *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.get(id)
	if !ok {
		return nil
	}
	d.Outcome = outcome
	if paymentID != nil {
		d.PaymentID = paymentID
	}
	d.ProcessingError = processingErr
	d.ProcessedAt = lo.ToPtr(time.Now().UTC())
	s.put(id, d)
	return nil
}

// All returns every delivery ordered by id
func (s *InMemoryWebhookEventStore) All() []*webhookevent.Delivery {
	return s.Find(nil, func(a, b *webhookevent.Delivery) bool { return a.ID < b.ID })
}
