package testutil

import (
	"context"
	"time"

	"github.com/lm-legal/payments/internal/domain/payment"
	"github.com/lm-legal/payments/internal/types"
	"github.com/samber/lo"
)

// InMemoryPaymentStore implements payment.Repository with the constraints of
// the payments table: one active payment per case, unique provider reference
// and compare-and-swap transitions
type InMemoryPaymentStore struct {
	*InMemoryStore[*payment.Payment]
	plans *InMemoryPlanStore
	now   func() time.Time
}

var _ payment.Repository = (*InMemoryPaymentStore)(nil)

func NewInMemoryPaymentStore(plans *InMemoryPlanStore) *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		InMemoryStore: NewInMemoryStore(clonePayment),
		plans:         plans,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func clonePayment(p *payment.Payment) *payment.Payment {
	cp := *p
	return &cp
}

func (s *InMemoryPaymentStore) Create(ctx context.Context, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.items {
		if existing.CaseID == p.CaseID && existing.Status.IsActive() {
			return payment.ErrDuplicateActivePayment(p.CaseID)
		}
	}

	now := s.now()
	p.ID = s.allocateID()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.put(p.ID, p)

	id := p.ID
	s.withRollback(ctx, func() { s.remove(id) })
	return nil
}

func (s *InMemoryPaymentStore) Get(ctx context.Context, id int64) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.get(id)
	if !ok {
		return nil, payment.ErrNotFound(id)
	}
	return p, nil
}

func (s *InMemoryPaymentStore) GetByProviderReference(ctx context.Context, provider types.PaymentProvider, ref string) (*payment.Payment, error) {
	found := s.Find(func(p *payment.Payment) bool {
		return p.Provider == provider && p.ProviderReference != nil && *p.ProviderReference == ref
	}, nil)
	if len(found) == 0 {
		return nil, payment.ErrNotFound(0)
	}
	return found[0], nil
}

func (s *InMemoryPaymentStore) ListByCase(ctx context.Context, caseID int64) ([]*payment.Payment, error) {
	return s.Find(func(p *payment.Payment) bool {
		return p.CaseID == caseID
	}, newestFirst), nil
}

func (s *InMemoryPaymentStore) AttachSession(ctx context.Context, id int64, ref string, redirectURL string) (*payment.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.get(id)
	if !ok {
		return nil, payment.ErrNotFound(id)
	}
	if p.ProviderReference != nil && *p.ProviderReference != ref {
		return nil, payment.ErrProviderReferenceConflict(id, *p.ProviderReference)
	}
	for _, other := range s.items {
		if other.ID != id && other.Provider == p.Provider &&
			other.ProviderReference != nil && *other.ProviderReference == ref {
			return nil, payment.ErrProviderReferenceConflict(id, ref)
		}
	}

	before := clonePayment(p)
	p.ProviderReference = lo.ToPtr(ref)
	p.RedirectURL = lo.ToPtr(redirectURL)
	p.UpdatedAt = s.now()
	s.put(id, p)

	s.withRollback(ctx, func() { s.put(id, before) })
	return clonePayment(p), nil
}

func (s *InMemoryPaymentStore) Transition(
	ctx context.Context,
	id int64,
	target types.PaymentStatus,
	expected []types.PaymentStatus,
	reason *string,
) (*payment.TransitionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.get(id)
	if !ok {
		return nil, payment.ErrNotFound(id)
	}
	if !lo.Contains(expected, p.Status) {
		return &payment.TransitionResult{Payment: p, Applied: false}, nil
	}

	before := clonePayment(p)
	previous := p.Status
	now := s.now()
	p.Status = target
	p.UpdatedAt = now
	if target == types.PaymentStatusCompleted && p.CompletedAt == nil {
		p.CompletedAt = lo.ToPtr(now)
	}
	if reason != nil {
		p.FailureReason = reason
	}
	s.put(id, p)

	s.withRollback(ctx, func() { s.put(id, before) })
	return &payment.TransitionResult{
		Payment:  clonePayment(p),
		Applied:  true,
		Previous: previous,
	}, nil
}

func (s *InMemoryPaymentStore) List(ctx context.Context, filter *types.PaymentFilter) ([]*payment.Payment, error) {
	items := s.Find(s.matcher(filter), newestFirst)
	return paginate(items, filter.GetLimit(), filter.GetOffset()), nil
}

func (s *InMemoryPaymentStore) Count(ctx context.Context, filter *types.PaymentFilter) (int, error) {
	return len(s.Find(s.matcher(filter), nil)), nil
}

func (s *InMemoryPaymentStore) Stats(ctx context.Context, from, to time.Time) ([]*payment.Stats, error) {
	completed := s.Find(func(p *payment.Payment) bool {
		return p.Status == types.PaymentStatusCompleted && p.CompletedAt != nil &&
			!p.CompletedAt.Before(from) && p.CompletedAt.Before(to)
	}, nil)

	byMethod := make(map[types.PaymentMethod]*payment.Stats)
	for _, p := range completed {
		st, ok := byMethod[p.Method]
		if !ok {
			st = &payment.Stats{Method: p.Method}
			byMethod[p.Method] = st
		}
		st.Count++
		st.Revenue = st.Revenue.Add(p.Amount)
	}
	return lo.Values(byMethod), nil
}

func (s *InMemoryPaymentStore) matcher(filter *types.PaymentFilter) FilterFunc[*payment.Payment] {
	return func(p *payment.Payment) bool {
		if filter.UserID != 0 && p.UserID != filter.UserID {
			return false
		}
		if filter.Status != nil && p.Status != *filter.Status {
			return false
		}
		if filter.Method != nil && p.Method != *filter.Method {
			return false
		}
		if filter.StartTime != nil && p.CreatedAt.Before(*filter.StartTime) {
			return false
		}
		if filter.EndTime != nil && !p.CreatedAt.Before(*filter.EndTime) {
			return false
		}
		if filter.ServiceType != nil {
			pl, err := s.plans.Get(context.Background(), p.PlanID)
			if err != nil || pl.ServiceType != *filter.ServiceType {
				return false
			}
		}
		return true
	}
}

func newestFirst(a, b *payment.Payment) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}
