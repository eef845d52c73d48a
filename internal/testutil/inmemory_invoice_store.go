package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/lm-legal/payments/internal/domain/invoice"
	ierr "github.com/lm-legal/payments/internal/errors"
)

// InMemoryInvoiceStore implements invoice.Repository with a unique payment id,
// a unique number and a per year counter that rolls back with its transaction
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]

	seqMu     sync.Mutex
	sequences map[int]int64
}

var _ invoice.Repository = (*InMemoryInvoiceStore)(nil)

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		InMemoryStore: NewInMemoryStore(func(i *invoice.Invoice) *invoice.Invoice {
			cp := *i
			return &cp
		}),
		sequences: make(map[int]int64),
	}
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.items {
		if existing.PaymentID == inv.PaymentID {
			return invoice.ErrInvoiceAlreadyExists(inv.PaymentID)
		}
		if existing.Number == inv.Number {
			return ierr.NewErrorf("invoice number %s already used", inv.Number).
				Mark(ierr.ErrAlreadyExists)
		}
	}

	inv.ID = s.allocateID()
	inv.CreatedAt = time.Now().UTC()
	s.put(inv.ID, inv)

	id := inv.ID
	s.withRollback(ctx, func() { s.remove(id) })
	return nil
}

func (s *InMemoryInvoiceStore) GetByPaymentID(ctx context.Context, paymentID int64) (*invoice.Invoice, error) {
	found := s.Find(func(i *invoice.Invoice) bool { return i.PaymentID == paymentID }, nil)
	if len(found) == 0 {
		return nil, invoice.ErrNotFound(paymentID)
	}
	return found[0], nil
}

func (s *InMemoryInvoiceStore) NextSequence(ctx context.Context, year int) (int64, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	s.sequences[year]++
	value := s.sequences[year]

	OnRollback(ctx, func() {
		s.seqMu.Lock()
		defer s.seqMu.Unlock()
		s.sequences[year]--
	})
	return value, nil
}

// SetSequence moves the counter of year to value
func (s *InMemoryInvoiceStore) SetSequence(year int, value int64) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	s.sequences[year] = value
}

// SequenceValue returns the last allocated number of year
func (s *InMemoryInvoiceStore) SequenceValue(year int) int64 {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	return s.sequences[year]
}

// All returns every stored invoice ordered by number
func (s *InMemoryInvoiceStore) All() []*invoice.Invoice {
	return s.Find(nil, func(a, b *invoice.Invoice) bool { return a.Number < b.Number })
}

func (s *InMemoryInvoiceStore) Clear() {
	s.InMemoryStore.Clear()
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	s.sequences = make(map[int]int64)
}
