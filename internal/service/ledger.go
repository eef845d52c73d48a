package service

import (
	"context"
	"time"

	"github.com/lm-legal/payments/internal/domain/outbox"
	"github.com/lm-legal/payments/internal/domain/payment"
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// CreatePaymentParams describes a pending payment about to be handed to a provider
type CreatePaymentParams struct {
	UserID   int64
	CaseID   int64
	PlanID   int64
	Amount   decimal.Decimal
	Currency string
	Method   types.PaymentMethod
	Provider types.PaymentProvider
}

// LedgerService is the only writer of payment state. Every status change goes
// through Transition, which also records the events announcing it.
type LedgerService interface {
	CreatePayment(ctx context.Context, params CreatePaymentParams) (*payment.Payment, error)
	GetPayment(ctx context.Context, id int64) (*payment.Payment, error)
	GetByProviderReference(ctx context.Context, provider types.PaymentProvider, ref string) (*payment.Payment, error)
	GetByCase(ctx context.Context, caseID int64) ([]*payment.Payment, error)
	AttachSession(ctx context.Context, id int64, ref string, redirectURL string) (*payment.Payment, error)

	// Transition applies target only when the stored status is one of expected.
	// A stale call returns the current record with Applied false and records nothing.
	Transition(ctx context.Context, id int64, target types.PaymentStatus, expected []types.PaymentStatus, reason *string) (*payment.TransitionResult, error)
}

type ledgerService struct {
	ServiceParams
}

func NewLedgerService(params ServiceParams) LedgerService {
	return &ledgerService{ServiceParams: params}
}

func (s *ledgerService) CreatePayment(ctx context.Context, params CreatePaymentParams) (*payment.Payment, error) {
	p := &payment.Payment{
		UserID:   params.UserID,
		CaseID:   params.CaseID,
		PlanID:   params.PlanID,
		Amount:   params.Amount,
		Currency: lo.Ternary(params.Currency == "", types.DefaultCurrency, params.Currency),
		Method:   params.Method,
		Provider: params.Provider,
		Status:   types.PaymentStatusPending,
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	if limit := s.Config.Checkout.MaxAmount; limit > 0 && p.Amount.GreaterThan(decimal.NewFromFloat(limit)) {
		return nil, payment.ErrAmountInvalid(p.Amount)
	}

	if p.Provider == "" {
		return nil, ierr.NewError("provider is required").
			WithHint("Payment provider is required").
			Mark(ierr.ErrValidation)
	}

	if err := s.PaymentRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.Logger.Infow("payment created",
		"payment_id", p.ID,
		"case_id", p.CaseID,
		"user_id", p.UserID,
		"amount", p.Amount.String(),
		"currency", p.Currency,
		"method", p.Method,
	)
	return p, nil
}

func (s *ledgerService) GetPayment(ctx context.Context, id int64) (*payment.Payment, error) {
	return s.PaymentRepo.Get(ctx, id)
}

func (s *ledgerService) GetByProviderReference(ctx context.Context, provider types.PaymentProvider, ref string) (*payment.Payment, error) {
	if ref == "" {
		return nil, ierr.NewError("provider reference is required").
			WithHint("Payment not found").
			Mark(ierr.ErrNotFound)
	}
	return s.PaymentRepo.GetByProviderReference(ctx, provider, ref)
}

func (s *ledgerService) GetByCase(ctx context.Context, caseID int64) ([]*payment.Payment, error) {
	payments, err := s.PaymentRepo.ListByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, ierr.NewErrorf("no payments for case %d", caseID).
			WithHint("Payment not found").
			WithReportableDetails(map[string]any{
				"code":    payment.CodePaymentNotFound,
				"case_id": caseID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return payments, nil
}

func (s *ledgerService) AttachSession(ctx context.Context, id int64, ref string, redirectURL string) (*payment.Payment, error) {
	if ref == "" {
		return nil, ierr.NewError("provider reference is required").
			WithHint("Provider session is missing its id").
			Mark(ierr.ErrValidation)
	}
	return s.PaymentRepo.AttachSession(ctx, id, ref, redirectURL)
}

func (s *ledgerService) Transition(
	ctx context.Context,
	id int64,
	target types.PaymentStatus,
	expected []types.PaymentStatus,
	reason *string,
) (*payment.TransitionResult, error) {
	if err := payment.ValidateTransition(target, expected); err != nil {
		return nil, err
	}

	var result *payment.TransitionResult
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		res, err := s.PaymentRepo.Transition(ctx, id, target, expected, reason)
		if err != nil {
			return err
		}
		result = res

		if !res.Applied {
			return nil
		}
		return s.recordTransition(ctx, res)
	})
	if err != nil {
		return nil, err
	}

	if result.Applied {
		s.Logger.Infow("payment transitioned",
			"payment_id", id,
			"from", result.Previous,
			"to", target,
		)
	} else {
		s.Logger.Debugw("payment transition skipped",
			"payment_id", id,
			"status", result.Payment.Status,
			"target", target,
		)
	}
	return result, nil
}

// recordTransition writes the outbox rows of an applied transition
func (s *ledgerService) recordTransition(ctx context.Context, res *payment.TransitionResult) error {
	p := res.Payment

	var (
		event *outbox.Event
		err   error
	)
	switch {
	case res.Previous == types.PaymentStatusPending && p.Status == types.PaymentStatusCompleted:
		event, err = outbox.NewEvent(types.TopicPaymentCompleted, p.ID, outbox.PaymentCompleted{
			PaymentID:   p.ID,
			CaseID:      p.CaseID,
			UserID:      p.UserID,
			Amount:      p.Amount,
			Currency:    p.Currency,
			CompletedAt: lo.FromPtrOr(p.CompletedAt, time.Now().UTC()),
		})
	case p.Status == types.PaymentStatusRefunded:
		event, err = outbox.NewEvent(types.TopicPaymentRefunded, p.ID, outbox.PaymentRefunded{
			PaymentID: p.ID,
			CaseID:    p.CaseID,
			UserID:    p.UserID,
		})
	default:
		return nil
	}
	if err != nil {
		return err
	}
	return s.OutboxRepo.Create(ctx, event)
}
