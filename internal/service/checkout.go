package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/lm-legal/payments/internal/api/dto"
	"github.com/lm-legal/payments/internal/domain/legalcase"
	"github.com/lm-legal/payments/internal/domain/payment"
	"github.com/lm-legal/payments/internal/domain/plan"
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/gateway"
	"github.com/lm-legal/payments/internal/idempotency"
	"github.com/lm-legal/payments/internal/sentry"
	"github.com/lm-legal/payments/internal/types"
	"github.com/samber/lo"
)

// CheckoutService opens provider checkouts for legal cases
type CheckoutService interface {
	CreateCheckout(ctx context.Context, req dto.CheckoutRequest) (*dto.CheckoutResponse, error)
}

type checkoutService struct {
	ServiceParams
	ledger   LedgerService
	idempGen *idempotency.Generator
}

func NewCheckoutService(params ServiceParams, ledger LedgerService) CheckoutService {
	return &checkoutService{
		ServiceParams: params,
		ledger:        ledger,
		idempGen:      idempotency.NewGenerator(),
	}
}

// CreateCheckout records a pending payment and opens the provider session for
// it. The payment row exists before the provider is called, so a provider
// session never exists without a payment.
func (s *checkoutService) CreateCheckout(ctx context.Context, req dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	userID := types.GetUserID(ctx)
	if userID == 0 {
		return nil, ierr.NewError("checkout requires an authenticated user").
			WithHint("Please sign in to pay").
			Mark(ierr.ErrUnauthenticated)
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	c, err := s.CaseRepo.Get(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}
	if !c.IsOwnedBy(userID) {
		return nil, legalcase.ErrNotOwner(c.ID)
	}
	if c.IsDemo {
		return nil, legalcase.ErrDemoCase(c.ID)
	}

	pl, err := s.PlanRepo.Get(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if !pl.IsActive {
		return nil, plan.ErrInactive(pl.ID)
	}

	method := lo.Ternary(req.Method == "", types.PaymentMethod(s.Config.Checkout.DefaultMethod), req.Method)
	gw, err := s.Gateways.ForMethod(method)
	if err != nil {
		return nil, err
	}

	p, err := s.reusablePayment(ctx, c.ID, pl.ID, method)
	if err != nil {
		return nil, err
	}

	if p == nil {
		p, err = s.ledger.CreatePayment(ctx, CreatePaymentParams{
			UserID:   userID,
			CaseID:   c.ID,
			PlanID:   pl.ID,
			Amount:   pl.Price,
			Currency: pl.Currency,
			Method:   method,
			Provider: gw.Provider(),
		})
		if err != nil {
			return nil, err
		}
	} else if p.ProviderReference != nil && p.RedirectURL != nil {
		s.Logger.Infow("reusing open checkout",
			"payment_id", p.ID,
			"case_id", c.ID,
		)
		return newCheckoutResponse(p), nil
	}

	session, err := s.openSession(ctx, gw, p, pl, c)
	if err != nil {
		return nil, err
	}

	p, err = s.ledger.AttachSession(ctx, p.ID, session.ProviderSessionID, session.RedirectURL)
	if err != nil {
		return nil, err
	}

	return newCheckoutResponse(p), nil
}

// reusablePayment inspects the payments of a case. It rejects a paid case,
// expires stale pending payments and returns a fresh pending payment that the
// request can continue.
func (s *checkoutService) reusablePayment(ctx context.Context, caseID, planID int64, method types.PaymentMethod) (*payment.Payment, error) {
	payments, err := s.PaymentRepo.ListByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ttl := s.Config.Checkout.SessionTTL + s.Config.Checkout.PendingGrace

	for _, p := range payments {
		switch p.Status {
		case types.PaymentStatusCompleted:
			return nil, payment.ErrAlreadyPaid(caseID)

		case types.PaymentStatusPending:
			if p.IsExpired(now, ttl) {
				if err := s.expire(ctx, p); err != nil {
					return nil, err
				}
				continue
			}
			if p.Method != method || p.PlanID != planID {
				return nil, payment.ErrPaymentInProgress(caseID, p.Method)
			}
			return p, nil
		}
	}
	return nil, nil
}

func (s *checkoutService) expire(ctx context.Context, p *payment.Payment) error {
	res, err := s.ledger.Transition(ctx, p.ID, types.PaymentStatusFailed,
		[]types.PaymentStatus{types.PaymentStatusPending},
		lo.ToPtr("checkout session expired"),
	)
	if err != nil {
		return err
	}

	// a webhook may have completed it in the meantime
	if res.Payment.Status == types.PaymentStatusCompleted {
		return payment.ErrAlreadyPaid(p.CaseID)
	}

	s.Logger.Infow("expired stale pending payment",
		"payment_id", p.ID,
		"case_id", p.CaseID,
		"created_at", p.CreatedAt,
	)
	return nil
}

func (s *checkoutService) openSession(
	ctx context.Context,
	gw gateway.Gateway,
	p *payment.Payment,
	pl *plan.Plan,
	c *legalcase.Case,
) (*gateway.Session, error) {
	span, ctx := s.Sentry.StartGatewaySpan(ctx, gw.Provider().String(), "create_checkout_session")
	defer sentry.FinishSpan(span)

	ctx, cancel := context.WithTimeout(ctx, s.Config.Checkout.ProviderTimeout)
	defer cancel()

	req := &gateway.SessionRequest{
		PaymentID:   p.ID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Description: fmt.Sprintf("%s, case #%d", pl.Name, c.ID),
		Metadata: map[string]string{
			gateway.MetadataPaymentID: strconv.FormatInt(p.ID, 10),
			gateway.MetadataCaseID:    strconv.FormatInt(c.ID, 10),
			gateway.MetadataPlanID:    strconv.FormatInt(pl.ID, 10),
			gateway.MetadataUserID:    strconv.FormatInt(p.UserID, 10),
		},
		IdempotencyKey: s.idempGen.ForPayment(idempotency.ScopeCheckoutSession, p.ID),
		SuccessURL:     s.Config.Checkout.SuccessURL,
		CancelURL:      s.Config.Checkout.CancelURL,
		ExpiresAt:      p.CreatedAt.Add(s.Config.Checkout.SessionTTL),
	}

	if u, err := s.UserRepo.Get(ctx, p.UserID); err == nil {
		req.CustomerEmail = u.Email
	} else {
		s.Logger.Debugw("checkout without customer email", "user_id", p.UserID, "error", err)
	}

	session, err := gw.CreateCheckoutSession(ctx, req)
	if err != nil {
		s.Logger.Warnw("failed to open checkout session",
			"payment_id", p.ID,
			"provider", gw.Provider(),
			"error", err,
		)
		if ctx.Err() != nil || ierr.IsProviderUnavailable(err) {
			return nil, payment.ErrProviderUnavailable(err, gw.Provider())
		}
		return nil, err
	}

	s.Logger.Infow("checkout session opened",
		"payment_id", p.ID,
		"provider", gw.Provider(),
		"provider_session_id", session.ProviderSessionID,
	)
	return session, nil
}

func newCheckoutResponse(p *payment.Payment) *dto.CheckoutResponse {
	return &dto.CheckoutResponse{
		PaymentID:         p.ID,
		ProviderSessionID: lo.FromPtr(p.ProviderReference),
		RedirectURL:       lo.FromPtr(p.RedirectURL),
		Status:            p.Status,
		Amount:            p.Amount,
		Currency:          p.Currency,
	}
}
