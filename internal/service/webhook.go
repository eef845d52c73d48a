package service

import (
	"context"
	"net/http"

	"github.com/lm-legal/payments/internal/api/dto"
	"github.com/lm-legal/payments/internal/domain/payment"
	"github.com/lm-legal/payments/internal/domain/webhookevent"
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/gateway"
	"github.com/lm-legal/payments/internal/idempotency"
	"github.com/lm-legal/payments/internal/types"
	"github.com/samber/lo"
)

// WebhookService applies verified provider deliveries to the ledger. Every
// delivery that was processed without an infrastructure error is acknowledged,
// including stale, duplicate and unknown events.
type WebhookService interface {
	ProcessDelivery(ctx context.Context, provider string, payload []byte, headers http.Header) (*dto.WebhookResponse, error)
}

type webhookService struct {
	ServiceParams
	ledger   LedgerService
	idempGen *idempotency.Generator
}

func NewWebhookService(params ServiceParams, ledger LedgerService) WebhookService {
	return &webhookService{
		ServiceParams: params,
		ledger:        ledger,
		idempGen:      idempotency.NewGenerator(),
	}
}

func (s *webhookService) ProcessDelivery(ctx context.Context, provider string, payload []byte, headers http.Header) (*dto.WebhookResponse, error) {
	gw, err := s.Gateways.ForProvider(types.PaymentProvider(provider))
	if err != nil {
		return nil, err
	}

	event, err := gw.VerifyWebhook(ctx, payload, headers)
	if err != nil {
		s.rejectDelivery(ctx, gw.Provider(), err)
		return nil, err
	}

	delivery, err := s.WebhookEventRepo.Record(ctx, &webhookevent.Delivery{
		Provider:        gw.Provider(),
		ProviderEventID: lo.EmptyableToPtr(event.EventID),
		EventType:       event.EventType,
		SignatureValid:  true,
	})
	if err != nil {
		return nil, err
	}

	log := s.Logger.With(
		"provider", gw.Provider(),
		"event_id", event.EventID,
		"event_type", event.EventType,
		"delivery_count", delivery.DeliveryCount,
	)

	outcome, paymentID, applyErr := s.apply(ctx, gw, event)
	if applyErr != nil {
		log.Errorw("failed to process webhook", "error", applyErr)
		s.Sentry.CaptureWithTags(ctx, applyErr, map[string]string{
			"provider": gw.Provider().String(),
			"event_id": event.EventID,
		})
		s.complete(ctx, delivery.ID, types.WebhookOutcomeError, paymentID, lo.ToPtr(applyErr.Error()))
		return nil, applyErr
	}

	if err := s.WebhookEventRepo.Complete(ctx, delivery.ID, outcome, paymentID, nil); err != nil {
		return nil, err
	}

	log.Infow("webhook processed", "outcome", outcome, "payment_id", lo.FromPtr(paymentID))
	return &dto.WebhookResponse{Received: true, Outcome: outcome}, nil
}

// apply maps the event onto the ledger
func (s *webhookService) apply(ctx context.Context, gw gateway.Gateway, event *gateway.VerifiedEvent) (types.WebhookOutcome, *int64, error) {
	if event.Kind == types.WebhookEventKindIgnored {
		return types.WebhookOutcomeIgnored, nil, nil
	}

	p, err := s.resolvePayment(ctx, gw.Provider(), event)
	if err != nil {
		if ierr.IsNotFound(err) {
			s.Logger.Infow("webhook references an unknown payment",
				"provider", gw.Provider(),
				"provider_reference", event.ProviderReference,
				"payment_id", event.PaymentID,
			)
			return types.WebhookOutcomePaymentNotFound, nil, nil
		}
		return types.WebhookOutcomeError, nil, err
	}

	if event.Kind == types.WebhookEventKindApproved {
		return s.finalize(ctx, gw, p, event)
	}

	target, ok := event.Kind.TargetStatus()
	if !ok {
		return types.WebhookOutcomeIgnored, &p.ID, nil
	}

	expected := []types.PaymentStatus{types.PaymentStatusPending}
	if target == types.PaymentStatusRefunded {
		expected = []types.PaymentStatus{types.PaymentStatusCompleted}
	}

	res, err := s.ledger.Transition(ctx, p.ID, target, expected, event.FailureReason)
	if err != nil {
		return types.WebhookOutcomeError, &p.ID, err
	}
	if !res.Applied {
		return types.WebhookOutcomeNoop, &p.ID, nil
	}
	return types.WebhookOutcomeApplied, &p.ID, nil
}

// finalize captures an approved order. The capture completion arrives as its own webhook.
func (s *webhookService) finalize(ctx context.Context, gw gateway.Gateway, p *payment.Payment, event *gateway.VerifiedEvent) (types.WebhookOutcome, *int64, error) {
	finalizer, ok := gw.(gateway.Finalizer)
	if !ok || p.Status != types.PaymentStatusPending {
		return types.WebhookOutcomeNoop, &p.ID, nil
	}

	ref := lo.Ternary(event.ProviderReference != "", event.ProviderReference, lo.FromPtr(p.ProviderReference))
	key := s.idempGen.ForPayment(idempotency.ScopeCapture, p.ID)
	if err := finalizer.Finalize(ctx, ref, key); err != nil {
		if ierr.IsProviderUnavailable(err) {
			return types.WebhookOutcomeError, &p.ID, err
		}
		return s.declineCapture(ctx, p, err)
	}
	return types.WebhookOutcomeFinalized, &p.ID, nil
}

// declineCapture fails a payment whose capture the provider refused. The
// delivery is acknowledged so the provider stops redelivering it.
func (s *webhookService) declineCapture(ctx context.Context, p *payment.Payment, captureErr error) (types.WebhookOutcome, *int64, error) {
	s.Logger.Warnw("capture declined, failing payment",
		"payment_id", p.ID,
		"provider", p.Provider,
		"error", captureErr,
	)

	res, err := s.ledger.Transition(ctx, p.ID, types.PaymentStatusFailed,
		[]types.PaymentStatus{types.PaymentStatusPending},
		lo.ToPtr(captureErr.Error()),
	)
	if err != nil {
		return types.WebhookOutcomeError, &p.ID, err
	}
	if !res.Applied {
		return types.WebhookOutcomeNoop, &p.ID, nil
	}
	return types.WebhookOutcomeApplied, &p.ID, nil
}

// resolvePayment looks the payment up by provider reference and falls back to
// the payment id echoed in the session metadata
func (s *webhookService) resolvePayment(ctx context.Context, provider types.PaymentProvider, event *gateway.VerifiedEvent) (*payment.Payment, error) {
	if event.ProviderReference != "" {
		p, err := s.ledger.GetByProviderReference(ctx, provider, event.ProviderReference)
		if err == nil {
			return p, nil
		}
		if !ierr.IsNotFound(err) {
			return nil, err
		}
	}

	if event.PaymentID == 0 {
		return nil, payment.ErrNotFound(0)
	}

	p, err := s.ledger.GetPayment(ctx, event.PaymentID)
	if err != nil {
		return nil, err
	}
	if p.Provider != provider {
		return nil, payment.ErrNotFound(event.PaymentID)
	}
	return p, nil
}

// rejectDelivery audits a delivery that failed verification. The ledger is
// never touched and an audit failure does not change the response.
func (s *webhookService) rejectDelivery(ctx context.Context, provider types.PaymentProvider, verifyErr error) {
	s.Logger.Warnw("rejected webhook delivery",
		"provider", provider,
		"error", verifyErr,
	)

	delivery, err := s.WebhookEventRepo.Record(ctx, &webhookevent.Delivery{
		Provider:       provider,
		EventType:      "unverified",
		SignatureValid: false,
		Outcome:        types.WebhookOutcomeInvalidSignature,
	})
	if err != nil {
		s.Logger.Errorw("failed to audit rejected webhook", "provider", provider, "error", err)
		return
	}
	s.complete(ctx, delivery.ID, types.WebhookOutcomeInvalidSignature, nil, lo.ToPtr(verifyErr.Error()))
}

func (s *webhookService) complete(ctx context.Context, id int64, outcome types.WebhookOutcome, paymentID *int64, processingErr *string) {
	if err := s.WebhookEventRepo.Complete(ctx, id, outcome, paymentID, processingErr); err != nil {
		s.Logger.Errorw("failed to complete webhook audit", "delivery_id", id, "error", err)
	}
}
