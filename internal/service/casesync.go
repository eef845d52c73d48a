package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/lm-legal/payments/internal/domain/outbox"
	ierr "github.com/lm-legal/payments/internal/errors"
	pubsubRouter "github.com/lm-legal/payments/internal/pubsub/router"
	"github.com/lm-legal/payments/internal/sentry"
	"github.com/lm-legal/payments/internal/types"
)

const consumerCaseSync = "case_sync"

// CaseSyncService moves a case to processing once its payment completed
type CaseSyncService interface {
	// AdvanceCase is idempotent: an already processing or completed case is left alone
	AdvanceCase(ctx context.Context, caseID int64) error
	RegisterHandler(router *pubsubRouter.Router) error
}

type caseSyncService struct {
	ServiceParams
}

func NewCaseSyncService(params ServiceParams) CaseSyncService {
	return &caseSyncService{ServiceParams: params}
}

func (s *caseSyncService) RegisterHandler(router *pubsubRouter.Router) error {
	return router.AddConsumer(consumerCaseSync, types.TopicPaymentCompleted, s.handlePaymentCompleted)
}

func (s *caseSyncService) handlePaymentCompleted(msg *message.Message) error {
	ctx := msg.Context()
	span, ctx := s.Sentry.StartConsumerSpan(ctx, consumerCaseSync, types.TopicPaymentCompleted, time.Time{})
	defer sentry.FinishSpan(span)

	var event outbox.PaymentCompleted
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return ierr.WithError(err).
			WithHint("Malformed payment.completed event").
			Mark(ierr.ErrValidation)
	}

	return s.AdvanceCase(ctx, event.CaseID)
}

func (s *caseSyncService) AdvanceCase(ctx context.Context, caseID int64) error {
	advanced, err := s.CaseRepo.AdvanceToProcessing(ctx, caseID)
	if err != nil {
		if ierr.IsNotFound(err) {
			s.Logger.Warnw("paid case not found, skipping", "case_id", caseID)
			return nil
		}
		return err
	}

	if advanced {
		s.Logger.Infow("case moved to processing", "case_id", caseID)
	} else {
		s.Logger.Debugw("case already processing", "case_id", caseID)
	}
	return nil
}
