package service

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/lm-legal/payments/internal/domain/outbox"
	"github.com/lm-legal/payments/internal/email"
	ierr "github.com/lm-legal/payments/internal/errors"
	pubsubRouter "github.com/lm-legal/payments/internal/pubsub/router"
	"github.com/lm-legal/payments/internal/sentry"
	"github.com/lm-legal/payments/internal/types"
)

const consumerNotifier = "notifier"

// NotificationService tells payers about their invoices and refunds
type NotificationService interface {
	SendInvoiceIssued(ctx context.Context, event outbox.InvoiceIssued) error
	RegisterHandler(router *pubsubRouter.Router) error
}

type notificationService struct {
	ServiceParams
}

func NewNotificationService(params ServiceParams) NotificationService {
	return &notificationService{ServiceParams: params}
}

func (s *notificationService) RegisterHandler(router *pubsubRouter.Router) error {
	if err := router.AddConsumer(consumerNotifier, types.TopicInvoiceIssued, s.handleInvoiceIssued); err != nil {
		return err
	}
	return router.AddConsumer(consumerNotifier, types.TopicPaymentRefunded, s.handlePaymentRefunded)
}

func (s *notificationService) handleInvoiceIssued(msg *message.Message) error {
	ctx := msg.Context()
	span, ctx := s.Sentry.StartConsumerSpan(ctx, consumerNotifier, types.TopicInvoiceIssued, time.Time{})
	defer sentry.FinishSpan(span)

	var event outbox.InvoiceIssued
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return ierr.WithError(err).
			WithHint("Malformed invoice.issued event").
			Mark(ierr.ErrValidation)
	}
	return s.SendInvoiceIssued(ctx, event)
}

func (s *notificationService) handlePaymentRefunded(msg *message.Message) error {
	var event outbox.PaymentRefunded
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return ierr.WithError(err).
			WithHint("Malformed payment.refunded event").
			Mark(ierr.ErrValidation)
	}

	s.Logger.Infow("payment refunded",
		"payment_id", event.PaymentID,
		"case_id", event.CaseID,
		"user_id", event.UserID,
	)
	return nil
}

func (s *notificationService) SendInvoiceIssued(ctx context.Context, event outbox.InvoiceIssued) error {
	u, err := s.UserRepo.Get(ctx, event.UserID)
	if err != nil {
		return err
	}

	if u.Email == "" {
		s.Logger.Warnw("invoice owner has no email address",
			"user_id", u.ID,
			"invoice_number", event.InvoiceNumber,
		)
		return nil
	}

	subject := fmt.Sprintf("Your invoice %s", event.InvoiceNumber)
	text := fmt.Sprintf(
		"Hello %s,\n\nthank you for your payment for case #%d. Your invoice %s is available in your account.\n",
		u.Name, event.CaseID, event.InvoiceNumber,
	)
	body := fmt.Sprintf(
		"<p>Hello %s,</p><p>thank you for your payment for case #%d. Your invoice <strong>%s</strong> is available in your account.</p>",
		html.EscapeString(u.Name), event.CaseID, html.EscapeString(event.InvoiceNumber),
	)

	resp, err := s.Email.SendEmail(ctx, email.SendEmailRequest{
		ToAddress: u.Email,
		Subject:   subject,
		HTML:      body,
		Text:      text,
	})
	if err != nil {
		return err
	}

	s.Logger.Infow("invoice notification handled",
		"invoice_number", event.InvoiceNumber,
		"user_id", u.ID,
		"skipped", resp.Skipped,
	)
	return nil
}
