package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/lm-legal/payments/internal/api/dto"
	"github.com/lm-legal/payments/internal/document"
	domainDocument "github.com/lm-legal/payments/internal/domain/document"
	"github.com/lm-legal/payments/internal/domain/invoice"
	"github.com/lm-legal/payments/internal/domain/outbox"
	"github.com/lm-legal/payments/internal/domain/payment"
	ierr "github.com/lm-legal/payments/internal/errors"
	pubsubRouter "github.com/lm-legal/payments/internal/pubsub/router"
	"github.com/lm-legal/payments/internal/s3"
	"github.com/lm-legal/payments/internal/sentry"
	"github.com/lm-legal/payments/internal/types"
)

const consumerInvoiceIssuer = "invoice_issuer"

// InvoiceService issues at most one invoice per completed payment
type InvoiceService interface {
	// IssueForPayment returns the invoice of a completed payment, creating it
	// on first call. Concurrent and repeated calls return the same invoice.
	IssueForPayment(ctx context.Context, paymentID int64) (*invoice.Invoice, error)

	// GetInvoice returns the invoice of a payment owned by the caller
	GetInvoice(ctx context.Context, paymentID int64) (*dto.InvoiceResponse, error)

	// DownloadInvoice returns the rendered document of a payment owned by the caller
	DownloadInvoice(ctx context.Context, paymentID int64) (*dto.InvoiceDocument, error)

	// RegisterHandler subscribes the issuer to payment.completed
	RegisterHandler(router *pubsubRouter.Router) error
}

type invoiceService struct {
	ServiceParams
	documents document.Generator
	now       func() time.Time
	// loc decides the calendar year of an invoice number
	loc *time.Location
}

func NewInvoiceService(params ServiceParams, documents document.Generator) InvoiceService {
	loc, err := params.Config.Invoice.Location()
	if err != nil {
		params.Logger.Errorw("unknown invoice timezone, numbering in UTC",
			"timezone", params.Config.Invoice.Timezone,
			"error", err,
		)
		loc = time.UTC
	}

	return &invoiceService{
		ServiceParams: params,
		documents:     documents,
		now:           func() time.Time { return time.Now().UTC() },
		loc:           loc,
	}
}

func (s *invoiceService) RegisterHandler(router *pubsubRouter.Router) error {
	return router.AddConsumer(consumerInvoiceIssuer, types.TopicPaymentCompleted, s.handlePaymentCompleted)
}

func (s *invoiceService) handlePaymentCompleted(msg *message.Message) error {
	ctx := msg.Context()
	span, ctx := s.Sentry.StartConsumerSpan(ctx, consumerInvoiceIssuer, types.TopicPaymentCompleted, time.Time{})
	defer sentry.FinishSpan(span)

	var event outbox.PaymentCompleted
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return ierr.WithError(err).
			WithHint("Malformed payment.completed event").
			Mark(ierr.ErrValidation)
	}

	s.Logger.Debugw("issuing invoice for completed payment",
		"payment_id", event.PaymentID,
		"message_uuid", msg.UUID,
	)

	_, err := s.IssueForPayment(ctx, event.PaymentID)
	return err
}

func (s *invoiceService) IssueForPayment(ctx context.Context, paymentID int64) (*invoice.Invoice, error) {
	p, err := s.PaymentRepo.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	inv, err := s.issue(ctx, p)
	if err != nil {
		return nil, err
	}

	if err := s.ensureArtifact(ctx, inv, p); err != nil {
		return nil, err
	}
	return inv, nil
}

// issue returns the existing invoice or allocates a number and inserts a new
// one. The counter increment and the insert share a transaction, so a losing
// concurrent attempt gives its number back.
func (s *invoiceService) issue(ctx context.Context, p *payment.Payment) (*invoice.Invoice, error) {
	// a refunded payment has completed before and keeps its right to an invoice
	if p.CompletedAt == nil || (p.Status != types.PaymentStatusCompleted && p.Status != types.PaymentStatusRefunded) {
		return nil, invoice.ErrPaymentNotCompleted(p.ID)
	}

	existing, err := s.InvoiceRepo.GetByPaymentID(ctx, p.ID)
	if err == nil {
		return existing, nil
	}
	if !ierr.IsNotFound(err) {
		return nil, err
	}

	issuedAt := s.now().In(s.loc)
	year := issuedAt.Year()

	var inv *invoice.Invoice
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		seq, err := s.InvoiceRepo.NextSequence(ctx, year)
		if err != nil {
			return err
		}

		number, err := invoice.FormatNumber(s.Config.Invoice.Prefix, year, seq)
		if err != nil {
			return err
		}
		inv = &invoice.Invoice{
			PaymentID:   p.ID,
			Number:      number,
			Year:        year,
			Sequence:    seq,
			Amount:      p.Amount,
			Currency:    p.Currency,
			ArtifactKey: s3.InvoiceKey(invoice.ArtifactKeyFor(number)),
			IssuedAt:    issuedAt,
		}
		if err := s.InvoiceRepo.Create(ctx, inv); err != nil {
			return err
		}

		event, err := outbox.NewEvent(types.TopicInvoiceIssued, p.ID, outbox.InvoiceIssued{
			InvoiceNumber: number,
			PaymentID:     p.ID,
			UserID:        p.UserID,
			CaseID:        p.CaseID,
		})
		if err != nil {
			return err
		}
		return s.OutboxRepo.Create(ctx, event)
	})
	if err != nil {
		if invoice.IsInvoiceAlreadyExists(err) {
			s.Logger.Debugw("invoice already issued by a concurrent attempt", "payment_id", p.ID)
			return s.InvoiceRepo.GetByPaymentID(ctx, p.ID)
		}
		return nil, err
	}

	s.Logger.Infow("invoice issued",
		"invoice_number", inv.Number,
		"payment_id", p.ID,
		"case_id", p.CaseID,
	)
	return inv, nil
}

// ensureArtifact stores the rendered document unless it is already stored
func (s *invoiceService) ensureArtifact(ctx context.Context, inv *invoice.Invoice, p *payment.Payment) error {
	exists, err := s.Artifacts.Exists(ctx, inv.ArtifactKey)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	data, err := s.render(ctx, inv, p)
	if err != nil {
		return err
	}

	if err := s.Artifacts.Upload(ctx, s3.NewHTMLDocument(inv.ArtifactKey, data)); err != nil {
		s.Logger.Errorw("failed to store invoice artifact",
			"invoice_number", inv.Number,
			"key", inv.ArtifactKey,
			"error", err,
		)
		return err
	}

	s.Logger.Infow("invoice artifact stored", "invoice_number", inv.Number, "key", inv.ArtifactKey)
	return nil
}

func (s *invoiceService) render(ctx context.Context, inv *invoice.Invoice, p *payment.Payment) ([]byte, error) {
	data := &domainDocument.InvoiceData{
		InvoiceNumber: inv.Number,
		IssuingDate:   inv.IssuedAt,
		Currency:      inv.Currency,
		Total:         inv.Amount,
		PaymentID:     p.ID,
		PaymentMethod: p.Method.String(),
		PaidAt:        p.CompletedAt,
		Biller: &domainDocument.BillerInfo{
			Name:    s.Config.Invoice.SellerName,
			Address: s.Config.Invoice.SellerAddress,
		},
	}

	line := domainDocument.LineItemData{
		DisplayName: "Legal service",
		CaseID:      p.CaseID,
		Amount:      inv.Amount,
	}
	if pl, err := s.PlanRepo.Get(ctx, p.PlanID); err == nil {
		line.DisplayName = pl.Name
		line.Description = pl.Description
	}
	data.LineItems = []domainDocument.LineItemData{line}

	if u, err := s.UserRepo.Get(ctx, p.UserID); err == nil {
		data.Recipient = &domainDocument.RecipientInfo{Name: u.Name, Email: u.Email}
	}

	return s.documents.RenderInvoice(ctx, data)
}

// ownedPayment loads a payment the caller may see. Another user's payment is
// reported as missing.
func (s *invoiceService) ownedPayment(ctx context.Context, paymentID int64) (*payment.Payment, error) {
	p, err := s.PaymentRepo.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.UserID != types.GetUserID(ctx) && !types.IsAdmin(ctx) {
		return nil, payment.ErrNotFound(paymentID)
	}
	return p, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, paymentID int64) (*dto.InvoiceResponse, error) {
	p, err := s.ownedPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	inv, err := s.issue(ctx, p)
	if err != nil {
		return nil, err
	}

	if err := s.ensureArtifact(ctx, inv, p); err != nil {
		s.Logger.Warnw("invoice artifact unavailable", "invoice_number", inv.Number, "error", err)
		return dto.NewInvoiceResponse(inv, ""), nil
	}

	url, err := s.Artifacts.PresignedURL(ctx, inv.ArtifactKey)
	if err != nil {
		s.Logger.Warnw("failed to sign invoice download", "invoice_number", inv.Number, "error", err)
	}
	// stores without signed links are served through the API
	if url == "" {
		url = fmt.Sprintf("/v1/payments/%d/invoice/download", p.ID)
	}
	return dto.NewInvoiceResponse(inv, url), nil
}

func (s *invoiceService) DownloadInvoice(ctx context.Context, paymentID int64) (*dto.InvoiceDocument, error) {
	p, err := s.ownedPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	inv, err := s.issue(ctx, p)
	if err != nil {
		return nil, err
	}

	if err := s.ensureArtifact(ctx, inv, p); err != nil {
		return nil, err
	}

	data, err := s.Artifacts.Get(ctx, inv.ArtifactKey)
	if err != nil {
		return nil, err
	}

	return &dto.InvoiceDocument{
		FileName:    invoice.ArtifactKeyFor(inv.Number),
		ContentType: s3.ContentTypeHTML,
		Data:        data,
	}, nil
}
