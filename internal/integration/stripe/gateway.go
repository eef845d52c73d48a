package stripe

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lm-legal/payments/internal/config"
	"github.com/lm-legal/payments/internal/domain/payment"
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/gateway"
	"github.com/lm-legal/payments/internal/logger"
	"github.com/lm-legal/payments/internal/types"
	"github.com/samber/lo"
	"github.com/stripe/stripe-go/v82"
)

// Stripe accepts expires_at between 30 minutes and 24 hours ahead
const (
	minSessionLifetime = 30 * time.Minute
	maxSessionLifetime = 24 * time.Hour
)

// Gateway is the card checkout adapter backed by Stripe Checkout
type Gateway struct {
	client        *stripe.Client
	webhookSecret string
	logger        *logger.Logger
}

var _ gateway.Gateway = (*Gateway)(nil)

func NewGateway(cfg config.StripeConfig, logger *logger.Logger) *Gateway {
	return &Gateway{
		client:        stripe.NewClient(cfg.SecretKey, nil),
		webhookSecret: cfg.WebhookSecret,
		logger:        logger,
	}
}

func (g *Gateway) Provider() types.PaymentProvider {
	return types.PaymentProviderStripe
}

func (g *Gateway) Method() types.PaymentMethod {
	return types.PaymentMethodCard
}

func (g *Gateway) CreateCheckoutSession(ctx context.Context, req *gateway.SessionRequest) (*gateway.Session, error) {
	params, err := buildSessionParams(req, time.Now())
	if err != nil {
		return nil, err
	}

	session, err := g.client.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		g.logger.Errorw("failed to create stripe checkout session",
			"error", err,
			"payment_id", req.PaymentID,
		)
		return nil, classifyError(err, req)
	}

	g.logger.Infow("created stripe checkout session",
		"payment_id", req.PaymentID,
		"session_id", session.ID,
		"amount", req.Amount.String(),
		"currency", req.Currency,
	)

	return &gateway.Session{
		ProviderSessionID: session.ID,
		RedirectURL:       session.URL,
	}, nil
}

func (g *Gateway) VerifyWebhook(_ context.Context, payload []byte, headers http.Header) (*gateway.VerifiedEvent, error) {
	return parseEvent(payload, headers.Get("Stripe-Signature"), g.webhookSecret)
}

// buildSessionParams renders a one line, one shot payment session for req
func buildSessionParams(req *gateway.SessionRequest, now time.Time) (*stripe.CheckoutSessionCreateParams, error) {
	if !req.Amount.IsPositive() {
		return nil, payment.ErrAmountInvalid(req.Amount)
	}

	// Checkout expects the amount in the currency's minor unit
	amountCents := req.Amount.Shift(2).Round(0).IntPart()

	metadata := lo.Assign(req.Metadata, map[string]string{
		gateway.MetadataPaymentID: strconv.FormatInt(req.PaymentID, 10),
	})

	params := &stripe.CheckoutSessionCreateParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(req.Currency)),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(amountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(strconv.FormatInt(req.PaymentID, 10)),
		Metadata:          metadata,
		PaymentIntentData: &stripe.CheckoutSessionCreatePaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.ExpiresAt = stripe.Int64(sessionExpiry(req.ExpiresAt, now).Unix())
	params.SetIdempotencyKey(req.IdempotencyKey)

	return params, nil
}

// sessionExpiry clamps the requested expiry into the window Stripe accepts.
// The session is always given an explicit expiry so it never outlives the
// pending payment by Stripe's 24h default.
func sessionExpiry(requested, now time.Time) time.Time {
	earliest := now.Add(minSessionLifetime)
	latest := now.Add(maxSessionLifetime)
	switch {
	case requested.Before(earliest):
		return earliest
	case requested.After(latest):
		return latest
	default:
		return requested
	}
}

// classifyError maps a Stripe API failure onto the checkout error taxonomy
func classifyError(err error, req *gateway.SessionRequest) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		// transport failure or context deadline
		return payment.ErrProviderUnavailable(err, types.PaymentProviderStripe)
	}

	switch {
	case stripeErr.HTTPStatusCode >= http.StatusInternalServerError,
		stripeErr.HTTPStatusCode == http.StatusTooManyRequests:
		return payment.ErrProviderUnavailable(err, types.PaymentProviderStripe)
	case stripeErr.Code == stripe.ErrorCodeAmountTooLarge, stripeErr.Code == stripe.ErrorCodeAmountTooSmall:
		return payment.ErrAmountInvalid(req.Amount)
	default:
		return ierr.WithError(err).
			WithHint("The card payment provider rejected the checkout request").
			WithReportableDetails(map[string]any{
				"provider":   types.PaymentProviderStripe,
				"payment_id": req.PaymentID,
				"error_code": string(stripeErr.Code),
			}).
			Mark(ierr.ErrHTTPClient)
	}
}
