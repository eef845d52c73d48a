package paypal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lm-legal/payments/internal/config"
	"github.com/lm-legal/payments/internal/domain/payment"
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/gateway"
	"github.com/lm-legal/payments/internal/httpclient"
	"github.com/lm-legal/payments/internal/logger"
	"github.com/lm-legal/payments/internal/types"
	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"
)

const (
	headerRequestID = "PayPal-Request-Id"

	issueOrderAlreadyCaptured = "ORDER_ALREADY_CAPTURED"

	// tokens are refreshed this long before PayPal expires them
	tokenSkew = time.Minute
)

// Gateway is the wallet adapter backed by PayPal Orders v2
type Gateway struct {
	cfg    config.PayPalConfig
	client httpclient.Client
	logger *logger.Logger

	mu          sync.RWMutex
	token       string
	tokenExpiry time.Time
	tokenFlight singleflight.Group
}

var (
	_ gateway.Gateway   = (*Gateway)(nil)
	_ gateway.Finalizer = (*Gateway)(nil)
)

func NewGateway(cfg config.PayPalConfig, client httpclient.Client, logger *logger.Logger) *Gateway {
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &Gateway{cfg: cfg, client: client, logger: logger}
}

func (g *Gateway) Provider() types.PaymentProvider {
	return types.PaymentProviderPayPal
}

func (g *Gateway) Method() types.PaymentMethod {
	return types.PaymentMethodWallet
}

func (g *Gateway) CreateCheckoutSession(ctx context.Context, req *gateway.SessionRequest) (*gateway.Session, error) {
	if !req.Amount.IsPositive() {
		return nil, payment.ErrAmountInvalid(req.Amount)
	}

	paymentID := strconv.FormatInt(req.PaymentID, 10)
	body, err := json.Marshal(&createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			ReferenceID: paymentID,
			CustomID:    paymentID,
			Description: req.Description,
			Amount: &money{
				CurrencyCode: strings.ToUpper(req.Currency),
				Value:        req.Amount.StringFixed(2),
			},
		}},
		PaymentSource: &paymentSource{PayPal: &paypalSource{
			EmailAddress: req.CustomerEmail,
			ExperienceContext: &experienceContext{
				BrandName:          g.cfg.BrandName,
				UserAction:         "PAY_NOW",
				ShippingPreference: "NO_SHIPPING",
				ReturnURL:          req.SuccessURL,
				CancelURL:          req.CancelURL,
			},
		}},
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to encode order").
			Mark(ierr.ErrSystem)
	}

	var created order
	err = g.call(ctx, http.MethodPost, "/v2/checkout/orders", body, map[string]string{
		headerRequestID: req.IdempotencyKey,
		"Prefer":        "return=representation",
	}, &created)
	if err != nil {
		g.logger.Errorw("failed to create paypal order", "error", err, "payment_id", req.PaymentID)
		return nil, g.classifyError(err)
	}

	redirect, ok := lo.Find(created.Links, func(l link) bool {
		return l.Rel == "payer-action" || l.Rel == "approve"
	})
	if !ok {
		return nil, ierr.NewErrorf("paypal order %s has no approval link", created.ID).
			WithHint("The wallet provider returned an incomplete order").
			Mark(ierr.ErrHTTPClient)
	}

	g.logger.Infow("created paypal order",
		"payment_id", req.PaymentID,
		"order_id", created.ID,
		"amount", req.Amount.String(),
		"currency", req.Currency,
	)

	return &gateway.Session{
		ProviderSessionID: created.ID,
		RedirectURL:       redirect.Href,
	}, nil
}

// Finalize captures an approved order. Capturing an order twice is reported by
// PayPal as ORDER_ALREADY_CAPTURED and treated as success.
func (g *Gateway) Finalize(ctx context.Context, orderID string, idempotencyKey string) error {
	err := g.call(ctx, http.MethodPost, "/v2/checkout/orders/"+url.PathEscape(orderID)+"/capture", []byte(`{}`),
		map[string]string{headerRequestID: idempotencyKey}, nil)
	if err == nil {
		g.logger.Infow("captured paypal order", "order_id", orderID)
		return nil
	}

	if httpErr, ok := httpclient.IsHTTPError(err); ok && hasIssue(httpErr.Response, issueOrderAlreadyCaptured) {
		g.logger.Debugw("paypal order already captured", "order_id", orderID)
		return nil
	}

	if httpErr, ok := httpclient.IsHTTPError(err); ok && !httpErr.IsRetryable() {
		issue := firstIssue(httpErr.Response)
		g.logger.Warnw("paypal declined order capture", "order_id", orderID, "issue", issue)
		return payment.ErrCaptureDeclined(types.PaymentProviderPayPal, orderID, issue)
	}

	return g.classifyError(err)
}

func (g *Gateway) VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) (*gateway.VerifiedEvent, error) {
	req := verifySignatureRequest{
		AuthAlgo:         headers.Get("PAYPAL-AUTH-ALGO"),
		CertURL:          headers.Get("PAYPAL-CERT-URL"),
		TransmissionID:   headers.Get("PAYPAL-TRANSMISSION-ID"),
		TransmissionSig:  headers.Get("PAYPAL-TRANSMISSION-SIG"),
		TransmissionTime: headers.Get("PAYPAL-TRANSMISSION-TIME"),
		WebhookID:        g.cfg.WebhookID,
		WebhookEvent:     payload,
	}
	if req.TransmissionID == "" || req.TransmissionSig == "" || req.CertURL == "" || !json.Valid(payload) {
		return nil, errInvalidSignature("missing transmission headers or malformed payload")
	}

	body, err := json.Marshal(&req)
	if err != nil {
		return nil, errInvalidSignature(err.Error())
	}

	var res verifySignatureResponse
	if err := g.call(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", body, nil, &res); err != nil {
		if httpErr, ok := httpclient.IsHTTPError(err); ok && !httpErr.IsRetryable() {
			return nil, errInvalidSignature("verification rejected")
		}
		return nil, payment.ErrProviderUnavailable(err, types.PaymentProviderPayPal)
	}
	if res.VerificationStatus != "SUCCESS" {
		return nil, errInvalidSignature("verification status " + res.VerificationStatus)
	}

	return parseEvent(payload)
}

// parseEvent normalizes a verified PayPal webhook payload
func parseEvent(payload []byte) (*gateway.VerifiedEvent, error) {
	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, errInvalidSignature(err.Error())
	}

	verified := &gateway.VerifiedEvent{
		Provider:  types.PaymentProviderPayPal,
		EventID:   event.ID,
		EventType: event.EventType,
		Kind:      types.WebhookEventKindIgnored,
	}

	var resource webhookResource
	if len(event.Resource) > 0 {
		if err := json.Unmarshal(event.Resource, &resource); err != nil {
			return nil, errInvalidSignature(err.Error())
		}
	}

	customID := resource.CustomID
	if customID == "" && len(resource.PurchaseUnits) > 0 {
		customID = resource.PurchaseUnits[0].CustomID
	}
	if id, ok := types.ParseID(customID); ok {
		verified.PaymentID = id
	}

	switch event.EventType {
	case types.PayPalEventOrderApproved:
		verified.Kind = types.WebhookEventKindApproved
		verified.ProviderReference = resource.ID
	case types.PayPalEventOrderVoided:
		verified.Kind = types.WebhookEventKindFailed
		verified.ProviderReference = resource.ID
		verified.FailureReason = lo.ToPtr("order voided")
	case types.PayPalEventCaptureCompleted:
		verified.Kind = types.WebhookEventKindCompleted
		verified.ProviderReference = resource.SupplementaryData.RelatedIDs.OrderID
	case types.PayPalEventCaptureDenied:
		verified.Kind = types.WebhookEventKindFailed
		verified.ProviderReference = resource.SupplementaryData.RelatedIDs.OrderID
		verified.FailureReason = lo.ToPtr("capture denied")
		if resource.StatusDetails.Reason != "" {
			verified.FailureReason = lo.ToPtr(resource.StatusDetails.Reason)
		}
	case types.PayPalEventCaptureRefunded:
		verified.Kind = types.WebhookEventKindRefunded
		verified.ProviderReference = resource.SupplementaryData.RelatedIDs.OrderID
	}

	return verified, nil
}

// call sends an authenticated JSON request and decodes the response into out
func (g *Gateway) call(ctx context.Context, method, path string, body []byte, headers map[string]string, out any) error {
	token, err := g.accessToken(ctx)
	if err != nil {
		return err
	}

	h := map[string]string{
		"Authorization": "Bearer " + token,
		"Content-Type":  "application/json",
	}
	for k, v := range headers {
		if v != "" {
			h[k] = v
		}
	}

	resp, err := g.client.Send(ctx, &httpclient.Request{
		Method:  method,
		URL:     g.cfg.BaseURL + path,
		Headers: h,
		Body:    body,
	})
	if err != nil {
		return err
	}

	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return ierr.WithError(err).
			WithHint("Unexpected response from the wallet provider").
			Mark(ierr.ErrHTTPClient)
	}
	return nil
}

// accessToken returns a cached OAuth2 client-credentials token. Concurrent
// callers that find it expired share one token request.
func (g *Gateway) accessToken(ctx context.Context) (string, error) {
	if tok, ok := g.cachedToken(); ok {
		return tok, nil
	}

	v, err, _ := g.tokenFlight.Do("token", func() (any, error) {
		if tok, ok := g.cachedToken(); ok {
			return tok, nil
		}
		// one caller giving up must not fail the others waiting on this request
		return g.fetchToken(context.WithoutCancel(ctx))
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (g *Gateway) cachedToken() (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.token != "" && time.Now().Before(g.tokenExpiry) {
		return g.token, true
	}
	return "", false
}

func (g *Gateway) fetchToken(ctx context.Context) (string, error) {
	credentials := base64.StdEncoding.EncodeToString([]byte(g.cfg.ClientID + ":" + g.cfg.ClientSecret))
	resp, err := g.client.Send(ctx, &httpclient.Request{
		Method: http.MethodPost,
		URL:    g.cfg.BaseURL + "/v1/oauth2/token",
		Headers: map[string]string{
			"Authorization": "Basic " + credentials,
			"Content-Type":  "application/x-www-form-urlencoded",
		},
		Body: []byte(url.Values{"grant_type": {"client_credentials"}}.Encode()),
	})
	if err != nil {
		return "", err
	}

	var tok tokenResponse
	if err := json.Unmarshal(resp.Body, &tok); err != nil || tok.AccessToken == "" {
		return "", ierr.NewError("paypal returned no access token").
			WithHint("Failed to authenticate with the wallet provider").
			Mark(ierr.ErrHTTPClient)
	}

	g.mu.Lock()
	g.token = tok.AccessToken
	g.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenSkew)
	g.mu.Unlock()

	g.logger.Debugw("refreshed paypal access token", "expires_in", tok.ExpiresIn)
	return tok.AccessToken, nil
}

// classifyError maps a failed PayPal call onto the checkout error taxonomy
func (g *Gateway) classifyError(err error) error {
	httpErr, ok := httpclient.IsHTTPError(err)
	if !ok || httpErr.IsRetryable() {
		return payment.ErrProviderUnavailable(err, types.PaymentProviderPayPal)
	}

	var res errorResponse
	_ = json.Unmarshal(httpErr.Response, &res)

	return ierr.WithError(err).
		WithHint("The wallet provider rejected the request").
		WithReportableDetails(map[string]any{
			"provider":   types.PaymentProviderPayPal,
			"error_code": res.Name,
		}).
		Mark(ierr.ErrHTTPClient)
}

// firstIssue returns the most specific reason PayPal gave for a rejection
func firstIssue(body []byte) string {
	var res errorResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return "UNKNOWN"
	}
	if len(res.Details) > 0 && res.Details[0].Issue != "" {
		return res.Details[0].Issue
	}
	return lo.Ternary(res.Name != "", res.Name, "UNKNOWN")
}

func hasIssue(body []byte, issue string) bool {
	var res errorResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return false
	}
	return lo.ContainsBy(res.Details, func(d errorDetail) bool {
		return d.Issue == issue
	})
}

func errInvalidSignature(reason string) error {
	return ierr.NewErrorf("paypal webhook rejected: %s", reason).
		WithHint("Invalid webhook signature or payload").
		WithReportableDetails(map[string]any{
			"provider": types.PaymentProviderPayPal,
		}).
		Mark(ierr.ErrInvalidSignature)
}
