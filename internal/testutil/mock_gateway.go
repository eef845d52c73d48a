package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/gateway"
	"github.com/lm-legal/payments/internal/types"
)

// MockSignatureHeader carries the shared secret of a MockGateway delivery
const (
	MockSignatureHeader = "X-Mock-Signature"
	MockSignature       = "whsec_test"
)

// MockGateway is a provider that behaves like a real one towards idempotency:
// the same key always yields the same session
type MockGateway struct {
	mu       sync.Mutex
	provider types.PaymentProvider
	method   types.PaymentMethod
	sessions map[string]*gateway.Session
	requests []*gateway.SessionRequest
	captured map[string]int
	attempts map[string]int

	// CreateErr is returned by the next CreateCheckoutSession calls while set
	CreateErr error
	// FinalizeErr is returned by Finalize while set
	FinalizeErr error
}

var (
	_ gateway.Gateway   = (*MockGateway)(nil)
	_ gateway.Finalizer = (*MockGateway)(nil)
)

func NewMockGateway(provider types.PaymentProvider, method types.PaymentMethod) *MockGateway {
	return &MockGateway{
		provider: provider,
		method:   method,
		sessions: make(map[string]*gateway.Session),
		captured: make(map[string]int),
		attempts: make(map[string]int),
	}
}

func (g *MockGateway) Provider() types.PaymentProvider { return g.provider }

func (g *MockGateway) Method() types.PaymentMethod { return g.method }

func (g *MockGateway) CreateCheckoutSession(ctx context.Context, req *gateway.SessionRequest) (*gateway.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, ierr.WithError(err).Mark(ierr.ErrProviderUnavailable)
	}
	if g.CreateErr != nil {
		return nil, g.CreateErr
	}

	g.requests = append(g.requests, req)
	if s, ok := g.sessions[req.IdempotencyKey]; ok {
		return s, nil
	}

	id := fmt.Sprintf("%s_sess_%d", g.provider, len(g.sessions)+1)
	s := &gateway.Session{
		ProviderSessionID: id,
		RedirectURL:       "https://pay.example/" + id,
	}
	g.sessions[req.IdempotencyKey] = s
	return s, nil
}

func (g *MockGateway) VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) (*gateway.VerifiedEvent, error) {
	if headers.Get(MockSignatureHeader) != MockSignature {
		return nil, ierr.NewError("signature mismatch").
			WithHint("Invalid webhook signature").
			Mark(ierr.ErrInvalidSignature)
	}

	var event gateway.VerifiedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid webhook payload").
			Mark(ierr.ErrInvalidSignature)
	}
	event.Provider = g.provider
	return &event, nil
}

func (g *MockGateway) Finalize(ctx context.Context, providerReference string, idempotencyKey string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.attempts[providerReference]++
	if g.FinalizeErr != nil {
		return g.FinalizeErr
	}
	g.captured[providerReference]++
	return nil
}

// Requests returns every session request received, including retries
func (g *MockGateway) Requests() []*gateway.SessionRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*gateway.SessionRequest(nil), g.requests...)
}

// SessionCount returns the number of distinct sessions created
func (g *MockGateway) SessionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

// Captures returns how often providerReference was finalized
func (g *MockGateway) Captures(providerReference string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.captured[providerReference]
}

// CaptureAttempts returns how often Finalize was called for providerReference,
// failed attempts included
func (g *MockGateway) CaptureAttempts(providerReference string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.attempts[providerReference]
}

// MockDelivery returns a payload and headers MockGateway accepts
func MockDelivery(event gateway.VerifiedEvent) ([]byte, http.Header) {
	payload, _ := json.Marshal(event)
	headers := http.Header{}
	headers.Set(MockSignatureHeader, MockSignature)
	return payload, headers
}
