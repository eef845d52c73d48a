package idempotency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateKeyIsStable(t *testing.T) {
	g := NewGenerator()

	a := g.GenerateKey(ScopeCheckoutSession, map[string]any{"payment_id": 101, "method": "card"})
	b := g.GenerateKey(ScopeCheckoutSession, map[string]any{"method": "card", "payment_id": 101})
	assert.Equal(t, a, b)
	assert.Contains(t, a, "checkout_session-")
}

func TestForPayment(t *testing.T) {
	g := NewGenerator()

	assert.Equal(t, g.ForPayment(ScopeCheckoutSession, 101), g.ForPayment(ScopeCheckoutSession, 101))
	assert.NotEqual(t, g.ForPayment(ScopeCheckoutSession, 101), g.ForPayment(ScopeCheckoutSession, 102))
	assert.NotEqual(t, g.ForPayment(ScopeCheckoutSession, 101), g.ForPayment(ScopeCapture, 101))
}
