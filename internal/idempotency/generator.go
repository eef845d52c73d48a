package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Scope represents the provider operation a key protects
type Scope string

const (
	// ScopeCheckoutSession guards session or order creation for one payment
	ScopeCheckoutSession Scope = "checkout_session"
	// ScopeCapture guards capturing an approved order
	ScopeCapture Scope = "capture"
)

// Generator derives idempotency keys sent to payment providers
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateKey hashes scope and params into a stable key. Params are sorted so
// the same inputs always yield the same key.
func (g *Generator) GenerateKey(scope Scope, params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(scope))
	for _, k := range keys {
		b.WriteString(fmt.Sprintf(":%s=%v", k, params[k]))
	}

	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s-%s", scope, hex.EncodeToString(hash[:12]))
}

// ForPayment returns the key of scope bound to one payment. Retrying a
// checkout for the same payment reuses the key so the provider returns the
// session it already created.
func (g *Generator) ForPayment(scope Scope, paymentID int64) string {
	return g.GenerateKey(scope, map[string]any{"payment_id": paymentID})
}
