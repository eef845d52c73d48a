package gateway

import (
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/types"
	"github.com/samber/lo"
)

// Registry resolves gateways by provider tag and by payment method
type Registry struct {
	byProvider map[types.PaymentProvider]Gateway
	byMethod   map[types.PaymentMethod]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{
		byProvider: make(map[types.PaymentProvider]Gateway),
		byMethod:   make(map[types.PaymentMethod]Gateway),
	}
	for _, g := range gateways {
		if g == nil {
			continue
		}
		r.byProvider[g.Provider()] = g
		r.byMethod[g.Method()] = g
	}
	return r
}

// ForProvider returns the gateway registered under the webhook path tag
func (r *Registry) ForProvider(provider types.PaymentProvider) (Gateway, error) {
	g, ok := r.byProvider[provider]
	if !ok {
		return nil, ierr.NewErrorf("unknown payment provider %q", provider).
			WithHint("Unknown payment provider").
			WithReportableDetails(map[string]any{
				"code":     "unknown_provider",
				"provider": provider,
			}).
			Mark(ierr.ErrNotFound)
	}
	return g, nil
}

// ForMethod returns the gateway that serves a payment method
func (r *Registry) ForMethod(method types.PaymentMethod) (Gateway, error) {
	g, ok := r.byMethod[method]
	if !ok {
		return nil, ierr.NewErrorf("payment method %q is not available", method).
			WithHintf("Payment method %s is not available", method).
			WithReportableDetails(map[string]any{
				"code":   "method_unavailable",
				"method": method,
			}).
			Mark(ierr.ErrValidation)
	}
	return g, nil
}

// Providers lists the registered provider tags
func (r *Registry) Providers() []types.PaymentProvider {
	return lo.Keys(r.byProvider)
}
