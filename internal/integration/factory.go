package integration

import (
	"github.com/lm-legal/payments/internal/config"
	"github.com/lm-legal/payments/internal/gateway"
	"github.com/lm-legal/payments/internal/httpclient"
	"github.com/lm-legal/payments/internal/integration/paypal"
	"github.com/lm-legal/payments/internal/integration/stripe"
	"github.com/lm-legal/payments/internal/logger"
)

// NewGatewayRegistry builds the enabled payment provider adapters
func NewGatewayRegistry(cfg *config.Configuration, log *logger.Logger) *gateway.Registry {
	var gateways []gateway.Gateway

	if cfg.Stripe.Enabled {
		gateways = append(gateways, stripe.NewGateway(cfg.Stripe, log))
	}

	if cfg.PayPal.Enabled {
		clientCfg := httpclient.DefaultClientConfig()
		clientCfg.Timeout = cfg.Checkout.ProviderTimeout
		gateways = append(gateways, paypal.NewGateway(cfg.PayPal, httpclient.NewRetryableClient(clientCfg, log), log))
	}

	registry := gateway.NewRegistry(gateways...)
	log.Infow("payment gateways configured", "providers", registry.Providers())
	return registry
}
