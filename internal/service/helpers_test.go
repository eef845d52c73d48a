package service

import (
	"github.com/lm-legal/payments/internal/sentry"
	"github.com/lm-legal/payments/internal/testutil"
)

// newTestServiceParams wires the in-memory stores and mock providers of the suite
func newTestServiceParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:           s.GetLogger(),
		Config:           s.GetConfig(),
		DB:               s.GetDB(),
		Sentry:           sentry.NewSentryService(s.GetConfig(), s.GetLogger()),
		PaymentRepo:      stores.PaymentRepo,
		InvoiceRepo:      stores.InvoiceRepo,
		PlanRepo:         stores.PlanRepo,
		UserRepo:         stores.UserRepo,
		CaseRepo:         stores.CaseRepo,
		OutboxRepo:       stores.OutboxRepo,
		WebhookEventRepo: stores.WebhookEventRepo,
		Gateways:         s.GetGateways(),
		Artifacts:        s.GetArtifacts(),
		Email:            s.GetEmail(),
	}
}
