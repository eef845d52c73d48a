package service

import (
	"github.com/lm-legal/payments/internal/config"
	"github.com/lm-legal/payments/internal/domain/invoice"
	"github.com/lm-legal/payments/internal/domain/legalcase"
	"github.com/lm-legal/payments/internal/domain/outbox"
	"github.com/lm-legal/payments/internal/domain/payment"
	"github.com/lm-legal/payments/internal/domain/plan"
	"github.com/lm-legal/payments/internal/domain/user"
	"github.com/lm-legal/payments/internal/domain/webhookevent"
	"github.com/lm-legal/payments/internal/email"
	"github.com/lm-legal/payments/internal/gateway"
	"github.com/lm-legal/payments/internal/logger"
	"github.com/lm-legal/payments/internal/postgres"
	"github.com/lm-legal/payments/internal/s3"
	"github.com/lm-legal/payments/internal/sentry"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient
	Sentry *sentry.Service

	// Repositories
	PaymentRepo      payment.Repository
	InvoiceRepo      invoice.Repository
	PlanRepo         plan.Repository
	UserRepo         user.Repository
	CaseRepo         legalcase.Repository
	OutboxRepo       outbox.Repository
	WebhookEventRepo webhookevent.Repository

	// Collaborators
	Gateways  *gateway.Registry
	Artifacts s3.Service
	Email     *email.Email
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	sentry *sentry.Service,
	paymentRepo payment.Repository,
	invoiceRepo invoice.Repository,
	planRepo plan.Repository,
	userRepo user.Repository,
	caseRepo legalcase.Repository,
	outboxRepo outbox.Repository,
	webhookEventRepo webhookevent.Repository,
	gateways *gateway.Registry,
	artifacts s3.Service,
	email *email.Email,
) ServiceParams {
	return ServiceParams{
		Logger:           logger,
		Config:           config,
		DB:               db,
		Sentry:           sentry,
		PaymentRepo:      paymentRepo,
		InvoiceRepo:      invoiceRepo,
		PlanRepo:         planRepo,
		UserRepo:         userRepo,
		CaseRepo:         caseRepo,
		OutboxRepo:       outboxRepo,
		WebhookEventRepo: webhookEventRepo,
		Gateways:         gateways,
		Artifacts:        artifacts,
		Email:            email,
	}
}
