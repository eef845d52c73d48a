package repository

import (
	"github.com/lm-legal/payments/internal/cache"
	"github.com/lm-legal/payments/internal/domain/invoice"
	"github.com/lm-legal/payments/internal/domain/legalcase"
	"github.com/lm-legal/payments/internal/domain/outbox"
	"github.com/lm-legal/payments/internal/domain/payment"
	"github.com/lm-legal/payments/internal/domain/plan"
	"github.com/lm-legal/payments/internal/domain/user"
	"github.com/lm-legal/payments/internal/domain/webhookevent"
	"github.com/lm-legal/payments/internal/logger"
	"github.com/lm-legal/payments/internal/postgres"
	postgresRepo "github.com/lm-legal/payments/internal/repository/postgres"
	"go.uber.org/fx"
)

// Module provides every repository backed by Postgres
func Module() fx.Option {
	return fx.Provide(
		NewPaymentRepository,
		NewInvoiceRepository,
		NewPlanRepository,
		NewUserRepository,
		NewLegalCaseRepository,
		NewOutboxRepository,
		NewWebhookEventRepository,
	)
}

func NewPaymentRepository(db *postgres.DB, logger *logger.Logger) payment.Repository {
	return postgresRepo.NewPaymentRepository(db, logger)
}

func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return postgresRepo.NewInvoiceRepository(db, logger)
}

func NewPlanRepository(db *postgres.DB, logger *logger.Logger, cache cache.Cache) plan.Repository {
	return postgresRepo.NewPlanRepository(db, logger, cache)
}

func NewUserRepository(db *postgres.DB, logger *logger.Logger) user.Repository {
	return postgresRepo.NewUserRepository(db, logger)
}

func NewLegalCaseRepository(db *postgres.DB, logger *logger.Logger) legalcase.Repository {
	return postgresRepo.NewLegalCaseRepository(db, logger)
}

func NewOutboxRepository(db *postgres.DB, logger *logger.Logger) outbox.Repository {
	return postgresRepo.NewOutboxRepository(db, logger)
}

func NewWebhookEventRepository(db *postgres.DB, logger *logger.Logger) webhookevent.Repository {
	return postgresRepo.NewWebhookEventRepository(db, logger)
}
