package testutil

import (
	"context"
	"time"

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
	"github.com/lm-legal/payments/internal/pubsub/memory"
	"github.com/lm-legal/payments/internal/s3"
	"github.com/lm-legal/payments/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	PaymentRepo      *InMemoryPaymentStore
	InvoiceRepo      *InMemoryInvoiceStore
	PlanRepo         *InMemoryPlanStore
	UserRepo         *InMemoryUserStore
	CaseRepo         *InMemoryCaseStore
	OutboxRepo       *InMemoryOutboxStore
	WebhookEventRepo *InMemoryWebhookEventStore
}

var (
	_ payment.Repository      = (*InMemoryPaymentStore)(nil)
	_ invoice.Repository      = (*InMemoryInvoiceStore)(nil)
	_ plan.Repository         = (*InMemoryPlanStore)(nil)
	_ user.Repository         = (*InMemoryUserStore)(nil)
	_ legalcase.Repository    = (*InMemoryCaseStore)(nil)
	_ outbox.Repository       = (*InMemoryOutboxStore)(nil)
	_ webhookevent.Repository = (*InMemoryWebhookEventStore)(nil)
)

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	stores    Stores
	db        *MockPostgresClient
	logger    *logger.Logger
	config    *config.Configuration
	bus       *memory.PubSub
	card      *MockGateway
	wallet    *MockGateway
	gateways  *gateway.Registry
	artifacts s3.Service
	email     *email.Email
	now       time.Time
}

// Test fixtures shared by the service suites
const (
	TestUserID  int64 = 1
	TestOtherID int64 = 2
	TestAdminID int64 = 99
)

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	s.config = NewTestConfig()
	s.logger = logger.NewNopLogger()
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext(TestUserID)
	s.now = time.Now().UTC()
	s.setupStores()

	s.db = NewMockPostgresClient(s.logger)
	s.bus = memory.NewPubSub(s.logger)
	s.card = NewMockGateway(types.PaymentProviderStripe, types.PaymentMethodCard)
	s.wallet = NewMockGateway(types.PaymentProviderPayPal, types.PaymentMethodWallet)
	s.gateways = gateway.NewRegistry(s.card, s.wallet)
	s.artifacts = s3.NewLocalService(s.T().TempDir())
	s.email = email.NewEmail(email.NewEmailClient(s.config), s.logger)
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
	_ = s.bus.Close()
}

func (s *BaseServiceTestSuite) setupStores() {
	plans := NewInMemoryPlanStore()
	s.stores = Stores{
		PaymentRepo:      NewInMemoryPaymentStore(plans),
		InvoiceRepo:      NewInMemoryInvoiceStore(),
		PlanRepo:         plans,
		UserRepo:         NewInMemoryUserStore(),
		CaseRepo:         NewInMemoryCaseStore(),
		OutboxRepo:       NewInMemoryOutboxStore(),
		WebhookEventRepo: NewInMemoryWebhookEventStore(),
	}
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.PaymentRepo.Clear()
	s.stores.InvoiceRepo.Clear()
	s.stores.PlanRepo.Clear()
	s.stores.UserRepo.Clear()
	s.stores.CaseRepo.Clear()
	s.stores.OutboxRepo.Clear()
	s.stores.WebhookEventRepo.Clear()
}

// NewTestConfig returns the configuration used by service and handler tests
func NewTestConfig() *config.Configuration {
	return &config.Configuration{
		Deployment: config.DeploymentConfig{Mode: types.ModeLocal},
		Server:     config.ServerConfig{Address: ":0", ShutdownTimeout: time.Second},
		Logging:    config.LoggingConfig{Level: types.LogLevelDebug},
		Auth:       config.AuthConfig{Secret: "test-secret"},
		Checkout: config.CheckoutConfig{
			SuccessURL:      "https://lm.example/payment/success",
			CancelURL:       "https://lm.example/payment/cancel",
			ProviderTimeout: 2 * time.Second,
			SessionTTL:      30 * time.Minute,
			PendingGrace:    15 * time.Minute,
			MaxAmount:       10000,
			DefaultMethod:   string(types.PaymentMethodCard),
		},
		Invoice: config.InvoiceConfig{
			Prefix:         "LM",
			SellerName:     "LM Legal",
			SellerAddress:  "Hauptstrasse 1, Berlin",
			DownloadExpiry: 30 * time.Minute,
			Timezone:       "Europe/Berlin",
		},
		EventBus: config.EventBusConfig{
			Provider:        types.EventBusMemory,
			MaxRetries:      2,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
			Multiplier:      2,
			MaxElapsedTime:  time.Second,
		},
		Outbox: config.OutboxConfig{
			PollInterval: 10 * time.Millisecond,
			BatchSize:    10,
		},
		Email: config.EmailConfig{
			FromAddress: "invoices@lm.example",
		},
	}
}

// SeedPlan stores an active plan priced at price EUR
func (s *BaseServiceTestSuite) SeedPlan(id int64, price string) *plan.Plan {
	p := &plan.Plan{
		ID:          id,
		Name:        "Legal assessment",
		Description: "Written assessment of the case",
		Price:       decimal.RequireFromString(price),
		Currency:    types.DefaultCurrency,
		ServiceType: "assessment",
		IsActive:    true,
		CreatedAt:   s.now,
		UpdatedAt:   s.now,
	}
	s.stores.PlanRepo.Seed(id, p)
	return p
}

// SeedCase stores a draft case owned by userID
func (s *BaseServiceTestSuite) SeedCase(id, userID int64) *legalcase.Case {
	c := &legalcase.Case{
		ID:        id,
		UserID:    userID,
		Title:     "Tenancy dispute",
		Status:    types.CaseStatusDraft,
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
	s.stores.CaseRepo.Seed(id, c)
	return c
}

// SeedUser stores a user with a deliverable address
func (s *BaseServiceTestSuite) SeedUser(id int64, address string) *user.User {
	u := &user.User{ID: id, Email: address, Name: "Test User"}
	s.stores.UserRepo.Seed(id, u)
	return u
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetDB returns the test database client
func (s *BaseServiceTestSuite) GetDB() *MockPostgresClient {
	return s.db
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetBus returns the in-memory event bus
func (s *BaseServiceTestSuite) GetBus() *memory.PubSub {
	return s.bus
}

// GetCardGateway returns the mock card provider
func (s *BaseServiceTestSuite) GetCardGateway() *MockGateway {
	return s.card
}

// GetWalletGateway returns the mock wallet provider
func (s *BaseServiceTestSuite) GetWalletGateway() *MockGateway {
	return s.wallet
}

// GetGateways returns the registry holding both mock providers
func (s *BaseServiceTestSuite) GetGateways() *gateway.Registry {
	return s.gateways
}

// GetArtifacts returns the artifact store rooted in a per test directory
func (s *BaseServiceTestSuite) GetArtifacts() s3.Service {
	return s.artifacts
}

// GetEmail returns the disabled mailer
func (s *BaseServiceTestSuite) GetEmail() *email.Email {
	return s.email
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now.UTC()
}
