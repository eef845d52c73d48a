package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/lm-legal/payments/internal/api"
	v1 "github.com/lm-legal/payments/internal/api/v1"
	"github.com/lm-legal/payments/internal/cache"
	"github.com/lm-legal/payments/internal/config"
	"github.com/lm-legal/payments/internal/document"
	"github.com/lm-legal/payments/internal/email"
	"github.com/lm-legal/payments/internal/integration"
	"github.com/lm-legal/payments/internal/logger"
	"github.com/lm-legal/payments/internal/outbox"
	"github.com/lm-legal/payments/internal/postgres"
	"github.com/lm-legal/payments/internal/pubsub"
	"github.com/lm-legal/payments/internal/pubsub/kafka"
	"github.com/lm-legal/payments/internal/pubsub/memory"
	pubsubRouter "github.com/lm-legal/payments/internal/pubsub/router"
	"github.com/lm-legal/payments/internal/pyroscope"
	"github.com/lm-legal/payments/internal/repository"
	"github.com/lm-legal/payments/internal/s3"
	"github.com/lm-legal/payments/internal/sentry"
	"github.com/lm-legal/payments/internal/service"
	"github.com/lm-legal/payments/internal/types"
	"go.uber.org/fx"
)

// @title LM Payments API
// @version 1.0
// @description Checkout, provider webhooks and invoices for LM legal cases
// @BasePath /v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter the LM session token in the format *Bearer &lt;token&gt;*

func init() {
	time.Local = time.UTC
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	var opts []fx.Option

	opts = append(opts,
		fx.Provide(
			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Cache
			cache.NewInMemoryCache,

			// Gateways
			integration.NewGatewayRegistry,

			// Artifacts and mail
			s3.NewService,
			document.NewGenerator,
			email.NewEmailClient,
			email.NewEmail,

			// Event bus
			provideEventBus,
			pubsubRouter.NewRouter,
			outbox.NewDispatcher,

			// Services
			service.NewServiceParams,
			service.NewLedgerService,
			service.NewCheckoutService,
			service.NewWebhookService,
			service.NewInvoiceService,
			service.NewCaseSyncService,
			service.NewNotificationService,
			service.NewPaymentService,
			service.NewPlanService,

			// Handlers
			provideHandlers,

			// Router
			provideRouter,
		),
		sentry.Module(),
		pyroscope.Module(),
		postgres.Module(),
		repository.Module(),
		fx.Invoke(startServer),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideEventBus(lc fx.Lifecycle, cfg *config.Configuration, log *logger.Logger) (pubsub.Bus, error) {
	var bus pubsub.Bus
	switch cfg.EventBus.Provider {
	case types.EventBusKafka:
		kafkaBus, err := kafka.NewBus(cfg, log)
		if err != nil {
			return nil, err
		}
		bus = kafkaBus
	default:
		bus = memory.NewPubSub(log)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("closing event bus")
			return bus.Close()
		},
	})
	log.Infow("event bus ready", "provider", cfg.EventBus.Provider)
	return bus, nil
}

func provideHandlers(
	db postgres.IClient,
	checkoutService service.CheckoutService,
	paymentService service.PaymentService,
	invoiceService service.InvoiceService,
	webhookService service.WebhookService,
	planService service.PlanService,
	logger *logger.Logger,
) api.Handlers {
	return api.Handlers{
		Health:  v1.NewHealthHandler(db, logger),
		Payment: v1.NewPaymentHandler(checkoutService, paymentService, invoiceService, logger),
		Webhook: v1.NewWebhookHandler(webhookService, logger),
		Plan:    v1.NewPlanHandler(planService),
		Admin:   v1.NewAdminHandler(paymentService),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration, logger *logger.Logger, profiler *pyroscope.Service) *gin.Engine {
	if cfg.Logging.Level != types.LogLevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	return api.NewRouter(handlers, cfg, logger, profiler)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	router *pubsubRouter.Router,
	dispatcher *outbox.Dispatcher,
	invoiceService service.InvoiceService,
	caseSyncService service.CaseSyncService,
	notificationService service.NotificationService,
	log *logger.Logger,
) error {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal:
		startAPIServer(lc, r, cfg, log)
		if err := startMessageRouter(lc, router, log, invoiceService, caseSyncService, notificationService); err != nil {
			return err
		}
		startDispatcher(lc, dispatcher, log)
	case types.ModeAPI:
		startAPIServer(lc, r, cfg, log)
	case types.ModeConsumer:
		if err := startMessageRouter(lc, router, log, invoiceService, caseSyncService, notificationService); err != nil {
			return err
		}
		startDispatcher(lc, dispatcher, log)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
	return nil
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting API server", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down API server")
			return srv.Shutdown(ctx)
		},
	})
}

// consumer registers its handlers on the message router
type consumer interface {
	RegisterHandler(router *pubsubRouter.Router) error
}

func startMessageRouter(
	lc fx.Lifecycle,
	router *pubsubRouter.Router,
	log *logger.Logger,
	consumers ...consumer,
) error {
	// handlers must be registered before the router runs
	for _, c := range consumers {
		if err := c.RegisterHandler(router); err != nil {
			return err
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting message router")
			go func() {
				if err := router.Run(runCtx); err != nil {
					log.Errorw("message router failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("stopping message router")
			defer cancel()
			return router.Close()
		},
	})
	return nil
}

func startDispatcher(lc fx.Lifecycle, dispatcher *outbox.Dispatcher, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting outbox dispatcher")
			dispatcher.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("stopping outbox dispatcher")
			return dispatcher.Stop(ctx)
		},
	})
}
