package api

import (
	"github.com/gin-gonic/gin"
	v1 "github.com/lm-legal/payments/internal/api/v1"
	"github.com/lm-legal/payments/internal/config"
	"github.com/lm-legal/payments/internal/logger"
	"github.com/lm-legal/payments/internal/pyroscope"
	"github.com/lm-legal/payments/internal/rest/middleware"
	"github.com/lm-legal/payments/internal/types"
)

type Handlers struct {
	Health  *v1.HealthHandler
	Payment *v1.PaymentHandler
	Webhook *v1.WebhookHandler
	Plan    *v1.PlanHandler
	Admin   *v1.AdminHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger, profiler *pyroscope.Service) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.RequestIDMiddleware,
		middleware.LoggerMiddleware(logger),
		middleware.CORSMiddleware(cfg.Server.CORSOrigins),
		middleware.SentryMiddleware(cfg),
		middleware.PyroscopeMiddleware(profiler),
		middleware.ErrorHandler(logger),
		gin.Recovery(),
	)

	router.GET("/health", handlers.Health.Health)

	v1Public := router.Group("/v1")
	v1Private := router.Group("/v1")
	v1Private.Use(middleware.AuthenticateMiddleware(cfg, logger), middleware.SentryScopeMiddleware)

	// Provider callbacks are authenticated by their signature
	v1Public.POST("/payments/webhook/:provider", handlers.Webhook.HandleWebhook)

	payments := v1Private.Group("/payments")
	{
		payments.POST("/checkout", handlers.Payment.CreateCheckout)
		payments.GET("", handlers.Payment.ListPayments)
		payments.GET("/:id", handlers.Payment.GetPayment)
		payments.GET("/:id/status", handlers.Payment.GetPaymentStatus)
		payments.GET("/:id/invoice", handlers.Payment.GetInvoice)
		payments.GET("/:id/invoice/download", handlers.Payment.DownloadInvoice)
	}

	plans := v1Private.Group("/plans")
	{
		plans.GET("", handlers.Plan.ListPlans)
		plans.GET("/:id", handlers.Plan.GetPlan)
	}

	admin := v1Private.Group("/admin")
	admin.Use(middleware.RequireRole(types.RoleAdmin, logger))
	{
		admin.GET("/payments", handlers.Admin.ListPayments)
		admin.GET("/payments/stats", handlers.Admin.GetStats)
	}

	return router
}
