package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/half-paul/donations2.0-sub001/internal/dedup"
	"github.com/half-paul/donations2.0-sub001/internal/handler"
	"github.com/half-paul/donations2.0-sub001/internal/handler/api"
	"github.com/half-paul/donations2.0-sub001/internal/middleware"
	"github.com/half-paul/donations2.0-sub001/internal/processor"
	"github.com/half-paul/donations2.0-sub001/internal/repository"
)

// Setup configures all routes for the Echo server.
func Setup(
	e *echo.Echo,
	db *gorm.DB,
	registry *processor.Registry,
	retryer *processor.Retryer,
	deduper dedup.EventDeduper,
	logger *zap.Logger,
	apiKey string,
) {
	e.Use(echomw.Recover())
	e.Use(middleware.CORS())

	repos := &api.Repos{
		Donation: repository.NewDonationRepository(db),
		Plan:     repository.NewRecurringPlanRepository(db),
		Event:    repository.NewWebhookEventRepository(db),
	}

	donationHandler := api.NewDonationHandler(registry, retryer, repos, logger)
	mandateHandler := api.NewMandateHandler(registry, retryer, repos, logger)
	processorHandler := api.NewProcessorHandler(registry, logger)

	webhookHandler := handler.NewWebhookHandler(registry, deduper, &handler.WebhookRepos{
		Donation: repos.Donation,
		Plan:     repos.Plan,
		Event:    repos.Event,
	}, logger)

	// Donor-facing endpoints: no staff token, fee preview and processor
	// discovery only.
	e.GET("/api/processors", processorHandler.List)
	e.GET("/api/fees", donationHandler.Fees)

	// Staff endpoints drive money movement and require the staff token.
	apiGroup := e.Group("/api")
	apiGroup.Use(middleware.APIAuth(apiKey))
	apiGroup.POST("/donations", donationHandler.Create)
	apiGroup.GET("/donations/:orderID", donationHandler.Get)
	apiGroup.POST("/donations/:orderID/confirm", donationHandler.Confirm)
	apiGroup.POST("/donations/:orderID/refund", donationHandler.Refund)
	apiGroup.POST("/mandates", mandateHandler.Create)
	apiGroup.PATCH("/mandates/:processor/:mandateID", mandateHandler.Update)
	apiGroup.DELETE("/mandates/:processor/:mandateID", mandateHandler.Cancel)

	// Vendor notifications authenticate by signature, not by token.
	e.POST("/webhooks/:processor", webhookHandler.Handle)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}
