// Package routes defines the API routing configuration.
// It sets up all HTTP routes and their corresponding handlers,
// including middleware and authentication requirements.
package routes

import (
	"time"

	"bookingpay/internal/handlers"
	"bookingpay/internal/middleware"
	"bookingpay/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Health  *handlers.HealthHandler
	Payment *handlers.PaymentHandler
	Admin   *handlers.AdminHandler
	Auth    *middleware.AuthMiddleware
}

// SetupRoutes configures all application routes.
func SetupRoutes(app *fiber.App, h Handlers) {
	app.Get("/health", h.Health.HealthCheck)

	api := app.Group("/api")

	// Checkout
	payments := api.Group("/payments")
	payments.Post("/:id/intent", h.Payment.CreateIntent)
	payments.Post("/:id/process", h.Payment.Process)

	// Admin
	admin := api.Group("/admin")
	admin.Post("/login", loginLimiter(), h.Admin.Login)

	protected := admin.Group("/payments", h.Auth.Handler)
	protected.Get("/:id", middleware.HasPermission(models.PermissionPaymentRead), h.Admin.GetPayment)
	protected.Post("/:id/charge", middleware.HasPermission(models.PermissionPaymentCharge), h.Admin.Charge)
	protected.Post("/:id/reconcile", middleware.HasPermission(models.PermissionPaymentCharge), h.Admin.Reconcile)
}

func loginLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        5,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
			})
		},
	})
}
