package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/restaurant-ordering/internal/config"
	"github.com/iliyamo/restaurant-ordering/internal/handler"
	"github.com/iliyamo/restaurant-ordering/internal/metrics"
	"github.com/iliyamo/restaurant-ordering/internal/middleware"
)

// Deps carries the handlers and the settings route registration needs.
// Redis may be nil: the rate limiter and the stats cache then pass through.
type Deps struct {
	Orders   *handler.OrderHandler
	Tables   *handler.TableHandler
	Settings *handler.SettingsHandler
	Stats    *handler.StatsHandler
	Auth     *handler.AuthHandler
	DB       handler.Pinger

	JWTSecret     string
	AdminPassword string

	Redis         *redis.Client
	CheckoutLimit config.RateLimitConfig
	PINLimit      config.RateLimitConfig
	StatsCache    config.CacheConfig
}

// RegisterRoutes wires every route of the service.
func RegisterRoutes(e *echo.Echo, d Deps) {
	RegisterPublic(e, d)
	RegisterStaff(e, d)
	RegisterDining(e, d)
}

// RegisterPublic registers the routes customers and probes reach without a
// staff session. Checkout and PIN login are rate limited per client IP.
func RegisterPublic(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.DB))
	e.GET("/metrics", metrics.Handler())

	e.POST("/api/checkout", d.Orders.Checkout, middleware.NewTokenBucket(d.CheckoutLimit, d.Redis))
	e.POST("/api/auth/pin", d.Auth.PIN, middleware.NewTokenBucket(d.PINLimit, d.Redis))

	// Online payment: the customer starts it from the order page and the
	// gateway redirects back to /pay/success or /pay/cancel.
	e.POST("/api/orders/:id/pay-online", d.Orders.PayOnline)
	e.GET("/pay/success", d.Orders.PaySuccess)
	e.GET("/pay/cancel", d.Orders.PayCancel)
}
