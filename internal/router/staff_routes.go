package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-ordering/internal/middleware"
	"github.com/iliyamo/restaurant-ordering/internal/model"
)

// staffGroup mounts /api behind StaffAuth. Any staff role may use the
// routes of the group unless a route adds RequireRole.
func staffGroup(e *echo.Echo, d Deps) *echo.Group {
	return e.Group("/api", middleware.StaffAuth(d.JWTSecret, d.AdminPassword))
}

// RegisterStaff registers the kitchen and cashier dashboard: orders,
// settings and stats.
func RegisterStaff(e *echo.Echo, d Deps) {
	g := staffGroup(e, d)
	cashier := middleware.RequireRole(model.RoleCashier, model.RoleOwner)
	owner := middleware.RequireRole(model.RoleOwner)

	// ---- Orders ----
	g.GET("/orders", d.Orders.List)
	g.GET("/orders/:id", d.Orders.Get)
	g.POST("/orders/:id/complete", d.Orders.Transition(model.ActionComplete))
	g.POST("/orders/:id/cancel", d.Orders.Transition(model.ActionCancel))
	g.POST("/orders/:id/restore", d.Orders.Transition(model.ActionRestore))
	g.POST("/orders/:id/ack", d.Orders.Transition(model.ActionAck))

	// ---- Payments and receipts ----
	g.POST("/orders/:id/pay", d.Orders.Payment(model.PaymentPaid), cashier)
	g.POST("/orders/:id/unpay", d.Orders.Payment(model.PaymentUnpaid), cashier)
	g.POST("/orders/close-table", d.Orders.CloseTable, cashier)
	g.POST("/orders/:id/receipt", d.Orders.Receipt, cashier)

	// ---- Settings ----
	g.GET("/settings", d.Settings.Get)
	g.POST("/settings", d.Settings.Update, owner)

	// ---- Stats ----
	cache := middleware.NewRedisCache(d.StatsCache, d.Redis)
	g.GET("/stats/day", d.Stats.Day, cashier, cache)
	g.GET("/stats/range", d.Stats.Range, cashier, cache)
}
