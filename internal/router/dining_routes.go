package router

// Dining room routes: tables, walk-ins and the reservation waitlist. Every
// staff role may seat and free tables; only the owner adds tables.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-ordering/internal/middleware"
	"github.com/iliyamo/restaurant-ordering/internal/model"
)

// RegisterDining registers the table and reservation endpoints under /api.
func RegisterDining(e *echo.Echo, d Deps) {
	g := staffGroup(e, d)

	g.GET("/tables", d.Tables.ListTables)
	g.POST("/tables", d.Tables.CreateTable, middleware.RequireRole(model.RoleOwner))
	g.POST("/tables/:id/free", d.Tables.FreeTable)
	g.POST("/tables/:id/seat", d.Tables.SeatWalkIn)
	g.POST("/tables/:id/promote", d.Tables.PromoteNext)

	g.GET("/reservations", d.Tables.ListReservations)
	g.POST("/reservations", d.Tables.CreateReservation)
	g.POST("/reservations/:id/seat", d.Tables.ApplyReservation(model.ReservationSeat))
	g.POST("/reservations/:id/complete", d.Tables.ApplyReservation(model.ReservationComplete))
	g.POST("/reservations/:id/cancel", d.Tables.ApplyReservation(model.ReservationCancel))
}
