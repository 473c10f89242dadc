package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/service"
)

// TableService is the part of *service.TableService the HTTP layer uses.
type TableService interface {
	CreateTable(ctx context.Context, name string, seats int) (model.Table, error)
	ListTables(ctx context.Context) ([]model.Table, error)
	FreeTable(ctx context.Context, tableID uint64) (service.Promotion, error)
	SeatWalkIn(ctx context.Context, tableID uint64) (model.Table, error)
	PromoteNextWaiter(ctx context.Context, tableID uint64) (service.Promotion, error)
	CreateReservation(ctx context.Context, in service.CreateReservationInput) (model.Reservation, error)
	ListReservations(ctx context.Context, in service.ListReservationsInput) ([]model.Reservation, error)
	ApplyReservation(ctx context.Context, id uint64, action model.ReservationAction) (model.Reservation, service.Promotion, error)
}

// TableHandler serves the dining room: tables, walk-ins and reservations.
type TableHandler struct {
	Tables TableService
}

func NewTableHandler(tables TableService) *TableHandler {
	if tables == nil {
		panic("nil table service passed to NewTableHandler")
	}
	return &TableHandler{Tables: tables}
}

type createTableReq struct {
	Name  string `json:"name" validate:"max=64"`
	Seats int    `json:"seats" validate:"max=100"`
}

type createReservationReq struct {
	TableID       uint64     `json:"table_id"`
	CustomerName  string     `json:"customer_name" validate:"max=120"`
	CustomerPhone string     `json:"customer_phone" validate:"max=32"`
	PartySize     int        `json:"party_size" validate:"max=100"`
	RequestedFor  *time.Time `json:"requested_for"`
}

// ListTables handles GET /api/tables.
func (h *TableHandler) ListTables(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	tables, err := h.Tables.ListTables(ctx)
	if err != nil {
		return fail(c, err)
	}
	out := make([]tableResp, 0, len(tables))
	for _, t := range tables {
		out = append(out, toTableResp(t))
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "tables": out})
}

// CreateTable handles POST /api/tables.
func (h *TableHandler) CreateTable(c echo.Context) error {
	var req createTableReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Tables.CreateTable(ctx, req.Name, req.Seats)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"ok": true, "table": toTableResp(t)})
}

// FreeTable handles POST /api/tables/:id/free. The response says whether a
// waiting reservation took the table over.
func (h *TableHandler) FreeTable(c echo.Context) error {
	return h.promotion(c, h.Tables.FreeTable)
}

// PromoteNext handles POST /api/tables/:id/promote.
func (h *TableHandler) PromoteNext(c echo.Context) error {
	return h.promotion(c, h.Tables.PromoteNextWaiter)
}

func (h *TableHandler) promotion(c echo.Context, fn func(context.Context, uint64) (service.Promotion, error)) error {
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := fn(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	pr := toPromotionResp(p)
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "promoted": pr.Promoted, "promoted_reservation": pr.Reservation})
}

// SeatWalkIn handles POST /api/tables/:id/seat.
func (h *TableHandler) SeatWalkIn(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Tables.SeatWalkIn(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "table": toTableResp(t)})
}

// ListReservations handles GET /api/reservations.
func (h *TableHandler) ListReservations(c echo.Context) error {
	var tableID uint64
	if c.QueryParam("table_id") != "" {
		id, err := queryID(c, "table_id")
		if err != nil {
			return fail(c, err)
		}
		tableID = id
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	list, err := h.Tables.ListReservations(ctx, service.ListReservationsInput{
		TableID: tableID,
		Status:  c.QueryParam("status"),
		Limit:   limit,
	})
	if err != nil {
		return fail(c, err)
	}
	out := make([]reservationResp, 0, len(list))
	for _, r := range list {
		out = append(out, toReservationResp(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "reservations": out})
}

// CreateReservation handles POST /api/reservations.
func (h *TableHandler) CreateReservation(c echo.Context) error {
	var req createReservationReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	r, err := h.Tables.CreateReservation(ctx, service.CreateReservationInput{
		TableID:       req.TableID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		PartySize:     req.PartySize,
		RequestedFor:  req.RequestedFor,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"ok": true, "reservation": toReservationResp(r)})
}

// ApplyReservation returns the handler for POST /api/reservations/:id/<action>.
func (h *TableHandler) ApplyReservation(action model.ReservationAction) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseID(c, "id")
		if err != nil {
			return fail(c, err)
		}
		ctx, cancel := reqCtx(c)
		defer cancel()

		r, p, err := h.Tables.ApplyReservation(ctx, id, action)
		if err != nil {
			return fail(c, err)
		}
		pr := toPromotionResp(p)
		return c.JSON(http.StatusOK, echo.Map{
			"ok":                   true,
			"reservation":          toReservationResp(r),
			"promoted":             pr.Promoted,
			"promoted_reservation": pr.Reservation,
		})
	}
}
