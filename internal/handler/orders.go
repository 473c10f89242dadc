package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/payments"
	"github.com/iliyamo/restaurant-ordering/internal/service"
)

// OrderService is the part of *service.OrderService the HTTP layer uses.
type OrderService interface {
	Create(ctx context.Context, in service.CreateOrderInput) (model.Order, error)
	List(ctx context.Context, in service.ListOrdersInput) ([]model.Order, error)
	Get(ctx context.Context, id uint64) (model.Order, error)
	Transition(ctx context.Context, id uint64, action model.OrderAction) (model.Order, error)
	RecordPayment(ctx context.Context, id uint64, status model.PaymentStatus, method string) (model.Order, error)
	CloseTable(ctx context.Context, tableCode, method, day string) (service.CloseResult, error)
	IssueReceipt(ctx context.Context, id uint64) (model.Order, error)
	StartOnlinePayment(ctx context.Context, id uint64) (payments.Checkout, error)
	ConfirmOnlinePayment(ctx context.Context, id uint64, reference string) (model.Order, error)
	CancelOnlinePayment(ctx context.Context, id uint64, reference string) (model.Order, error)
}

// OrderHandler serves checkout, the kitchen dashboard and payments.
type OrderHandler struct {
	Orders OrderService
}

func NewOrderHandler(orders OrderService) *OrderHandler {
	if orders == nil {
		panic("nil order service passed to NewOrderHandler")
	}
	return &OrderHandler{Orders: orders}
}

// ----- DTOs -----

type checkoutItemReq struct {
	Name  string          `json:"name" validate:"max=120"`
	Price decimal.Decimal `json:"price"`
	Qty   int             `json:"qty" validate:"max=999"`
}

// checkoutReq also accepts the flat camelCase body the POS and menu pages
// post (tableCode, orderMode, customerName, ...). Snake case wins when both
// are set.
type checkoutReq struct {
	TableCode string            `json:"table_code" validate:"max=32"`
	Mode      string            `json:"mode" validate:"omitempty,oneof=table takeaway home"`
	Items     []checkoutItemReq `json:"items" validate:"max=100,dive"`
	Total     decimal.Decimal   `json:"total"`
	Customer  struct {
		Name  string `json:"name" validate:"max=120"`
		Phone string `json:"phone" validate:"max=32"`
		Note  string `json:"note" validate:"max=500"`
	} `json:"customer"`

	PosTableCode     string `json:"tableCode" validate:"max=32"`
	PosMode          string `json:"orderMode" validate:"omitempty,oneof=table takeaway home"`
	PosCustomerName  string `json:"customerName" validate:"max=120"`
	PosCustomerPhone string `json:"customerPhone" validate:"max=32"`
	PosCustomerNote  string `json:"customerNote" validate:"max=500"`
}

// normalize folds the camelCase aliases into the canonical fields.
func (r *checkoutReq) normalize() {
	r.TableCode = firstNonEmpty(r.TableCode, r.PosTableCode)
	r.Mode = firstNonEmpty(r.Mode, r.PosMode)
	r.Customer.Name = firstNonEmpty(r.Customer.Name, r.PosCustomerName)
	r.Customer.Phone = firstNonEmpty(r.Customer.Phone, r.PosCustomerPhone)
	r.Customer.Note = firstNonEmpty(r.Customer.Note, r.PosCustomerNote)
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

type paymentReq struct {
	Method string `json:"method" validate:"max=32"`
}

type closeTableReq struct {
	TableCode string `json:"table_code"`
	Method    string `json:"method" validate:"max=32"`
	Day       string `json:"day"`
}

// Checkout handles POST /api/checkout. The stored total is computed from
// the items; a client total that disagrees by more than a cent is rejected.
func (h *OrderHandler) Checkout(c echo.Context) error {
	var req checkoutReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	req.normalize()
	items := make([]model.OrderItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = model.OrderItem{Name: it.Name, Price: it.Price, Qty: it.Qty}
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	o, err := h.Orders.Create(ctx, service.CreateOrderInput{
		TableCode:     req.TableCode,
		Mode:          model.OrderMode(strings.ToLower(strings.TrimSpace(req.Mode))),
		Items:         items,
		Total:         req.Total,
		CustomerName:  req.Customer.Name,
		CustomerPhone: req.Customer.Phone,
		CustomerNote:  req.Customer.Note,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"ok": true, "order_id": o.ID, "total": o.Total.StringFixed(2)})
}

// List handles GET /api/orders.
func (h *OrderHandler) List(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return fail(c, err)
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return fail(c, err)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	orders, err := h.Orders.List(ctx, service.ListOrdersInput{
		Status:        c.QueryParam("status"),
		PaymentStatus: c.QueryParam("payment_status"),
		Day:           c.QueryParam("day"),
		TableCode:     c.QueryParam("table"),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		return fail(c, err)
	}
	out := make([]orderResp, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResp(o))
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "orders": out})
}

// Get handles GET /api/orders/:id.
func (h *OrderHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	o, err := h.Orders.Get(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "order": toOrderResp(o)})
}

// Transition returns the handler for POST /api/orders/:id/<action>.
func (h *OrderHandler) Transition(action model.OrderAction) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseID(c, "id")
		if err != nil {
			return fail(c, err)
		}
		ctx, cancel := reqCtx(c)
		defer cancel()

		o, err := h.Orders.Transition(ctx, id, action)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"ok": true, "order": toOrderResp(o)})
	}
}

// Payment returns the handler for POST /api/orders/:id/pay and /unpay.
func (h *OrderHandler) Payment(status model.PaymentStatus) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseID(c, "id")
		if err != nil {
			return fail(c, err)
		}
		var req paymentReq
		if err := bind(c, &req); err != nil {
			return fail(c, err)
		}
		ctx, cancel := reqCtx(c)
		defer cancel()

		o, err := h.Orders.RecordPayment(ctx, id, status, req.Method)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"ok": true, "order": toOrderResp(o)})
	}
}

// CloseTable handles POST /api/orders/close-table.
func (h *OrderHandler) CloseTable(c echo.Context) error {
	var req closeTableReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Orders.CloseTable(ctx, req.TableCode, req.Method, req.Day)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"ok":         true,
		"table_code": res.TableCode,
		"day":        res.Day,
		"order_ids":  res.OrderIDs,
		"count":      len(res.OrderIDs),
		"total":      res.Total.StringFixed(2),
	})
}

// Receipt handles POST /api/orders/:id/receipt.
func (h *OrderHandler) Receipt(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	o, err := h.Orders.IssueReceipt(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "order": toOrderResp(o)})
}

// PayOnline handles POST /api/orders/:id/pay-online and returns the hosted
// checkout URL the client redirects to.
func (h *OrderHandler) PayOnline(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	co, err := h.Orders.StartOnlinePayment(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "url": co.URL})
}

// PaySuccess handles GET /pay/success?order_id=&session_id=.
func (h *OrderHandler) PaySuccess(c echo.Context) error {
	id, err := queryID(c, "order_id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	o, err := h.Orders.ConfirmOnlinePayment(ctx, id, c.QueryParam("session_id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "order_id": o.ID, "payment_status": string(o.PaymentStatus)})
}

// PayCancel handles GET /pay/cancel?order_id=&session_id=.
func (h *OrderHandler) PayCancel(c echo.Context) error {
	id, err := queryID(c, "order_id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	o, err := h.Orders.CancelOnlinePayment(ctx, id, c.QueryParam("session_id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "order_id": o.ID, "payment_status": string(o.PaymentStatus)})
}
