package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/restaurant-ordering/internal/fiscal"
	"github.com/iliyamo/restaurant-ordering/internal/metrics"
	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/payments"
	"github.com/iliyamo/restaurant-ordering/internal/queue"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
	"github.com/iliyamo/restaurant-ordering/internal/utils"
)

// totalTolerance is how far a client-side total may drift from the server
// sum before checkout is rejected.
var totalTolerance = decimal.RequireFromString("0.01")

// maxAmount is the largest value the DECIMAL(10,2) price and total columns hold.
var maxAmount = decimal.RequireFromString("99999999.99")

// OrderOptions wires the collaborators of OrderService. Zero values get
// defaults in NewOrderService; Payments and Fiscal may stay nil.
type OrderOptions struct {
	Location    *time.Location
	PageSize    int
	MaxPageSize int
	Currency    string
	BaseURL     string
	Events      EventPublisher
	Payments    payments.Provider
	Fiscal      fiscal.Provider
	Logger      echo.Logger
}

// OrderService owns the order lifecycle: checkout, the kitchen state
// machine, the payment sub-state and the collaborators hanging off it.
type OrderService struct {
	orders *repository.OrderRepo
	opts   OrderOptions
	now    func() time.Time
}

// NewOrderService returns an OrderService with defaults applied to opts.
func NewOrderService(orders *repository.OrderRepo, opts OrderOptions) *OrderService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.MaxPageSize < opts.PageSize {
		opts.MaxPageSize = 200
	}
	if opts.Currency == "" {
		opts.Currency = "eur"
	}
	if opts.Events == nil {
		opts.Events = NopPublisher{}
	}
	return &OrderService{orders: orders, opts: opts, now: time.Now}
}

// CreateOrderInput is a customer checkout.
type CreateOrderInput struct {
	TableCode     string
	Mode          model.OrderMode
	Items         []model.OrderItem
	Total         decimal.Decimal // client-side total; zero skips the cross-check
	CustomerName  string
	CustomerPhone string
	CustomerNote  string
}

// Create validates a checkout and stores the order with its items in one
// transaction. The stored total is always the server-side sum.
func (s *OrderService) Create(ctx context.Context, in CreateOrderInput) (model.Order, error) {
	if len(in.Items) == 0 {
		return model.Order{}, invalid("empty_cart", "order has no items")
	}
	items := make([]model.OrderItem, len(in.Items))
	for i, it := range in.Items {
		name := strings.TrimSpace(it.Name)
		switch {
		case name == "":
			return model.Order{}, invalid("invalid_item", "item %d has no name", i)
		case it.Qty < 1:
			return model.Order{}, invalid("invalid_item", "item %q has quantity %d", name, it.Qty)
		case it.Price.IsNegative():
			return model.Order{}, invalid("invalid_item", "item %q has a negative price", name)
		case it.Price.Round(2).GreaterThan(maxAmount):
			return model.Order{}, invalid("invalid_item", "item %q has a price above %s", name, maxAmount.StringFixed(2))
		}
		items[i] = model.OrderItem{Name: name, Price: it.Price.Round(2), Qty: it.Qty}
	}
	total := model.ItemsTotal(items)
	if total.GreaterThan(maxAmount) {
		return model.Order{}, invalid("total_too_large", "order total %s is above %s", total.StringFixed(2), maxAmount.StringFixed(2))
	}
	if !in.Total.IsZero() && in.Total.Sub(total).Abs().GreaterThan(totalTolerance) {
		return model.Order{}, invalid("total_mismatch", "client total %s, items sum to %s", in.Total.StringFixed(2), total.StringFixed(2))
	}

	tableCode := strings.TrimSpace(in.TableCode)
	mode := in.Mode
	if mode == "" {
		mode = model.ModeTakeaway
		if tableCode != "" {
			mode = model.ModeTable
		}
	}
	if !mode.Valid() {
		return model.Order{}, invalid("invalid_mode", "unknown order mode %q", mode)
	}
	if mode == model.ModeTable && tableCode == "" {
		return model.Order{}, invalid("table_required", "table orders need a table code")
	}

	now := s.now().UTC()
	o := model.Order{
		TableCode:     optional(tableCode),
		Total:         total,
		Status:        model.OrderPending,
		PaymentStatus: model.PaymentUnpaid,
		Mode:          mode,
		CustomerName:  optional(in.CustomerName),
		CustomerPhone: optional(in.CustomerPhone),
		CustomerNote:  optional(in.CustomerNote),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := repository.RunInTx(ctx, s.orders.DB(), func(tx *sql.Tx) error {
		o.ID = 0
		if err := s.orders.CreateTx(ctx, tx, &o); err != nil {
			return err
		}
		return s.orders.InsertItemsTx(ctx, tx, o.ID, items)
	})
	if err != nil {
		return model.Order{}, err
	}
	o.Items = items

	metrics.OrdersCreated.WithLabelValues(string(mode)).Inc()
	publish(ctx, s.opts.Events, s.opts.Logger, queue.KeyOrderCreated, orderEvent(o, now))
	return o, nil
}

// ListOrdersInput is the dashboard query. Day is a restaurant-local date.
type ListOrdersInput struct {
	Status        string
	PaymentStatus string
	Day           string
	TableCode     string
	Limit         int
	Offset        int
}

// List returns matching orders newest first, items included.
func (s *OrderService) List(ctx context.Context, in ListOrdersInput) ([]model.Order, error) {
	f := repository.OrderFilter{TableCode: strings.TrimSpace(in.TableCode)}
	if in.Status != "" && in.Status != "all" {
		st := model.OrderStatus(in.Status)
		if !st.Valid() {
			return nil, invalid("invalid_status", "unknown status %q", in.Status)
		}
		f.Status = st
	}
	if in.PaymentStatus != "" && in.PaymentStatus != "all" {
		ps := model.PaymentStatus(in.PaymentStatus)
		if !ps.Valid() {
			return nil, invalid("invalid_payment_status", "unknown payment status %q", in.PaymentStatus)
		}
		f.PaymentStatus = ps
	}
	if in.Day != "" {
		from, to, err := utils.DayBounds(in.Day, s.opts.Location)
		if err != nil {
			return nil, invalid("invalid_day", "%v", err)
		}
		f.From, f.To = from, to
	}
	f.Limit = s.pageSize(in.Limit)
	if in.Offset > 0 {
		f.Offset = in.Offset
	}
	orders, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}

func (s *OrderService) pageSize(limit int) int {
	switch {
	case limit <= 0:
		return s.opts.PageSize
	case limit > s.opts.MaxPageSize:
		return s.opts.MaxPageSize
	}
	return limit
}

// Get returns one order with its items.
func (s *OrderService) Get(ctx context.Context, id uint64) (model.Order, error) {
	return s.orders.GetByID(ctx, id)
}

// Transition applies a lifecycle action. The write is conditional on the
// status that was read, so two staff members racing on the same order get
// one success and one repository.ErrConflict.
func (s *OrderService) Transition(ctx context.Context, id uint64, action model.OrderAction) (model.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return model.Order{}, err
	}
	now := s.now().UTC()
	next, err := o.Apply(action, now)
	if err != nil {
		metrics.OrderTransitions.WithLabelValues(string(action), "rejected").Inc()
		return o, err
	}
	if action == model.ActionAck {
		if o.Acknowledged {
			return next, nil
		}
		if err := s.orders.SetAcknowledged(ctx, id); err != nil {
			return o, err
		}
	} else if err := s.orders.UpdateLifecycle(ctx, next, o.Status); err != nil {
		outcome := "error"
		if errors.Is(err, repository.ErrConflict) {
			outcome = "conflict"
		}
		metrics.OrderTransitions.WithLabelValues(string(action), outcome).Inc()
		return o, err
	}
	metrics.OrderTransitions.WithLabelValues(string(action), "ok").Inc()
	publish(ctx, s.opts.Events, s.opts.Logger, queue.OrderKey(string(action)), orderEvent(next, now))
	return next, nil
}

// RecordPayment moves the payment sub-state. Method is optional and only
// kept for pending and paid.
func (s *OrderService) RecordPayment(ctx context.Context, id uint64, status model.PaymentStatus, method string) (model.Order, error) {
	if !status.Valid() {
		return model.Order{}, invalid("invalid_payment_status", "unknown payment status %q", status)
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return model.Order{}, err
	}
	now := s.now().UTC()
	next, err := o.Pay(status, optional(method), now)
	if err != nil {
		return o, err
	}
	if err := s.orders.UpdatePayment(ctx, next, o.PaymentStatus); err != nil {
		return o, err
	}
	metrics.PaymentUpdates.WithLabelValues(string(status)).Inc()
	publish(ctx, s.opts.Events, s.opts.Logger, queue.OrderKey(string(status)), orderEvent(next, now))
	return next, nil
}

// CloseResult summarises a table close.
type CloseResult struct {
	TableCode string
	Day       string
	OrderIDs  []uint64
	Total     decimal.Decimal
}

// CloseTable settles a table at the end of service: every pending order it
// placed on day (today when empty) is marked paid with method and completed,
// all in one transaction.
func (s *OrderService) CloseTable(ctx context.Context, tableCode, method, day string) (CloseResult, error) {
	tableCode, method = strings.TrimSpace(tableCode), strings.TrimSpace(method)
	if tableCode == "" {
		return CloseResult{}, invalid("table_required", "table code is required")
	}
	if method == "" {
		return CloseResult{}, invalid("method_required", "payment method is required")
	}
	now := s.now().UTC()
	if day == "" {
		day = utils.Today(now, s.opts.Location)
	}
	from, to, err := utils.DayBounds(day, s.opts.Location)
	if err != nil {
		return CloseResult{}, invalid("invalid_day", "%v", err)
	}

	var res CloseResult
	err = repository.RunInTx(ctx, s.orders.DB(), func(tx *sql.Tx) error {
		res = CloseResult{TableCode: tableCode, Day: day, Total: decimal.Zero}
		pending, err := s.orders.ListPendingForTableTx(ctx, tx, tableCode, from, to)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return repository.ErrNotFound
		}
		for _, o := range pending {
			res.OrderIDs = append(res.OrderIDs, o.ID)
			res.Total = res.Total.Add(o.Total)
		}
		return s.orders.CloseTx(ctx, tx, res.OrderIDs, method, now)
	})
	if err != nil {
		return CloseResult{}, err
	}

	metrics.PaymentUpdates.WithLabelValues(string(model.PaymentPaid)).Add(float64(len(res.OrderIDs)))
	metrics.OrderTransitions.WithLabelValues(string(model.ActionComplete), "ok").Add(float64(len(res.OrderIDs)))
	publish(ctx, s.opts.Events, s.opts.Logger, queue.KeyTableClosed, queue.TableEvent{
		TableCode:  tableCode,
		OrderIDs:   res.OrderIDs,
		Total:      res.Total.StringFixed(2),
		OccurredAt: now.Format(time.RFC3339),
	})
	return res, nil
}

// IssueReceipt fiscalises an order once; later calls return the stored
// record id.
func (s *OrderService) IssueReceipt(ctx context.Context, id uint64) (model.Order, error) {
	if s.opts.Fiscal == nil {
		return model.Order{}, ErrFiscalNotConfigured
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return model.Order{}, err
	}
	if o.Status == model.OrderCanceled {
		return o, &model.TransitionError{From: string(o.Status), Action: "receipt"}
	}
	if o.FiscalRecordID != nil {
		return o, nil
	}
	lines := make([]fiscal.Line, len(o.Items))
	for i, it := range o.Items {
		lines[i] = fiscal.Line{Description: it.Name, Qty: it.Qty, UnitPrice: it.Price}
	}
	rec, err := s.opts.Fiscal.Issue(ctx, fiscal.Request{OrderID: o.ID, Lines: lines})
	if err != nil {
		return o, &ProviderError{Code: "fiscal_failed", Err: err}
	}
	now := s.now().UTC()
	if err := s.orders.SetFiscal(ctx, o.ID, rec.ReceiptID, rec.Status, now); err != nil {
		return o, err
	}
	o.FiscalRecordID, o.FiscalStatus = &rec.ReceiptID, &rec.Status
	o.UpdatedAt = now
	publish(ctx, s.opts.Events, s.opts.Logger, queue.OrderKey("receipt"), orderEvent(o, now))
	return o, nil
}

// StartOnlinePayment opens a hosted checkout for the order total and marks
// the payment pending.
func (s *OrderService) StartOnlinePayment(ctx context.Context, id uint64) (payments.Checkout, error) {
	if s.opts.Payments == nil {
		return payments.Checkout{}, payments.ErrNotConfigured
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return payments.Checkout{}, err
	}
	if o.PaymentStatus == model.PaymentPaid {
		return payments.Checkout{}, ErrAlreadyPaid
	}
	if o.Status == model.OrderCanceled {
		return payments.Checkout{}, &model.TransitionError{From: string(o.Status), Action: "pay"}
	}
	base := strings.TrimRight(s.opts.BaseURL, "/")
	co, err := s.opts.Payments.CreateCheckout(ctx, payments.CheckoutRequest{
		OrderID:     o.ID,
		Amount:      o.Total,
		Currency:    s.opts.Currency,
		Description: fmt.Sprintf("Order #%d", o.ID),
		SuccessURL:  fmt.Sprintf("%s/pay/success?order_id=%d&session_id={CHECKOUT_SESSION_ID}", base, o.ID),
		CancelURL:   fmt.Sprintf("%s/pay/cancel?order_id=%d&session_id={CHECKOUT_SESSION_ID}", base, o.ID),
	})
	if err != nil {
		return payments.Checkout{}, &ProviderError{Code: "payment_create_failed", Err: err}
	}
	if o.PaymentStatus == model.PaymentUnpaid {
		if _, err := s.RecordPayment(ctx, o.ID, model.PaymentPending, "online"); err != nil {
			return payments.Checkout{}, err
		}
	}
	return co, nil
}

// ConfirmOnlinePayment is called from the gateway's success redirect. The
// checkout reference is verified with the gateway before the order is
// marked paid; a repeated redirect is a no-op.
func (s *OrderService) ConfirmOnlinePayment(ctx context.Context, id uint64, reference string) (model.Order, error) {
	if s.opts.Payments == nil {
		return model.Order{}, payments.ErrNotConfigured
	}
	if strings.TrimSpace(reference) == "" {
		return model.Order{}, invalid("session_required", "checkout reference is required")
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return model.Order{}, err
	}
	if o.PaymentStatus == model.PaymentPaid {
		return o, nil
	}
	paid, ref, err := s.opts.Payments.Paid(ctx, reference)
	if err != nil {
		return o, &ProviderError{Code: "payment_verify_failed", Err: err}
	}
	if !paid || ref != strconv.FormatUint(id, 10) {
		return o, ErrPaymentNotCompleted
	}
	return s.RecordPayment(ctx, id, model.PaymentPaid, "online")
}

// CancelOnlinePayment reverts a pending online payment when the customer
// abandons the hosted page. The checkout reference must belong to the order
// and must not have been paid.
func (s *OrderService) CancelOnlinePayment(ctx context.Context, id uint64, reference string) (model.Order, error) {
	if s.opts.Payments == nil {
		return model.Order{}, payments.ErrNotConfigured
	}
	if strings.TrimSpace(reference) == "" {
		return model.Order{}, invalid("session_required", "checkout reference is required")
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return model.Order{}, err
	}
	if o.PaymentStatus != model.PaymentPending {
		return o, nil
	}
	paid, ref, err := s.opts.Payments.Paid(ctx, reference)
	if err != nil {
		return o, &ProviderError{Code: "payment_verify_failed", Err: err}
	}
	if ref != strconv.FormatUint(id, 10) {
		return o, invalid("session_mismatch", "checkout reference does not belong to order %d", id)
	}
	if paid {
		return o, nil
	}
	return s.RecordPayment(ctx, id, model.PaymentUnpaid, "")
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
