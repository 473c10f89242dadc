package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the kitchen lifecycle state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderCanceled  OrderStatus = "canceled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderCompleted, OrderCanceled:
		return true
	}
	return false
}

// PaymentStatus is tracked independently of OrderStatus.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentUnpaid, PaymentPending, PaymentPaid:
		return true
	}
	return false
}

// OrderMode says how the order leaves the kitchen.
type OrderMode string

const (
	ModeTable    OrderMode = "table"
	ModeTakeaway OrderMode = "takeaway"
	ModeHome     OrderMode = "home"
)

func (m OrderMode) Valid() bool {
	switch m {
	case ModeTable, ModeTakeaway, ModeHome:
		return true
	}
	return false
}

// OrderAction is a staff command against an order.
type OrderAction string

const (
	ActionComplete OrderAction = "complete"
	ActionCancel   OrderAction = "cancel"
	ActionRestore  OrderAction = "restore"
	ActionAck      OrderAction = "ack"
)

// ErrInvalidTransition is returned when a command does not apply to the
// current state of an order or reservation.
var ErrInvalidTransition = errors.New("invalid transition")

// TransitionError carries the rejected pair; it unwraps to ErrInvalidTransition.
type TransitionError struct {
	From   string
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s from %s", e.Action, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// orderTransitions lists the only legal status changes. ack is absent: it
// never changes status.
var orderTransitions = map[OrderAction]map[OrderStatus]OrderStatus{
	ActionComplete: {OrderPending: OrderCompleted},
	ActionCancel:   {OrderPending: OrderCanceled},
	ActionRestore:  {OrderCompleted: OrderPending, OrderCanceled: OrderPending},
}

// NextStatus returns the status reached by applying action to from.
func NextStatus(from OrderStatus, action OrderAction) (OrderStatus, error) {
	if action == ActionAck {
		return from, nil
	}
	targets, ok := orderTransitions[action]
	if !ok {
		return from, &TransitionError{From: string(from), Action: string(action)}
	}
	to, ok := targets[from]
	if !ok {
		return from, &TransitionError{From: string(from), Action: string(action)}
	}
	return to, nil
}

// ParseOrderAction maps a path segment to an action.
func ParseOrderAction(s string) (OrderAction, bool) {
	switch a := OrderAction(s); a {
	case ActionComplete, ActionCancel, ActionRestore, ActionAck:
		return a, true
	}
	return "", false
}

// paymentTransitions: a paid order can be reverted to unpaid by staff, but
// never moved back to pending.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentUnpaid:  {PaymentPending, PaymentPaid},
	PaymentPending: {PaymentPaid, PaymentUnpaid},
	PaymentPaid:    {PaymentUnpaid},
}

// Order is a customer order. Orders are never deleted; the kitchen status
// and the payment status move independently.
type Order struct {
	ID             uint64          // orders.id
	TableCode      *string         // orders.table_code (nullable)
	Items          []OrderItem     // order_items rows
	Total          decimal.Decimal // orders.total
	Status         OrderStatus     // orders.status
	PaymentStatus  PaymentStatus   // orders.payment_status
	PaymentMethod  *string         // orders.payment_method
	Acknowledged   bool            // orders.acknowledged
	Mode           OrderMode       // orders.order_mode
	CustomerName   *string         // orders.customer_name
	CustomerPhone  *string         // orders.customer_phone
	CustomerNote   *string         // orders.customer_note
	FiscalRecordID *string         // orders.fiscal_record_id
	FiscalStatus   *string         // orders.fiscal_status
	CreatedAt      time.Time       // orders.created_at
	PaidAt         *time.Time      // orders.paid_at
	CompletedAt    *time.Time      // orders.completed_at
	CanceledAt     *time.Time      // orders.canceled_at
	UpdatedAt      time.Time       // orders.updated_at
}

// OrderItem is one line of an order. Name and price are copied from the
// menu at checkout time.
type OrderItem struct {
	ID      uint64          // order_items.id
	OrderID uint64          // order_items.order_id
	Name    string          // order_items.name
	Price   decimal.Decimal // order_items.price
	Qty     int             // order_items.qty
}

// LineTotal is price × qty.
func (it OrderItem) LineTotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Qty)))
}

// ItemsTotal sums the line totals, rounded to cents.
func ItemsTotal(items []OrderItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal())
	}
	return sum.Round(2)
}

// Apply performs a lifecycle action on a copy of o. Terminal timestamps are
// stamped on entry and both are cleared by restore.
func (o Order) Apply(action OrderAction, now time.Time) (Order, error) {
	next, err := NextStatus(o.Status, action)
	if err != nil {
		return o, err
	}
	switch action {
	case ActionAck:
		o.Acknowledged = true
		return o, nil
	case ActionComplete:
		o.CompletedAt = &now
	case ActionCancel:
		o.CanceledAt = &now
	case ActionRestore:
		o.CompletedAt, o.CanceledAt = nil, nil
	}
	o.Status = next
	o.UpdatedAt = now
	return o, nil
}

// Pay moves the payment sub-state. Paying a canceled order is rejected;
// reverting one to unpaid is allowed.
func (o Order) Pay(to PaymentStatus, method *string, now time.Time) (Order, error) {
	reject := &TransitionError{From: string(o.PaymentStatus), Action: "pay:" + string(to)}
	if o.Status == OrderCanceled && to != PaymentUnpaid {
		reject.From = string(o.Status)
		return o, reject
	}
	allowed := false
	for _, s := range paymentTransitions[o.PaymentStatus] {
		if s == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return o, reject
	}
	switch to {
	case PaymentPaid:
		o.PaidAt = &now
		if method != nil {
			o.PaymentMethod = method
		}
	case PaymentUnpaid:
		o.PaidAt = nil
		o.PaymentMethod = nil
	case PaymentPending:
		if method != nil {
			o.PaymentMethod = method
		}
	}
	o.PaymentStatus = to
	o.UpdatedAt = now
	return o, nil
}
