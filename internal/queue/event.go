// Package queue defines the domain events published to RabbitMQ and the
// background consumer that keeps the kitchen log.
package queue

// Routing keys on the events exchange.
const (
	KeyOrderCreated        = "order.created"
	KeyTableClosed         = "table.closed"
	KeyTableFreed          = "table.freed"
	KeyReservationCreated  = "reservation.created"
	KeyReservationPromoted = "reservation.promoted"
)

// OrderKey returns the routing key for a lifecycle or payment change,
// e.g. "order.complete" or "order.paid".
func OrderKey(event string) string { return "order." + event }

// ReservationKey returns the routing key for a reservation command.
func ReservationKey(action string) string { return "reservation." + action }

// OrderLine is the item summary carried by order events.
type OrderLine struct {
	Name string `json:"name"`
	Qty  int    `json:"qty"`
}

// OrderEvent is published whenever an order is created or changes state.
// It carries enough for the kitchen display and notifications without a
// database round trip.
type OrderEvent struct {
	OrderID       uint64      `json:"order_id"`
	TableCode     string      `json:"table_code,omitempty"`
	Mode          string      `json:"mode"`
	Status        string      `json:"status"`
	PaymentStatus string      `json:"payment_status"`
	Total         string      `json:"total"`
	Items         []OrderLine `json:"items,omitempty"`
	CustomerNote  string      `json:"customer_note,omitempty"`
	OccurredAt    string      `json:"occurred_at"`
}

// TableEvent is published when a table is freed or closed.
type TableEvent struct {
	TableID    uint64   `json:"table_id,omitempty"`
	TableCode  string   `json:"table_code,omitempty"`
	OrderIDs   []uint64 `json:"order_ids,omitempty"`
	Total      string   `json:"total,omitempty"`
	Promoted   bool     `json:"promoted"`
	OccurredAt string   `json:"occurred_at"`
}

// ReservationEvent is published for reservation changes, including
// promotions from the waitlist.
type ReservationEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	TableID       uint64 `json:"table_id"`
	CustomerName  string `json:"customer_name"`
	PartySize     int    `json:"party_size"`
	Status        string `json:"status"`
	OccurredAt    string `json:"occurred_at"`
}
