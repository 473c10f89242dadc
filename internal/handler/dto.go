package handler

import (
	"time"

	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/service"
)

// Response shapes. Money is always a fixed two-decimal string.

type orderItemResp struct {
	Name  string `json:"name"`
	Price string `json:"price"`
	Qty   int    `json:"qty"`
}

type orderResp struct {
	ID             uint64          `json:"id"`
	TableCode      *string         `json:"table_code"`
	Mode           string          `json:"mode"`
	Status         string          `json:"status"`
	PaymentStatus  string          `json:"payment_status"`
	PaymentMethod  *string         `json:"payment_method"`
	Acknowledged   bool            `json:"acknowledged"`
	Total          string          `json:"total"`
	Items          []orderItemResp `json:"items"`
	CustomerName   *string         `json:"customer_name,omitempty"`
	CustomerPhone  *string         `json:"customer_phone,omitempty"`
	CustomerNote   *string         `json:"customer_note,omitempty"`
	FiscalRecordID *string         `json:"fiscal_record_id,omitempty"`
	FiscalStatus   *string         `json:"fiscal_status,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	PaidAt         *time.Time      `json:"paid_at"`
	CompletedAt    *time.Time      `json:"completed_at"`
	CanceledAt     *time.Time      `json:"canceled_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toOrderResp(o model.Order) orderResp {
	items := make([]orderItemResp, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResp{Name: it.Name, Price: it.Price.StringFixed(2), Qty: it.Qty}
	}
	return orderResp{
		ID:             o.ID,
		TableCode:      o.TableCode,
		Mode:           string(o.Mode),
		Status:         string(o.Status),
		PaymentStatus:  string(o.PaymentStatus),
		PaymentMethod:  o.PaymentMethod,
		Acknowledged:   o.Acknowledged,
		Total:          o.Total.StringFixed(2),
		Items:          items,
		CustomerName:   o.CustomerName,
		CustomerPhone:  o.CustomerPhone,
		CustomerNote:   o.CustomerNote,
		FiscalRecordID: o.FiscalRecordID,
		FiscalStatus:   o.FiscalStatus,
		CreatedAt:      o.CreatedAt,
		PaidAt:         o.PaidAt,
		CompletedAt:    o.CompletedAt,
		CanceledAt:     o.CanceledAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

type tableResp struct {
	ID                   uint64    `json:"id"`
	Name                 string    `json:"name"`
	Seats                int       `json:"seats"`
	Status               string    `json:"status"`
	CurrentReservationID *uint64   `json:"current_reservation_id"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func toTableResp(t model.Table) tableResp {
	return tableResp{
		ID:                   t.ID,
		Name:                 t.Name,
		Seats:                t.Seats,
		Status:               string(t.Status),
		CurrentReservationID: t.CurrentReservationID,
		UpdatedAt:            t.UpdatedAt,
	}
}

type reservationResp struct {
	ID            uint64     `json:"id"`
	TableID       uint64     `json:"table_id"`
	CustomerName  string     `json:"customer_name"`
	CustomerPhone *string    `json:"customer_phone"`
	PartySize     int        `json:"party_size"`
	RequestedFor  *time.Time `json:"requested_for"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	SeatedAt      *time.Time `json:"seated_at"`
	CompletedAt   *time.Time `json:"completed_at"`
	CancelledAt   *time.Time `json:"cancelled_at"`
}

func toReservationResp(r model.Reservation) reservationResp {
	return reservationResp{
		ID:            r.ID,
		TableID:       r.TableID,
		CustomerName:  r.CustomerName,
		CustomerPhone: r.CustomerPhone,
		PartySize:     r.PartySize,
		RequestedFor:  r.RequestedFor,
		Status:        string(r.Status),
		CreatedAt:     r.CreatedAt,
		SeatedAt:      r.SeatedAt,
		CompletedAt:   r.CompletedAt,
		CancelledAt:   r.CancelledAt,
	}
}

// promotionResp is merged into table and reservation action responses.
type promotionResp struct {
	Promoted    bool             `json:"promoted"`
	Reservation *reservationResp `json:"promoted_reservation,omitempty"`
}

func toPromotionResp(p service.Promotion) promotionResp {
	out := promotionResp{Promoted: p.Promoted}
	if p.Reservation != nil {
		r := toReservationResp(*p.Reservation)
		out.Reservation = &r
	}
	return out
}

type hourBucketResp struct {
	Hour    int    `json:"hour"`
	Revenue string `json:"revenue"`
	Orders  int    `json:"orders"`
}

type dayBucketResp struct {
	Day     string `json:"day"`
	Revenue string `json:"revenue"`
	Orders  int    `json:"orders"`
}

type topItemResp struct {
	Name    string `json:"name"`
	Qty     int    `json:"qty"`
	Revenue string `json:"revenue"`
}

func toTopItems(items []service.TopItem) []topItemResp {
	out := make([]topItemResp, len(items))
	for i, it := range items {
		out[i] = topItemResp{Name: it.Name, Qty: it.Qty, Revenue: it.Revenue.StringFixed(2)}
	}
	return out
}
