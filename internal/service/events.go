package service

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-ordering/internal/metrics"
	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/queue"
)

// EventPublisher hands domain events to the broker. *queue.Publisher
// satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }

const publishTimeout = 2 * time.Second

// publish runs after the transaction committed. A broker failure is logged
// and counted but never fails the request: the datastore is the source of
// truth.
func publish(ctx context.Context, pub EventPublisher, logger echo.Logger, key string, payload interface{}) {
	if pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := pub.Publish(ctx, key, payload); err != nil {
		metrics.EventPublishFailures.WithLabelValues(key).Inc()
		if logger != nil {
			logger.Warnf("publish %s failed: %v", key, err)
		}
	}
}

func orderEvent(o model.Order, at time.Time) queue.OrderEvent {
	ev := queue.OrderEvent{
		OrderID:       o.ID,
		Mode:          string(o.Mode),
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Total:         o.Total.StringFixed(2),
		OccurredAt:    at.UTC().Format(time.RFC3339),
	}
	if o.TableCode != nil {
		ev.TableCode = *o.TableCode
	}
	if o.CustomerNote != nil {
		ev.CustomerNote = *o.CustomerNote
	}
	for _, it := range o.Items {
		ev.Items = append(ev.Items, queue.OrderLine{Name: it.Name, Qty: it.Qty})
	}
	return ev
}

func reservationEvent(r model.Reservation, at time.Time) queue.ReservationEvent {
	return queue.ReservationEvent{
		ReservationID: r.ID,
		TableID:       r.TableID,
		CustomerName:  r.CustomerName,
		PartySize:     r.PartySize,
		Status:        string(r.Status),
		OccurredAt:    at.UTC().Format(time.RFC3339),
	}
}
