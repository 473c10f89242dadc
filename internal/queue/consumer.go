package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const kitchenQueueName = "kitchen.orders"

// KitchenConsumer binds a durable queue to every order.* event and appends
// one line per event to a log file the kitchen printer tails.
type KitchenConsumer struct {
	URL     string
	LogPath string
}

// NewKitchenConsumer returns a consumer writing to logs/kitchen.log.
func NewKitchenConsumer(url string) *KitchenConsumer {
	return &KitchenConsumer{URL: url, LogPath: filepath.Join("logs", "kitchen.log")}
}

// Run reconnects with exponential backoff until ctx is cancelled.
func (k *KitchenConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(k.URL)
		if err != nil {
			log.Printf("kitchen-consumer: dial failed: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = k.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("kitchen-consumer: consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (k *KitchenConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("kitchen-consumer: set QoS failed: %v", err)
	}
	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	if _, err := ch.QueueDeclare(kitchenQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(kitchenQueueName, "order.*", ExchangeName, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.Consume(kitchenQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := k.HandleMessage(d.RoutingKey, d.Body); err != nil {
				log.Printf("kitchen-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleMessage decodes an order event and appends it to the kitchen log.
func (k *KitchenConsumer) HandleMessage(routingKey string, body []byte) error {
	var ev OrderEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(k.LogPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(k.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(KitchenLine(routingKey, ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// KitchenLine renders one event as a single log line.
func KitchenLine(routingKey string, ev OrderEvent) string {
	items := make([]string, 0, len(ev.Items))
	for _, it := range ev.Items {
		items = append(items, fmt.Sprintf("%dx %s", it.Qty, it.Name))
	}
	table := ev.TableCode
	if table == "" {
		table = "-"
	}
	line := fmt.Sprintf("[%s] %s | order_id=%d | table=%s | mode=%s | status=%s | payment=%s | total=%s | items=[%s]",
		ev.OccurredAt, routingKey, ev.OrderID, table, ev.Mode, ev.Status, ev.PaymentStatus, ev.Total, strings.Join(items, ", "))
	if ev.CustomerNote != "" {
		line += fmt.Sprintf(" | note=%q", ev.CustomerNote)
	}
	return line + "\n"
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
