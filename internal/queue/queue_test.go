package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestEncode(t *testing.T) {
	now := time.Date(2025, 6, 1, 20, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	msg, err := Encode(OrderEvent{OrderID: 5, Mode: "table", Status: "pending", Total: "11.50"}, now)
	require.NoError(t, err)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, time.UTC, msg.Timestamp.Location())
	assert.Equal(t, int64(5), gjson.GetBytes(msg.Body, "order_id").Int())
	assert.Equal(t, "11.50", gjson.GetBytes(msg.Body, "total").String())
}

func TestEncodeRejectsUnmarshalable(t *testing.T) {
	_, err := Encode(map[string]interface{}{"bad": make(chan int)}, time.Now())
	assert.Error(t, err)
}

func TestNewPublisherRequiresURL(t *testing.T) {
	_, err := NewPublisher("")
	assert.Error(t, err)
}

func TestKitchenLine(t *testing.T) {
	line := KitchenLine(KeyOrderCreated, OrderEvent{
		OrderID: 9, TableCode: "T3", Mode: "table", Status: "pending", PaymentStatus: "unpaid", Total: "11.50",
		Items: []OrderLine{{Name: "Margherita", Qty: 2}, {Name: "Acqua", Qty: 1}}, CustomerNote: "no basil",
		OccurredAt: "2025-06-01T18:00:00Z",
	})
	assert.True(t, strings.HasSuffix(line, "\n"))
	assert.Contains(t, line, "order.created | order_id=9 | table=T3")
	assert.Contains(t, line, "items=[2x Margherita, 1x Acqua]")
	assert.Contains(t, line, `note="no basil"`)

	takeaway := KitchenLine(OrderKey("cancel"), OrderEvent{OrderID: 1, Mode: "takeaway"})
	assert.Contains(t, takeaway, "order.cancel | order_id=1 | table=-")
}

func TestHandleMessageAppends(t *testing.T) {
	k := &KitchenConsumer{LogPath: filepath.Join(t.TempDir(), "logs", "kitchen.log")}
	body, err := json.Marshal(OrderEvent{OrderID: 1, Mode: "table", Status: "pending"})
	require.NoError(t, err)

	require.NoError(t, k.HandleMessage(KeyOrderCreated, body))
	require.NoError(t, k.HandleMessage(OrderKey("complete"), body))

	data, err := os.ReadFile(k.LogPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "order.complete")

	assert.Error(t, k.HandleMessage(KeyOrderCreated, []byte("{not json")))
}
