package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

var ts = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

var orderCols = []string{"id", "table_code", "total", "status", "payment_status", "payment_method", "acknowledged",
	"order_mode", "customer_name", "customer_phone", "customer_note", "fiscal_record_id", "fiscal_status",
	"created_at", "paid_at", "completed_at", "canceled_at", "updated_at"}

var itemCols = []string{"id", "order_id", "name", "price", "qty"}

var tableCols = []string{"id", "name", "seats", "status", "current_reservation_id", "updated_at"}

var reservationCols = []string{"id", "table_id", "customer_name", "customer_phone", "party_size", "requested_for",
	"status", "created_at", "seated_at", "completed_at", "cancelled_at"}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func fixedNow() time.Time { return ts }

// expectOrder queues the two queries of OrderRepo.GetByID.
func expectOrder(mock sqlmock.Sqlmock, id int64, status, payment string, acked bool) {
	mock.ExpectQuery(`FROM orders WHERE id = \?`).WithArgs(uint64(id)).
		WillReturnRows(sqlmock.NewRows(orderCols).
			AddRow(id, "T1", "11.50", status, payment, nil, acked, "table", nil, nil, nil, nil, nil, ts, nil, nil, nil, ts))
	mock.ExpectQuery(`FROM order_items WHERE order_id IN \(\?\)`).
		WillReturnRows(sqlmock.NewRows(itemCols).
			AddRow(int64(1), id, "Margherita", "5.00", int64(2)).
			AddRow(int64(2), id, "Acqua", "1.50", int64(1)))
}

func tableRow(id int64, status string, ref interface{}) *sqlmock.Rows {
	return sqlmock.NewRows(tableCols).AddRow(id, "T1", int64(4), status, ref, ts)
}

func reservationRow(id, tableID int64, status string, created time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(reservationCols).
		AddRow(id, tableID, "Rossi", nil, int64(2), nil, status, created, nil, nil, nil)
}

type recordedEvent struct {
	key     string
	payload interface{}
}

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, key string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{key: key, payload: payload})
	return p.err
}

func (p *fakePublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.key
	}
	return out
}
