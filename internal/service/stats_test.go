package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
)

func rome(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Rome")
	require.NoError(t, err)
	return loc
}

func statOrder(id uint64, created time.Time, status model.OrderStatus, total string, items ...model.OrderItem) model.Order {
	return model.Order{
		ID:        id,
		CreatedAt: created,
		Status:    status,
		Total:     decimal.RequireFromString(total),
		Items:     items,
	}
}

func item(name string, price string, qty int) model.OrderItem {
	return model.OrderItem{Name: name, Price: decimal.RequireFromString(price), Qty: qty}
}

func bucketSum(buckets []HourBucket) decimal.Decimal {
	sum := decimal.Zero
	for _, b := range buckets {
		sum = sum.Add(b.Revenue)
	}
	return sum
}

func TestAggregateDayFallBack(t *testing.T) {
	loc := rome(t)
	orders := []model.Order{
		// 02:30 CEST and 02:30 CET: the repeated hour.
		statOrder(1, time.Date(2025, 10, 26, 0, 30, 0, 0, time.UTC), model.OrderCompleted, "10.00", item("Margherita", "5", 2)),
		statOrder(2, time.Date(2025, 10, 26, 1, 30, 0, 0, time.UTC), model.OrderCompleted, "7.50", item("Diavola", "7.5", 1)),
		statOrder(3, time.Date(2025, 10, 26, 10, 0, 0, 0, time.UTC), model.OrderCompleted, "3.00", item("Acqua", "1.5", 2)),
		statOrder(4, time.Date(2025, 10, 26, 12, 0, 0, 0, time.UTC), model.OrderCanceled, "99.00"),
		statOrder(5, time.Date(2025, 10, 26, 13, 0, 0, 0, time.UTC), model.OrderPending, "4.00"),
		// Previous local day.
		statOrder(6, time.Date(2025, 10, 25, 21, 59, 0, 0, time.UTC), model.OrderCompleted, "50.00"),
	}

	st := AggregateDay("2025-10-26", orders, loc, 0)

	require.Len(t, st.Buckets, 24)
	assert.Equal(t, "20.50", st.Total.StringFixed(2))
	assert.True(t, bucketSum(st.Buckets).Equal(st.Total))
	assert.Equal(t, 5, st.Orders)
	assert.Equal(t, 3, st.Completed)
	assert.Equal(t, 1, st.Canceled)
	assert.Equal(t, 2, st.Buckets[2].Orders)
	assert.Equal(t, "17.50", st.Buckets[2].Revenue.StringFixed(2))
	assert.Equal(t, "3.00", st.Buckets[11].Revenue.StringFixed(2))
}

func TestAggregateDaySpringForward(t *testing.T) {
	loc := rome(t)
	orders := []model.Order{
		// 01:59 CET, 03:00 CEST and 23:59 CEST.
		statOrder(1, time.Date(2025, 3, 30, 0, 59, 0, 0, time.UTC), model.OrderCompleted, "4.00"),
		statOrder(2, time.Date(2025, 3, 30, 1, 0, 0, 0, time.UTC), model.OrderCompleted, "6.00"),
		statOrder(3, time.Date(2025, 3, 30, 21, 59, 0, 0, time.UTC), model.OrderCompleted, "1.25"),
	}

	st := AggregateDay("2025-03-30", orders, loc, 0)

	assert.True(t, bucketSum(st.Buckets).Equal(st.Total))
	assert.Equal(t, "11.25", st.Total.StringFixed(2))
	assert.Equal(t, 1, st.Buckets[1].Orders)
	assert.Equal(t, 0, st.Buckets[2].Orders)
	assert.Equal(t, 1, st.Buckets[3].Orders)
	assert.Equal(t, 1, st.Buckets[23].Orders)
}

func TestTopItemsRankByQtyThenName(t *testing.T) {
	orders := []model.Order{
		statOrder(1, ts, model.OrderCompleted, "0", item("Tiramisu", "4", 2), item("Acqua", "1.5", 3)),
		statOrder(2, ts, model.OrderCompleted, "0", item("Birra", "4", 3), item("Tiramisu", "4", 1)),
		statOrder(3, ts, model.OrderCanceled, "0", item("Caffe", "1", 50)),
	}

	st := AggregateDay("2025-06-01", orders, time.UTC, 2)

	require.Len(t, st.TopItems, 2)
	assert.Equal(t, "Acqua", st.TopItems[0].Name)
	assert.Equal(t, 3, st.TopItems[0].Qty)
	assert.Equal(t, "Birra", st.TopItems[1].Name)
	assert.Equal(t, "12.00", st.TopItems[1].Revenue.StringFixed(2))
}

func TestAggregateRangeByLocalDay(t *testing.T) {
	loc := rome(t)
	days := []string{"2025-06-01", "2025-06-02"}
	orders := []model.Order{
		// 00:30 local on the 1st.
		statOrder(1, time.Date(2025, 5, 31, 22, 30, 0, 0, time.UTC), model.OrderCompleted, "8.00"),
		statOrder(2, time.Date(2025, 6, 2, 21, 0, 0, 0, time.UTC), model.OrderCompleted, "2.00"),
		// Already the 3rd locally.
		statOrder(3, time.Date(2025, 6, 2, 23, 0, 0, 0, time.UTC), model.OrderCompleted, "9.00"),
	}

	st := AggregateRange(days, orders, loc, 0)

	assert.Equal(t, "2025-06-01", st.From)
	assert.Equal(t, "2025-06-02", st.To)
	require.Len(t, st.Days, 2)
	assert.Equal(t, "8.00", st.Days[0].Revenue.StringFixed(2))
	assert.Equal(t, "2.00", st.Days[1].Revenue.StringFixed(2))
	assert.Equal(t, "10.00", st.Total.StringFixed(2))
	assert.Equal(t, 2, st.Completed)
}

func TestStatsDayQueriesLocalBounds(t *testing.T) {
	db, mock := newMock(t)
	svc := NewStatsService(repository.NewOrderRepo(db), rome(t))

	mock.ExpectQuery(`FROM orders WHERE created_at >= \? AND created_at < \? ORDER BY created_at ASC, id ASC`).
		WithArgs(time.Date(2025, 10, 25, 22, 0, 0, 0, time.UTC), time.Date(2025, 10, 26, 23, 0, 0, 0, time.UTC)).
		WillReturnRows(sqlmock.NewRows(orderCols))

	st, err := svc.Day(context.Background(), "2025-10-26")
	require.NoError(t, err)
	assert.True(t, st.Total.IsZero())
	assert.Len(t, st.Buckets, 24)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsRangeLimits(t *testing.T) {
	db, _ := newMock(t)
	svc := NewStatsService(repository.NewOrderRepo(db), time.UTC)

	_, err := svc.Range(context.Background(), "2025-01-01", "2025-12-31")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "range_too_long", ve.Code)

	// rejected before any day is enumerated or queried
	_, err = NewStatsService(nil, time.UTC).Range(context.Background(), "0001-01-01", "9999-12-31")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "range_too_long", ve.Code)

	_, err = svc.Range(context.Background(), "2025-02-10", "2025-02-01")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "invalid_range", ve.Code)
}
