package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-ordering/internal/metrics"
	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
)

const (
	lockTableSQL  = `FROM restaurant_tables WHERE id = \? FOR UPDATE`
	setTableSQL   = `UPDATE restaurant_tables SET status = \?, current_reservation_id = \?, updated_at = \? WHERE id = \?`
	oldestSQL     = `FROM reservations WHERE table_id = \? AND status = \? ORDER BY created_at ASC, id ASC LIMIT 1 FOR UPDATE`
	updateResvSQL = `UPDATE reservations SET status = \?, seated_at = \?, completed_at = \?, cancelled_at = \? WHERE id = \?`
	getResvSQL    = `FROM reservations WHERE id = \?$`
	lockResvSQL   = `FROM reservations WHERE id = \? FOR UPDATE`
	insertResvSQL = `INSERT INTO reservations`
)

func newTableService(t *testing.T) (*TableService, sqlmock.Sqlmock, *fakePublisher) {
	t.Helper()
	db, mock := newMock(t)
	pub := &fakePublisher{}
	svc := NewTableService(repository.NewTableRepo(db), repository.NewReservationRepo(db), pub, nil)
	svc.now = fixedNow
	return svc, mock, pub
}

// expectFree queues one FreeTable transaction. waiter is the id returned as
// head of the waitlist, 0 for an empty waitlist. A non-nil ref is the
// confirmed reservation holding the table, which gets cancelled.
func expectFree(mock sqlmock.Sqlmock, tableID int64, status string, ref interface{}, waiter int64) {
	mock.ExpectBegin()
	mock.ExpectQuery(lockTableSQL).WithArgs(uint64(tableID)).WillReturnRows(tableRow(tableID, status, ref))
	if id, ok := ref.(int64); ok {
		mock.ExpectQuery(lockResvSQL).WithArgs(uint64(id)).
			WillReturnRows(reservationRow(id, tableID, "confirmed", ts.Add(-time.Hour)))
		mock.ExpectExec(updateResvSQL).WithArgs(model.ReservationCancelled, nil, nil, ts, uint64(id)).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec(setTableSQL).WithArgs(model.TableFree, nil, ts, uint64(tableID)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if waiter == 0 {
		mock.ExpectQuery(oldestSQL).WithArgs(uint64(tableID), model.ReservationWaiting).
			WillReturnRows(sqlmock.NewRows(reservationCols))
		mock.ExpectCommit()
		return
	}
	mock.ExpectQuery(oldestSQL).WithArgs(uint64(tableID), model.ReservationWaiting).
		WillReturnRows(reservationRow(waiter, tableID, "waiting", ts.Add(-time.Hour)))
	mock.ExpectExec(updateResvSQL).WithArgs(model.ReservationConfirmed, nil, nil, nil, uint64(waiter)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(setTableSQL).WithArgs(model.TableReserved, uint64(waiter), ts, uint64(tableID)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}

func TestCreateTableValidation(t *testing.T) {
	svc, _, _ := newTableService(t)
	_, err := svc.CreateTable(context.Background(), " ", 4)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "name_required", ve.Code)

	_, err = svc.CreateTable(context.Background(), "T1", 0)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "invalid_seats", ve.Code)
}

func TestCreateReservationOnFreeTableConfirms(t *testing.T) {
	svc, mock, pub := newTableService(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockTableSQL).WithArgs(uint64(1)).WillReturnRows(tableRow(1, "free", nil))
	mock.ExpectExec(insertResvSQL).WithArgs(uint64(1), "Rossi", nil, 2, nil, model.ReservationConfirmed, ts).
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectExec(setTableSQL).WithArgs(model.TableReserved, uint64(9), ts, uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.CreateReservation(context.Background(), CreateReservationInput{TableID: 1, CustomerName: "Rossi", PartySize: 2})
	require.NoError(t, err)
	assert.Equal(t, uint64(9), res.ID)
	assert.Equal(t, model.ReservationConfirmed, res.Status)
	assert.Equal(t, []string{"reservation.created"}, pub.keys())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReservationOnBusyTableWaits(t *testing.T) {
	svc, mock, _ := newTableService(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockTableSQL).WillReturnRows(tableRow(1, "occupied", nil))
	mock.ExpectExec(insertResvSQL).WithArgs(uint64(1), "Rossi", "333", 4, nil, model.ReservationWaiting, ts).
		WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectCommit()

	res, err := svc.CreateReservation(context.Background(), CreateReservationInput{
		TableID: 1, CustomerName: "Rossi", CustomerPhone: "333", PartySize: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, model.ReservationWaiting, res.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReservationUnknownTable(t *testing.T) {
	svc, mock, _ := newTableService(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockTableSQL).WillReturnRows(sqlmock.NewRows(tableCols))
	mock.ExpectRollback()

	_, err := svc.CreateReservation(context.Background(), CreateReservationInput{TableID: 42, CustomerName: "Rossi", PartySize: 2})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFreeTablePromotesOldestWaiter(t *testing.T) {
	svc, mock, pub := newTableService(t)
	expectFree(mock, 1, "occupied", nil, 7)

	promo, err := svc.FreeTable(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, promo.Promoted)
	assert.Equal(t, uint64(7), promo.Reservation.ID)
	assert.Equal(t, model.ReservationConfirmed, promo.Reservation.Status)
	assert.Equal(t, []string{"table.freed", "reservation.promoted"}, pub.keys())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSecondFreeWithoutWaiterIsNoop(t *testing.T) {
	svc, mock, _ := newTableService(t)
	expectFree(mock, 1, "occupied", nil, 7)
	expectFree(mock, 1, "reserved", int64(7), 0)

	first, err := svc.FreeTable(context.Background(), 1)
	require.NoError(t, err)
	second, err := svc.FreeTable(context.Background(), 1)
	require.NoError(t, err)

	assert.True(t, first.Promoted)
	assert.False(t, second.Promoted)
	assert.Nil(t, second.Reservation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFreeTableCompletesSeatedHolder(t *testing.T) {
	svc, mock, pub := newTableService(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockTableSQL).WithArgs(uint64(1)).WillReturnRows(tableRow(1, "occupied", int64(3)))
	mock.ExpectQuery(lockResvSQL).WithArgs(uint64(3)).WillReturnRows(reservationRow(3, 1, "seated", ts.Add(-2*time.Hour)))
	mock.ExpectExec(updateResvSQL).WithArgs(model.ReservationCompleted, nil, ts, nil, uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(setTableSQL).WithArgs(model.TableFree, nil, ts, uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(oldestSQL).WithArgs(uint64(1), model.ReservationWaiting).
		WillReturnRows(sqlmock.NewRows(reservationCols))
	mock.ExpectCommit()

	promo, err := svc.FreeTable(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, promo.Promoted)
	assert.Equal(t, []string{"reservation.complete", "table.freed"}, pub.keys())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConcurrentFreePromotesExactlyOnce(t *testing.T) {
	svc, mock, _ := newTableService(t)
	// Both calls are serialised on the table, so whichever runs first sees
	// the waiter and the other finds the waitlist empty.
	expectFree(mock, 1, "occupied", nil, 7)
	expectFree(mock, 1, "reserved", int64(7), 0)

	before := testutil.ToFloat64(metrics.ReservationPromotions)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []Promotion
	)
	start := make(chan struct{})
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			p, err := svc.FreeTable(context.Background(), 1)
			assert.NoError(t, err)
			mu.Lock()
			results = append(results, p)
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	promoted := 0
	for _, p := range results {
		if p.Promoted {
			promoted++
		}
	}
	assert.Equal(t, 1, promoted)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ReservationPromotions)-before)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteHoldingReservationPromotesNext(t *testing.T) {
	svc, mock, pub := newTableService(t)
	mock.ExpectQuery(getResvSQL).WithArgs(uint64(3)).WillReturnRows(reservationRow(3, 1, "seated", ts.Add(-2*time.Hour)))
	mock.ExpectBegin()
	mock.ExpectQuery(lockTableSQL).WillReturnRows(tableRow(1, "occupied", int64(3)))
	mock.ExpectQuery(lockResvSQL).WithArgs(uint64(3)).WillReturnRows(reservationRow(3, 1, "seated", ts.Add(-2*time.Hour)))
	mock.ExpectExec(updateResvSQL).WithArgs(model.ReservationCompleted, nil, ts, nil, uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(setTableSQL).WithArgs(model.TableFree, nil, ts, uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(oldestSQL).WillReturnRows(reservationRow(8, 1, "waiting", ts.Add(-time.Hour)))
	mock.ExpectExec(updateResvSQL).WithArgs(model.ReservationConfirmed, nil, nil, nil, uint64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(setTableSQL).WithArgs(model.TableReserved, uint64(8), ts, uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, promo, err := svc.CompleteReservation(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCompleted, res.Status)
	require.True(t, promo.Promoted)
	assert.Equal(t, uint64(8), promo.Reservation.ID)
	assert.Equal(t, []string{"reservation.complete", "reservation.promoted"}, pub.keys())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelWaitingReservationKeepsTable(t *testing.T) {
	svc, mock, _ := newTableService(t)
	mock.ExpectQuery(getResvSQL).WillReturnRows(reservationRow(5, 1, "waiting", ts))
	mock.ExpectBegin()
	mock.ExpectQuery(lockTableSQL).WillReturnRows(tableRow(1, "reserved", int64(3)))
	mock.ExpectQuery(lockResvSQL).WillReturnRows(reservationRow(5, 1, "waiting", ts))
	mock.ExpectExec(updateResvSQL).WithArgs(model.ReservationCancelled, nil, nil, ts, uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, promo, err := svc.CancelReservation(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, res.Status)
	assert.False(t, promo.Promoted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRequiresConfirmed(t *testing.T) {
	svc, mock, pub := newTableService(t)
	mock.ExpectQuery(getResvSQL).WillReturnRows(reservationRow(5, 1, "waiting", ts))
	mock.ExpectBegin()
	mock.ExpectQuery(lockTableSQL).WillReturnRows(tableRow(1, "occupied", nil))
	mock.ExpectQuery(lockResvSQL).WillReturnRows(reservationRow(5, 1, "waiting", ts))
	mock.ExpectRollback()

	_, err := svc.SeatReservation(context.Background(), 5)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
	assert.Empty(t, pub.keys())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatConfirmedOccupiesTable(t *testing.T) {
	svc, mock, _ := newTableService(t)
	mock.ExpectQuery(getResvSQL).WillReturnRows(reservationRow(3, 1, "confirmed", ts))
	mock.ExpectBegin()
	mock.ExpectQuery(lockTableSQL).WillReturnRows(tableRow(1, "reserved", int64(3)))
	mock.ExpectQuery(lockResvSQL).WillReturnRows(reservationRow(3, 1, "confirmed", ts))
	mock.ExpectExec(updateResvSQL).WithArgs(model.ReservationSeated, ts, nil, nil, uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(setTableSQL).WithArgs(model.TableOccupied, uint64(3), ts, uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.SeatReservation(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationSeated, res.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatWalkInNeedsFreeTable(t *testing.T) {
	svc, mock, _ := newTableService(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockTableSQL).WillReturnRows(tableRow(1, "reserved", int64(3)))
	mock.ExpectRollback()

	_, err := svc.SeatWalkIn(context.Background(), 1)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteNextWaiterSkipsHeldTable(t *testing.T) {
	svc, mock, _ := newTableService(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockTableSQL).WillReturnRows(tableRow(1, "occupied", nil))
	mock.ExpectCommit()

	promo, err := svc.PromoteNextWaiter(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, promo.Promoted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListReservationsRejectsUnknownStatus(t *testing.T) {
	svc, _, _ := newTableService(t)
	_, err := svc.ListReservations(context.Background(), ListReservationsInput{Status: "lost"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "invalid_status", ve.Code)
}
