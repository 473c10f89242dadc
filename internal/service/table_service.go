package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-ordering/internal/metrics"
	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/queue"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
)

// TableService coordinates table occupancy and the per-table waitlist.
//
// Every operation that changes a table, or a reservation queued on it, runs
// under the table's in-process lock and inside one transaction that starts
// by locking the table row (SELECT ... FOR UPDATE). The in-process lock
// serialises requests handled by this instance; the row lock serialises
// across instances. Under both, "free the table" and "promote the head of
// the waitlist" are one atomic step, so concurrent frees promote at most
// one reservation.
type TableService struct {
	tables       *repository.TableRepo
	reservations *repository.ReservationRepo
	events       EventPublisher
	logger       echo.Logger
	locks        *keyedMutex
	now          func() time.Time
}

// NewTableService returns a TableService. events may be nil.
func NewTableService(tables *repository.TableRepo, reservations *repository.ReservationRepo, events EventPublisher, logger echo.Logger) *TableService {
	if events == nil {
		events = NopPublisher{}
	}
	return &TableService{
		tables:       tables,
		reservations: reservations,
		events:       events,
		logger:       logger,
		locks:        newKeyedMutex(),
		now:          time.Now,
	}
}

// Promotion reports the outcome of a waitlist promotion.
type Promotion struct {
	Promoted    bool
	Reservation *model.Reservation
}

// CreateTable adds a free table.
func (s *TableService) CreateTable(ctx context.Context, name string, seats int) (model.Table, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Table{}, invalid("name_required", "table name is required")
	}
	if seats < 1 {
		return model.Table{}, invalid("invalid_seats", "a table needs at least one seat")
	}
	t := model.Table{Name: name, Seats: seats, Status: model.TableFree, UpdatedAt: s.now().UTC()}
	if err := s.tables.Create(ctx, &t); err != nil {
		return model.Table{}, err
	}
	return t, nil
}

// ListTables returns every table ordered by name.
func (s *TableService) ListTables(ctx context.Context) ([]model.Table, error) {
	tables, err := s.tables.List(ctx)
	if err != nil {
		return nil, err
	}
	if tables == nil {
		tables = []model.Table{}
	}
	return tables, nil
}

// GetTable returns one table.
func (s *TableService) GetTable(ctx context.Context, id uint64) (model.Table, error) {
	return s.tables.GetByID(ctx, id)
}

// CreateReservationInput is a booking request for a specific table.
type CreateReservationInput struct {
	TableID       uint64
	CustomerName  string
	CustomerPhone string
	PartySize     int
	RequestedFor  *time.Time
}

// CreateReservation confirms the booking and reserves the table when it is
// free; otherwise the booking joins the end of the table's waitlist.
func (s *TableService) CreateReservation(ctx context.Context, in CreateReservationInput) (model.Reservation, error) {
	name := strings.TrimSpace(in.CustomerName)
	if name == "" {
		return model.Reservation{}, invalid("name_required", "customer name is required")
	}
	if in.PartySize < 1 {
		return model.Reservation{}, invalid("invalid_party_size", "party size must be at least 1")
	}
	if in.TableID == 0 {
		return model.Reservation{}, invalid("table_required", "table id is required")
	}

	var res model.Reservation
	err := s.withTable(ctx, in.TableID, func(tx *sql.Tx, t model.Table, now time.Time) error {
		res = model.Reservation{
			TableID:       t.ID,
			CustomerName:  name,
			CustomerPhone: optional(in.CustomerPhone),
			PartySize:     in.PartySize,
			RequestedFor:  in.RequestedFor,
			Status:        model.ReservationWaiting,
			CreatedAt:     now,
		}
		if t.Status == model.TableFree {
			res.Status = model.ReservationConfirmed
		}
		if err := s.reservations.CreateTx(ctx, tx, &res); err != nil {
			return err
		}
		if res.Status == model.ReservationConfirmed {
			return s.tables.SetStateTx(ctx, tx, t.ID, model.TableReserved, &res.ID, now)
		}
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	publish(ctx, s.events, s.logger, queue.KeyReservationCreated, reservationEvent(res, res.CreatedAt))
	return res, nil
}

// ListReservationsInput filters ListReservations.
type ListReservationsInput struct {
	TableID uint64
	Status  string
	Limit   int
}

// ListReservations returns reservations oldest first.
func (s *TableService) ListReservations(ctx context.Context, in ListReservationsInput) ([]model.Reservation, error) {
	f := repository.ReservationFilter{TableID: in.TableID, Limit: in.Limit}
	if in.Status != "" && in.Status != "all" {
		st := model.ReservationStatus(in.Status)
		if !st.Valid() {
			return nil, invalid("invalid_status", "unknown reservation status %q", in.Status)
		}
		f.Status = st
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 500
	}
	out, err := s.reservations.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Reservation{}
	}
	return out, nil
}

// ApplyReservation runs seat, complete or cancel. Seating occupies the table
// under the reservation. Completing or cancelling releases the table when
// this reservation holds it and then promotes the next waiter; a waiting
// reservation that is cancelled leaves the table untouched.
func (s *TableService) ApplyReservation(ctx context.Context, id uint64, action model.ReservationAction) (model.Reservation, Promotion, error) {
	current, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return model.Reservation{}, Promotion{}, err
	}

	var (
		res   model.Reservation
		promo Promotion
	)
	err = s.withTable(ctx, current.TableID, func(tx *sql.Tx, t model.Table, now time.Time) error {
		promo = Promotion{}
		locked, err := s.reservations.GetForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if res, err = locked.Apply(action, now); err != nil {
			return err
		}
		if err := s.reservations.UpdateTx(ctx, tx, res); err != nil {
			return err
		}
		if action == model.ReservationSeat {
			return s.tables.SetStateTx(ctx, tx, t.ID, model.TableOccupied, &res.ID, now)
		}
		if t.CurrentReservationID == nil || *t.CurrentReservationID != res.ID {
			return nil
		}
		if err := s.tables.SetStateTx(ctx, tx, t.ID, model.TableFree, nil, now); err != nil {
			return err
		}
		promo, err = s.promoteTx(ctx, tx, t.ID, now)
		return err
	})
	if err != nil {
		return model.Reservation{}, Promotion{}, err
	}
	publish(ctx, s.events, s.logger, queue.ReservationKey(string(action)), reservationEvent(res, s.now()))
	s.announce(ctx, promo)
	return res, promo, nil
}

func (s *TableService) SeatReservation(ctx context.Context, id uint64) (model.Reservation, error) {
	res, _, err := s.ApplyReservation(ctx, id, model.ReservationSeat)
	return res, err
}

func (s *TableService) CompleteReservation(ctx context.Context, id uint64) (model.Reservation, Promotion, error) {
	return s.ApplyReservation(ctx, id, model.ReservationComplete)
}

func (s *TableService) CancelReservation(ctx context.Context, id uint64) (model.Reservation, Promotion, error) {
	return s.ApplyReservation(ctx, id, model.ReservationCancel)
}

// FreeTable releases a table and promotes the next waiter, if any. The
// reservation holding the table is closed in the same transaction: a seated
// party is completed, a confirmed one that never sat down is cancelled.
func (s *TableService) FreeTable(ctx context.Context, tableID uint64) (Promotion, error) {
	var (
		promo  Promotion
		closed *model.Reservation
	)
	err := s.withTable(ctx, tableID, func(tx *sql.Tx, t model.Table, now time.Time) error {
		promo, closed = Promotion{}, nil
		if t.CurrentReservationID != nil {
			res, err := s.releaseHolderTx(ctx, tx, *t.CurrentReservationID, now)
			if err != nil {
				return err
			}
			closed = res
		}
		if err := s.tables.SetStateTx(ctx, tx, t.ID, model.TableFree, nil, now); err != nil {
			return err
		}
		var err error
		promo, err = s.promoteTx(ctx, tx, t.ID, now)
		return err
	})
	if err != nil {
		return Promotion{}, err
	}
	if closed != nil {
		action := model.ReservationComplete
		if closed.Status == model.ReservationCancelled {
			action = model.ReservationCancel
		}
		publish(ctx, s.events, s.logger, queue.ReservationKey(string(action)), reservationEvent(*closed, s.now()))
	}
	publish(ctx, s.events, s.logger, queue.KeyTableFreed, queue.TableEvent{
		TableID:    tableID,
		Promoted:   promo.Promoted,
		OccurredAt: s.now().UTC().Format(time.RFC3339),
	})
	s.announce(ctx, promo)
	return promo, nil
}

// SeatWalkIn occupies a free table without a reservation.
func (s *TableService) SeatWalkIn(ctx context.Context, tableID uint64) (model.Table, error) {
	var out model.Table
	err := s.withTable(ctx, tableID, func(tx *sql.Tx, t model.Table, now time.Time) error {
		if t.Status != model.TableFree {
			return &model.TransitionError{From: string(t.Status), Action: "seat"}
		}
		out = t
		out.Status, out.CurrentReservationID, out.UpdatedAt = model.TableOccupied, nil, now
		return s.tables.SetStateTx(ctx, tx, t.ID, model.TableOccupied, nil, now)
	})
	if err != nil {
		return model.Table{}, err
	}
	return out, nil
}

// PromoteNextWaiter confirms the oldest waiting reservation of a free table.
// It does nothing when the table is held or nobody is waiting.
func (s *TableService) PromoteNextWaiter(ctx context.Context, tableID uint64) (Promotion, error) {
	var promo Promotion
	err := s.withTable(ctx, tableID, func(tx *sql.Tx, t model.Table, now time.Time) error {
		promo = Promotion{}
		if t.Status != model.TableFree {
			return nil
		}
		var err error
		promo, err = s.promoteTx(ctx, tx, t.ID, now)
		return err
	})
	if err != nil {
		return Promotion{}, err
	}
	s.announce(ctx, promo)
	return promo, nil
}

// releaseHolderTx closes the reservation a table is being freed from. It
// returns nil when the reservation is already terminal.
func (s *TableService) releaseHolderTx(ctx context.Context, tx *sql.Tx, id uint64, now time.Time) (*model.Reservation, error) {
	held, err := s.reservations.GetForUpdateTx(ctx, tx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if held.Status.Terminal() {
		return nil, nil
	}
	action := model.ReservationCancel
	if held.Status == model.ReservationSeated {
		action = model.ReservationComplete
	}
	res, err := held.Apply(action, now)
	if err != nil {
		return nil, err
	}
	if err := s.reservations.UpdateTx(ctx, tx, res); err != nil {
		return nil, err
	}
	return &res, nil
}

// promoteTx moves the head of the waitlist to confirmed and reserves the
// table for it. The caller holds the table row lock and has just set the
// table free.
func (s *TableService) promoteTx(ctx context.Context, tx *sql.Tx, tableID uint64, now time.Time) (Promotion, error) {
	next, err := s.reservations.OldestWaitingTx(ctx, tx, tableID)
	if errors.Is(err, repository.ErrNotFound) {
		return Promotion{}, nil
	}
	if err != nil {
		return Promotion{}, err
	}
	next.Status = model.ReservationConfirmed
	if err := s.reservations.UpdateTx(ctx, tx, next); err != nil {
		return Promotion{}, err
	}
	if err := s.tables.SetStateTx(ctx, tx, tableID, model.TableReserved, &next.ID, now); err != nil {
		return Promotion{}, err
	}
	return Promotion{Promoted: true, Reservation: &next}, nil
}

func (s *TableService) announce(ctx context.Context, promo Promotion) {
	if !promo.Promoted {
		return
	}
	metrics.ReservationPromotions.Inc()
	publish(ctx, s.events, s.logger, queue.KeyReservationPromoted, reservationEvent(*promo.Reservation, s.now()))
}

// withTable serialises fn against every other change to the same table.
func (s *TableService) withTable(ctx context.Context, tableID uint64, fn func(tx *sql.Tx, t model.Table, now time.Time) error) error {
	unlock := s.locks.Lock(tableID)
	defer unlock()
	return repository.RunInTx(ctx, s.tables.DB(), func(tx *sql.Tx) error {
		t, err := s.tables.GetForUpdateTx(ctx, tx, tableID)
		if err != nil {
			return err
		}
		return fn(tx, t, s.now().UTC())
	})
}
