package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/restaurant-ordering/internal/model"
)

// ReservationRepo provides CRUD operations for table reservations. The
// waitlist of a table is the set of its waiting reservations ordered by
// created_at, then id.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, table_id, customer_name, customer_phone, party_size, requested_for, status,
 created_at, seated_at, completed_at, cancelled_at`

// ReservationFilter narrows List. Zero values mean "no filter".
type ReservationFilter struct {
	TableID uint64
	Status  model.ReservationStatus
	Limit   int
}

func scanReservation(s rowScanner) (model.Reservation, error) {
	var (
		res                                model.Reservation
		phone                              sql.NullString
		status                             string
		requested, seated, done, cancelled sql.NullTime
	)
	err := s.Scan(&res.ID, &res.TableID, &res.CustomerName, &phone, &res.PartySize, &requested, &status,
		&res.CreatedAt, &seated, &done, &cancelled)
	if err != nil {
		return model.Reservation{}, err
	}
	res.Status = model.ReservationStatus(status)
	res.CustomerPhone = nullString(phone)
	res.RequestedFor = nullTime(requested)
	res.SeatedAt = nullTime(seated)
	res.CompletedAt = nullTime(done)
	res.CancelledAt = nullTime(cancelled)
	return res, nil
}

// CreateTx inserts a reservation within tx and populates its ID.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (table_id, customer_name, customer_phone, party_size, requested_for, status, created_at)
 VALUES (?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q,
		res.TableID, res.CustomerName, res.CustomerPhone, res.PartySize, res.RequestedFor, res.Status, res.CreatedAt)
	if err != nil {
		return classify(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return classify(err)
	}
	res.ID = uint64(id)
	return nil
}

// GetByID reads a reservation without locking it.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if err != nil {
		return model.Reservation{}, classify(err)
	}
	return res, nil
}

// GetForUpdateTx reads a reservation and locks its row until tx ends.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Reservation, error) {
	res, err := scanReservation(tx.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, id))
	if err != nil {
		return model.Reservation{}, classify(err)
	}
	return res, nil
}

// OldestWaitingTx returns the head of the table's waitlist, or ErrNotFound
// when nobody is waiting.
func (r *ReservationRepo) OldestWaitingTx(ctx context.Context, tx *sql.Tx, tableID uint64) (model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE table_id = ? AND status = ? ORDER BY created_at ASC, id ASC LIMIT 1 FOR UPDATE`
	res, err := scanReservation(tx.QueryRowContext(ctx, q, tableID, model.ReservationWaiting))
	if err != nil {
		return model.Reservation{}, classify(err)
	}
	return res, nil
}

// UpdateTx writes status and lifecycle timestamps.
func (r *ReservationRepo) UpdateTx(ctx context.Context, tx *sql.Tx, res model.Reservation) error {
	const q = `UPDATE reservations SET status = ?, seated_at = ?, completed_at = ?, cancelled_at = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, q, res.Status, res.SeatedAt, res.CompletedAt, res.CancelledAt, res.ID); err != nil {
		return classify(err)
	}
	return nil
}

// List returns reservations oldest first, so a table's waitlist reads in
// promotion order.
func (r *ReservationRepo) List(ctx context.Context, f ReservationFilter) ([]model.Reservation, error) {
	var conds []string
	var args []interface{}
	if f.TableID != 0 {
		conds = append(conds, "table_id = ?")
		args = append(args, f.TableID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	q := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY created_at ASC, id ASC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, res)
	}
	return out, classify(rows.Err())
}
