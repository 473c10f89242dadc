package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/restaurant-ordering/internal/model"
)

// TableRepo provides access to restaurant_tables. Status changes always go
// through the Tx variants so they can be combined with reservation updates.
type TableRepo struct {
	db *sql.DB
}

// NewTableRepo returns a new TableRepo bound to the given database.
func NewTableRepo(db *sql.DB) *TableRepo { return &TableRepo{db: db} }

// DB exposes the handle for transactions spanning tables and reservations.
func (r *TableRepo) DB() *sql.DB { return r.db }

const tableColumns = `id, name, seats, status, current_reservation_id, updated_at`

func scanTable(s rowScanner) (model.Table, error) {
	var (
		t      model.Table
		status string
		ref    sql.NullInt64
	)
	if err := s.Scan(&t.ID, &t.Name, &t.Seats, &status, &ref, &t.UpdatedAt); err != nil {
		return model.Table{}, err
	}
	t.Status = model.TableStatus(status)
	if ref.Valid {
		id := uint64(ref.Int64)
		t.CurrentReservationID = &id
	}
	return t, nil
}

// Create inserts a free table. A duplicate name yields ErrConflict.
func (r *TableRepo) Create(ctx context.Context, t *model.Table) error {
	const q = `INSERT INTO restaurant_tables (name, seats, status, updated_at) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, t.Name, t.Seats, t.Status, t.UpdatedAt)
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return classify(err)
	}
	t.ID = uint64(id)
	return nil
}

// List returns all tables ordered by name.
func (r *TableRepo) List(ctx context.Context) ([]model.Table, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+tableColumns+` FROM restaurant_tables ORDER BY name`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var out []model.Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, t)
	}
	return out, classify(rows.Err())
}

// GetByID reads a table without locking it.
func (r *TableRepo) GetByID(ctx context.Context, id uint64) (model.Table, error) {
	t, err := scanTable(r.db.QueryRowContext(ctx, `SELECT `+tableColumns+` FROM restaurant_tables WHERE id = ?`, id))
	if err != nil {
		return model.Table{}, classify(err)
	}
	return t, nil
}

// GetForUpdateTx reads a table and holds its row lock until tx ends. Every
// state change of a table and of the reservations queued on it starts here.
func (r *TableRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Table, error) {
	t, err := scanTable(tx.QueryRowContext(ctx, `SELECT `+tableColumns+` FROM restaurant_tables WHERE id = ? FOR UPDATE`, id))
	if err != nil {
		return model.Table{}, classify(err)
	}
	return t, nil
}

// SetStateTx writes the table status and the reservation back-reference.
func (r *TableRepo) SetStateTx(ctx context.Context, tx *sql.Tx, id uint64, status model.TableStatus, reservationID *uint64, now time.Time) error {
	const q = `UPDATE restaurant_tables SET status = ?, current_reservation_id = ?, updated_at = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, q, status, reservationID, now, id); err != nil {
		return classify(err)
	}
	return nil
}
