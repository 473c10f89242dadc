package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/restaurant-ordering/internal/model"
)

// OrderRepo provides persistence for orders and their line items. All
// timestamps are stored in UTC.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// DB exposes the handle so services can open transactions spanning several
// repositories.
func (r *OrderRepo) DB() *sql.DB { return r.db }

const orderColumns = `id, table_code, total, status, payment_status, payment_method, acknowledged, order_mode,
 customer_name, customer_phone, customer_note, fiscal_record_id, fiscal_status,
 created_at, paid_at, completed_at, canceled_at, updated_at`

// OrderFilter narrows List. Zero values mean "no filter"; From/To are UTC
// bounds on created_at with To exclusive.
type OrderFilter struct {
	Status        model.OrderStatus
	PaymentStatus model.PaymentStatus
	TableCode     string
	From, To      time.Time
	Limit         int
	Offset        int
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(s rowScanner) (model.Order, error) {
	var (
		o                                    model.Order
		tableCode, method, name, phone, note sql.NullString
		fiscalID, fiscalStatus               sql.NullString
		paidAt, completedAt, canceledAt      sql.NullTime
		status, paymentStatus, mode          string
	)
	err := s.Scan(&o.ID, &tableCode, &o.Total, &status, &paymentStatus, &method, &o.Acknowledged, &mode,
		&name, &phone, &note, &fiscalID, &fiscalStatus,
		&o.CreatedAt, &paidAt, &completedAt, &canceledAt, &o.UpdatedAt)
	if err != nil {
		return model.Order{}, err
	}
	o.Status = model.OrderStatus(status)
	o.PaymentStatus = model.PaymentStatus(paymentStatus)
	o.Mode = model.OrderMode(mode)
	o.TableCode = nullString(tableCode)
	o.PaymentMethod = nullString(method)
	o.CustomerName = nullString(name)
	o.CustomerPhone = nullString(phone)
	o.CustomerNote = nullString(note)
	o.FiscalRecordID = nullString(fiscalID)
	o.FiscalStatus = nullString(fiscalStatus)
	o.PaidAt = nullTime(paidAt)
	o.CompletedAt = nullTime(completedAt)
	o.CanceledAt = nullTime(canceledAt)
	return o, nil
}

// CreateTx inserts the order row and populates o.ID. Items are written
// separately with InsertItemsTx inside the same transaction.
func (r *OrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.Order) error {
	const q = `INSERT INTO orders (table_code, total, status, payment_status, payment_method, acknowledged, order_mode,
 customer_name, customer_phone, customer_note, created_at, updated_at)
 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		o.TableCode, o.Total, o.Status, o.PaymentStatus, o.PaymentMethod, o.Acknowledged, o.Mode,
		o.CustomerName, o.CustomerPhone, o.CustomerNote, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return classify(err)
	}
	o.ID = uint64(id)
	return nil
}

// InsertItemsTx writes all line items of an order in one statement and sets
// OrderID on each. Passing an empty slice has no effect.
func (r *OrderRepo) InsertItemsTx(ctx context.Context, tx *sql.Tx, orderID uint64, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString(`INSERT INTO order_items (order_id, name, price, qty) VALUES `)
	args := make([]interface{}, 0, len(items)*4)
	for i := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?)")
		items[i].OrderID = orderID
		args = append(args, orderID, items[i].Name, items[i].Price, items[i].Qty)
	}
	if _, err := tx.ExecContext(ctx, b.String(), args...); err != nil {
		return classify(err)
	}
	return nil
}

// GetByID loads one order with its items.
func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (model.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if err != nil {
		return model.Order{}, classify(err)
	}
	orders := []model.Order{o}
	if err := r.attachItems(ctx, r.db, orders); err != nil {
		return model.Order{}, err
	}
	return orders[0], nil
}

// List returns orders newest first with their items attached.
func (r *OrderRepo) List(ctx context.Context, f OrderFilter) ([]model.Order, error) {
	where, args := f.clauses()
	q := `SELECT ` + orderColumns + ` FROM orders` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}
	return r.query(ctx, r.db, q, args...)
}

// ListCreatedBetween returns every order created in [from, to) regardless
// of status, oldest first. Used by the stats rollups.
func (r *OrderRepo) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE created_at >= ? AND created_at < ? ORDER BY created_at ASC, id ASC`
	return r.query(ctx, r.db, q, from, to)
}

func (f OrderFilter) clauses() (string, []interface{}) {
	var conds []string
	var args []interface{}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.PaymentStatus != "" {
		conds = append(conds, "payment_status = ?")
		args = append(args, f.PaymentStatus)
	}
	if f.TableCode != "" {
		conds = append(conds, "table_code = ?")
		args = append(args, f.TableCode)
	}
	if !f.From.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		conds = append(conds, "created_at < ?")
		args = append(args, f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *OrderRepo) query(ctx context.Context, q querier, query string, args ...interface{}) ([]model.Order, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var out []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	if err := r.attachItems(ctx, q, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachItems loads the items of all orders with a single IN query.
func (r *OrderRepo) attachItems(ctx context.Context, q querier, orders []model.Order) error {
	if len(orders) == 0 {
		return nil
	}
	index := make(map[uint64]int, len(orders))
	args := make([]interface{}, len(orders))
	for i, o := range orders {
		index[o.ID] = i
		args[i] = o.ID
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(orders)), ", ")
	rows, err := q.QueryContext(ctx,
		`SELECT id, order_id, name, price, qty FROM order_items WHERE order_id IN (`+placeholders+`) ORDER BY order_id, id`, args...)
	if err != nil {
		return classify(err)
	}
	defer rows.Close()
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.Name, &it.Price, &it.Qty); err != nil {
			return classify(err)
		}
		if i, ok := index[it.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	return classify(rows.Err())
}

// UpdateLifecycle writes status and terminal timestamps only if the stored
// status still equals expected.
func (r *OrderRepo) UpdateLifecycle(ctx context.Context, o model.Order, expected model.OrderStatus) error {
	const q = `UPDATE orders SET status = ?, completed_at = ?, canceled_at = ?, updated_at = ? WHERE id = ? AND status = ?`
	return execAffected(ctx, r.db, q, o.Status, o.CompletedAt, o.CanceledAt, o.UpdatedAt, o.ID, expected)
}

// SetAcknowledged flips the acknowledged flag and nothing else. MySQL
// reports zero affected rows when the flag was already set, so the caller
// checks existence first.
func (r *OrderRepo) SetAcknowledged(ctx context.Context, id uint64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE orders SET acknowledged = 1 WHERE id = ?`, id); err != nil {
		return classify(err)
	}
	return nil
}

// UpdatePayment writes the payment sub-state only if the stored payment
// status still equals expected.
func (r *OrderRepo) UpdatePayment(ctx context.Context, o model.Order, expected model.PaymentStatus) error {
	const q = `UPDATE orders SET payment_status = ?, payment_method = ?, paid_at = ?, updated_at = ? WHERE id = ? AND payment_status = ?`
	return execAffected(ctx, r.db, q, o.PaymentStatus, o.PaymentMethod, o.PaidAt, o.UpdatedAt, o.ID, expected)
}

// ListPendingForTableTx locks the pending orders of a table created in
// [from, to).
func (r *OrderRepo) ListPendingForTableTx(ctx context.Context, tx *sql.Tx, tableCode string, from, to time.Time) ([]model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE table_code = ? AND status = ? AND created_at >= ? AND created_at < ? ORDER BY id FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, tableCode, model.OrderPending, from, to)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var out []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, o)
	}
	return out, classify(rows.Err())
}

// CloseTx marks the given orders paid with method and completed. paid_at is
// kept for orders that were already paid.
func (r *OrderRepo) CloseTx(ctx context.Context, tx *sql.Tx, ids []uint64, method string, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	args := []interface{}{model.PaymentPaid, method, now, model.OrderCompleted, now, now}
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	q := `UPDATE orders SET payment_status = ?, payment_method = ?, paid_at = COALESCE(paid_at, ?), status = ?, completed_at = ?, updated_at = ? WHERE id IN (` + placeholders + `)`
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return classify(err)
	}
	return nil
}

// SetFiscal records the fiscal provider's receipt reference.
func (r *OrderRepo) SetFiscal(ctx context.Context, id uint64, recordID, status string, now time.Time) error {
	const q = `UPDATE orders SET fiscal_record_id = ?, fiscal_status = ?, updated_at = ? WHERE id = ?`
	return execAffected(ctx, r.db, q, recordID, status, now, id)
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
