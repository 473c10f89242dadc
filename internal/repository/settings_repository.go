package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/restaurant-ordering/internal/model"
)

// SettingsRepo stores the flat key → JSON settings map.
type SettingsRepo struct {
	db *sql.DB
}

// NewSettingsRepo returns a new SettingsRepo bound to the given database.
func NewSettingsRepo(db *sql.DB) *SettingsRepo { return &SettingsRepo{db: db} }

// All returns every setting ordered by key.
func (r *SettingsRepo) All(ctx context.Context) ([]model.Setting, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT setting_key, value, updated_at FROM settings ORDER BY setting_key`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var out []model.Setting
	for rows.Next() {
		var (
			s   model.Setting
			raw []byte
		)
		if err := rows.Scan(&s.Key, &raw, &s.UpdatedAt); err != nil {
			return nil, classify(err)
		}
		s.Value = json.RawMessage(raw)
		out = append(out, s)
	}
	return out, classify(rows.Err())
}

// Get returns one setting or ErrNotFound.
func (r *SettingsRepo) Get(ctx context.Context, key string) (model.Setting, error) {
	var (
		s   model.Setting
		raw []byte
	)
	err := r.db.QueryRowContext(ctx, `SELECT setting_key, value, updated_at FROM settings WHERE setting_key = ?`, key).
		Scan(&s.Key, &raw, &s.UpdatedAt)
	if err != nil {
		return model.Setting{}, classify(err)
	}
	s.Value = json.RawMessage(raw)
	return s, nil
}

// Upsert writes all values in one statement. Later writes to the same key
// overwrite earlier ones.
func (r *SettingsRepo) Upsert(ctx context.Context, values map[string]json.RawMessage, now time.Time) error {
	if len(values) == 0 {
		return nil
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(`INSERT INTO settings (setting_key, value, updated_at) VALUES `)
	args := make([]interface{}, 0, len(keys)*3)
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?)")
		args = append(args, k, string(values[k]), now)
	}
	b.WriteString(` ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)`)
	if _, err := r.db.ExecContext(ctx, b.String(), args...); err != nil {
		return classify(err)
	}
	return nil
}
