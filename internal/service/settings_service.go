package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
)

// SettingsService wraps the flat key/value settings store.
type SettingsService struct {
	repo *repository.SettingsRepo
	now  func() time.Time
}

func NewSettingsService(repo *repository.SettingsRepo) *SettingsService {
	return &SettingsService{repo: repo, now: time.Now}
}

// All returns every setting keyed by name. staff_pins never leaves the
// server.
func (s *SettingsService) All(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(rows))
	for _, r := range rows {
		if r.Key == model.SettingStaffPINs {
			continue
		}
		out[r.Key] = r.Value
	}
	return out, nil
}

// Set stores every key of values; last write wins. Each value must be valid
// JSON, and staff_pins must map known roles to non-empty PINs.
func (s *SettingsService) Set(ctx context.Context, values map[string]json.RawMessage) error {
	if len(values) == 0 {
		return invalid("empty_settings", "no settings given")
	}
	clean := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		key := strings.TrimSpace(k)
		if key == "" || len(key) > 64 {
			return invalid("invalid_key", "setting key %q", k)
		}
		if !json.Valid(v) {
			return invalid("invalid_value", "setting %q is not valid JSON", key)
		}
		if key == model.SettingStaffPINs {
			if _, err := parsePINs(v); err != nil {
				return err
			}
		}
		clean[key] = v
	}
	return s.repo.Upsert(ctx, clean, s.now().UTC())
}

// StaffPINs returns the role → PIN map, empty when unset.
func (s *SettingsService) StaffPINs(ctx context.Context) (map[string]string, error) {
	row, err := s.repo.Get(ctx, model.SettingStaffPINs)
	if errors.Is(err, repository.ErrNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return parsePINs(row.Value)
}

func parsePINs(raw json.RawMessage) (map[string]string, error) {
	var pins map[string]string
	if err := json.Unmarshal(raw, &pins); err != nil {
		return nil, invalid("invalid_staff_pins", "staff_pins must be an object of role to PIN")
	}
	if pins == nil {
		pins = map[string]string{}
	}
	for role, pin := range pins {
		switch role {
		case model.RoleWaiter, model.RoleCashier, model.RoleOwner:
		default:
			return nil, invalid("invalid_staff_pins", "unknown role %q", role)
		}
		if strings.TrimSpace(pin) == "" {
			return nil, invalid("invalid_staff_pins", "empty PIN for %s", role)
		}
	}
	return pins, nil
}
