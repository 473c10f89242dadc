package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
)

var settingCols = []string{"setting_key", "value", "updated_at"}

func TestSettingsAllRedactsStaffPINs(t *testing.T) {
	db, mock := newMock(t)
	svc := NewSettingsService(repository.NewSettingsRepo(db))
	mock.ExpectQuery("FROM settings ORDER BY setting_key").
		WillReturnRows(sqlmock.NewRows(settingCols).
			AddRow("sound", []byte("true"), ts).
			AddRow("staff_pins", []byte(`{"waiter":"1234"}`), ts))

	all, err := svc.All(context.Background())
	require.NoError(t, err)
	assert.Contains(t, all, "sound")
	assert.NotContains(t, all, model.SettingStaffPINs)
}

func TestSettingsSetValidatesJSON(t *testing.T) {
	db, mock := newMock(t)
	svc := NewSettingsService(repository.NewSettingsRepo(db))

	err := svc.Set(context.Background(), map[string]json.RawMessage{"sound": json.RawMessage("tru")})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "invalid_value", ve.Code)

	err = svc.Set(context.Background(), map[string]json.RawMessage{"staff_pins": json.RawMessage(`{"chef":"1"}`)})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "invalid_staff_pins", ve.Code)

	err = svc.Set(context.Background(), nil)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "empty_settings", ve.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsSetUpserts(t *testing.T) {
	db, mock := newMock(t)
	svc := NewSettingsService(repository.NewSettingsRepo(db))
	svc.now = fixedNow
	mock.ExpectExec("INSERT INTO settings").
		WithArgs("autorefresh", "15", ts, "staff_pins", `{"owner":"9999"}`, ts).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := svc.Set(context.Background(), map[string]json.RawMessage{
		"autorefresh": json.RawMessage("15"),
		"staff_pins":  json.RawMessage(`{"owner":"9999"}`),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaffPINsMissingIsEmpty(t *testing.T) {
	db, mock := newMock(t)
	svc := NewSettingsService(repository.NewSettingsRepo(db))
	mock.ExpectQuery("FROM settings WHERE setting_key").WithArgs("staff_pins").
		WillReturnRows(sqlmock.NewRows(settingCols))

	pins, err := svc.StaffPINs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pins)
}

type staticPINs struct {
	pins map[string]string
	err  error
}

func (s staticPINs) StaffPINs(context.Context) (map[string]string, error) {
	out := make(map[string]string, len(s.pins))
	for k, v := range s.pins {
		out[k] = v
	}
	return out, s.err
}

func TestLoginMatchesRole(t *testing.T) {
	svc := NewAuthService(staticPINs{pins: map[string]string{"cashier": "2222", "owner": "9999"}}, "", "secret", 60)
	svc.now = fixedNow

	role, tok, err := svc.Login(context.Background(), "2222")
	require.NoError(t, err)
	assert.Equal(t, model.RoleCashier, role)
	assert.Equal(t, ts.Add(60*time.Minute), tok.Exp)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(tok.Token, claims, func(*jwt.Token) (interface{}, error) { return []byte("secret"), nil },
		jwt.WithTimeFunc(fixedNow))
	require.NoError(t, err)
	assert.Equal(t, "cashier", claims["role"])
	assert.Equal(t, "staff:cashier", claims["sub"])
}

func TestLoginFallsBackToWaiterPIN(t *testing.T) {
	svc := NewAuthService(staticPINs{pins: map[string]string{}}, "1234", "secret", 60)

	role, _, err := svc.Login(context.Background(), "1234")
	require.NoError(t, err)
	assert.Equal(t, model.RoleWaiter, role)

	_, _, err = svc.Login(context.Background(), "0000")
	assert.ErrorIs(t, err, ErrInvalidPIN)
}

func TestLoginConfiguredWaiterOverridesFallback(t *testing.T) {
	svc := NewAuthService(staticPINs{pins: map[string]string{"waiter": "5555"}}, "1234", "secret", 60)
	_, _, err := svc.Login(context.Background(), "1234")
	assert.ErrorIs(t, err, ErrInvalidPIN)
}

func TestLoginPropagatesStoreErrors(t *testing.T) {
	svc := NewAuthService(staticPINs{err: repository.ErrTransient}, "1234", "secret", 60)
	_, _, err := svc.Login(context.Background(), "1234")
	assert.True(t, errors.Is(err, repository.ErrTransient))
}
