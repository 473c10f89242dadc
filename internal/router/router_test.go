package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/iliyamo/restaurant-ordering/internal/handler"
	"github.com/iliyamo/restaurant-ordering/internal/utils"
)

const secret = "router-secret"

// The services below are never reached: every request in this file is
// answered by middleware or by a handler without dependencies.
type (
	noOrders   struct{ handler.OrderService }
	noTables   struct{ handler.TableService }
	noSettings struct{ handler.SettingsStore }
	noStats    struct{ handler.StatsService }
	noAuth     struct{ handler.Authenticator }
)

func newRouter() *echo.Echo {
	e := echo.New()
	RegisterRoutes(e, Deps{
		Orders:    handler.NewOrderHandler(noOrders{}),
		Tables:    handler.NewTableHandler(noTables{}),
		Settings:  handler.NewSettingsHandler(noSettings{}),
		Stats:     handler.NewStatsHandler(noStats{}),
		Auth:      handler.NewAuthHandler(noAuth{}),
		JWTSecret: secret,
	})
	return e
}

func call(t *testing.T, e *echo.Echo, method, path, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if role != "" {
		tok, err := utils.NewStaffToken(secret, role, 10, time.Now())
		require.NoError(t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestPublicProbes(t *testing.T) {
	e := newRouter()
	assert.Equal(t, http.StatusOK, call(t, e, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, call(t, e, http.MethodGet, "/metrics", "").Code)
}

func TestStaffRoutesRequireAuth(t *testing.T) {
	e := newRouter()
	for _, path := range []string{"/api/orders", "/api/tables", "/api/reservations", "/api/settings", "/api/stats/day"} {
		rec := call(t, e, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "unauthorized", gjson.Get(rec.Body.String(), "error").String(), path)
	}
}

func TestRoleGates(t *testing.T) {
	e := newRouter()
	cases := []struct {
		method, path, role string
	}{
		{http.MethodPost, "/api/settings", "cashier"},
		{http.MethodPost, "/api/tables", "waiter"},
		{http.MethodPost, "/api/orders/1/pay", "waiter"},
		{http.MethodPost, "/api/orders/close-table", "waiter"},
		{http.MethodPost, "/api/orders/1/receipt", "waiter"},
		{http.MethodGet, "/api/stats/day", "waiter"},
		{http.MethodGet, "/api/stats/range", "waiter"},
	}
	for _, tc := range cases {
		rec := call(t, e, tc.method, tc.path, tc.role)
		assert.Equal(t, http.StatusForbidden, rec.Code, tc.method+" "+tc.path)
	}
}

func TestRouteTable(t *testing.T) {
	e := newRouter()
	have := map[string]bool{}
	for _, r := range e.Routes() {
		have[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"POST /api/checkout",
		"POST /api/auth/pin",
		"POST /api/orders/:id/pay-online",
		"GET /pay/success",
		"GET /pay/cancel",
		"POST /api/orders/:id/restore",
		"POST /api/orders/close-table",
		"POST /api/tables/:id/promote",
		"POST /api/reservations/:id/cancel",
	} {
		assert.True(t, have[want], want)
	}
}
