package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health is used by load balancers and monitoring systems. It answers 200
// "ok" while the datastore responds and 503 otherwise; a nil db skips the
// check.
func Health(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				c.Logger().Warnf("healthz: datastore ping failed: %v", err)
				return c.String(http.StatusServiceUnavailable, "datastore unavailable")
			}
		}
		return c.String(http.StatusOK, "ok")
	}
}
