package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-ordering/internal/service"
)

// SettingsStore is the part of *service.SettingsService the HTTP layer uses.
type SettingsStore interface {
	All(ctx context.Context) (map[string]json.RawMessage, error)
	Set(ctx context.Context, values map[string]json.RawMessage) error
}

// SettingsHandler reads and writes the flat settings document.
type SettingsHandler struct {
	Settings SettingsStore
}

func NewSettingsHandler(s SettingsStore) *SettingsHandler {
	return &SettingsHandler{Settings: s}
}

// Get handles GET /api/settings. staff_pins is redacted by the service.
func (h *SettingsHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	all, err := h.Settings.All(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "settings": all})
}

// Update handles POST /api/settings. The body is an object of key → JSON
// value; every key is upserted and the last write wins.
func (h *SettingsHandler) Update(c echo.Context) error {
	var values map[string]json.RawMessage
	if err := json.NewDecoder(c.Request().Body).Decode(&values); err != nil {
		return fail(c, &service.ValidationError{Code: "invalid_body", Msg: err.Error()})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Settings.Set(ctx, values); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
