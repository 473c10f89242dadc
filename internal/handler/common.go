// Package handler exposes the HTTP handlers of the ordering API. Handlers
// bind and validate the request, call one service method and render either
// {"ok": true, ...} or {"ok": false, "error": "<code>"}.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/payments"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
	"github.com/iliyamo/restaurant-ordering/internal/service"
)

// requestTimeout bounds the datastore work of a single request.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// RequestValidator plugs go-playground/validator into echo.
type RequestValidator struct {
	v *validator.Validate
}

// NewValidator returns the validator installed as e.Validator.
func NewValidator() *RequestValidator {
	return &RequestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (r *RequestValidator) Validate(i interface{}) error {
	return r.v.Struct(i)
}

// bind decodes the body into req and runs the struct tags through the
// registered validator.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return &service.ValidationError{Code: "invalid_body", Msg: err.Error()}
	}
	if c.Echo().Validator == nil {
		return nil
	}
	if err := c.Validate(req); err != nil {
		return &service.ValidationError{Code: "invalid_request", Msg: err.Error()}
	}
	return nil
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
	return positiveID(c.Param(name), name)
}

// queryID is parseID for query parameters.
func queryID(c echo.Context, name string) (uint64, error) {
	return positiveID(c.QueryParam(name), name)
}

func positiveID(raw, name string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, &service.ValidationError{Code: "invalid_id", Msg: name + " must be a positive integer"}
	}
	return id, nil
}

// queryInt reads an optional non-negative integer query parameter.
func queryInt(c echo.Context, name string) (int, error) {
	s := c.QueryParam(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, &service.ValidationError{Code: "invalid_" + name, Msg: name + " must be a non-negative integer"}
	}
	return n, nil
}

// errorStatus maps service and repository errors onto a status and a stable
// error code.
func errorStatus(err error) (int, string) {
	var ve *service.ValidationError
	var pe *service.ProviderError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Code
	case errors.As(err, &pe):
		return http.StatusBadGateway, pe.Code
	case errors.Is(err, service.ErrInvalidPIN):
		return http.StatusUnauthorized, "invalid_pin"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, service.ErrAlreadyPaid):
		return http.StatusConflict, "order_already_paid"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, service.ErrPaymentNotCompleted):
		return http.StatusBadGateway, "payment_not_completed"
	case errors.Is(err, payments.ErrNotConfigured):
		return http.StatusServiceUnavailable, "payments_not_configured"
	case errors.Is(err, service.ErrFiscalNotConfigured):
		return http.StatusServiceUnavailable, "fiscal_not_configured"
	case errors.Is(err, repository.ErrTransient), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "temporarily_unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

// fail renders err. Server-side failures are logged with the request id.
func fail(c echo.Context, err error) error {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		c.Logger().Errorf("%s %s [%s]: %v", c.Request().Method, c.Path(),
			c.Response().Header().Get(echo.HeaderXRequestID), err)
	}
	return c.JSON(status, echo.Map{"ok": false, "error": code})
}
