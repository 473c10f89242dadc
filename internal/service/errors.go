// Package service holds the business rules: the order lifecycle, the table
// and reservation coordinator with its waitlist promotion, the stats
// rollups, settings and staff PIN login.
package service

import (
	"errors"
	"fmt"
)

// ValidationError rejects malformed input. Code is the stable identifier
// returned to clients.
type ValidationError struct {
	Code string
	Msg  string
}

func (e *ValidationError) Error() string {
	if e.Msg == "" {
		return e.Code
	}
	return e.Code + ": " + e.Msg
}

func invalid(code, format string, args ...interface{}) error {
	return &ValidationError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// ProviderError wraps a failure of an external collaborator (payments,
// fiscal). Code distinguishes the failing step.
type ProviderError struct {
	Code string
	Err  error
}

func (e *ProviderError) Error() string { return e.Code + ": " + e.Err.Error() }
func (e *ProviderError) Unwrap() error { return e.Err }

var (
	// ErrAlreadyPaid is returned when online payment is requested for a
	// paid order.
	ErrAlreadyPaid = errors.New("order already paid")
	// ErrPaymentNotCompleted is returned when the gateway reports the
	// checkout as unpaid or it belongs to another order.
	ErrPaymentNotCompleted = errors.New("payment not completed")
	// ErrInvalidPIN is returned by staff login.
	ErrInvalidPIN = errors.New("invalid pin")
	// ErrFiscalNotConfigured is returned when receipts are requested
	// without a fiscal provider.
	ErrFiscalNotConfigured = errors.New("fiscal provider not configured")
)
