// Package payments wraps the hosted-checkout payment gateway. The service
// only needs two calls: open a checkout page for an order and later ask
// whether that checkout was paid.
package payments

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNotConfigured is returned by callers when no provider is wired.
var ErrNotConfigured = errors.New("payments not configured")

// CheckoutRequest describes one hosted checkout.
type CheckoutRequest struct {
	OrderID     uint64
	Amount      decimal.Decimal
	Currency    string
	Description string
	SuccessURL  string
	CancelURL   string
}

// Checkout is the gateway's answer: a reference to verify later and the
// page the customer is redirected to.
type Checkout struct {
	Reference string
	URL       string
}

// Provider is implemented by the Stripe adapter and by test fakes.
type Provider interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error)
	// Paid reports whether the checkout identified by reference was paid and
	// which order it belongs to.
	Paid(ctx context.Context, reference string) (paid bool, orderID string, err error)
}

// MinorUnits converts an amount to the smallest currency unit, rounding half
// away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
