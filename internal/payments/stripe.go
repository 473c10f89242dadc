package payments

import (
	"context"
	"errors"
	"strconv"

	"github.com/stripe/stripe-go/v82"
)

// StripeProvider opens Stripe Checkout sessions in payment mode.
type StripeProvider struct {
	client *stripe.Client
}

// NewStripeProvider returns nil when key is empty so callers can treat an
// unset STRIPE_SECRET_KEY as "online payments disabled".
func NewStripeProvider(key string) *StripeProvider {
	if key == "" {
		return nil
	}
	return &StripeProvider{client: stripe.NewClient(key)}
}

// CreateCheckout creates a single-line session for the order total. The
// order id travels as client reference and metadata so Paid can return it.
func (p *StripeProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error) {
	if req.Amount.Sign() <= 0 {
		return Checkout{}, errors.New("amount must be positive")
	}
	ref := strconv.FormatUint(req.OrderID, 10)
	params := &stripe.CheckoutSessionCreateParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(ref),
		Metadata:          map[string]string{"order_id": ref},
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(MinorUnits(req.Amount)),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
			},
		},
	}
	cs, err := p.client.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return Checkout{}, err
	}
	return Checkout{Reference: cs.ID, URL: cs.URL}, nil
}

// Paid retrieves the session and checks its payment status.
func (p *StripeProvider) Paid(ctx context.Context, reference string) (bool, string, error) {
	cs, err := p.client.V1CheckoutSessions.Retrieve(ctx, reference, &stripe.CheckoutSessionRetrieveParams{})
	if err != nil {
		return false, "", err
	}
	orderID := cs.ClientReferenceID
	if orderID == "" {
		orderID = cs.Metadata["order_id"]
	}
	return cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid, orderID, nil
}
