// Package fiscal issues fiscal receipts for paid orders. Only a mock
// provider exists: it normalises the order lines and writes the receipt to
// disk so the cashier flow can be exercised without a signing service.
package fiscal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultVATRate is applied to lines that do not carry their own rate.
var DefaultVATRate = decimal.NewFromInt(10)

// Line is one receipt line as the provider receives it.
type Line struct {
	Description string          `json:"description"`
	Qty         int             `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	VATRate     decimal.Decimal `json:"vatRate"`
}

// Request is the order data sent for fiscalisation.
type Request struct {
	OrderID uint64
	Lines   []Line
}

// Record is what the provider returns.
type Record struct {
	Mode      string          `json:"mode"`
	Status    string          `json:"status"`
	ReceiptID string          `json:"receipt_id"`
	SystemID  string          `json:"system_id"`
	OrderID   uint64          `json:"order_id"`
	CreatedAt time.Time       `json:"created_at"`
	Lines     []Line          `json:"items"`
	Total     decimal.Decimal `json:"total"`
}

// Provider issues a receipt for an order.
type Provider interface {
	Issue(ctx context.Context, req Request) (Record, error)
}

// MockProvider writes each receipt as a JSON file under Dir.
type MockProvider struct {
	Dir string
	Now func() time.Time
}

// NewMockProvider returns a provider writing to dir.
func NewMockProvider(dir string) *MockProvider {
	return &MockProvider{Dir: dir, Now: time.Now}
}

// Issue normalises the lines, totals them to cents and persists the record.
func (p *MockProvider) Issue(ctx context.Context, req Request) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if len(req.Lines) == 0 {
		return Record{}, fmt.Errorf("order %d has no lines", req.OrderID)
	}
	rec := Record{
		Mode:      "mock",
		Status:    "OK",
		ReceiptID: "mock_" + uuid.NewString(),
		SystemID:  "mock_system",
		OrderID:   req.OrderID,
		CreatedAt: p.Now().UTC(),
		Lines:     Normalize(req.Lines),
	}
	rec.Total = Total(rec.Lines)

	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return Record{}, fmt.Errorf("mkdir %s: %w", p.Dir, err)
	}
	body, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return Record{}, err
	}
	name := filepath.Join(p.Dir, fmt.Sprintf("order_%d_%s.json", req.OrderID, rec.ReceiptID))
	if err := os.WriteFile(name, body, 0o644); err != nil {
		return Record{}, fmt.Errorf("write receipt: %w", err)
	}
	return rec, nil
}

// Normalize fills defaults: qty 1 and the default VAT rate.
func Normalize(lines []Line) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		if l.Qty <= 0 {
			l.Qty = 1
		}
		if l.VATRate.IsZero() {
			l.VATRate = DefaultVATRate
		}
		out[i] = l
	}
	return out
}

// Total sums qty × unit price rounded to cents.
func Total(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Qty))))
	}
	return sum.Round(2)
}
