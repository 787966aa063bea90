package withdrawal

import (
	"github.com/shopspring/decimal"
)

// MinEntries is the entry count required before a refund may be requested.
const MinEntries = 10

// serviceChargeRate is retained from the refund: 7% of everything paid.
var serviceChargeRate = decimal.RequireFromString("0.07")

// Eligibility is the refund economics for a given entry count. Amounts are
// decimals rounded half-up to 2 places; binary floats never touch them.
type Eligibility struct {
	Eligible      bool            `json:"eligible"`
	EntryCount    int             `json:"entry_count"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	ServiceCharge decimal.Decimal `json:"service_charge"`
	RefundAmount  decimal.Decimal `json:"refund_amount"`
}

// Compute derives refund economics from the entry count and the fixed fee.
// Pure: no I/O, no clock.
func Compute(entryCount int, fee decimal.Decimal) Eligibility {
	total := fee.Mul(decimal.NewFromInt(int64(entryCount))).Round(2)
	charge := total.Mul(serviceChargeRate).Round(2)
	refund := total.Sub(charge)

	return Eligibility{
		Eligible:      entryCount >= MinEntries,
		EntryCount:    entryCount,
		TotalPaid:     total,
		ServiceCharge: charge,
		RefundAmount:  refund,
	}
}
