package withdrawal

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCompute(t *testing.T) {
	fee := decimal.RequireFromString("50.00")

	t.Run("below threshold", func(t *testing.T) {
		e := Compute(9, fee)
		if e.Eligible {
			t.Error("Expected 9 entries to be ineligible")
		}
	})

	t.Run("at threshold", func(t *testing.T) {
		e := Compute(10, fee)
		if !e.Eligible {
			t.Error("Expected 10 entries to be eligible")
		}
		if e.TotalPaid.StringFixed(2) != "500.00" {
			t.Errorf("Expected total 500.00, got %s", e.TotalPaid.StringFixed(2))
		}
		if e.ServiceCharge.StringFixed(2) != "35.00" {
			t.Errorf("Expected charge 35.00, got %s", e.ServiceCharge.StringFixed(2))
		}
		if e.RefundAmount.StringFixed(2) != "465.00" {
			t.Errorf("Expected refund 465.00, got %s", e.RefundAmount.StringFixed(2))
		}
	})

	t.Run("charge plus refund equals total", func(t *testing.T) {
		for _, n := range []int{1, 7, 10, 13, 99} {
			e := Compute(n, fee)
			if !e.ServiceCharge.Add(e.RefundAmount).Equal(e.TotalPaid) {
				t.Errorf("entries=%d: %s + %s != %s", n,
					e.ServiceCharge.StringFixed(2), e.RefundAmount.StringFixed(2), e.TotalPaid.StringFixed(2))
			}
		}
	})

	t.Run("rounding is half-up", func(t *testing.T) {
		// 11 x 6.50 = 71.50; 7% = 5.005 rounds up to 5.01.
		e := Compute(11, decimal.RequireFromString("6.50"))
		if e.ServiceCharge.StringFixed(2) != "5.01" {
			t.Errorf("Expected charge 5.01, got %s", e.ServiceCharge.StringFixed(2))
		}
		if e.RefundAmount.StringFixed(2) != "66.49" {
			t.Errorf("Expected refund 66.49, got %s", e.RefundAmount.StringFixed(2))
		}
	})
}
