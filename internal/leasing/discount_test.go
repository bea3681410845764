package leasing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestApplyDiscount_Percentage(t *testing.T) {
	got := ApplyDiscount(d("200"), Discount{Enabled: true, Type: DiscountPercentage, Value: d("10")})

	equalDec(t, "discountAmount", got.DiscountAmount, d("20"))
	equalDec(t, "after", got.MonthlyPaymentAfterDiscount, d("180"))
}

func TestApplyDiscount_ClampsToMonthlyPayment(t *testing.T) {
	pct := ApplyDiscount(d("100"), Discount{Enabled: true, Type: DiscountPercentage, Value: d("150")})
	equalDec(t, "percentage discountAmount", pct.DiscountAmount, d("100"))
	equalDec(t, "percentage after", pct.MonthlyPaymentAfterDiscount, decimal.Zero)

	amt := ApplyDiscount(d("100"), Discount{Enabled: true, Type: DiscountAmount, Value: d("250")})
	equalDec(t, "amount discountAmount", amt.DiscountAmount, d("100"))
	equalDec(t, "amount after", amt.MonthlyPaymentAfterDiscount, decimal.Zero)

	neg := ApplyDiscount(d("100"), Discount{Enabled: true, Type: DiscountAmount, Value: d("-5")})
	equalDec(t, "negative discountAmount", neg.DiscountAmount, decimal.Zero)
	equalDec(t, "negative after", neg.MonthlyPaymentAfterDiscount, d("100"))
}

func TestApplyDiscount_Disabled(t *testing.T) {
	got := ApplyDiscount(d("100"), Discount{Enabled: false, Type: DiscountAmount, Value: d("30")})

	equalDec(t, "discountAmount", got.DiscountAmount, decimal.Zero)
	equalDec(t, "after", got.MonthlyPaymentAfterDiscount, d("100"))
}

func TestDiscountMarginImpact(t *testing.T) {
	// 42 €/month at 3.5 on a 1000 purchase implies a 200 margin.
	res := ApplyDiscount(d("42"), Discount{Enabled: true, Type: DiscountAmount, Value: d("3.5")})

	got := DiscountMarginImpact(res, d("3.5"), d("1000"))

	equalDec(t, "before", got.Before, d("200"))
	equalDec(t, "after", got.After, d("100"))
	equalDec(t, "beforePercent", got.BeforePercent, d("20"))
	equalDec(t, "afterPercent", got.AfterPercent, d("10"))
	if got.Negative {
		t.Fatalf("margin should still be positive")
	}
}

func TestDiscountMarginImpact_FlagsNegativeMargin(t *testing.T) {
	res := ApplyDiscount(d("42"), Discount{Enabled: true, Type: DiscountPercentage, Value: d("50")})

	got := DiscountMarginImpact(res, d("3.5"), d("1000"))

	equalDec(t, "after", got.After, d("-400"))
	if !got.Negative {
		t.Fatalf("expected negative margin flag")
	}
}

func TestDiscountMarginImpact_ZeroCoefficient(t *testing.T) {
	got := DiscountMarginImpact(ApplyDiscount(d("42"), Discount{}), decimal.Zero, d("1000"))

	if !got.Before.IsZero() || got.Negative {
		t.Fatalf("expected zero impact, got %+v", got)
	}
}
