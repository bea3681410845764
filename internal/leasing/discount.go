package leasing

import "github.com/shopspring/decimal"

// DiscountType selects how a Discount value is interpreted.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountAmount     DiscountType = "amount"
)

// Discount is a commercial discount applied to a monthly payment.
type Discount struct {
	Enabled bool            `json:"enabled"`
	Type    DiscountType    `json:"type"`
	Value   decimal.Decimal `json:"value"`
}

// DiscountResult is the outcome of ApplyDiscount.
type DiscountResult struct {
	MonthlyPayment              decimal.Decimal `json:"monthlyPayment"`
	DiscountAmount              decimal.Decimal `json:"discountAmount"`
	MonthlyPaymentAfterDiscount decimal.Decimal `json:"monthlyPaymentAfterDiscount"`
}

// ApplyDiscount applies d to monthly. The discount is clamped to [0, monthly],
// so the discounted payment is never negative.
func ApplyDiscount(monthly decimal.Decimal, d Discount) DiscountResult {
	res := DiscountResult{
		MonthlyPayment:              monthly,
		MonthlyPaymentAfterDiscount: monthly,
	}
	if !d.Enabled || !monthly.IsPositive() {
		return res
	}

	var amount decimal.Decimal
	switch d.Type {
	case DiscountPercentage:
		amount = monthly.Mul(d.Value).Div(hundred)
	case DiscountAmount:
		amount = d.Value
	}
	amount = decimal.Max(decimal.Zero, decimal.Min(amount, monthly))

	res.DiscountAmount = amount
	res.MonthlyPaymentAfterDiscount = monthly.Sub(amount)
	return res
}

// MarginImpact previews the reseller margin before and after a discount.
// Negative is advisory: it flags a discount that eats the whole margin.
type MarginImpact struct {
	Before        decimal.Decimal `json:"marginBefore"`
	After         decimal.Decimal `json:"marginAfter"`
	BeforePercent decimal.Decimal `json:"marginBeforePercent"`
	AfterPercent  decimal.Decimal `json:"marginAfterPercent"`
	Negative      bool            `json:"negative"`
}

// DiscountMarginImpact derives the margin implied by the monthly payment
// before and after discount, given the coefficient and the total purchase
// price. A non-positive coefficient yields the zero impact.
func DiscountMarginImpact(res DiscountResult, coefficient, totalPurchasePrice decimal.Decimal) MarginImpact {
	if !coefficient.IsPositive() {
		return MarginImpact{}
	}

	margin := func(monthly decimal.Decimal) decimal.Decimal {
		return monthly.Mul(hundred).Div(coefficient).Sub(totalPurchasePrice)
	}
	percent := func(m decimal.Decimal) decimal.Decimal {
		if !totalPurchasePrice.IsPositive() {
			return decimal.Zero
		}
		return m.Div(totalPurchasePrice).Mul(hundred).Round(2)
	}

	before := margin(res.MonthlyPayment)
	after := margin(res.MonthlyPaymentAfterDiscount)
	return MarginImpact{
		Before:        before,
		After:         after,
		BeforePercent: percent(before),
		AfterPercent:  percent(after),
		Negative:      after.IsNegative(),
	}
}
