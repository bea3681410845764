package leasing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// FinancedAmount returns the amount the leasing partner finances: the
// purchase price inflated by the reseller margin.
func FinancedAmount(purchasePrice, marginPercent decimal.Decimal) decimal.Decimal {
	return purchasePrice.Mul(decimal.NewFromInt(1).Add(marginPercent.Div(hundred)))
}

// MonthlyPayment computes the monthly payment of line under table. It returns
// a copy of line with MonthlyPayment set, along with the coefficient used.
func MonthlyPayment(line EquipmentLine, table *RateTable) (EquipmentLine, decimal.Decimal) {
	financed := FinancedAmount(line.PurchasePrice, line.Margin)
	coef := FindCoefficient(financed, table)
	line.MonthlyPayment = financed.Mul(coef).Div(hundred)
	return line, coef
}

// reverseCoefficient picks the coefficient for a reverse solve: the first
// bracket, in table order, whose own range contains target*100/coefficient.
//
// This guesses the bracket from an estimate and can disagree with the bracket
// FindCoefficient selects for the solved financed amount. See ReverseSolveAgrees.
func reverseCoefficient(target decimal.Decimal, table *RateTable) decimal.Decimal {
	if table == nil || len(table.Ranges) == 0 {
		return fallbackCoefficient()
	}
	for _, r := range table.Ranges {
		if !r.Coefficient.IsPositive() {
			continue
		}
		estimate := target.Mul(hundred).Div(r.Coefficient)
		if r.Contains(estimate) {
			return r.Coefficient
		}
	}
	if c := table.Ranges[0].Coefficient; c.IsPositive() {
		return c
	}
	return fallbackCoefficient()
}

// MarginFromMonthlyPayment solves the margin needed for purchasePrice to reach
// target under table. Non-positive inputs yield the zero margin.
func MarginFromMonthlyPayment(target, purchasePrice decimal.Decimal, table *RateTable) CalculatedMargin {
	if !target.IsPositive() || !purchasePrice.IsPositive() {
		return CalculatedMargin{}
	}

	coef := reverseCoefficient(target, table)
	required := target.Mul(hundred).Div(coef)
	amount := required.Sub(purchasePrice)

	return CalculatedMargin{
		Percentage: amount.Div(purchasePrice).Mul(hundred).Round(2),
		Amount:     amount,
	}
}

// ReverseSolveAgrees reports whether the coefficient chosen by
// MarginFromMonthlyPayment matches the one FindCoefficient picks for the
// financed amount it solved for. Non-positive inputs always agree.
func ReverseSolveAgrees(target, purchasePrice decimal.Decimal, table *RateTable) bool {
	if !target.IsPositive() || !purchasePrice.IsPositive() {
		return true
	}
	coef := reverseCoefficient(target, table)
	required := target.Mul(hundred).Div(coef)
	return FindCoefficient(required, table).Equal(coef)
}
